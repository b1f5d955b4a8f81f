package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/auth"
	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/config"
	"github.com/example/ridebook/internal/db"
	"github.com/example/ridebook/internal/drafts"
	"github.com/example/ridebook/internal/events"
	"github.com/example/ridebook/internal/logger"
	"github.com/example/ridebook/internal/migrate"
	"github.com/example/ridebook/internal/places"
	"github.com/example/ridebook/internal/scheduler"
	"github.com/example/ridebook/internal/web"
)

func newServerCmd() *cobra.Command {
	var migrateUp bool

	cmd := &cobra.Command{
		Use:   "server",
		Short: "Run the booking site and the draft reset scheduler",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			log, err := logger.New(cfg.DevMode)
			if err != nil {
				return err
			}
			defer func() { _ = log.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			d, err := db.Open(ctx, cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer d.Close()

			if err := d.Ping(ctx); err != nil {
				return fmt.Errorf("db ping: %w", err)
			}

			if migrateUp {
				if _, err := migrate.Up(ctx, d, log); err != nil {
					return err
				}
			}

			api := backend.New(cfg.APIBaseURL, cfg.APITimeout)
			authSvc := auth.NewService(auth.NewStore(cfg.CookieHashKey, cfg.CookieBlockKey), api, log.Named("auth"))
			draftRepo := drafts.NewRepo(d)

			// places, optionally cached in redis
			placeOpts := []places.Option{places.WithRegion(cfg.PlacesRegion)}
			if cfg.RedisAddr != "" && cfg.GoogleMapsAPIKey != "" {
				cache, err := places.NewRedisCache(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
				if err != nil {
					log.Warn("places cache disabled", zap.String("addr", cfg.RedisAddr), zap.Error(err))
				} else {
					defer cache.Close()
					placeOpts = append(placeOpts, places.WithCache(cache, cfg.PlacesCacheTTL))
				}
			}
			if cfg.GoogleMapsAPIKey == "" {
				log.Info("GOOGLE_MAPS_API_KEY not set; addresses are taken as typed")
			}
			placesClient := places.New(cfg.GoogleMapsAPIKey, log.Named("places"), placeOpts...)

			// booking events
			pubs := []events.Publisher{events.NewJournal(d)}
			if cfg.AMQPURL != "" {
				broker, err := events.DialAMQP(ctx, cfg.AMQPURL, log.Named("amqp"))
				if err != nil {
					log.Warn("event broker unavailable; journal only", zap.Error(err))
				} else {
					defer broker.Close()
					pubs = append(pubs, broker)
				}
			}

			// scheduler
			s := &scheduler.Scheduler{
				Drafts:   draftRepo,
				Log:      log.Named("scheduler"),
				Interval: cfg.PollInterval,
				DraftTTL: cfg.DraftTTL,
			}
			go func() { _ = s.Run(ctx) }()

			// web
			ws := &web.Server{
				Auth:            authSvc,
				API:             api,
				Drafts:          draftRepo,
				Places:          placesClient,
				Events:          events.NewNotifier(log.Named("events"), pubs...),
				Log:             log,
				BaseURL:         cfg.BaseURL,
				Location:        cfg.Location,
				MaxPassengers:   cfg.MaxPassengers,
				ResetDelay:      cfg.ResetDelay,
				LoginRatePerMin: cfg.LoginRatePerMin,
				Ready:           d.Ping,
			}
			return web.Start(ctx, cfg.ListenAddr, ws.Routes(), log)
		},
	}

	cmd.Flags().BoolVar(&migrateUp, "migrate", true, "run database migrations on startup")

	cmd.Flags().Lookup("migrate").NoOptDefVal = "true"
	return cmd
}
