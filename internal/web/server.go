package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"time"

	"github.com/didip/tollbooth/v7"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/auth"
	"github.com/example/ridebook/internal/backend"
	"github.com/example/ridebook/internal/booking"
	"github.com/example/ridebook/internal/drafts"
	"github.com/example/ridebook/internal/events"
	"github.com/example/ridebook/internal/places"
)

//go:embed templates/*.html static
var assets embed.FS

// Bookings is the part of the booking API the wizard calls.
type Bookings interface {
	Quote(ctx context.Context, in backend.QuoteRequest) (backend.Quote, error)
	CreateCheckoutSession(ctx context.Context, token string, in backend.CheckoutRequest) (backend.CheckoutSession, error)
	VerifyPayment(ctx context.Context, sessionID string) (backend.Verification, error)
}

type Server struct {
	Auth    *auth.Service
	API     Bookings
	Drafts  drafts.Store
	Places  *places.Client
	Events  *events.Notifier
	Log     *zap.Logger
	Metrics *Metrics

	SiteName string
	// BaseURL is the public origin; an https one marks cookies Secure.
	BaseURL         string
	Location        *time.Location
	MaxPassengers   int
	ResetDelay      time.Duration
	LoginRatePerMin float64

	// Ready backs /healthz; nil means always ready.
	Ready func(ctx context.Context) error

	now   func() time.Time
	pages map[string]*template.Template
}

type tmplData struct {
	Title     string
	SiteName  string
	User      *backend.Profile
	RequestID string
	Year      int

	Flash  string
	Errors map[string]string
	Form   any

	Draft       booking.Draft
	Step        booking.Step
	Steps       []stepView
	Estimates   []estimateView
	Vehicle     booking.Vehicle
	SkipContact bool

	MaxPassengers int
	Today         string
	PlacesEnabled bool
	CallbackURL   string
	Verified      bool
	HasDetails    bool
}

func (s *Server) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Server) Routes() http.Handler {
	if s.Location == nil {
		s.Location = time.UTC
	}
	if s.SiteName == "" {
		s.SiteName = "RideBook"
	}
	if s.Metrics == nil {
		s.Metrics = NewMetrics()
	}
	s.pages = parsePages()

	r := chi.NewRouter()
	r.Use(s.requestLogger)
	r.Use(s.recoverer)
	r.Use(s.Metrics.middleware)
	r.Use(s.Auth.Store().Load)

	static, _ := fs.Sub(assets, "static")
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.FS(static))))

	r.Get("/healthz", s.handleHealth)
	r.Handle("/metrics", s.Metrics.Handler())

	r.Get("/", s.handleHome)
	r.Post("/search", s.handleSearch)

	r.Route("/booking", func(r chi.Router) {
		r.Get("/", s.handleBooking)
		r.Post("/category", s.handleCategory)
		r.Post("/contact", s.handleContact)
		r.Post("/back", s.handleBack)
		r.Post("/payment", s.handlePayment)
		r.Get("/success", s.handleSuccess)
		r.Get("/cancel", s.handleCancel)
		r.Get("/receipt.pdf", s.handleReceipt)
	})

	limit := s.loginLimiter()
	r.Get("/login", s.handleLoginForm)
	r.With(limit).Post("/login", s.handleLogin)
	r.Get("/signup", s.handleSignupForm)
	r.With(limit).Post("/signup", s.handleSignup)
	r.Post("/logout", s.handleLogout)

	r.Get("/terms", s.staticPage("terms.html", "Terms of Service"))
	r.Get("/privacy", s.staticPage("privacy.html", "Privacy Policy"))
	r.Get("/service-unavailable", s.staticPage("unavailable.html", "Service Unavailable"))

	r.Route("/api/places", func(r chi.Router) {
		r.Get("/autocomplete", s.handlePlacesAutocomplete)
		r.Get("/details", s.handlePlaceDetails)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		s.renderStatus(w, r, http.StatusNotFound, "notfound.html", tmplData{Title: "Page not found"})
	})
	return r
}

// loginLimiter throttles credential posts per client IP.
func (s *Server) loginLimiter() func(http.Handler) http.Handler {
	perMin := s.LoginRatePerMin
	if perMin <= 0 {
		perMin = 10
	}
	lmt := tollbooth.NewLimiter(perMin/60.0, nil)
	lmt.SetBurst(int(perMin))
	lmt.SetIPLookups([]string{"X-Forwarded-For", "X-Real-IP", "RemoteAddr"})
	lmt.SetMessage("Too many attempts. Please wait a minute and try again.")
	lmt.SetMessageContentType("text/plain; charset=utf-8")
	return func(next http.Handler) http.Handler {
		return tollbooth.LimitHandler(lmt, next)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.Ready != nil {
		if err := s.Ready(r.Context()); err != nil {
			logFor(r.Context(), s.Log).Warn("health check failed", zap.Error(err))
			http.Error(w, "unavailable\n", http.StatusServiceUnavailable)
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) staticPage(name, title string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.render(w, r, name, tmplData{Title: title})
	}
}

var funcs = template.FuncMap{
	"money": func(v float64) string { return fmt.Sprintf("€%.2f", v) },
	"title": func(s string) string {
		if s == "" {
			return s
		}
		return strings.ToUpper(s[:1]) + s[1:]
	},
	"seq": func(from, to int) []int {
		var out []int
		for i := from; i <= to; i++ {
			out = append(out, i)
		}
		return out
	},
}

func parsePages() map[string]*template.Template {
	names, err := fs.Glob(assets, "templates/*.html")
	if err != nil {
		panic(err)
	}
	pages := make(map[string]*template.Template, len(names))
	for _, n := range names {
		base := strings.TrimPrefix(n, "templates/")
		if base == "base.html" {
			continue
		}
		pages[base] = template.Must(template.New(base).Funcs(funcs).ParseFS(assets, "templates/base.html", n))
	}
	return pages
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, name string, data tmplData) {
	s.renderStatus(w, r, http.StatusOK, name, data)
}

func (s *Server) renderStatus(w http.ResponseWriter, r *http.Request, status int, name string, data tmplData) {
	t, ok := s.pages[name]
	if !ok {
		logFor(r.Context(), s.Log).Error("unknown template", zap.String("name", name))
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}
	data.SiteName = s.SiteName
	data.RequestID = requestID(r.Context())
	data.Year = s.clock().In(s.Location).Year()
	if sess, ok := auth.FromContext(r.Context()); ok {
		data.User = sess.Profile
	}
	var buf strings.Builder
	if err := t.ExecuteTemplate(&buf, "base", data); err != nil {
		logFor(r.Context(), s.Log).Error("render", zap.String("template", name), zap.Error(err))
		http.Error(w, "Something went wrong.", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(buf.String()))
}

// unavailable is where every failed call to an outside service ends up.
func (s *Server) unavailable(w http.ResponseWriter, r *http.Request, what string, err error) {
	logFor(r.Context(), s.Log).Error(what, zap.Error(err))
	http.Redirect(w, r, "/service-unavailable", http.StatusSeeOther)
}

func Start(ctx context.Context, addr string, h http.Handler, log *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	log.Info("listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
