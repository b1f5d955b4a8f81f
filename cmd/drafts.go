package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/example/ridebook/internal/config"
	"github.com/example/ridebook/internal/db"
	"github.com/example/ridebook/internal/drafts"
)

func newDraftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "Inspect and clean up stored booking drafts",
	}
	cmd.AddCommand(newDraftsListCmd())
	cmd.AddCommand(newDraftsShowCmd())
	cmd.AddCommand(newDraftsPurgeCmd())
	return cmd
}

func openDrafts(ctx context.Context) (*drafts.Repo, func(), error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, nil, err
	}
	d, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	return drafts.NewRepo(d), d.Close, nil
}

func newDraftsListCmd() *cobra.Command {
	var limit int

	c := &cobra.Command{
		Use:   "list",
		Short: "List the most recently touched drafts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := context.Background()
			repo, closeDB, err := openDrafts(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			recs, err := repo.Recent(ctx, limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTEP\tVEHICLE\tCOMPLETE\tRESET_AT\tUPDATED")
			for _, r := range recs {
				resetAt := "-"
				if r.ResetAt != nil {
					resetAt = r.ResetAt.Format(time.RFC3339)
				}
				vehicle := string(r.Draft.SelectedVehicle)
				if vehicle == "" {
					vehicle = "-"
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%v\t%s\t%s\n",
					r.ID, r.Draft.CurrentStep, vehicle, r.Draft.IsComplete, resetAt, r.UpdatedAt.Format(time.RFC3339))
			}
			return tw.Flush()
		},
	}
	c.Flags().IntVar(&limit, "limit", 20, "max rows")
	return c
}

func newDraftsShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <id>",
		Short: "Print one draft as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("invalid draft id: %w", err)
			}
			ctx := context.Background()
			repo, closeDB, err := openDrafts(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			rec, err := repo.Get(ctx, id)
			if db.IsNotFound(err) {
				return fmt.Errorf("draft %s not found", id)
			}
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(rec)
		},
	}
}

func newDraftsPurgeCmd() *cobra.Command {
	var olderThan time.Duration

	c := &cobra.Command{
		Use:   "purge",
		Short: "Delete drafts not touched for a while",
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			ctx := context.Background()
			repo, closeDB, err := openDrafts(ctx)
			if err != nil {
				return err
			}
			defer closeDB()

			n, err := repo.PurgeStale(ctx, time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d drafts\n", n)
			return nil
		},
	}
	c.Flags().DurationVar(&olderThan, "older-than", 24*time.Hour, "age of the last update")
	return c
}
