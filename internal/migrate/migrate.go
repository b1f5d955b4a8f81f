// Package migrate applies the embedded SQL files in name order, once each.
package migrate

import (
	"context"
	"embed"
	"fmt"
	"sort"
	"strings"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/db"
)

//go:embed *.sql
var fs embed.FS

// lockKey serialises migrations between replicas starting at the same time.
const lockKey = 72_610_431

// Files lists the embedded migrations in the order Up applies them.
func Files() ([]string, error) {
	entries, err := fs.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)
	return files, nil
}

// Up applies pending migrations and returns the versions it ran.
func Up(ctx context.Context, d *db.DB, log *zap.Logger) ([]string, error) {
	files, err := Files()
	if err != nil {
		return nil, err
	}
	if err := d.Exec(ctx, `CREATE TABLE IF NOT EXISTS schema_migrations (
  version TEXT PRIMARY KEY,
  applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
);`); err != nil {
		return nil, fmt.Errorf("schema_migrations: %w", err)
	}

	var applied []string
	for _, f := range files {
		b, err := fs.ReadFile(f)
		if err != nil {
			return applied, err
		}
		ran := false
		err = d.WithTx(ctx, func(tx pgx.Tx) error {
			if _, err := tx.Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, lockKey); err != nil {
				return err
			}
			var done bool
			if err := tx.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE version=$1)`, f).Scan(&done); err != nil {
				return err
			}
			if done {
				return nil
			}
			if _, err := tx.Exec(ctx, string(b)); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `INSERT INTO schema_migrations(version) VALUES ($1)`, f); err != nil {
				return err
			}
			ran = true
			return nil
		})
		if err != nil {
			return applied, fmt.Errorf("apply %s: %w", f, err)
		}
		if ran {
			log.Info("migration applied", zap.String("version", f))
			applied = append(applied, f)
		}
	}
	return applied, nil
}
