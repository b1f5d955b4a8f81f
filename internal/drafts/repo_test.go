package drafts

import (
	"context"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/example/ridebook/internal/booking"
	"github.com/example/ridebook/internal/db"
	"github.com/example/ridebook/internal/migrate"
)

// newRepo connects to DATABASE_URL and applies the migrations. Rows are
// keyed by fresh uuids so the tests tolerate a shared database.
func newRepo(t *testing.T) (*Repo, *db.DB) {
	t.Helper()
	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set")
	}
	ctx := context.Background()
	d, err := db.Open(ctx, url)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(d.Close)
	if _, err := migrate.Up(ctx, d, zap.NewNop()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewRepo(d), d
}

func startedDraft() booking.Draft {
	d := booking.NewDraft()
	d.Pickup = &booking.Place{Name: "Sants", FormattedAddress: "Estació de Sants, Barcelona"}
	d.Date, d.Time = "2025-05-02", "08:15"
	return d
}

func TestRepoSaveLoadReset(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	id := uuid.New()

	if _, err := r.Load(ctx, id); !db.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := r.Save(ctx, id, startedDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	got, err := r.Load(ctx, id)
	if err != nil || !got.Started() || got.Pickup.Name != "Sants" {
		t.Fatalf("Load = %+v, %v", got, err)
	}

	if err := r.ScheduleReset(ctx, id, time.Now().Add(time.Hour)); err != nil {
		t.Fatalf("ScheduleReset: %v", err)
	}
	if err := r.Reset(ctx, id); err != nil {
		t.Fatalf("Reset: %v", err)
	}
	rec, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.Draft.Started() || rec.ResetAt != nil {
		t.Fatalf("reset left state behind: %+v", rec)
	}
}

func TestRepoScheduleResetKeepsEarliest(t *testing.T) {
	r, _ := newRepo(t)
	ctx := context.Background()
	id := uuid.New()

	if err := r.ScheduleReset(ctx, id, time.Now()); !db.IsNotFound(err) {
		t.Fatalf("unknown draft: expected not found, got %v", err)
	}
	if err := r.Save(ctx, id, startedDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	early := time.Now().Add(time.Minute).Truncate(time.Second)
	for _, at := range []time.Time{early, early.Add(time.Hour), early.Add(30 * time.Minute)} {
		if err := r.ScheduleReset(ctx, id, at); err != nil {
			t.Fatalf("ScheduleReset(%v): %v", at, err)
		}
	}
	if err := r.Save(ctx, id, startedDraft()); err != nil {
		t.Fatalf("Save: %v", err)
	}
	rec, err := r.Get(ctx, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if rec.ResetAt == nil || !rec.ResetAt.Equal(early) {
		t.Fatalf("reset_at = %v, want %v", rec.ResetAt, early)
	}
}

func TestRepoResetDueSkipsLockedRows(t *testing.T) {
	r, d := newRepo(t)
	ctx := context.Background()
	free, locked := uuid.New(), uuid.New()
	past := time.Now().Add(-time.Minute)
	for _, id := range []uuid.UUID{free, locked} {
		if err := r.Save(ctx, id, startedDraft()); err != nil {
			t.Fatalf("Save: %v", err)
		}
		if err := r.ScheduleReset(ctx, id, past); err != nil {
			t.Fatalf("ScheduleReset: %v", err)
		}
	}

	err := d.WithTx(ctx, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `SELECT 1 FROM booking_drafts WHERE id=$1 FOR UPDATE`, locked); err != nil {
			return err
		}
		ids, err := r.ResetDue(ctx, time.Now(), 1000)
		if err != nil {
			return err
		}
		if !slices.Contains(ids, free) {
			t.Errorf("due draft not reset: %v", ids)
		}
		if slices.Contains(ids, locked) {
			t.Errorf("locked draft was claimed")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("WithTx: %v", err)
	}

	ids, err := r.ResetDue(ctx, time.Now(), 1000)
	if err != nil {
		t.Fatalf("ResetDue: %v", err)
	}
	if !slices.Contains(ids, locked) || slices.Contains(ids, free) {
		t.Fatalf("second pass = %v", ids)
	}
	got, err := r.Load(ctx, locked)
	if err != nil || got.Started() {
		t.Fatalf("locked draft not reset on second pass: %+v, %v", got, err)
	}
}

func TestRepoPurgeStale(t *testing.T) {
	r, d := newRepo(t)
	ctx := context.Background()
	stale, fresh := uuid.New(), uuid.New()
	for _, id := range []uuid.UUID{stale, fresh} {
		if err := r.Save(ctx, id, startedDraft()); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}
	if err := d.Exec(ctx, `UPDATE booking_drafts SET updated_at=now()-interval '40 days' WHERE id=$1`, stale); err != nil {
		t.Fatalf("age draft: %v", err)
	}

	n, err := r.PurgeStale(ctx, time.Now().Add(-30*24*time.Hour))
	if err != nil || n < 1 {
		t.Fatalf("PurgeStale = %d, %v", n, err)
	}
	if _, err := r.Load(ctx, stale); !db.IsNotFound(err) {
		t.Fatalf("stale draft kept: %v", err)
	}
	if _, err := r.Load(ctx, fresh); err != nil {
		t.Fatalf("fresh draft purged: %v", err)
	}
}
