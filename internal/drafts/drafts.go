// Package drafts persists booking drafts so a wizard survives reloads.
// The browser only holds the draft id in the taxi-booking-storage cookie.
package drafts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/ridebook/internal/booking"
	"github.com/example/ridebook/internal/db"
)

// CookieName is the single storage key the site sets for the booking flow.
const CookieName = "taxi-booking-storage"

// Record is a stored draft with its bookkeeping columns.
type Record struct {
	ID        uuid.UUID
	Draft     booking.Draft
	ResetAt   *time.Time
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store is what the web layer and scheduler need from draft persistence.
type Store interface {
	Load(ctx context.Context, id uuid.UUID) (booking.Draft, error)
	Save(ctx context.Context, id uuid.UUID, d booking.Draft) error
	Reset(ctx context.Context, id uuid.UUID) error
	ScheduleReset(ctx context.Context, id uuid.UUID, at time.Time) error
	ResetDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	PurgeStale(ctx context.Context, olderThan time.Time) (int64, error)
}

type Repo struct{ db *db.DB }

func NewRepo(d *db.DB) *Repo { return &Repo{db: d} }

var _ Store = (*Repo)(nil)

func (r *Repo) Load(ctx context.Context, id uuid.UUID) (booking.Draft, error) {
	rec, err := r.Get(ctx, id)
	if err != nil {
		return booking.Draft{}, err
	}
	return rec.Draft, nil
}

func (r *Repo) Get(ctx context.Context, id uuid.UUID) (Record, error) {
	var rec Record
	var raw []byte
	err := r.db.QueryRow(ctx, `
SELECT id,data,reset_at,created_at,updated_at
FROM booking_drafts
WHERE id=$1`, id).Scan(&rec.ID, &raw, &rec.ResetAt, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		return Record{}, db.WrapNotFound(err)
	}
	if err := decode(raw, &rec.Draft); err != nil {
		return Record{}, fmt.Errorf("draft %s: %w", id, err)
	}
	return rec, nil
}

// Save upserts d. A pending reset stays scheduled.
func (r *Repo) Save(ctx context.Context, id uuid.UUID, d booking.Draft) error {
	raw, err := json.Marshal(d)
	if err != nil {
		return fmt.Errorf("encode draft: %w", err)
	}
	return r.db.Exec(ctx, `
INSERT INTO booking_drafts(id,data) VALUES ($1,$2)
ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, updated_at=now()`, id, raw)
}

// Reset replaces the draft with a fresh one and cancels any pending reset.
func (r *Repo) Reset(ctx context.Context, id uuid.UUID) error {
	raw, err := freshDraft()
	if err != nil {
		return err
	}
	return r.db.Exec(ctx, `
INSERT INTO booking_drafts(id,data) VALUES ($1,$2)
ON CONFLICT (id) DO UPDATE SET data=EXCLUDED.data, reset_at=NULL, updated_at=now()`, id, raw)
}

// ScheduleReset arms a reset at the given time. An earlier pending reset wins.
func (r *Repo) ScheduleReset(ctx context.Context, id uuid.UUID, at time.Time) error {
	n, err := r.db.ExecCount(ctx, `
UPDATE booking_drafts
SET reset_at = CASE WHEN reset_at IS NULL OR reset_at > $2 THEN $2 ELSE reset_at END
WHERE id=$1`, id, at)
	if err != nil {
		return err
	}
	if n == 0 {
		return db.ErrNotFound
	}
	return nil
}

// ResetDue resets up to limit drafts whose reset time has passed and
// returns their ids.
func (r *Repo) ResetDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	raw, err := freshDraft()
	if err != nil {
		return nil, err
	}
	rows, err := r.db.Query(ctx, `
UPDATE booking_drafts SET data=$2, reset_at=NULL, updated_at=now()
WHERE id IN (
  SELECT id FROM booking_drafts
  WHERE reset_at IS NOT NULL AND reset_at <= $1
  ORDER BY reset_at ASC
  LIMIT $3
  FOR UPDATE SKIP LOCKED
)
RETURNING id`, now, raw, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// PurgeStale deletes drafts untouched since olderThan.
func (r *Repo) PurgeStale(ctx context.Context, olderThan time.Time) (int64, error) {
	return r.db.ExecCount(ctx, `DELETE FROM booking_drafts WHERE updated_at < $1`, olderThan)
}

// Recent lists the newest drafts, for the drafts CLI.
func (r *Repo) Recent(ctx context.Context, limit int) ([]Record, error) {
	rows, err := r.db.Query(ctx, `
SELECT id,data,reset_at,created_at,updated_at
FROM booking_drafts
ORDER BY updated_at DESC
LIMIT $1`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var raw []byte
		if err := rows.Scan(&rec.ID, &raw, &rec.ResetAt, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		if err := decode(raw, &rec.Draft); err != nil {
			return nil, fmt.Errorf("draft %s: %w", rec.ID, err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func freshDraft() ([]byte, error) {
	raw, err := json.Marshal(booking.NewDraft())
	if err != nil {
		return nil, fmt.Errorf("encode draft: %w", err)
	}
	return raw, nil
}

// decode starts from NewDraft so fields missing in older rows get defaults.
func decode(raw []byte, d *booking.Draft) error {
	*d = booking.NewDraft()
	if err := json.Unmarshal(raw, d); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	if d.FareEstimates == nil {
		d.FareEstimates = []booking.FareEstimate{}
	}
	return nil
}
