package scheduler

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Store is the slice of draft persistence the scheduler drives.
type Store interface {
	ResetDue(ctx context.Context, now time.Time, limit int) ([]uuid.UUID, error)
	PurgeStale(ctx context.Context, olderThan time.Time) (int64, error)
}

const batchSize = 100

// Scheduler resets drafts whose delayed reset has come due and purges
// abandoned ones.
type Scheduler struct {
	Drafts   Store
	Log      *zap.Logger
	Interval time.Duration
	// DraftTTL is how long an untouched draft is kept. Zero disables purging.
	DraftTTL time.Duration
	// PurgeEvery spaces out purge queries; defaults to a minute.
	PurgeEvery time.Duration

	now       func() time.Time
	mu        sync.Mutex
	lastPurge time.Time
	wg        sync.WaitGroup
}

func (s *Scheduler) Run(ctx context.Context) error {
	t := time.NewTicker(s.Interval)
	defer t.Stop()

	// kick immediately
	s.tick(ctx)

	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return ctx.Err()
		case <-t.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) clock() time.Time {
	if s.now != nil {
		return s.now()
	}
	return time.Now()
}

func (s *Scheduler) tick(ctx context.Context) {
	now := s.clock()
	for {
		ids, err := s.Drafts.ResetDue(ctx, now, batchSize)
		if err != nil {
			s.Log.Error("scheduler: reset due drafts", zap.Error(err))
			break
		}
		for _, id := range ids {
			s.Log.Debug("draft reset", zap.String("draft_id", id.String()))
		}
		if len(ids) < batchSize {
			break
		}
	}

	if s.DraftTTL <= 0 || !s.purgeDue(now) {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		n, err := s.Drafts.PurgeStale(ctx, now.Add(-s.DraftTTL))
		if err != nil {
			s.Log.Error("scheduler: purge stale drafts", zap.Error(err))
			return
		}
		if n > 0 {
			s.Log.Info("purged stale drafts", zap.Int64("count", n))
		}
	}()
}

func (s *Scheduler) purgeDue(now time.Time) bool {
	every := s.PurgeEvery
	if every <= 0 {
		every = time.Minute
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.lastPurge.IsZero() && now.Sub(s.lastPurge) < every {
		return false
	}
	s.lastPurge = now
	return true
}
