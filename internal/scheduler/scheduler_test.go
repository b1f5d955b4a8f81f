package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type fakeStore struct {
	mu      sync.Mutex
	due     []time.Time
	resets  int
	purges  []time.Time
	failDue bool
}

func (f *fakeStore) ResetDue(_ context.Context, now time.Time, limit int) ([]uuid.UUID, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDue {
		return nil, errors.New("db down")
	}
	var out []uuid.UUID
	var keep []time.Time
	for _, at := range f.due {
		if !at.After(now) && len(out) < limit {
			out = append(out, uuid.New())
			continue
		}
		keep = append(keep, at)
	}
	f.due = keep
	f.resets += len(out)
	return out, nil
}

func (f *fakeStore) PurgeStale(_ context.Context, olderThan time.Time) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.purges = append(f.purges, olderThan)
	return 1, nil
}

func TestTickResetsOnlyDueDrafts(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{}
	for i := 0; i < 250; i++ {
		st.due = append(st.due, now.Add(-time.Second))
	}
	st.due = append(st.due, now.Add(5*time.Second))

	s := &Scheduler{Drafts: st, Log: zap.NewNop(), Interval: time.Second, now: func() time.Time { return now }}
	s.tick(context.Background())
	s.wg.Wait()

	if st.resets != 250 {
		t.Fatalf("expected 250 resets across batches, got %d", st.resets)
	}
	if len(st.due) != 1 {
		t.Fatalf("future reset fired early")
	}
	if len(st.purges) != 0 {
		t.Fatalf("purge ran with DraftTTL disabled")
	}
}

func TestPurgeIsThrottled(t *testing.T) {
	now := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)
	st := &fakeStore{}
	s := &Scheduler{
		Drafts:   st,
		Log:      zap.NewNop(),
		Interval: time.Second,
		DraftTTL: 24 * time.Hour,
		now:      func() time.Time { return now },
	}
	s.tick(context.Background())
	now = now.Add(10 * time.Second)
	s.tick(context.Background())
	now = now.Add(time.Minute)
	s.tick(context.Background())
	s.wg.Wait()

	if len(st.purges) != 2 {
		t.Fatalf("expected 2 purges, got %d", len(st.purges))
	}
	if want := time.Date(2025, 4, 30, 12, 0, 0, 0, time.UTC); !st.purges[0].Equal(want) {
		t.Fatalf("purge cutoff = %v, want %v", st.purges[0], want)
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	st := &fakeStore{failDue: true}
	s := &Scheduler{Drafts: st, Log: zap.NewNop(), Interval: 10 * time.Millisecond}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if err := s.Run(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Run returned %v", err)
	}
}
