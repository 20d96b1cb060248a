package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bnema/squash/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memHistory struct {
	mu        sync.Mutex
	entries   []domain.HistoryEntry
	recordErr error
}

func (m *memHistory) Record(_ context.Context, e *domain.HistoryEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.recordErr != nil {
		return m.recordErr
	}
	e.ID = int64(len(m.entries) + 1)
	m.entries = append(m.entries, *e)
	return nil
}

func (m *memHistory) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.HistoryEntry, 0, len(m.entries))
	for i := len(m.entries) - 1; i >= 0 && (limit <= 0 || len(out) < limit); i-- {
		out = append(out, m.entries[i])
	}
	return out, nil
}

func (m *memHistory) Close() error { return nil }

func (m *memHistory) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.entries)
}

func runRecorder(t *testing.T, r *HistoryRecorder) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	t.Cleanup(func() {
		cancel()
		assert.NoError(t, <-done)
	})
}

func TestHistoryRecorder_RecordsTerminalOutcomes(t *testing.T) {
	bus := NewEventBus()
	store := &memHistory{}
	r := NewHistoryRecorder(store, bus)

	job := domain.NewJob("/in/a.mov", "a.mov", 1000)
	job.Apply(domain.MarkDone("/out/a-compressed.mp4", 250, time.Now()))

	// Published before Run starts: the subscription already exists.
	bus.Publish(Event{JobID: job.ID, Type: EventStatus, Status: domain.JobStatusProcessing, Job: job})
	bus.Publish(Event{JobID: job.ID, Type: EventProgress, Status: domain.JobStatusProcessing, Progress: 50})
	bus.Publish(Event{JobID: job.ID, Type: EventStatus, Status: domain.JobStatusDone, Job: job})
	bus.Publish(Event{JobID: job.ID, Type: EventRemoved, Status: domain.JobStatusDone, Job: job})

	runRecorder(t, r)

	require.Eventually(t, func() bool { return store.count() == 1 }, waitFor, 5*time.Millisecond)

	got, err := r.Recent(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, job.ID, got[0].JobID)
	assert.Equal(t, domain.JobStatusDone, got[0].Status)
	assert.Equal(t, int64(250), got[0].OutputSize)
	assert.Equal(t, 75, got[0].SavedPercent())
}

func TestHistoryRecorder_StoreErrorDoesNotStop(t *testing.T) {
	bus := NewEventBus()
	store := &memHistory{recordErr: errors.New("database is locked")}
	r := NewHistoryRecorder(store, bus)
	runRecorder(t, r)

	failed := domain.NewJob("/in/a.mov", "a.mov", 1)
	bus.Publish(Event{JobID: failed.ID, Type: EventStatus, Status: domain.JobStatusError, Job: failed})

	store.mu.Lock()
	store.recordErr = nil
	store.mu.Unlock()

	skipped := domain.NewJob("/in/b.mov", "b.mov", 1)
	require.Eventually(t, func() bool {
		bus.Publish(Event{JobID: skipped.ID, Type: EventStatus, Status: domain.JobStatusSkipped, Job: skipped})
		return store.count() > 0
	}, waitFor, 10*time.Millisecond)
}

func TestHistoryRecorder_WithDriver(t *testing.T) {
	h := newHarness(t, DriverConfig{AutoStart: true})
	store := &memHistory{}
	runRecorder(t, NewHistoryRecorder(store, h.bus))
	h.start(t)

	jobs := h.add("a.mov", "b.mov")
	h.engine.next(t).finish(nil)
	h.engine.next(t).finish(errors.New("corrupt input"))

	require.Eventually(t, func() bool { return store.count() == 2 }, waitFor, 5*time.Millisecond)

	got, err := store.Recent(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, jobs[1].ID, got[0].JobID)
	assert.Equal(t, domain.JobStatusError, got[0].Status)
	assert.Contains(t, got[0].ErrorMessage, "corrupt input")
	assert.Equal(t, jobs[0].ID, got[1].JobID)
	assert.Equal(t, domain.JobStatusDone, got[1].Status)
}

func TestHistoryRecorder_DrainsOnShutdown(t *testing.T) {
	bus := NewEventBus()
	store := &memHistory{}
	r := NewHistoryRecorder(store, bus)

	for _, name := range []string{"a.mov", "b.mov"} {
		job := domain.NewJob("/in/"+name, name, 1000)
		job.Apply(domain.MarkFailed(errors.New("boom"), time.Now()))
		bus.Publish(Event{JobID: job.ID, Type: EventStatus, Status: domain.JobStatusError, Job: job})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, r.Run(ctx))
	assert.Equal(t, 2, store.count())
}

func TestHistoryRecorder_ProgressFloodKeepsOutcome(t *testing.T) {
	bus := NewEventBus()
	store := &memHistory{}
	r := NewHistoryRecorder(store, bus)

	job := domain.NewJob("/in/a.mov", "a.mov", 1000)
	for i := range 500 {
		bus.Publish(Event{JobID: job.ID, Type: EventProgress, Status: domain.JobStatusProcessing, Progress: i % 101})
	}
	job.Apply(domain.MarkDone("/out/a-compressed.mp4", 250, time.Now()))
	bus.Publish(Event{JobID: job.ID, Type: EventStatus, Status: domain.JobStatusDone, Job: job})

	runRecorder(t, r)

	require.Eventually(t, func() bool { return store.count() == 1 }, waitFor, 5*time.Millisecond)
}
