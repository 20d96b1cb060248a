package service

import (
	"context"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/infrastructure/logger"
	"github.com/bnema/squash/internal/port"
)

type EventSubscriber interface {
	SubscribeStatus() (<-chan Event, func())
}

// HistoryRecorder writes every job that reaches a terminal state to a
// HistoryStore. History is never read back into the queue.
type HistoryRecorder struct {
	store       port.HistoryStore
	events      <-chan Event
	unsubscribe func()
}

// NewHistoryRecorder subscribes immediately so no outcome published before
// Run starts is missed.
func NewHistoryRecorder(store port.HistoryStore, events EventSubscriber) *HistoryRecorder {
	ch, unsubscribe := events.SubscribeStatus()
	return &HistoryRecorder{store: store, events: ch, unsubscribe: unsubscribe}
}

// Run records terminal outcomes until ctx is cancelled, then records the
// outcomes already buffered.
func (r *HistoryRecorder) Run(ctx context.Context) error {
	defer r.unsubscribe()

	for {
		select {
		case <-ctx.Done():
			r.drain(context.WithoutCancel(ctx))
			return nil
		case ev, ok := <-r.events:
			if !ok {
				return nil
			}
			r.record(ctx, ev)
		}
	}
}

func (r *HistoryRecorder) drain(ctx context.Context) {
	for {
		select {
		case ev, ok := <-r.events:
			if !ok {
				return
			}
			r.record(ctx, ev)
		default:
			return
		}
	}
}

func (r *HistoryRecorder) record(ctx context.Context, ev Event) {
	if ev.Type != EventStatus || !ev.Status.IsTerminal() || ev.Job.ID == "" {
		return
	}
	entry := domain.NewHistoryEntry(ev.Job)
	if err := r.store.Record(ctx, &entry); err != nil {
		logger.Error.Printf("record history for job %s: %v", ev.Job.ShortID(), err)
	}
}

func (r *HistoryRecorder) Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error) {
	return r.store.Recent(ctx, limit)
}
