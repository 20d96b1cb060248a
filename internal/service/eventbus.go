package service

import (
	"sync"

	"github.com/bnema/squash/internal/domain"
)

const (
	EventStatus   = "status"
	EventProgress = "progress"
	EventRemoved  = "removed"
)

type Event struct {
	JobID    string
	Type     string // "status", "progress", "removed"
	Status   domain.JobStatus
	Progress int
	Message  string
	// Job is the job as of the event. Set for status and removed events.
	Job domain.Job
}

// allJobs is the subscription key for listeners that want every job's events.
const allJobs = ""

type subscriber struct {
	ch chan Event
	// statusOnly subscribers never receive progress events.
	statusOnly bool
}

type EventBus struct {
	subscribers map[string][]subscriber
	mu          sync.RWMutex
}

func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]subscriber),
	}
}

// Subscribe returns the events for one job and a func that ends the subscription.
func (eb *EventBus) Subscribe(jobID string) (<-chan Event, func()) {
	return eb.subscribe(jobID, 16, false)
}

// SubscribeAll returns the events of every job.
func (eb *EventBus) SubscribeAll() (<-chan Event, func()) {
	return eb.subscribe(allJobs, 256, false)
}

// SubscribeStatus returns the status and removed events of every job, so a
// burst of progress cannot crowd out a state change.
func (eb *EventBus) SubscribeStatus() (<-chan Event, func()) {
	return eb.subscribe(allJobs, 256, true)
}

func (eb *EventBus) subscribe(key string, size int, statusOnly bool) (<-chan Event, func()) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	ch := make(chan Event, size)
	eb.subscribers[key] = append(eb.subscribers[key], subscriber{ch: ch, statusOnly: statusOnly})

	var once sync.Once
	return ch, func() {
		once.Do(func() { eb.unsubscribe(key, ch) })
	}
}

func (eb *EventBus) unsubscribe(key string, ch chan Event) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	subs := eb.subscribers[key]
	for i, sub := range subs {
		if sub.ch == ch {
			eb.subscribers[key] = append(subs[:i], subs[i+1:]...)
			close(ch)
			break
		}
	}

	if len(eb.subscribers[key]) == 0 {
		delete(eb.subscribers, key)
	}
}

func (eb *EventBus) Publish(event Event) {
	if event.JobID == allJobs {
		return
	}

	eb.mu.RLock()
	defer eb.mu.RUnlock()

	for _, key := range []string{event.JobID, allJobs} {
		for _, sub := range eb.subscribers[key] {
			if sub.statusOnly && event.Type == EventProgress {
				continue
			}
			select {
			case sub.ch <- event:
			default:
				// Drop event if subscriber is slow
			}
		}
	}
}
