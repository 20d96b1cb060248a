// Package memory holds the in-process job queue. Nothing here survives a restart.
package memory

import (
	"sync"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/port"
)

type Queue struct {
	mu      sync.RWMutex
	jobs    []domain.Job
	index   map[string]int
	changed chan struct{}
}

func NewQueue() *Queue {
	return &Queue{
		index:   make(map[string]int),
		changed: make(chan struct{}, 1),
	}
}

func (q *Queue) Append(jobs ...domain.Job) {
	if len(jobs) == 0 {
		return
	}

	q.mu.Lock()
	for _, j := range jobs {
		if _, dup := q.index[j.ID]; dup {
			continue
		}
		q.index[j.ID] = len(q.jobs)
		q.jobs = append(q.jobs, j)
	}
	q.mu.Unlock()

	q.notify()
}

func (q *Queue) Update(id string, patch domain.JobPatch) bool {
	return q.UpdateIf(id, nil, patch)
}

func (q *Queue) UpdateIf(id string, cond func(domain.Job) bool, patch domain.JobPatch) bool {
	q.mu.Lock()
	i, ok := q.index[id]
	if !ok || (cond != nil && !cond(q.jobs[i])) {
		q.mu.Unlock()
		return false
	}
	q.jobs[i].Apply(patch)
	q.mu.Unlock()

	q.notify()
	return true
}

func (q *Queue) RemoveWhere(pred func(domain.Job) bool) []domain.Job {
	q.mu.Lock()
	var removed []domain.Job
	kept := q.jobs[:0]
	for _, j := range q.jobs {
		if pred(j) {
			removed = append(removed, j)
			continue
		}
		kept = append(kept, j)
	}
	// Drop references held past the new length.
	clear(q.jobs[len(kept):])
	q.jobs = kept
	if len(removed) > 0 {
		q.reindex()
	}
	q.mu.Unlock()

	if len(removed) > 0 {
		q.notify()
	}
	return removed
}

func (q *Queue) Snapshot() []domain.Job {
	q.mu.RLock()
	defer q.mu.RUnlock()

	out := make([]domain.Job, len(q.jobs))
	copy(out, q.jobs)
	return out
}

func (q *Queue) Get(id string) (domain.Job, bool) {
	q.mu.RLock()
	defer q.mu.RUnlock()

	i, ok := q.index[id]
	if !ok {
		return domain.Job{}, false
	}
	return q.jobs[i], true
}

func (q *Queue) Changes() <-chan struct{} {
	return q.changed
}

func (q *Queue) reindex() {
	clear(q.index)
	for i, j := range q.jobs {
		q.index[j.ID] = i
	}
}

func (q *Queue) notify() {
	select {
	case q.changed <- struct{}{}:
	default:
		// A signal is already pending
	}
}

var _ port.JobStore = (*Queue)(nil)
