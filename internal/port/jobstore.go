package port

import "github.com/bnema/squash/internal/domain"

// JobStore is the ordered, in-process collection of jobs.
type JobStore interface {
	Append(jobs ...domain.Job)
	Update(id string, patch domain.JobPatch) bool
	// UpdateIf applies patch only when cond holds for the current job, as one
	// atomic step.
	UpdateIf(id string, cond func(domain.Job) bool, patch domain.JobPatch) bool
	RemoveWhere(pred func(domain.Job) bool) []domain.Job
	Snapshot() []domain.Job
	Get(id string) (domain.Job, bool)
	// Changes is signalled after every mutation. Signals coalesce.
	Changes() <-chan struct{}
}
