package service

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/infrastructure/logger"
	"github.com/bnema/squash/internal/port"
	"github.com/bnema/squash/internal/validation"
)

// Submitter turns file paths into queued jobs.
type Submitter struct {
	store port.JobStore
}

func NewSubmitter(store port.JobStore) *Submitter {
	return &Submitter{store: store}
}

// Submit validates every path and appends the accepted ones as a single
// batch, in argument order. Rejected paths are reported together in the
// returned error; accepted jobs are queued regardless.
func (s *Submitter) Submit(paths ...string) ([]domain.Job, error) {
	active := make(map[string]bool)
	for _, j := range s.store.Snapshot() {
		if !j.Status.IsTerminal() {
			active[j.SourceRef] = true
		}
	}

	var (
		jobs []domain.Job
		errs []error
	)
	for _, p := range paths {
		job, err := s.prepare(p, active)
		if err != nil {
			logger.Warn.Printf("rejected %s: %v", logger.SanitizeForLog(p), err)
			errs = append(errs, fmt.Errorf("%s: %w", p, err))
			continue
		}
		active[job.SourceRef] = true
		jobs = append(jobs, job)
	}

	if len(jobs) > 0 {
		s.store.Append(jobs...)
		for _, j := range jobs {
			logger.Info.Printf("job %s queued: %s (%s)", j.ShortID(), logger.SanitizeForLog(j.DisplayName), domain.FormatSize(j.SourceSize))
		}
	}

	return jobs, errors.Join(errs...)
}

func (s *Submitter) prepare(path string, active map[string]bool) (domain.Job, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return domain.Job{}, fmt.Errorf("resolve path: %w", err)
	}
	if active[abs] {
		return domain.Job{}, errors.New("already queued")
	}

	f, err := os.Open(abs)
	if err != nil {
		return domain.Job{}, err
	}
	defer func() { _ = f.Close() }()

	info, err := f.Stat()
	if err != nil {
		return domain.Job{}, err
	}
	if info.IsDir() {
		return domain.Job{}, errors.New("is a directory")
	}
	if info.Size() == 0 {
		return domain.Job{}, errors.New("file is empty")
	}

	mime, allowed, err := validation.DetectMediaType(f)
	if err != nil {
		return domain.Job{}, fmt.Errorf("detect type: %w", err)
	}
	if !allowed {
		return domain.Job{}, fmt.Errorf("%w: %s", domain.ErrUnsupportedMedia, mime)
	}

	name := validation.SanitizeFilename(filepath.Base(abs))
	return domain.NewJob(abs, name, info.Size()), nil
}
