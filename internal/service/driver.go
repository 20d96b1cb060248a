package service

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/infrastructure/logger"
	"github.com/bnema/squash/internal/port"
)

type EventPublisher interface {
	Publish(event Event)
}

type SettingsSource interface {
	Current() domain.Settings
}

type DriverConfig struct {
	// AutoStart sets the run flag before the first evaluation.
	AutoStart bool
	// AbortOnSkip cancels the engine call when the processing job is skipped.
	AbortOnSkip bool
	// JobTimeout bounds one engine execution. Zero means no limit.
	JobTimeout time.Duration
	// ClearSkipped makes ClearFinished remove skipped jobs as well.
	ClearSkipped bool
}

// errSuperseded marks an execution whose job left processing before its
// output was saved.
var errSuperseded = errors.New("job no longer processing")

// Driver feeds queued jobs to the engine one at a time.
type Driver struct {
	store    port.JobStore
	engine   port.Engine
	sources  port.SourceOpener
	outputs  port.OutputStore
	settings SettingsSource
	events   EventPublisher
	cfg      DriverConfig
	now      func() time.Time

	running atomic.Bool
	ready   atomic.Bool
	seq     atomic.Uint64
	wake    chan struct{}

	mu      sync.Mutex
	loadErr error
	current *execution
}

type execution struct {
	jobID  string
	cancel context.CancelFunc
}

func NewDriver(
	store port.JobStore,
	engine port.Engine,
	sources port.SourceOpener,
	outputs port.OutputStore,
	settings SettingsSource,
	events EventPublisher,
	cfg DriverConfig,
) *Driver {
	d := &Driver{
		store:    store,
		engine:   engine,
		sources:  sources,
		outputs:  outputs,
		settings: settings,
		events:   events,
		cfg:      cfg,
		now:      time.Now,
		wake:     make(chan struct{}, 1),
	}
	d.running.Store(cfg.AutoStart)
	return d
}

// Run loads the engine and drives the queue until ctx is cancelled. An
// in-flight job is allowed to finish before Run returns.
func (d *Driver) Run(ctx context.Context) error {
	loaded := make(chan error, 1)
	go func() { loaded <- d.engine.Load(ctx) }()

	done := make(chan struct{}, 1)
	inFlight := false

	for {
		if !inFlight {
			inFlight = d.evaluate(ctx, done)
		}

		select {
		case <-ctx.Done():
			if inFlight {
				logger.Info.Printf("driver: waiting for the running job to finish")
				<-done
			}
			return nil
		case err := <-loaded:
			loaded = nil
			if err != nil {
				d.mu.Lock()
				d.loadErr = err
				d.mu.Unlock()
				logger.Error.Printf("engine failed to load, no job will start: %v", err)
				continue
			}
			d.ready.Store(true)
			logger.Info.Printf("engine ready")
		case <-d.store.Changes():
		case <-d.wake:
		case <-done:
			inFlight = false
		}
	}
}

// evaluate starts the first queued job when the driver may run one. It
// reports whether an execution was started.
func (d *Driver) evaluate(ctx context.Context, done chan<- struct{}) bool {
	if ctx.Err() != nil || !d.running.Load() || !d.ready.Load() {
		return false
	}

	var job domain.Job
	for {
		next, ok := nextQueued(d.store.Snapshot())
		if !ok {
			return false
		}
		if job, ok = d.updateJob(next.ID, hasStatus(domain.JobStatusQueued), domain.MarkProcessing(d.now())); ok {
			break
		}
	}

	settings := d.settings.Current()
	d.publishStatus(job, "")
	logger.Info.Printf("job %s started: %s (%s)", job.ShortID(), logger.SanitizeForLog(job.DisplayName), settings)

	execCtx, cancel := d.execContext(ctx)
	d.mu.Lock()
	d.current = &execution{jobID: job.ID, cancel: cancel}
	d.mu.Unlock()

	go func() {
		defer func() {
			d.mu.Lock()
			d.current = nil
			d.mu.Unlock()
			cancel()
			done <- struct{}{}
		}()
		d.process(execCtx, job, settings)
	}()
	return true
}

// nextQueued returns the first queued job, or nothing when a job is already processing.
func nextQueued(jobs []domain.Job) (domain.Job, bool) {
	var (
		next  domain.Job
		found bool
	)
	for _, j := range jobs {
		switch j.Status {
		case domain.JobStatusProcessing:
			return domain.Job{}, false
		case domain.JobStatusQueued:
			if !found {
				next, found = j, true
			}
		}
	}
	return next, found
}

func (d *Driver) execContext(ctx context.Context) (context.Context, context.CancelFunc) {
	base := context.WithoutCancel(ctx)
	if d.cfg.JobTimeout > 0 {
		return context.WithTimeout(base, d.cfg.JobTimeout)
	}
	return context.WithCancel(base)
}

func (d *Driver) process(ctx context.Context, job domain.Job, settings domain.Settings) {
	n := d.seq.Add(1)
	inHandle := fmt.Sprintf("in-%s-%d%s", job.ShortID(), n, inputExt(job.SourceRef))
	outHandle := fmt.Sprintf("out-%s-%d.mp4", job.ShortID(), n)
	defer d.cleanup(inHandle, outHandle)

	ref, size, err := d.transcode(ctx, job, settings, inHandle, outHandle)
	switch {
	case errors.Is(err, errSuperseded):
		logger.Info.Printf("job %s left processing before completion, result discarded", job.ShortID())
	case err != nil:
		d.fail(job, err)
	default:
		d.finish(job, ref, size)
	}
}

func (d *Driver) transcode(ctx context.Context, job domain.Job, settings domain.Settings, inHandle, outHandle string) (string, int64, error) {
	src, err := d.sources.Open(job.SourceRef)
	if err != nil {
		return "", 0, fmt.Errorf("read source: %w", err)
	}
	err = d.engine.WriteInput(ctx, inHandle, src)
	_ = src.Close()
	if err != nil {
		return "", 0, fmt.Errorf("load input into engine: %w", err)
	}

	scope := &progressScope{driver: d, jobID: job.ID}
	scope.last.Store(-1)
	err = d.engine.Execute(ctx, domain.ResolveArgs(settings, inHandle, outHandle), scope.report)
	scope.close()
	if err != nil {
		return "", 0, fmt.Errorf("compress: %w", err)
	}

	if !d.stillProcessing(job.ID) {
		return "", 0, errSuperseded
	}

	rc, err := d.engine.ReadOutput(ctx, outHandle)
	if err != nil {
		return "", 0, fmt.Errorf("read output: %w", err)
	}
	defer func() { _ = rc.Close() }()

	ref, size, err := d.outputs.Save(ctx, domain.OutputName(job.DisplayName), rc)
	if err != nil {
		return "", 0, fmt.Errorf("save output: %w", err)
	}
	return ref, size, nil
}

func (d *Driver) finish(job domain.Job, ref string, size int64) {
	done, ok := d.updateJob(job.ID, hasStatus(domain.JobStatusProcessing), domain.MarkDone(ref, size, d.now()))
	if !ok {
		logger.Info.Printf("job %s left processing before completion, removing %s", job.ShortID(), ref)
		if err := d.outputs.Remove(ref); err != nil {
			logger.Warn.Printf("remove discarded output %s: %v", ref, err)
		}
		return
	}

	job = done
	logger.Info.Printf("job %s done: %s (%s -> %s)", job.ShortID(), ref,
		domain.FormatSize(job.SourceSize), domain.FormatSize(size))
	d.publishStatus(job, "")
}

func (d *Driver) fail(job domain.Job, err error) {
	failed, ok := d.updateJob(job.ID, hasStatus(domain.JobStatusProcessing), domain.MarkFailed(err, d.now()))
	if !ok {
		logger.Debug.Printf("job %s: discarding failure of superseded execution: %v", job.ShortID(), err)
		return
	}

	logger.Error.Printf("job %s failed: %v", job.ShortID(), err)
	job = failed
	d.publishStatus(job, job.ErrorMessage)
}

func (d *Driver) cleanup(handles ...string) {
	for _, h := range handles {
		if err := d.engine.Delete(h); err != nil {
			logger.Debug.Printf("cleanup %s: %v", h, err)
		}
	}
}

// updateJob applies patch when cond holds and returns the job as patched. The
// result comes from the state cond saw, so it stays valid if the job is
// removed right after.
func (d *Driver) updateJob(id string, cond func(domain.Job) bool, patch domain.JobPatch) (domain.Job, bool) {
	var job domain.Job
	ok := d.store.UpdateIf(id, func(j domain.Job) bool {
		if !cond(j) {
			return false
		}
		job = j
		return true
	}, patch)
	if !ok {
		return domain.Job{}, false
	}
	job.Apply(patch)
	return job, true
}

func (d *Driver) stillProcessing(id string) bool {
	j, ok := d.store.Get(id)
	return ok && j.Status == domain.JobStatusProcessing
}

// SetRunning flips the run flag. Pausing never interrupts the running job.
func (d *Driver) SetRunning(running bool) {
	if d.running.Swap(running) == running {
		return
	}
	if running {
		logger.Info.Printf("queue resumed")
	} else {
		logger.Info.Printf("queue paused")
	}
	d.signal()
}

func (d *Driver) Running() bool {
	return d.running.Load()
}

func (d *Driver) Ready() bool {
	return d.ready.Load()
}

// LoadErr is the engine load failure, if any.
func (d *Driver) LoadErr() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadErr
}

// Skip marks a queued or processing job as skipped. A processing job's
// engine call keeps running unless AbortOnSkip is set; its later events are
// discarded either way.
func (d *Driver) Skip(id string) error {
	var prev domain.JobStatus
	cond := func(j domain.Job) bool {
		prev = j.Status
		return !j.Status.IsTerminal()
	}

	job, ok := d.updateJob(id, cond, domain.MarkSkipped(d.now()))
	if !ok {
		if _, ok := d.store.Get(id); !ok {
			return domain.ErrNotFound
		}
		return fmt.Errorf("%w: %s", domain.ErrNotSkippable, prev)
	}

	logger.Info.Printf("job %s skipped (was %s)", job.ShortID(), prev)
	d.publishStatus(job, "")

	if prev == domain.JobStatusProcessing && d.cfg.AbortOnSkip {
		d.mu.Lock()
		if d.current != nil && d.current.jobID == id {
			d.current.cancel()
		}
		d.mu.Unlock()
	}
	return nil
}

// ClearFinished removes done and failed jobs, and skipped ones when
// configured, returning what was removed.
func (d *Driver) ClearFinished() []domain.Job {
	removed := d.store.RemoveWhere(func(j domain.Job) bool {
		switch j.Status {
		case domain.JobStatusDone, domain.JobStatusError:
			return true
		case domain.JobStatusSkipped:
			return d.cfg.ClearSkipped
		}
		return false
	})

	for _, j := range removed {
		d.publish(Event{JobID: j.ID, Type: EventRemoved, Status: j.Status, Job: j})
	}
	if len(removed) > 0 {
		logger.Info.Printf("cleared %d finished jobs", len(removed))
	}
	return removed
}

func (d *Driver) Jobs() []domain.Job {
	return d.store.Snapshot()
}

// Find resolves a full job ID or an unambiguous ID prefix.
func (d *Driver) Find(ref string) (domain.Job, error) {
	if ref == "" {
		return domain.Job{}, domain.ErrNotFound
	}
	if j, ok := d.store.Get(ref); ok {
		return j, nil
	}

	var (
		match domain.Job
		count int
	)
	for _, j := range d.store.Snapshot() {
		if strings.HasPrefix(j.ID, ref) {
			match = j
			count++
		}
	}
	switch count {
	case 0:
		return domain.Job{}, domain.ErrNotFound
	case 1:
		return match, nil
	default:
		return domain.Job{}, fmt.Errorf("job id %q is ambiguous (%d matches)", ref, count)
	}
}

func (d *Driver) signal() {
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

func (d *Driver) publishStatus(job domain.Job, message string) {
	d.publish(Event{JobID: job.ID, Type: EventStatus, Status: job.Status, Progress: job.Progress, Message: message, Job: job})
}

func (d *Driver) publish(event Event) {
	if d.events != nil {
		d.events.Publish(event)
	}
}

func hasStatus(s domain.JobStatus) func(domain.Job) bool {
	return func(j domain.Job) bool { return j.Status == s }
}

func inputExt(ref string) string {
	ext := strings.ToLower(filepath.Ext(ref))
	if len(ext) < 2 || len(ext) > 8 || strings.ContainsAny(ext, " \x00") {
		return ""
	}
	return ext
}

// progressScope forwards one execution's progress to its job. It ignores
// calls after close and events for a job that left processing.
type progressScope struct {
	driver *Driver
	jobID  string
	closed atomic.Bool
	last   atomic.Int64
}

func (p *progressScope) report(fraction float64) {
	if p.closed.Load() {
		return
	}
	pct := domain.ProgressPercent(fraction)
	if p.last.Swap(int64(pct)) == int64(pct) {
		return
	}
	if !p.driver.store.UpdateIf(p.jobID, hasStatus(domain.JobStatusProcessing), domain.SetProgress(pct)) {
		return
	}
	p.driver.publish(Event{JobID: p.jobID, Type: EventProgress, Status: domain.JobStatusProcessing, Progress: pct})
}

func (p *progressScope) close() {
	p.closed.Store(true)
}
