// Package console is the line-oriented operator interface: commands are read
// from an input stream and queue events are rendered to an output stream.
package console

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/service"
)

// ErrQuit is returned by Run when the operator asks to exit.
var ErrQuit = errors.New("quit requested")

type Queue interface {
	SetRunning(running bool)
	Running() bool
	Ready() bool
	LoadErr() error
	Skip(id string) error
	ClearFinished() []domain.Job
	Jobs() []domain.Job
	Find(ref string) (domain.Job, error)
}

type Submitter interface {
	Submit(paths ...string) ([]domain.Job, error)
}

type Settings interface {
	Current() domain.Settings
	Update(fn func(*domain.Settings)) (domain.Settings, error)
}

type History interface {
	Recent(ctx context.Context, limit int) ([]domain.HistoryEntry, error)
}

type Events interface {
	Subscribe(jobID string) (<-chan service.Event, func())
	SubscribeAll() (<-chan service.Event, func())
}

const defaultHistoryRows = 10

type Console struct {
	queue    Queue
	submit   Submitter
	settings Settings
	history  History
	events   Events

	mu  sync.Mutex
	out io.Writer

	// following holds the jobs whose every progress step is printed by follow.
	followMu  sync.Mutex
	following map[string]bool
}

// New builds a console. history may be nil when no history backend is configured.
func New(out io.Writer, queue Queue, submit Submitter, settings Settings, history History, events Events) *Console {
	return &Console{
		queue:     queue,
		submit:    submit,
		settings:  settings,
		history:   history,
		events:    events,
		out:       out,
		following: make(map[string]bool),
	}
}

// Run reads commands from in and renders events until ctx is cancelled or a
// quit command is read. End of input stops command reading only.
func (c *Console) Run(ctx context.Context, in io.Reader) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	events, unsubscribe := c.events.SubscribeAll()
	defer unsubscribe()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	c.printf("squash ready. Type 'help' for commands.\n")
	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				lines = nil
				continue
			}
			if err := c.Execute(ctx, line); err != nil {
				return err
			}
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			c.render(ev)
		}
	}
}

// Execute runs one command line. Only quit returns an error; command failures
// are printed.
func (c *Console) Execute(ctx context.Context, line string) error {
	args, err := splitArgs(line)
	if err != nil {
		c.printf("error: %v\n", err)
		return nil
	}
	if len(args) == 0 {
		return nil
	}

	cmd, rest := strings.ToLower(args[0]), args[1:]
	switch cmd {
	case "add":
		c.add(rest)
	case "pause", "stop":
		c.queue.SetRunning(false)
		c.printf("paused, the running job will finish\n")
	case "resume", "start":
		c.queue.SetRunning(true)
		c.printf("running\n")
		c.engineNote()
	case "skip":
		c.skip(rest)
	case "follow":
		c.follow(ctx, rest)
	case "clear":
		removed := c.queue.ClearFinished()
		c.printf("removed %d finished jobs\n", len(removed))
	case "list", "ls":
		c.list()
	case "history":
		c.showHistory(ctx, rest)
	case "set":
		c.set(rest)
	case "settings":
		c.showSettings()
	case "help", "?":
		c.help()
	case "quit", "exit":
		return ErrQuit
	default:
		c.printf("unknown command %q, type 'help'\n", cmd)
	}
	return nil
}

func (c *Console) add(paths []string) {
	if len(paths) == 0 {
		c.printf("usage: add <path>...\n")
		return
	}
	jobs, err := c.submit.Submit(paths...)
	for _, j := range jobs {
		c.printf("queued %s %s (%s)\n", j.ShortID(), j.DisplayName, domain.FormatSize(j.SourceSize))
	}
	if err != nil {
		for _, line := range strings.Split(err.Error(), "\n") {
			c.printf("rejected %s\n", line)
		}
	}
	if len(jobs) > 0 {
		c.engineNote()
	}
}

// engineNote tells the operator why queued jobs are not starting.
func (c *Console) engineNote() {
	if c.queue.Ready() {
		return
	}
	if err := c.queue.LoadErr(); err != nil {
		c.printf("warning: %v: %v\n", domain.ErrEngineNotReady, err)
		return
	}
	c.printf("note: %v yet, jobs start once it has loaded\n", domain.ErrEngineNotReady)
}

// follow prints every progress step of a job until it finishes.
func (c *Console) follow(ctx context.Context, refs []string) {
	if len(refs) != 1 {
		c.printf("usage: follow <id>\n")
		return
	}
	job, err := c.queue.Find(refs[0])
	if err != nil {
		c.printf("follow %s: %v\n", refs[0], err)
		return
	}

	events, unsubscribe := c.events.Subscribe(job.ID)
	// Re-read after subscribing so an outcome reached in between is not missed.
	if job, err = c.queue.Find(job.ID); err != nil {
		unsubscribe()
		c.printf("follow %s: %v\n", refs[0], err)
		return
	}
	if job.Status.IsTerminal() {
		unsubscribe()
		c.printf("[%s] %s is %s\n", job.ShortID(), job.DisplayName, job.Status)
		return
	}

	c.setFollowing(job.ID, true)
	c.printf("[%s] following %s (%s, %d%%)\n", job.ShortID(), job.DisplayName, job.Status, job.Progress)

	go func() {
		defer unsubscribe()
		defer c.setFollowing(job.ID, false)
		for {
			select {
			case <-ctx.Done():
				return
			case ev, ok := <-events:
				if !ok {
					return
				}
				switch {
				case ev.Type == service.EventProgress:
					c.printf("[%s] %d%%\n", job.ShortID(), ev.Progress)
				case ev.Status.IsTerminal():
					return
				}
			}
		}
	}()
}

func (c *Console) setFollowing(id string, on bool) {
	c.followMu.Lock()
	defer c.followMu.Unlock()
	if on {
		c.following[id] = true
	} else {
		delete(c.following, id)
	}
}

func (c *Console) isFollowing(id string) bool {
	c.followMu.Lock()
	defer c.followMu.Unlock()
	return c.following[id]
}

func (c *Console) skip(refs []string) {
	if len(refs) == 0 {
		c.printf("usage: skip <id>...\n")
		return
	}
	for _, ref := range refs {
		job, err := c.queue.Find(ref)
		if err == nil {
			err = c.queue.Skip(job.ID)
		}
		if err != nil {
			c.printf("skip %s: %v\n", ref, err)
		}
	}
}

func (c *Console) list() {
	c.printf("%s\n", c.state())

	jobs := c.queue.Jobs()
	if len(jobs) == 0 {
		c.printf("queue is empty\n")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tPROGRESS\tTIME\tNAME\tDETAIL")
	now := time.Now()
	for _, j := range jobs {
		fmt.Fprintf(tw, "%s\t%s\t%d%%\t%s\t%s\t%s\n", j.ShortID(), j.Status, j.Progress,
			elapsed(j.StartedAt, j.FinishedAt, now), j.DisplayName, detail(j))
	}
	_ = tw.Flush()
}

func (c *Console) state() string {
	run := "paused"
	if c.queue.Running() {
		run = "running"
	}
	engine := "loading"
	switch {
	case c.queue.LoadErr() != nil:
		engine = "failed: " + c.queue.LoadErr().Error()
	case c.queue.Ready():
		engine = "ready"
	}
	return fmt.Sprintf("queue %s, engine %s, %s", run, engine, c.settings.Current())
}

// elapsed is the time between start and finish, or until now while running.
func elapsed(started, finished, now time.Time) string {
	if started.IsZero() {
		return "-"
	}
	if finished.IsZero() {
		finished = now
	}
	return domain.FormatDuration(finished.Sub(started))
}

func detail(j domain.Job) string {
	switch j.Status {
	case domain.JobStatusDone:
		return fmt.Sprintf("%s (%s)", j.OutputRef, domain.FormatSize(j.OutputSize))
	case domain.JobStatusError:
		return j.ErrorMessage
	}
	return ""
}

func (c *Console) showHistory(ctx context.Context, args []string) {
	if c.history == nil {
		c.printf("history is disabled\n")
		return
	}
	limit := defaultHistoryRows
	if len(args) > 0 {
		n, err := strconv.Atoi(args[0])
		if err != nil || n <= 0 {
			c.printf("usage: history [count]\n")
			return
		}
		limit = n
	}

	entries, err := c.history.Recent(ctx, limit)
	if err != nil {
		c.printf("history: %v\n", err)
		return
	}
	if len(entries) == 0 {
		c.printf("no history yet\n")
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	tw := tabwriter.NewWriter(c.out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "FINISHED\tSTATUS\tTIME\tNAME\tSIZE\tSAVED")
	for _, e := range entries {
		finished := "-"
		if !e.FinishedAt.IsZero() {
			finished = e.FinishedAt.Local().Format("2006-01-02 15:04")
		}
		size, saved := "-", "-"
		if e.Status == domain.JobStatusDone {
			size = domain.FormatSize(e.SourceSize) + " -> " + domain.FormatSize(e.OutputSize)
			saved = strconv.Itoa(e.SavedPercent()) + "%"
		}
		took := "-"
		if !e.FinishedAt.IsZero() {
			took = elapsed(e.StartedAt, e.FinishedAt, e.FinishedAt)
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", finished, e.Status, took, e.DisplayName, size, saved)
	}
	_ = tw.Flush()
}

func (c *Console) set(args []string) {
	if len(args) != 2 {
		c.printf("usage: set size|quality|speed <value>\n")
		return
	}

	key, value := strings.ToLower(args[0]), args[1]
	var apply func(*domain.Settings)
	switch key {
	case "size":
		apply = func(s *domain.Settings) { s.Size = domain.SizePreset(strings.ToLower(value)) }
	case "quality", "crf":
		q, err := strconv.Atoi(value)
		if err != nil {
			c.printf("quality must be a number between %d and %d\n", domain.MinQuality, domain.MaxQuality)
			return
		}
		apply = func(s *domain.Settings) { s.Quality = q }
	case "speed", "preset":
		apply = func(s *domain.Settings) { s.Speed = domain.SpeedPreset(strings.ToLower(value)) }
	default:
		c.printf("unknown setting %q\n", key)
		return
	}

	s, err := c.settings.Update(apply)
	if err != nil {
		c.printf("%v\n", err)
		return
	}
	c.printf("settings: %s (applies to jobs started from now on)\n", s)
}

func (c *Console) showSettings() {
	c.printf("current: %s\n", c.settings.Current())
	c.printf("sizes:   %s\n", joinPresets(domain.SizePresets()))
	c.printf("quality: %d-%d, lower is better and larger\n", domain.MinQuality, domain.MaxQuality)
	c.printf("speeds:  %s\n", joinPresets(domain.SpeedPresets()))
}

func joinPresets[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, ", ")
}

func (c *Console) help() {
	c.printf(`commands:
  add <path>...                  queue files for compression
  pause | resume                 stop or start picking new jobs
  skip <id>...                   skip queued or running jobs
  follow <id>                    print every progress step of a job
  clear                          remove finished jobs from the list
  list                           show the queue
  history [count]                show recent outcomes
  set size|quality|speed <v>     change settings for upcoming jobs
  settings                       show current settings and options
  quit                           exit after the running job finishes
`)
}

func (c *Console) render(ev service.Event) {
	short := ev.JobID
	if ev.Job.ID != "" {
		short = ev.Job.ShortID()
	}

	switch ev.Type {
	case service.EventStatus:
		line := fmt.Sprintf("[%s] %s %s", short, ev.Job.DisplayName, ev.Status)
		switch ev.Status {
		case domain.JobStatusDone:
			line += fmt.Sprintf(" -> %s (%s)", ev.Job.OutputRef, domain.FormatSize(ev.Job.OutputSize))
		case domain.JobStatusError:
			line += ": " + ev.Message
		}
		c.printf("%s\n", line)
	case service.EventProgress:
		if ev.Progress%10 == 0 && !c.isFollowing(ev.JobID) {
			c.printf("[%s] %d%%\n", short, ev.Progress)
		}
	}
}

func (c *Console) printf(format string, args ...any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = fmt.Fprintf(c.out, format, args...)
}

// splitArgs splits a command line on spaces, honouring double quotes so
// paths containing spaces can be given.
func splitArgs(line string) ([]string, error) {
	var (
		args    []string
		cur     strings.Builder
		quoted  bool
		started bool
	)
	for _, r := range line {
		switch {
		case r == '"':
			quoted = !quoted
			started = true
		case (r == ' ' || r == '\t') && !quoted:
			if started {
				args = append(args, cur.String())
				cur.Reset()
				started = false
			}
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, errors.New("unterminated quote")
	}
	if started {
		args = append(args, cur.String())
	}
	return args, nil
}
