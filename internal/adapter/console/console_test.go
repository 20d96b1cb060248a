package console

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/bnema/squash/internal/adapter/storage/memory"
	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeSubmitter struct {
	queue *memory.Queue
	err   error
	got   []string
}

func (f *fakeSubmitter) Submit(paths ...string) ([]domain.Job, error) {
	f.got = append(f.got, paths...)
	var jobs []domain.Job
	for _, p := range paths {
		if strings.Contains(p, "bad") {
			continue
		}
		jobs = append(jobs, domain.NewJob(p, p, 2048))
	}
	f.queue.Append(jobs...)
	return jobs, f.err
}

type failingEngine struct{}

func (failingEngine) Load(context.Context) error { return errors.New("ffmpeg missing") }

func (failingEngine) WriteInput(context.Context, string, io.Reader) error { return nil }

func (failingEngine) Execute(context.Context, []string, func(float64)) error { return nil }

func (failingEngine) ReadOutput(context.Context, string) (io.ReadCloser, error) {
	return nil, errors.New("no output")
}

func (failingEngine) Delete(string) error { return nil }

type fakeHistory struct {
	entries []domain.HistoryEntry
	limit   int
}

func (f *fakeHistory) Recent(_ context.Context, limit int) ([]domain.HistoryEntry, error) {
	f.limit = limit
	return f.entries, nil
}

type fixture struct {
	out      *syncBuffer
	queue    *memory.Queue
	driver   *service.Driver
	submit   *fakeSubmitter
	settings *service.SettingsStore
	history  *fakeHistory
	bus      *service.EventBus
	console  *Console
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	settings, err := service.NewSettingsStore(domain.DefaultSettings())
	require.NoError(t, err)

	f := &fixture{
		out:      &syncBuffer{},
		queue:    memory.NewQueue(),
		settings: settings,
		history:  &fakeHistory{},
		bus:      service.NewEventBus(),
	}
	f.submit = &fakeSubmitter{queue: f.queue}
	f.driver = service.NewDriver(f.queue, nil, nil, nil, settings, f.bus, service.DriverConfig{})
	f.console = New(f.out, f.driver, f.submit, settings, f.history, f.bus)
	return f
}

func (f *fixture) exec(t *testing.T, line string) string {
	t.Helper()
	before := len(f.out.String())
	require.NoError(t, f.console.Execute(context.Background(), line))
	return f.out.String()[before:]
}

func TestSplitArgs(t *testing.T) {
	tests := []struct {
		name    string
		line    string
		want    []string
		wantErr bool
	}{
		{name: "empty", line: "   ", want: nil},
		{name: "words", line: "add a.mp4  b.mov", want: []string{"add", "a.mp4", "b.mov"}},
		{name: "quoted path", line: `add "my clip.mov" b.mp4`, want: []string{"add", "my clip.mov", "b.mp4"}},
		{name: "empty quotes", line: `add ""`, want: []string{"add", ""}},
		{name: "tabs", line: "skip\tabc", want: []string{"skip", "abc"}},
		{name: "unterminated", line: `add "oops`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := splitArgs(tt.line)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConsole_Add(t *testing.T) {
	f := newFixture(t)
	f.submit.err = errors.New("/x/bad.txt: unsupported media type")

	out := f.exec(t, `add "/x/my clip.mov" /x/bad.txt`)

	assert.Equal(t, []string{"/x/my clip.mov", "/x/bad.txt"}, f.submit.got)
	assert.Contains(t, out, "queued ")
	assert.Contains(t, out, "/x/my clip.mov (2.0 KB)")
	assert.Contains(t, out, "rejected /x/bad.txt: unsupported media type")
	assert.Contains(t, out, "note: engine not ready yet")
	assert.Len(t, f.queue.Snapshot(), 1)

	assert.Contains(t, f.exec(t, "add"), "usage: add")
}

func TestConsole_PauseResume(t *testing.T) {
	f := newFixture(t)

	assert.Contains(t, f.exec(t, "resume"), "running")
	assert.True(t, f.driver.Running())

	assert.Contains(t, f.exec(t, "pause"), "paused")
	assert.False(t, f.driver.Running())
}

func TestConsole_EngineNotReady(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.exec(t, "resume"), "note: engine not ready yet")

	d := service.NewDriver(f.queue, failingEngine{}, nil, nil, f.settings, f.bus, service.DriverConfig{})
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	defer func() {
		cancel()
		<-done
	}()
	require.Eventually(t, func() bool { return d.LoadErr() != nil }, 2*time.Second, 5*time.Millisecond)

	c := New(f.out, d, f.submit, f.settings, nil, f.bus)
	before := len(f.out.String())
	require.NoError(t, c.Execute(context.Background(), "resume"))
	assert.Contains(t, f.out.String()[before:], "warning: engine not ready: ffmpeg missing")
}

func TestConsole_Follow(t *testing.T) {
	f := newFixture(t)
	job := domain.NewJob("/x/a.mov", "a.mov", 1)
	f.queue.Append(job)
	short := job.ShortID()

	assert.Contains(t, f.exec(t, "follow"), "usage: follow")
	assert.Contains(t, f.exec(t, "follow nope"), "job not found")
	assert.Contains(t, f.exec(t, "follow "+short), "["+short+"] following a.mov (queued, 0%)")

	f.bus.Publish(service.Event{JobID: job.ID, Type: service.EventProgress, Status: domain.JobStatusProcessing, Progress: 37})
	require.Eventually(t, func() bool {
		return strings.Contains(f.out.String(), "["+short+"] 37%")
	}, 2*time.Second, 5*time.Millisecond)

	before := len(f.out.String())
	f.console.render(service.Event{JobID: job.ID, Type: service.EventProgress, Progress: 40})
	assert.Empty(t, f.out.String()[before:], "followed jobs are not printed twice")

	job.Apply(domain.MarkFailed(errors.New("boom"), time.Now()))
	f.bus.Publish(service.Event{JobID: job.ID, Type: service.EventStatus, Status: job.Status, Job: job})
	require.Eventually(t, func() bool { return !f.console.isFollowing(job.ID) }, 2*time.Second, 5*time.Millisecond)

	f.queue.Update(job.ID, domain.MarkFailed(errors.New("boom"), time.Now()))
	assert.Contains(t, f.exec(t, "follow "+job.ID), "a.mov is error")
}

func TestElapsed(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	assert.Equal(t, "-", elapsed(time.Time{}, time.Time{}, now))
	assert.Equal(t, "00:42", elapsed(now.Add(-42*time.Second), time.Time{}, now))
	assert.Equal(t, "1:01:01", elapsed(now, now.Add(time.Hour+61*time.Second), now))
}

func TestConsole_SkipAndClear(t *testing.T) {
	f := newFixture(t)
	a := domain.NewJob("/x/a.mov", "a.mov", 1)
	b := domain.NewJob("/x/b.mov", "b.mov", 1)
	f.queue.Append(a, b)

	assert.Empty(t, f.exec(t, "skip "+a.ShortID()))
	j, _ := f.queue.Get(a.ID)
	assert.Equal(t, domain.JobStatusSkipped, j.Status)

	assert.Contains(t, f.exec(t, "skip "+a.ID), "job already finished")
	assert.Contains(t, f.exec(t, "skip nope"), "job not found")
	assert.Contains(t, f.exec(t, "skip"), "usage: skip")

	f.queue.Update(b.ID, domain.MarkFailed(errors.New("boom"), time.Now()))
	assert.Contains(t, f.exec(t, "clear"), "removed 1 finished jobs")
	assert.Len(t, f.queue.Snapshot(), 1, "skipped jobs are kept by default")
}

func TestConsole_List(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.exec(t, "list"), "queue is empty")

	started := time.Now().Add(-time.Hour)
	done := domain.NewJob("/x/a.mov", "a.mov", 4096)
	done.Apply(domain.MarkProcessing(started))
	done.Apply(domain.MarkDone("/out/a-compressed.mp4", 1024, started.Add(65*time.Second)))
	failed := domain.NewJob("/x/b.mov", "b.mov", 1)
	failed.Apply(domain.MarkFailed(errors.New("decoder exploded"), time.Now()))
	f.queue.Append(done, failed)

	out := f.exec(t, "ls")
	assert.Contains(t, out, "queue paused, engine loading, size=original quality=28 speed=medium")
	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "STATUS")
	assert.Contains(t, out, done.ShortID())
	assert.Contains(t, out, "/out/a-compressed.mp4 (1.0 KB)")
	assert.Contains(t, out, "decoder exploded")
	assert.Contains(t, out, "100%")
	assert.Contains(t, out, "TIME")
	assert.Contains(t, out, "01:05")
}

func TestConsole_Set(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name    string
		line    string
		want    string
		current domain.Settings
	}{
		{
			name:    "quality",
			line:    "set quality 20",
			want:    "quality=20",
			current: domain.Settings{Size: domain.SizeOriginal, Quality: 20, Speed: domain.SpeedMedium},
		},
		{
			name:    "size",
			line:    "set size 720P",
			want:    "size=720p",
			current: domain.Settings{Size: domain.Size720p, Quality: 20, Speed: domain.SpeedMedium},
		},
		{
			name:    "speed",
			line:    "set speed veryfast",
			want:    "speed=veryfast",
			current: domain.Settings{Size: domain.Size720p, Quality: 20, Speed: "veryfast"},
		},
		{
			name:    "invalid size keeps settings",
			line:    "set size 4k",
			want:    "invalid settings",
			current: domain.Settings{Size: domain.Size720p, Quality: 20, Speed: "veryfast"},
		},
		{
			name:    "non numeric quality",
			line:    "set quality best",
			want:    "quality must be a number",
			current: domain.Settings{Size: domain.Size720p, Quality: 20, Speed: "veryfast"},
		},
		{
			name:    "unknown key",
			line:    "set fps 30",
			want:    `unknown setting "fps"`,
			current: domain.Settings{Size: domain.Size720p, Quality: 20, Speed: "veryfast"},
		},
		{
			name:    "missing value",
			line:    "set quality",
			want:    "usage: set",
			current: domain.Settings{Size: domain.Size720p, Quality: 20, Speed: "veryfast"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, f.exec(t, tt.line), tt.want)
			assert.Equal(t, tt.current, f.settings.Current())
		})
	}
}

func TestConsole_Settings(t *testing.T) {
	f := newFixture(t)
	out := f.exec(t, "settings")
	assert.Contains(t, out, "original, 1080p, 720p, 480p")
	assert.Contains(t, out, "ultrafast")
	assert.Contains(t, out, "0-51")
}

func TestConsole_History(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.exec(t, "history"), "no history yet")
	assert.Equal(t, defaultHistoryRows, f.history.limit)

	f.history.entries = []domain.HistoryEntry{
		{JobID: "1", DisplayName: "a.mov", Status: domain.JobStatusDone, SourceSize: 4096, OutputSize: 1024,
			StartedAt: time.Now().Add(-90 * time.Second), FinishedAt: time.Now()},
		{JobID: "2", DisplayName: "b.mov", Status: domain.JobStatusSkipped},
	}
	out := f.exec(t, "history 5")
	assert.Equal(t, 5, f.history.limit)
	assert.Contains(t, out, "a.mov")
	assert.Contains(t, out, "4.0 KB -> 1.0 KB")
	assert.Contains(t, out, "75%")
	assert.Contains(t, out, "01:30")
	assert.Contains(t, out, "b.mov")

	assert.Contains(t, f.exec(t, "history many"), "usage: history")
}

func TestConsole_HistoryDisabled(t *testing.T) {
	f := newFixture(t)
	c := New(f.out, f.driver, f.submit, f.settings, nil, f.bus)
	require.NoError(t, c.Execute(context.Background(), "history"))
	assert.Contains(t, f.out.String(), "history is disabled")
}

func TestConsole_UnknownAndQuit(t *testing.T) {
	f := newFixture(t)
	assert.Contains(t, f.exec(t, "dance"), `unknown command "dance"`)
	assert.Contains(t, f.exec(t, "help"), "commands:")
	assert.Contains(t, f.exec(t, `add "broken`), "unterminated quote")
	assert.ErrorIs(t, f.console.Execute(context.Background(), "quit"), ErrQuit)
	assert.ErrorIs(t, f.console.Execute(context.Background(), "EXIT"), ErrQuit)
}

func TestConsole_Run(t *testing.T) {
	t.Run("quit command ends run", func(t *testing.T) {
		f := newFixture(t)
		err := f.console.Run(context.Background(), strings.NewReader("resume\nquit\nlist\n"))
		assert.ErrorIs(t, err, ErrQuit)
		assert.True(t, f.driver.Running())
		assert.NotContains(t, f.out.String(), "queue is empty", "commands after quit are not run")
	})

	t.Run("end of input keeps rendering events", func(t *testing.T) {
		f := newFixture(t)
		ctx, cancel := context.WithCancel(context.Background())
		done := make(chan error, 1)
		go func() { done <- f.console.Run(ctx, strings.NewReader("")) }()

		job := domain.NewJob("/x/a.mov", "a.mov", 1)
		job.Apply(domain.MarkFailed(errors.New("bad input"), time.Now()))
		require.Eventually(t, func() bool {
			f.bus.Publish(service.Event{JobID: job.ID, Type: service.EventStatus, Status: job.Status, Message: job.ErrorMessage, Job: job})
			return strings.Contains(f.out.String(), "["+job.ShortID()+"] a.mov error: bad input")
		}, 2*time.Second, 10*time.Millisecond)

		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Fatal("console did not stop")
		}
	})
}

func TestConsole_RenderProgress(t *testing.T) {
	f := newFixture(t)
	f.console.render(service.Event{JobID: "abc", Type: service.EventProgress, Progress: 37})
	f.console.render(service.Event{JobID: "abc", Type: service.EventProgress, Progress: 40})
	assert.Equal(t, "[abc] 40%\n", f.out.String())
}
