package domain

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewJob(t *testing.T) {
	job := NewJob("/in/clip.mov", "clip.mov", 2048)

	assert.NotEmpty(t, job.ID, "ID should be generated")
	assert.Equal(t, "/in/clip.mov", job.SourceRef)
	assert.Equal(t, "clip.mov", job.DisplayName)
	assert.Equal(t, int64(2048), job.SourceSize)
	assert.Equal(t, JobStatusQueued, job.Status, "new jobs start queued")
	assert.Zero(t, job.Progress)
	assert.WithinDuration(t, time.Now(), job.CreatedAt, time.Second)
}

func TestNewJob_UniqueIDs(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		job := NewJob("a", "a", 0)
		assert.False(t, seen[job.ID], "ID %s reused", job.ID)
		seen[job.ID] = true
	}
}

func TestJob_ShortID(t *testing.T) {
	assert.Equal(t, "1b4e28ba", Job{ID: "1b4e28ba-2fa1-11d2-883f-0016d3cca427"}.ShortID())
	assert.Equal(t, "plain", Job{ID: "plain"}.ShortID())
}

func TestJobStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status JobStatus
		want   bool
	}{
		{JobStatusQueued, false},
		{JobStatusProcessing, false},
		{JobStatusDone, true},
		{JobStatusError, true},
		{JobStatusSkipped, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.want, tt.status.IsTerminal())
		})
	}
}

func TestJob_Apply(t *testing.T) {
	now := time.Now()

	t.Run("processing clears stale output and error", func(t *testing.T) {
		job := Job{Status: JobStatusQueued, Progress: 40, ErrorMessage: "old", OutputRef: "/old.mp4"}
		job.Apply(MarkProcessing(now))

		assert.Equal(t, JobStatusProcessing, job.Status)
		assert.Zero(t, job.Progress)
		assert.Empty(t, job.ErrorMessage)
		assert.Empty(t, job.OutputRef)
		assert.Equal(t, now, job.StartedAt)
	})

	t.Run("done sets output and full progress", func(t *testing.T) {
		job := Job{Status: JobStatusProcessing, Progress: 73}
		job.Apply(MarkDone("/out/clip-compressed.mp4", 512, now))

		assert.Equal(t, JobStatusDone, job.Status)
		assert.Equal(t, 100, job.Progress)
		assert.Equal(t, "/out/clip-compressed.mp4", job.OutputRef)
		assert.Equal(t, int64(512), job.OutputSize)
		assert.Equal(t, now, job.FinishedAt)
	})

	t.Run("failed keeps last progress", func(t *testing.T) {
		job := Job{Status: JobStatusProcessing, Progress: 37}
		job.Apply(MarkFailed(errors.New("ffmpeg exited: status 1"), now))

		assert.Equal(t, JobStatusError, job.Status)
		assert.Equal(t, 37, job.Progress)
		assert.Equal(t, "ffmpeg exited: status 1", job.ErrorMessage)
	})

	t.Run("failed without error still has a message", func(t *testing.T) {
		job := Job{Status: JobStatusProcessing}
		job.Apply(MarkFailed(nil, now))

		assert.NotEmpty(t, job.ErrorMessage)
	})

	t.Run("progress patch touches nothing else", func(t *testing.T) {
		job := Job{ID: "x", Status: JobStatusProcessing, DisplayName: "a.mov"}
		job.Apply(SetProgress(50))

		assert.Equal(t, Job{ID: "x", Status: JobStatusProcessing, DisplayName: "a.mov", Progress: 50}, job)
	})
}

func TestProgressPercent(t *testing.T) {
	tests := []struct {
		name     string
		fraction float64
		want     int
	}{
		{"zero", 0, 0},
		{"quarter", 0.25, 25},
		{"half", 0.5, 50},
		{"complete", 1.0, 100},
		{"rounds half up", 0.125, 13},
		{"rounds down", 0.333, 33},
		{"clamps negative", -0.2, 0},
		{"clamps overflow", 1.7, 100},
		{"NaN", math.NaN(), 0},
		{"positive infinity", math.Inf(1), 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ProgressPercent(tt.fraction))
		})
	}
}

func TestOutputName(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"clip.mov", "clip-compressed.mp4"},
		{"holiday.final.mkv", "holiday.final-compressed.mp4"},
		{"noext", "noext-compressed.mp4"},
		{"already.mp4", "already-compressed.mp4"},
		{".mov", "output-compressed.mp4"},
		{"日本語.mp4", "日本語-compressed.mp4"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := OutputName(tt.in)
			assert.Equal(t, tt.want, got)
			assert.True(t, IsOutputName(got))
		})
	}
}

func TestIsOutputName(t *testing.T) {
	tests := []struct {
		name string
		want bool
	}{
		{name: "clip-compressed.mp4", want: true},
		{name: "clip-compressed-1.mp4", want: true},
		{name: "clip-compressed-42.mp4", want: true},
		{name: "clip.mp4", want: false},
		{name: "clip-1.mp4", want: false},
		{name: "clip-compressed-.mp4", want: false},
		{name: "clip-compressed-x1.mp4", want: false},
		{name: "clip-compressed.mov", want: false},
		{name: "clip-compressed-1.mkv", want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsOutputName(tt.name))
		})
	}
}

func TestHistoryEntry_SavedPercent(t *testing.T) {
	assert.Equal(t, 75, HistoryEntry{SourceSize: 400, OutputSize: 100}.SavedPercent())
	assert.Equal(t, -50, HistoryEntry{SourceSize: 100, OutputSize: 150}.SavedPercent())
	assert.Equal(t, 0, HistoryEntry{SourceSize: 0, OutputSize: 150}.SavedPercent())
	assert.Equal(t, 0, HistoryEntry{SourceSize: 100}.SavedPercent())
}
