package domain

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

type JobStatus string

const (
	JobStatusQueued     JobStatus = "queued"
	JobStatusProcessing JobStatus = "processing"
	JobStatusDone       JobStatus = "done"
	JobStatusError      JobStatus = "error"
	JobStatusSkipped    JobStatus = "skipped"
)

// IsTerminal reports whether no further transition may leave the status.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusDone, JobStatusError, JobStatusSkipped:
		return true
	}
	return false
}

// Job is the processing record of one submitted file.
type Job struct {
	ID           string    `json:"id"`
	SourceRef    string    `json:"source_ref"`
	DisplayName  string    `json:"display_name"`
	SourceSize   int64     `json:"source_size"`
	Status       JobStatus `json:"status"`
	Progress     int       `json:"progress"`
	OutputRef    string    `json:"output_ref,omitempty"`
	OutputSize   int64     `json:"output_size,omitempty"`
	ErrorMessage string    `json:"error_message,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

func NewJob(sourceRef, displayName string, sourceSize int64) Job {
	return Job{
		ID:          uuid.New().String(),
		SourceRef:   sourceRef,
		DisplayName: displayName,
		SourceSize:  sourceSize,
		Status:      JobStatusQueued,
		CreatedAt:   time.Now(),
	}
}

// ShortID is the first block of the UUID, enough to address a job from the console.
func (j Job) ShortID() string {
	if i := strings.IndexByte(j.ID, '-'); i > 0 {
		return j.ID[:i]
	}
	return j.ID
}

// JobPatch is a partial update. Nil fields are left untouched. SourceRef and
// DisplayName cannot be patched.
type JobPatch struct {
	Status       *JobStatus
	Progress     *int
	OutputRef    *string
	OutputSize   *int64
	ErrorMessage *string
	StartedAt    *time.Time
	FinishedAt   *time.Time
}

func (j *Job) Apply(p JobPatch) {
	if p.Status != nil {
		j.Status = *p.Status
	}
	if p.Progress != nil {
		j.Progress = *p.Progress
	}
	if p.OutputRef != nil {
		j.OutputRef = *p.OutputRef
	}
	if p.OutputSize != nil {
		j.OutputSize = *p.OutputSize
	}
	if p.ErrorMessage != nil {
		j.ErrorMessage = *p.ErrorMessage
	}
	if p.StartedAt != nil {
		j.StartedAt = *p.StartedAt
	}
	if p.FinishedAt != nil {
		j.FinishedAt = *p.FinishedAt
	}
}

func ptr[T any](v T) *T { return &v }

// MarkProcessing resets progress and clears anything left from a previous run.
func MarkProcessing(now time.Time) JobPatch {
	return JobPatch{
		Status:       ptr(JobStatusProcessing),
		Progress:     ptr(0),
		OutputRef:    ptr(""),
		OutputSize:   ptr(int64(0)),
		ErrorMessage: ptr(""),
		StartedAt:    ptr(now),
	}
}

func MarkDone(outputRef string, outputSize int64, now time.Time) JobPatch {
	return JobPatch{
		Status:     ptr(JobStatusDone),
		Progress:   ptr(100),
		OutputRef:  ptr(outputRef),
		OutputSize: ptr(outputSize),
		FinishedAt: ptr(now),
	}
}

// MarkFailed keeps the last observed progress.
func MarkFailed(err error, now time.Time) JobPatch {
	msg := "unknown error"
	if err != nil && err.Error() != "" {
		msg = err.Error()
	}
	return JobPatch{
		Status:       ptr(JobStatusError),
		ErrorMessage: ptr(msg),
		FinishedAt:   ptr(now),
	}
}

func MarkSkipped(now time.Time) JobPatch {
	return JobPatch{
		Status:     ptr(JobStatusSkipped),
		FinishedAt: ptr(now),
	}
}

func SetProgress(percent int) JobPatch {
	return JobPatch{Progress: ptr(percent)}
}

// ProgressPercent converts an engine fraction into a whole percentage in [0, 100].
func ProgressPercent(fraction float64) int {
	if math.IsNaN(fraction) {
		return 0
	}
	p := math.Round(fraction * 100)
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return int(p)
}

const (
	outputSuffix = "-compressed"
	outputExt    = ".mp4"
)

// OutputName derives the result file name, e.g. "clip.mov" -> "clip-compressed.mp4".
func OutputName(displayName string) string {
	base := strings.TrimSuffix(displayName, filepath.Ext(displayName))
	if base == "" {
		base = "output"
	}
	return base + outputSuffix + outputExt
}

// IsOutputName reports whether name looks like something OutputName produced,
// including the "-1", "-2", ... forms given to duplicates on save.
func IsOutputName(name string) bool {
	base, ok := strings.CutSuffix(name, outputExt)
	if !ok {
		return false
	}
	if strings.HasSuffix(base, outputSuffix) {
		return true
	}
	i := strings.LastIndexByte(base, '-')
	if i < 0 || i == len(base)-1 {
		return false
	}
	for _, r := range base[i+1:] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return strings.HasSuffix(base[:i], outputSuffix)
}

// HistoryEntry is the record kept for every job that reached a terminal state.
type HistoryEntry struct {
	ID           int64     `json:"id"`
	JobID        string    `json:"job_id"`
	DisplayName  string    `json:"display_name"`
	Status       JobStatus `json:"status"`
	SourceSize   int64     `json:"source_size"`
	OutputRef    string    `json:"output_ref"`
	OutputSize   int64     `json:"output_size"`
	ErrorMessage string    `json:"error_message"`
	StartedAt    time.Time `json:"started_at"`
	FinishedAt   time.Time `json:"finished_at"`
}

func NewHistoryEntry(j Job) HistoryEntry {
	return HistoryEntry{
		JobID:        j.ID,
		DisplayName:  j.DisplayName,
		Status:       j.Status,
		SourceSize:   j.SourceSize,
		OutputRef:    j.OutputRef,
		OutputSize:   j.OutputSize,
		ErrorMessage: j.ErrorMessage,
		StartedAt:    j.StartedAt,
		FinishedAt:   j.FinishedAt,
	}
}

// SavedPercent is the size reduction relative to the source, 0 when unknown.
func (h HistoryEntry) SavedPercent() int {
	if h.SourceSize <= 0 || h.OutputSize <= 0 {
		return 0
	}
	return int(math.Round(float64(h.SourceSize-h.OutputSize) / float64(h.SourceSize) * 100))
}
