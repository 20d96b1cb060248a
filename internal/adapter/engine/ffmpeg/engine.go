package ffmpeg

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/infrastructure/ctxio"
	"github.com/bnema/squash/internal/infrastructure/logger"
	"github.com/bnema/squash/internal/port"
)

var (
	ErrEmptyPath     = errors.New("empty path")
	ErrInvalidPath   = errors.New("path contains null byte")
	ErrInvalidHandle = errors.New("handle must be a plain file name")
	ErrMissingInput  = errors.New("argument list has no -i input")
)

// stderrTailSize bounds how much ffmpeg diagnostics end up in a job error.
const stderrTailSize = 2048

// Engine runs the ffmpeg binary against files kept in a private work
// directory. Handles are file names inside that directory.
type Engine struct {
	ffmpegPath  string
	ffprobePath string
	workDir     string

	canProbe atomic.Bool
}

func NewEngine(ffmpegPath, ffprobePath, workDir string) *Engine {
	return &Engine{
		ffmpegPath:  ffmpegPath,
		ffprobePath: ffprobePath,
		workDir:     workDir,
	}
}

// Load checks that ffmpeg runs and prepares the work directory. A missing
// ffprobe only disables progress reporting.
func (e *Engine) Load(ctx context.Context) error {
	if err := validatePath(e.workDir); err != nil {
		return fmt.Errorf("invalid work dir: %w", err)
	}
	if err := os.MkdirAll(e.workDir, 0o750); err != nil {
		return fmt.Errorf("create work dir: %w", err)
	}

	out, err := exec.CommandContext(ctx, e.ffmpegPath, "-hide_banner", "-version").Output()
	if err != nil {
		return fmt.Errorf("ffmpeg unavailable at %q: %w", e.ffmpegPath, err)
	}
	if line, _, _ := strings.Cut(string(out), "\n"); line != "" {
		logger.Info.Printf("engine: %s", line)
	}

	if err := exec.CommandContext(ctx, e.ffprobePath, "-hide_banner", "-version").Run(); err != nil {
		logger.Warn.Printf("engine: ffprobe unavailable at %q, progress disabled: %v", e.ffprobePath, err)
		return nil
	}
	e.canProbe.Store(true)
	return nil
}

func (e *Engine) WriteInput(ctx context.Context, handle string, r io.Reader) error {
	path, err := e.path(handle)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("create input: %w", err)
	}

	if _, err := io.Copy(f, ctxio.NewReader(ctx, r)); err != nil {
		_ = f.Close()
		_ = os.Remove(path)
		return fmt.Errorf("write input: %w", err)
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(path)
		return fmt.Errorf("close input: %w", err)
	}
	return nil
}

// Execute runs ffmpeg with args, where the value after -i and the final
// argument are handles. Progress fractions come from ffmpeg's -progress
// stream measured against the probed input duration.
func (e *Engine) Execute(ctx context.Context, args []string, onProgress func(float64)) error {
	input, err := inputHandle(args)
	if err != nil {
		return err
	}
	if len(args) > 0 {
		if _, err := e.path(args[len(args)-1]); err != nil {
			return fmt.Errorf("invalid output: %w", err)
		}
	}

	parser := progressParser{total: e.probeDuration(ctx, input)}

	full := append([]string{"-hide_banner", "-nostats", "-loglevel", "error", "-progress", "pipe:1"}, args...)
	cmd := exec.CommandContext(ctx, e.ffmpegPath, full...)
	cmd.Dir = e.workDir

	stderr := &tailBuffer{max: stderrTailSize}
	cmd.Stderr = stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return fmt.Errorf("ffmpeg stdout: %w", err)
	}

	logger.Debug.Printf("engine: %s %s", e.ffmpegPath, strings.Join(full, " "))
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("start ffmpeg: %w", err)
	}

	parser.consume(stdout, onProgress)

	if err := cmd.Wait(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return fmt.Errorf("ffmpeg interrupted: %w", ctxErr)
		}
		if msg := stderr.String(); msg != "" {
			return fmt.Errorf("ffmpeg failed: %w: %s", err, msg)
		}
		return fmt.Errorf("ffmpeg failed: %w", err)
	}
	return nil
}

func (e *Engine) ReadOutput(_ context.Context, handle string) (io.ReadCloser, error) {
	path, err := e.path(handle)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open output: %w", err)
	}
	return f, nil
}

// Delete removes a handle's file. Removing a handle that was never written is not an error.
func (e *Engine) Delete(handle string) error {
	path, err := e.path(handle)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete %s: %w", handle, err)
	}
	return nil
}

func (e *Engine) probeDuration(ctx context.Context, handle string) time.Duration {
	if !e.canProbe.Load() {
		return 0
	}

	cmd := exec.CommandContext(ctx, e.ffprobePath,
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		handle,
	)
	cmd.Dir = e.workDir

	out, err := cmd.Output()
	if err != nil {
		logger.Debug.Printf("engine: ffprobe %s: %v", handle, err)
		return 0
	}
	probe, err := domain.ParseProbe(out)
	if err != nil {
		logger.Debug.Printf("engine: %v", err)
		return 0
	}
	width, height := probe.Dimensions()
	logger.Debug.Printf("engine: input %s is %dx%d, %s", handle, width, height, domain.FormatDuration(probe.Duration()))
	return probe.Duration()
}

func (e *Engine) path(handle string) (string, error) {
	if err := validateHandle(handle); err != nil {
		return "", err
	}
	return filepath.Join(e.workDir, handle), nil
}

func inputHandle(args []string) (string, error) {
	for i := 0; i < len(args)-1; i++ {
		if args[i] == "-i" {
			if err := validateHandle(args[i+1]); err != nil {
				return "", fmt.Errorf("invalid input: %w", err)
			}
			return args[i+1], nil
		}
	}
	return "", ErrMissingInput
}

func validatePath(path string) error {
	if path == "" {
		return ErrEmptyPath
	}
	if strings.ContainsRune(path, 0) {
		return ErrInvalidPath
	}
	return nil
}

func validateHandle(handle string) error {
	if err := validatePath(handle); err != nil {
		return err
	}
	if handle == "." || handle == ".." || filepath.Base(handle) != handle || strings.HasPrefix(handle, "-") {
		return fmt.Errorf("%w: %q", ErrInvalidHandle, handle)
	}
	return nil
}

// tailBuffer keeps the last max bytes written to it.
type tailBuffer struct {
	max int
	buf bytes.Buffer
}

func (t *tailBuffer) Write(p []byte) (int, error) {
	n := len(p)
	if len(p) >= t.max {
		t.buf.Reset()
		t.buf.Write(p[len(p)-t.max:])
		return n, nil
	}
	if over := t.buf.Len() + len(p) - t.max; over > 0 {
		t.buf.Next(over)
	}
	t.buf.Write(p)
	return n, nil
}

func (t *tailBuffer) String() string {
	return strings.TrimSpace(t.buf.String())
}

var _ port.Engine = (*Engine)(nil)
