// Package fs reads job sources from disk and writes compressed outputs into
// a single output directory.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"github.com/bnema/squash/internal/infrastructure/ctxio"
	"github.com/bnema/squash/internal/port"
)

type Sources struct{}

func NewSources() *Sources {
	return &Sources{}
}

func (s *Sources) Open(ref string) (io.ReadCloser, error) {
	if ref == "" || strings.ContainsRune(ref, 0) {
		return nil, fmt.Errorf("invalid source %q", ref)
	}
	f, err := os.Open(ref)
	if err != nil {
		return nil, fmt.Errorf("open source: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat source: %w", err)
	}
	if info.IsDir() {
		_ = f.Close()
		return nil, fmt.Errorf("source %s is a directory", ref)
	}
	return f, nil
}

// maxNameAttempts bounds the -1, -2, ... suffix search for a free output name.
const maxNameAttempts = 10000

// Outputs saves outputs into dir without ever overwriting an existing file.
type Outputs struct {
	dir string

	// mu serialises name reservation so concurrent saves cannot pick the same name.
	mu sync.Mutex
}

func NewOutputs(dir string) (*Outputs, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &Outputs{dir: dir}, nil
}

func (o *Outputs) Dir() string {
	return o.dir
}

// Save writes r to a temporary file and renames it to name, or to
// name-1, name-2, ... when taken. It returns the final path and byte count.
func (o *Outputs) Save(ctx context.Context, name string, r io.Reader) (string, int64, error) {
	name = filepath.Base(name)
	if name == "." || name == string(filepath.Separator) || name == "" {
		return "", 0, fmt.Errorf("invalid output name %q", name)
	}

	tmp, err := os.CreateTemp(o.dir, ".partial-*")
	if err != nil {
		return "", 0, fmt.Errorf("create temp output: %w", err)
	}
	tmpPath := tmp.Name()

	size, err := io.Copy(tmp, ctxio.NewReader(ctx, r))
	if err == nil {
		err = tmp.Sync()
	}
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("write output: %w", err)
	}

	o.mu.Lock()
	defer o.mu.Unlock()

	path, err := o.freePath(name)
	if err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, err
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return "", 0, fmt.Errorf("finalize output: %w", err)
	}
	return path, size, nil
}

func (o *Outputs) Remove(ref string) error {
	if filepath.Dir(ref) != filepath.Clean(o.dir) {
		return fmt.Errorf("refusing to remove %s outside %s", ref, o.dir)
	}
	if err := os.Remove(ref); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove output: %w", err)
	}
	return nil
}

func (o *Outputs) freePath(name string) (string, error) {
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)

	candidate := name
	for i := 1; i <= maxNameAttempts; i++ {
		path := filepath.Join(o.dir, candidate)
		if _, err := os.Lstat(path); errors.Is(err, os.ErrNotExist) {
			return path, nil
		} else if err != nil {
			return "", fmt.Errorf("check output name: %w", err)
		}
		candidate = base + "-" + strconv.Itoa(i) + ext
	}
	return "", fmt.Errorf("no free output name for %s", name)
}

var (
	_ port.SourceOpener = (*Sources)(nil)
	_ port.OutputStore  = (*Outputs)(nil)
)
