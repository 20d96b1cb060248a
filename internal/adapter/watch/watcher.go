// Package watch queues media files dropped into a directory.
package watch

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bnema/squash/internal/domain"
	"github.com/bnema/squash/internal/infrastructure/backoff"
	"github.com/bnema/squash/internal/infrastructure/logger"
	"github.com/fsnotify/fsnotify"
)

// Extensions considered for submission (lowercase, with the dot). Content is
// still checked by the submitter.
var videoExts = map[string]bool{
	".mp4": true, ".m4v": true, ".mov": true, ".mkv": true, ".webm": true,
	".avi": true, ".mpg": true, ".mpeg": true, ".ts": true, ".mts": true,
	".m2ts": true, ".3gp": true,
}

type Submitter interface {
	Submit(paths ...string) ([]domain.Job, error)
}

type Config struct {
	Dir string
	// Debounce coalesces bursts of events for the same file.
	Debounce time.Duration
	// InitialScan submits files already present when the watcher starts.
	InitialScan bool
	// SettleAttempts bounds how often a growing file is re-checked before
	// it is deferred to the next round.
	SettleAttempts int
	// Settle spaces the size checks of a file still being written.
	Settle *backoff.Backoff
}

type Watcher struct {
	cfg    Config
	submit Submitter
}

func New(cfg Config, submit Submitter) *Watcher {
	if cfg.Debounce <= 0 {
		cfg.Debounce = 500 * time.Millisecond
	}
	if cfg.SettleAttempts <= 0 {
		cfg.SettleAttempts = 5
	}
	if cfg.Settle == nil {
		cfg.Settle = backoff.New(200*time.Millisecond, 5*time.Second, 2)
	}
	return &Watcher{cfg: cfg, submit: submit}
}

// Run watches the directory until ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	if err := os.MkdirAll(w.cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("create watch dir: %w", err)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer func() { _ = fw.Close() }()

	if err := fw.Add(w.cfg.Dir); err != nil {
		return fmt.Errorf("watch %s: %w", w.cfg.Dir, err)
	}
	logger.Info.Printf("watching %s for new media", w.cfg.Dir)

	pending := make(map[string]struct{})
	timer := time.NewTimer(w.cfg.Debounce)
	if !w.cfg.InitialScan {
		timer.Stop()
	} else if err := w.scan(pending); err != nil {
		logger.Warn.Printf("initial scan of %s: %v", w.cfg.Dir, err)
	}
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if e.Op&(fsnotify.Create|fsnotify.Write) == 0 || !candidate(e.Name) {
				continue
			}
			logger.Debug.Printf("watch: %s %s", e.Op, logger.SanitizeForLog(e.Name))
			pending[e.Name] = struct{}{}
			timer.Reset(w.cfg.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			logger.Error.Printf("watcher error: %v", err)
		case <-timer.C:
			deferred, err := w.flush(ctx, pending)
			if err != nil {
				return nil
			}
			clear(pending)
			for _, p := range deferred {
				pending[p] = struct{}{}
			}
			if len(pending) > 0 {
				timer.Reset(w.cfg.Debounce)
			}
		}
	}
}

func (w *Watcher) scan(pending map[string]struct{}) error {
	entries, err := os.ReadDir(w.cfg.Dir)
	if err != nil {
		return err
	}
	for _, e := range entries {
		path := filepath.Join(w.cfg.Dir, e.Name())
		if e.Type().IsRegular() && candidate(path) {
			pending[path] = struct{}{}
		}
	}
	return nil
}

// flush submits every pending file whose size has stopped changing and
// returns the ones still being written.
func (w *Watcher) flush(ctx context.Context, pending map[string]struct{}) ([]string, error) {
	paths := make([]string, 0, len(pending))
	for p := range pending {
		paths = append(paths, p)
	}
	slices.Sort(paths)

	var ready, deferred []string
	for _, p := range paths {
		ok, err := w.settled(ctx, p)
		if err != nil {
			return nil, err
		}
		switch {
		case ok:
			ready = append(ready, p)
		case exists(p):
			deferred = append(deferred, p)
		}
	}

	if len(ready) > 0 {
		if _, err := w.submit.Submit(ready...); err != nil {
			logger.Warn.Printf("watch: %v", err)
		}
	}
	return deferred, nil
}

// settled reports whether path kept the same non-zero size across two checks.
func (w *Watcher) settled(ctx context.Context, path string) (bool, error) {
	prev := int64(-1)
	for attempt := range w.cfg.SettleAttempts {
		info, err := os.Stat(path)
		if err != nil || !info.Mode().IsRegular() {
			return false, nil
		}
		if info.Size() > 0 && info.Size() == prev {
			return true, nil
		}
		prev = info.Size()
		if err := w.cfg.Settle.Wait(ctx, attempt+1); err != nil {
			return false, err
		}
	}
	return false, nil
}

func candidate(path string) bool {
	name := filepath.Base(path)
	if strings.HasPrefix(name, ".") || domain.IsOutputName(name) {
		return false
	}
	return videoExts[strings.ToLower(filepath.Ext(name))]
}

func exists(path string) bool {
	_, err := os.Stat(path)
	return !errors.Is(err, os.ErrNotExist)
}
