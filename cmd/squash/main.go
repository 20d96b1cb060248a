package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/bnema/squash/config"
	"github.com/bnema/squash/internal/adapter/console"
	"github.com/bnema/squash/internal/adapter/engine/ffmpeg"
	"github.com/bnema/squash/internal/adapter/storage/fs"
	"github.com/bnema/squash/internal/adapter/storage/jsonfile"
	"github.com/bnema/squash/internal/adapter/storage/memory"
	sqlitestore "github.com/bnema/squash/internal/adapter/storage/sqlite"
	"github.com/bnema/squash/internal/adapter/watch"
	"github.com/bnema/squash/internal/infrastructure/logger"
	"github.com/bnema/squash/internal/port"
	"github.com/bnema/squash/internal/service"
	"golang.org/x/sync/errgroup"
)

var version = "dev"

func main() {
	if err := run(); err != nil {
		logger.Error.Printf("%v", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if err := logger.Setup(os.Stdout, cfg.LogLevel); err != nil {
		return err
	}

	logger.Info.Printf("starting squash %s, data=%s", version, cfg.DataDir)

	if err := os.MkdirAll(cfg.DataDir, 0755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	historyStore, err := openHistory(cfg)
	if err != nil {
		return fmt.Errorf("failed to open history store: %w", err)
	}
	if historyStore != nil {
		defer func() { _ = historyStore.Close() }()
	}

	outputs, err := fs.NewOutputs(cfg.OutputDir)
	if err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}
	logger.Info.Printf("compressed files go to %s", outputs.Dir())

	settings, err := service.NewSettingsStore(cfg.Defaults)
	if err != nil {
		return err
	}

	queue := memory.NewQueue()
	eventBus := service.NewEventBus()
	engine := ffmpeg.NewEngine(cfg.FFmpegPath, cfg.FFprobePath, cfg.WorkDir)

	driver := service.NewDriver(queue, engine, fs.NewSources(), outputs, settings, eventBus, service.DriverConfig{
		AutoStart:    cfg.AutoStart,
		AbortOnSkip:  cfg.AbortOnSkip,
		JobTimeout:   cfg.JobTimeout,
		ClearSkipped: cfg.ClearSkipped,
	})
	submitter := service.NewSubmitter(queue)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	// The recorder outlives the driver so the outcome of a job finishing
	// during shutdown is still recorded.
	recorderCtx, stopRecorder := context.WithCancel(context.WithoutCancel(ctx))
	defer stopRecorder()

	g.Go(func() error {
		defer stopRecorder()
		return driver.Run(ctx)
	})

	var history console.History
	if historyStore != nil {
		recorder := service.NewHistoryRecorder(historyStore, eventBus)
		g.Go(func() error { return recorder.Run(recorderCtx) })
		history = recorder
	}

	if cfg.WatchDir != "" {
		watcher := watch.New(watch.Config{Dir: cfg.WatchDir, InitialScan: true}, submitter)
		g.Go(func() error { return watcher.Run(ctx) })
		logger.Info.Printf("watching %s", cfg.WatchDir)
	}

	term := console.New(os.Stdout, driver, submitter, settings, history, eventBus)
	g.Go(func() error { return term.Run(ctx, os.Stdin) })

	if args := os.Args[1:]; len(args) > 0 {
		jobs, err := submitter.Submit(args...)
		if err != nil {
			logger.Warn.Printf("some files were not queued: %v", err)
		}
		logger.Info.Printf("queued %d file(s)", len(jobs))
	}

	err = g.Wait()
	if errors.Is(err, console.ErrQuit) {
		err = nil
	}
	logger.Info.Printf("shutdown complete")
	return err
}

func openHistory(cfg *config.Config) (port.HistoryStore, error) {
	switch cfg.HistoryBackend {
	case config.HistorySQLite:
		return sqlitestore.NewHistoryStore(cfg.DataDir, cfg.HistoryLimit)
	case config.HistoryJSON:
		return jsonfile.NewHistoryStore(cfg.DataDir, cfg.HistoryLimit)
	default:
		return nil, nil
	}
}
