package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/internal/infrastructure"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

// App holds the wired components shared by the CLI and the HTTP server
type App struct {
	Config  *domain.Config
	Logger  *zap.Logger
	Ring    *logger.RingBuffer
	Journal *logger.DownloadLog
	Logs    *logger.LogReader
	Tools   *infrastructure.ToolLocator
	Checker *infrastructure.ToolChecker
	Library *infrastructure.Library
	History *infrastructure.SQLiteSessionRepository // nil when history is disabled
	Session *Session
}

// New wires the application from config
func New(config *domain.Config, log *zap.Logger, callbacks SessionCallbacks) (*App, error) {
	a := &App{
		Config: config,
		Logger: log,
		Ring:   logger.NewRingBuffer(config.Logging.BufferSize),
		Logs:   logger.NewLogReader(config.Logging.LogsDir),
	}

	journal, err := logger.NewDownloadLog(config.Logging.LogsDir)
	if err != nil {
		return nil, err
	}
	a.Journal = journal

	a.Tools = infrastructure.NewToolLocator(&config.Tools)
	a.Library = infrastructure.NewLibrary(config.Download.Dir, log)
	if err := a.Library.EnsureDir(); err != nil {
		log.Warn("Failed to create download directory", zap.String("dir", config.Download.Dir), zap.Error(err))
	}

	runner := infrastructure.NewProcessRunner(a.Tools, &config.Process, log)
	a.Checker = infrastructure.NewToolChecker(a.Tools, runner, log)

	sink := logger.Tee(a.Ring, a.Journal, logger.NewZapSink(log))
	deps := SessionDeps{
		Runner:   runner,
		Watcher:  infrastructure.NewStreamWatcher(sink, config.Process.MaxLineSize, log),
		Commands: infrastructure.NewCommandBuilder(a.Tools, &config.Download, &config.Pipeline),
		Namer:    infrastructure.NewNamer(config.Pipeline.FallbackName),
		Titles:   infrastructure.NewHTTPTitleFetcher(&config.Pipeline),
		Targets:  a.Library,
		Sink:     sink,
		Notifier: infrastructure.NewNotificationService(&config.Notification, log),
	}

	if config.History.Enabled {
		repo, err := infrastructure.NewSQLiteSessionRepository(config.History.DatabasePath)
		if err != nil {
			journal.Close()
			return nil, fmt.Errorf("failed to open history: %w", err)
		}
		a.History = repo
		deps.History = repo
	}

	a.Session = NewSession(config, deps, callbacks, log)
	return a, nil
}

// RecoverHistory marks sessions left running by a previous process as failed
func (a *App) RecoverHistory() {
	if a.History == nil {
		return
	}
	n, err := a.History.MarkInterrupted()
	if err != nil {
		a.Logger.Warn("Failed to recover session history", zap.Error(err))
		return
	}
	if n > 0 {
		a.Logger.Info("Marked interrupted sessions as failed", zap.Int64("count", n))
	}
}

// Close stops the active download and releases resources
func (a *App) Close(ctx context.Context) error {
	err := a.Session.Close(ctx)
	if a.History != nil {
		if cerr := a.History.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}
	if cerr := a.Journal.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
