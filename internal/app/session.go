package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
	"github.com/yourusername/ytpipe-go/internal/infrastructure"
)

// SessionCallbacks receive session output. Progress events of one download
// arrive in emission order from a single goroutine at a time, and none
// arrive after its terminal hidden event. The session is no longer active
// when the hidden event is delivered.
type SessionCallbacks struct {
	OnProgress func(domain.ProgressEvent)
	OnSuccess  func(*domain.SessionResult)
	OnFinish   func(*domain.SessionResult)
}

// SessionDeps are the collaborators of a Session
type SessionDeps struct {
	Runner   *infrastructure.ProcessRunner
	Watcher  *infrastructure.StreamWatcher
	Commands *infrastructure.CommandBuilder
	Namer    *infrastructure.Namer
	Titles   domain.TitleLookup
	Targets  domain.TargetDirProvider
	Sink     domain.LogSink
	History  domain.SessionRepository // optional
	Notifier domain.Notifier          // optional
}

// Session runs at most one download at a time and reports its progress.
// It is safe for use from multiple goroutines.
type Session struct {
	config    *domain.Config
	deps      SessionDeps
	callbacks SessionCallbacks
	logger    *zap.Logger

	mu      sync.Mutex
	state   domain.SessionState
	current *run
	active  *infrastructure.ProcessSet
}

// run is the mutable state of one download attempt
type run struct {
	req      *domain.DownloadRequest
	strategy domain.Strategy
	ctx      context.Context
	cancel   context.CancelFunc

	startedAt       time.Time
	cancelRequested atomic.Bool
	progressStarted atomic.Bool

	eventMu  sync.Mutex
	finished bool

	result *domain.SessionResult
	done   chan struct{}
}

func (r *run) elapsed() time.Duration {
	return time.Since(r.startedAt)
}

// NewSession creates an idle session
func NewSession(config *domain.Config, deps SessionDeps, callbacks SessionCallbacks, logger *zap.Logger) *Session {
	return &Session{
		config:    config,
		deps:      deps,
		callbacks: callbacks,
		logger:    logger,
		state:     domain.StateIdle,
		active:    infrastructure.NewProcessSet(),
	}
}

// Download starts downloading url in the background. It returns
// domain.ErrSessionActive without side effects while another download is
// starting, running or cancelling.
func (s *Session) Download(url string) error {
	req, err := domain.NewDownloadRequest(url, s.deps.Targets.DownloadDir())
	if err != nil {
		return err
	}

	s.mu.Lock()
	if s.state.IsBusy() {
		s.mu.Unlock()
		return domain.ErrSessionActive
	}
	ctx, cancel := context.WithCancel(context.Background())
	r := &run{
		req:       req,
		ctx:       ctx,
		cancel:    cancel,
		startedAt: time.Now(),
		done:      make(chan struct{}),
	}
	s.state = domain.StateStarting
	s.current = r
	s.mu.Unlock()

	go s.execute(r)
	return nil
}

// Toggle stops the active download, or starts url when idle
func (s *Session) Toggle(url string) (started bool, err error) {
	if s.IsActive() {
		s.StopDownload()
		return false, nil
	}
	if err := s.Download(url); err != nil {
		return false, err
	}
	return true, nil
}

// StopDownload requests cancellation of the active download. It returns
// immediately; termination of the processes happens in the background.
// Calling it when idle or a second time has no effect.
func (s *Session) StopDownload() {
	s.mu.Lock()
	r := s.current
	if r == nil || !s.state.IsBusy() || r.cancelRequested.Swap(true) {
		s.mu.Unlock()
		return
	}
	s.state = domain.StateCancelling
	s.mu.Unlock()

	s.step(r, "stop requested, terminating child processes")
	s.deliver(r, domain.CancellingEvent())

	r.cancel()
	go s.active.TerminateAll()
}

// IsActive reports whether a download owns the session
func (s *Session) IsActive() bool {
	return s.State().IsBusy()
}

// State returns the current state. Terminal states persist until the next
// download starts.
func (s *Session) State() domain.SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Current returns the running request, or nil when idle
func (s *Session) Current() *domain.DownloadRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil || !s.state.IsBusy() {
		return nil
	}
	return s.current.req
}

// LastResult returns the result of the most recent finished download
func (s *Session) LastResult() *domain.SessionResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.current == nil {
		return nil
	}
	return s.current.result
}

// ActiveProcesses returns a view of the processes of the running download
func (s *Session) ActiveProcesses() []infrastructure.ProcessInfo {
	procs := s.active.Snapshot()
	out := make([]infrastructure.ProcessInfo, 0, len(procs))
	for _, p := range procs {
		out = append(out, p.Info())
	}
	return out
}

// Wait blocks until the current download finishes and returns its result.
// It returns nil immediately when nothing was started, and ctx.Err() if
// ctx ends first.
func (s *Session) Wait(ctx context.Context) (*domain.SessionResult, error) {
	s.mu.Lock()
	r := s.current
	s.mu.Unlock()
	if r == nil {
		return nil, nil
	}
	select {
	case <-r.done:
		return r.result, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops any active download and waits for it to finish
func (s *Session) Close(ctx context.Context) error {
	s.StopDownload()
	_, err := s.Wait(ctx)
	return err
}

// strategyOutcome is what a strategy reports back to execute
type strategyOutcome struct {
	exitCodes  []int
	outputPath string
	err        error
}

func (s *Session) execute(r *run) {
	var outcome strategyOutcome
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Download session panicked",
				zap.String("session_id", r.req.ID),
				zap.Any("panic", rec))
			outcome.err = fmt.Errorf("internal error: %v", rec)
			s.finish(r, outcome)
		}
	}()

	r.strategy = domain.SelectStrategy(r.req.URL, s.config.Pipeline.SpecialHost)

	s.mu.Lock()
	if s.state == domain.StateStarting {
		s.state = domain.StateRunning
	}
	s.mu.Unlock()

	if j, ok := s.deps.Sink.(domain.SessionJournal); ok {
		j.BeginSession(r.req.ID, r.req.URL)
	}
	s.step(r, fmt.Sprintf("received url %s, using %s strategy", r.req.URL, r.strategy))
	s.logger.Info("Download started",
		zap.String("session_id", r.req.ID),
		zap.String("url", r.req.URL),
		zap.String("strategy", string(r.strategy)))

	s.recordStart(r)
	s.deliver(r, domain.LoadingEvent(0))
	go s.heartbeat(r)

	if err := os.MkdirAll(r.req.TargetDir, 0755); err != nil {
		outcome.err = fmt.Errorf("failed to create download directory: %w", err)
	} else if r.strategy == domain.StrategyPiped {
		outcome = s.runPiped(r)
	} else {
		outcome = s.runDirect(r)
	}

	s.finish(r, outcome)
}

func (s *Session) runDirect(r *run) strategyOutcome {
	out := strategyOutcome{outputPath: r.req.TargetDir}

	cmd, err := s.deps.Commands.DirectDownload(r.req.URL, r.req.TargetDir)
	if err != nil {
		out.err = err
		return out
	}
	s.step(r, "$ "+cmd.String())

	start := time.Now()
	proc, err := s.deps.Runner.Start(r.ctx, cmd, infrastructure.StartOptions{CaptureStdout: true, MergeStderr: true})
	if err != nil {
		out.err = err
		return out
	}
	s.active.Add(proc)
	defer s.active.Remove(proc)
	defer proc.Terminate()

	h := s.deps.Watcher.Watch(proc.Stdout(), infrastructure.WatchOptions{
		Label:         cmd.Tool,
		ParseProgress: true,
		OnProgress:    func(pct float64) { s.onProgress(r, pct) },
	})

	code := proc.Wait(r.ctx)
	if r.ctx.Err() != nil {
		proc.Terminate()
	}
	h.Join()

	s.step(r, fmt.Sprintf("%s finished, exit=%d, %s", cmd.Tool, code, time.Since(start).Round(time.Millisecond)))
	out.exitCodes = []int{code}
	if code != 0 && r.ctx.Err() == nil {
		out.err = &domain.ToolExitError{Tool: cmd.Tool, Code: code}
	}
	return out
}

func (s *Session) runPiped(r *run) strategyOutcome {
	name := s.outputName(r)
	out := strategyOutcome{outputPath: filepath.Join(r.req.TargetDir, name)}
	s.step(r, "output file "+out.outputPath)

	upCmd, downCmd, err := s.deps.Commands.PipedDownload(r.req.URL, out.outputPath)
	if err != nil {
		out.err = err
		return out
	}
	s.step(r, "$ "+upCmd.String()+" | "+downCmd.String())

	start := time.Now()
	pl, err := s.deps.Runner.StartPipeline(r.ctx, upCmd, downCmd, s.active)
	if err != nil {
		out.err = err
		return out
	}
	defer func() {
		pl.Terminate()
		s.active.Remove(pl.Upstream)
		s.active.Remove(pl.Downstream)
	}()

	upLog := s.deps.Watcher.Watch(pl.Upstream.Stderr(), infrastructure.WatchOptions{
		Label:         upCmd.Tool,
		ParseProgress: true,
		OnProgress:    func(pct float64) { s.onProgress(r, pct) },
	})
	downLog := s.deps.Watcher.Watch(pl.Downstream.Stderr(), infrastructure.WatchOptions{
		Label: downCmd.Tool,
	})

	codes, waitErr := pl.Wait(r.ctx)
	if r.ctx.Err() != nil {
		pl.Terminate()
	}
	upLog.Join()
	downLog.Join()

	s.step(r, fmt.Sprintf("pipeline finished, %s exit=%d, %s exit=%d, %s",
		upCmd.Tool, codes[0], downCmd.Tool, codes[1], time.Since(start).Round(time.Millisecond)))
	out.exitCodes = codes
	if r.ctx.Err() == nil {
		out.err = waitErr
	}
	return out
}

// outputName asks for the page title and falls back to a URL-derived name
func (s *Session) outputName(r *run) string {
	title, err := s.deps.Titles.FetchTitle(r.ctx, r.req.URL)
	if err == nil && strings.TrimSpace(title) == "" {
		err = &domain.MetadataLookupError{URL: r.req.URL, Err: errors.New("blank title")}
	}
	if err != nil {
		var lookupErr *domain.MetadataLookupError
		if errors.As(err, &lookupErr) {
			s.logger.Debug("Title lookup failed, using URL name",
				zap.String("session_id", r.req.ID),
				zap.Error(err))
		}
		name := s.deps.Namer.FromURL(r.req.URL)
		s.step(r, "title unavailable, using name derived from url: "+name)
		return name
	}
	s.step(r, "page title: "+title)
	return s.deps.Namer.FromTitle(title)
}

func (s *Session) onProgress(r *run, pct float64) {
	r.progressStarted.Store(true)
	if r.cancelRequested.Load() {
		return
	}
	s.deliver(r, domain.DownloadingEvent(pct, r.elapsed()))
}

// heartbeat re-emits the loading message until real progress shows up
func (s *Session) heartbeat(r *run) {
	interval := s.config.Download.HeartbeatInterval
	if interval <= 0 {
		interval = time.Second
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-r.done:
			return
		case <-r.ctx.Done():
			return
		case <-ticker.C:
			if r.progressStarted.Load() {
				return
			}
			s.deliver(r, domain.LoadingEvent(r.elapsed()))
		}
	}
}

// deliver hands ev to the progress callback unless the run has finished
func (s *Session) deliver(r *run, ev domain.ProgressEvent) {
	r.eventMu.Lock()
	defer r.eventMu.Unlock()
	if r.finished {
		return
	}
	s.callProgress(ev)
}

// deliverTerminal sends the final hidden event exactly once
func (s *Session) deliverTerminal(r *run) {
	r.eventMu.Lock()
	defer r.eventMu.Unlock()
	if r.finished {
		return
	}
	r.finished = true
	s.callProgress(domain.HiddenEvent())
}

func (s *Session) callProgress(ev domain.ProgressEvent) {
	if s.callbacks.OnProgress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Progress callback panicked", zap.Any("panic", rec))
		}
	}()
	s.callbacks.OnProgress(ev)
}

// classify turns a strategy outcome into the terminal result. A stop
// request wins over whatever the tools reported.
func classify(r *run, outcome strategyOutcome) *domain.SessionResult {
	result := &domain.SessionResult{
		ID:         r.req.ID,
		URL:        r.req.URL,
		Strategy:   r.strategy,
		OutputPath: outcome.outputPath,
		ExitCodes:  outcome.exitCodes,
		Elapsed:    r.elapsed(),
	}

	switch {
	case r.cancelRequested.Load():
		result.State = domain.StateCancelled
		result.Err = domain.ErrCancelled
	case outcome.err != nil:
		result.State = domain.StateFailed
		result.Err = outcome.err
	case len(outcome.exitCodes) == 0:
		result.State = domain.StateFailed
		result.Err = errors.New("no process was run")
	default:
		result.State = domain.StateSucceeded
		for i, code := range outcome.exitCodes {
			if code != 0 {
				result.State = domain.StateFailed
				result.Err = &domain.ToolExitError{Tool: pipelineTool(r.strategy, i), Code: code}
				break
			}
		}
	}
	return result
}

// pipelineTool names the tool behind the i-th exit code
func pipelineTool(strategy domain.Strategy, i int) string {
	if strategy == domain.StrategyPiped && i == 1 {
		return domain.ToolTranscoder
	}
	return domain.ToolDownloader
}

func (s *Session) finish(r *run, outcome strategyOutcome) {
	result := classify(r, outcome)

	switch result.State {
	case domain.StateSucceeded:
		s.step(r, "download succeeded: "+result.OutputPath)
		s.logger.Info("Download succeeded",
			zap.String("session_id", r.req.ID),
			zap.String("output", result.OutputPath),
			zap.Duration("elapsed", result.Elapsed))
	case domain.StateCancelled:
		s.step(r, "download cancelled")
		s.logger.Info("Download cancelled", zap.String("session_id", r.req.ID))
	default:
		s.step(r, "download failed: "+result.ErrorMessage())
		s.logger.Warn("Download failed",
			zap.String("session_id", r.req.ID),
			zap.String("url", r.req.URL),
			zap.Error(result.Err))
	}

	if j, ok := s.deps.Sink.(domain.SessionJournal); ok {
		msg := result.OutputPath
		if result.State != domain.StateSucceeded {
			msg = result.ErrorMessage()
		}
		j.EndSession(r.req.ID, result.State, msg)
	}

	// the slot is free before consumers see the terminal event
	s.mu.Lock()
	r.result = result
	s.state = result.State
	s.mu.Unlock()
	r.cancel()

	s.deliverTerminal(r)

	s.recordFinish(r, result)
	if s.deps.Notifier != nil {
		go s.deps.Notifier.NotifySessionFinished(result)
	}

	if result.Succeeded() && s.callbacks.OnSuccess != nil {
		s.safeCallback("OnSuccess", func() { s.callbacks.OnSuccess(result) })
	}
	if s.callbacks.OnFinish != nil {
		s.safeCallback("OnFinish", func() { s.callbacks.OnFinish(result) })
	}
	close(r.done)
}

func (s *Session) safeCallback(name string, fn func()) {
	defer func() {
		if rec := recover(); rec != nil {
			s.logger.Error("Session callback panicked", zap.String("callback", name), zap.Any("panic", rec))
		}
	}()
	fn()
}

func (s *Session) recordStart(r *run) {
	if s.deps.History == nil {
		return
	}
	if err := s.deps.History.Create(domain.NewSessionRecord(r.req, r.strategy)); err != nil {
		s.logger.Warn("Failed to record session start", zap.String("session_id", r.req.ID), zap.Error(err))
	}
}

func (s *Session) recordFinish(r *run, result *domain.SessionResult) {
	if s.deps.History == nil {
		return
	}
	record := domain.NewSessionRecord(r.req, r.strategy)
	record.Finish(result)
	if err := s.deps.History.Update(record); err != nil {
		s.logger.Warn("Failed to record session result", zap.String("session_id", r.req.ID), zap.Error(err))
	}
}

// step writes a session progress note to the output sink
func (s *Session) step(r *run, msg string) {
	s.deps.Sink.Append("[session " + shortID(r.req.ID) + "] " + msg)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
