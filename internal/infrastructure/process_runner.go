package infrastructure

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/process"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// ExitCodeInterrupted is returned by Wait when its context ends first
const ExitCodeInterrupted = -1

// StartOptions wires the standard streams of a process about to start.
// Streams left unset are connected to the null device.
type StartOptions struct {
	Stdin         *os.File
	Stdout        *os.File // ignored when CaptureStdout is set
	CaptureStdout bool     // expose stdout through ManagedProcess.Stdout
	CaptureStderr bool     // expose stderr through ManagedProcess.Stderr
	MergeStderr   bool     // stderr goes wherever stdout goes
}

// ProcessRunner launches external tools with a controlled environment
type ProcessRunner struct {
	tools  domain.ToolLocator
	config *domain.ProcessConfig
	logger *zap.Logger
}

// NewProcessRunner creates a new process runner
func NewProcessRunner(tools domain.ToolLocator, config *domain.ProcessConfig, logger *zap.Logger) *ProcessRunner {
	return &ProcessRunner{
		tools:  tools,
		config: config,
		logger: logger,
	}
}

// Start launches c. A missing or non-executable binary yields *domain.LaunchError.
// The returned process is reaped in the background; call Wait for its exit code.
func (r *ProcessRunner) Start(ctx context.Context, c domain.Command, opts StartOptions) (*ManagedProcess, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	binDir := r.tools.BinDir()
	path, err := resolveBinary(c.Binary, binDir)
	if err != nil {
		return nil, &domain.LaunchError{Tool: c.Tool, Binary: c.Binary, Err: err}
	}

	cmd := exec.Command(path, c.Args...)
	cmd.Env = environWithBinDir(os.Environ(), binDir)
	setProcessGroup(cmd)

	p := &ManagedProcess{
		command:  c,
		cmd:      cmd,
		done:     make(chan struct{}),
		exitCode: ExitCodeInterrupted,
		grace:    r.config.TerminateGrace,
		killWait: r.config.KillWait,
		logger:   r.logger,
	}

	// write ends handed to the child; the parent drops its copies after start
	var childEnds []*os.File
	closeAll := func() {
		for _, f := range childEnds {
			f.Close()
		}
		p.closeStreams()
	}

	if opts.Stdin != nil {
		cmd.Stdin = opts.Stdin
	}

	if opts.CaptureStdout {
		pr, pw, err := os.Pipe()
		if err != nil {
			return nil, &domain.LaunchError{Tool: c.Tool, Binary: path, Err: fmt.Errorf("stdout pipe: %w", err)}
		}
		p.stdout = pr
		childEnds = append(childEnds, pw)
		cmd.Stdout = pw
	} else if opts.Stdout != nil {
		cmd.Stdout = opts.Stdout
	}

	switch {
	case opts.MergeStderr:
		cmd.Stderr = cmd.Stdout
	case opts.CaptureStderr:
		pr, pw, err := os.Pipe()
		if err != nil {
			closeAll()
			return nil, &domain.LaunchError{Tool: c.Tool, Binary: path, Err: fmt.Errorf("stderr pipe: %w", err)}
		}
		p.stderr = pr
		childEnds = append(childEnds, pw)
		cmd.Stderr = pw
	}

	if err := cmd.Start(); err != nil {
		closeAll()
		return nil, &domain.LaunchError{Tool: c.Tool, Binary: path, Err: err}
	}
	for _, f := range childEnds {
		f.Close()
	}

	p.startedAt = time.Now()
	go p.reap()

	r.logger.Debug("Process started",
		zap.String("tool", c.Tool),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("command", c.String()))

	return p, nil
}

// resolveBinary finds the executable, looking in binDir before PATH for bare names
func resolveBinary(binary, binDir string) (string, error) {
	if binary == "" {
		return "", errors.New("empty binary path")
	}
	if strings.ContainsRune(binary, os.PathSeparator) || strings.ContainsRune(binary, '/') {
		return exec.LookPath(binary)
	}
	if binDir != "" {
		if p, err := exec.LookPath(filepath.Join(binDir, binary)); err == nil {
			return p, nil
		}
	}
	return exec.LookPath(binary)
}

// environWithBinDir returns env with binDir prepended to PATH
func environWithBinDir(env []string, binDir string) []string {
	if binDir == "" {
		return env
	}
	out := make([]string, 0, len(env)+1)
	current := ""
	for _, kv := range env {
		if k, v, ok := strings.Cut(kv, "="); ok && strings.EqualFold(k, "PATH") {
			current = v
			continue
		}
		out = append(out, kv)
	}
	path := binDir
	if current != "" {
		path += string(os.PathListSeparator) + current
	}
	return append(out, "PATH="+path)
}

// ManagedProcess owns one running OS process and the parent ends of its pipes
type ManagedProcess struct {
	command   domain.Command
	cmd       *exec.Cmd
	stdout    *os.File
	stderr    *os.File
	startedAt time.Time

	done     chan struct{}
	exitCode int

	termOnce sync.Once
	grace    time.Duration
	killWait time.Duration
	logger   *zap.Logger
}

func (p *ManagedProcess) reap() {
	err := p.cmd.Wait()
	code := ExitCodeInterrupted
	if p.cmd.ProcessState != nil {
		code = p.cmd.ProcessState.ExitCode()
	}
	var exitErr *exec.ExitError
	if err != nil && !errors.As(err, &exitErr) {
		p.logger.Warn("Process wait failed",
			zap.String("tool", p.command.Tool),
			zap.Error(err))
	}
	p.exitCode = code
	close(p.done)
}

// Command returns the invocation this process was started with
func (p *ManagedProcess) Command() domain.Command {
	return p.command
}

// Pid returns the OS process ID
func (p *ManagedProcess) Pid() int {
	return p.cmd.Process.Pid
}

// StartedAt returns when the process was launched
func (p *ManagedProcess) StartedAt() time.Time {
	return p.startedAt
}

// Stdout returns the captured stdout stream, or nil if it was not captured
func (p *ManagedProcess) Stdout() *os.File {
	return p.stdout
}

// Stderr returns the captured stderr stream, or nil if it was not captured
func (p *ManagedProcess) Stderr() *os.File {
	return p.stderr
}

// Done is closed once the process has exited and been reaped
func (p *ManagedProcess) Done() <-chan struct{} {
	return p.done
}

// Exited reports whether the process has been reaped
func (p *ManagedProcess) Exited() bool {
	select {
	case <-p.done:
		return true
	default:
		return false
	}
}

// Wait blocks until the process exits and returns its exit code. If ctx
// ends first it returns ExitCodeInterrupted; the process keeps running.
func (p *ManagedProcess) Wait(ctx context.Context) int {
	select {
	case <-p.done:
		return p.exitCode
	case <-ctx.Done():
		return ExitCodeInterrupted
	}
}

// Terminate asks the process group to stop, then kills it and any
// descendants once the grace period expires. Safe to call concurrently;
// later callers block until the first one finishes.
func (p *ManagedProcess) Terminate() {
	p.termOnce.Do(p.terminate)
}

func (p *ManagedProcess) terminate() {
	if p.Exited() {
		return
	}

	pid := p.cmd.Process.Pid
	if err := signalTerminate(p.cmd.Process); err != nil {
		p.logger.Debug("Graceful termination signal failed",
			zap.String("tool", p.command.Tool),
			zap.Int("pid", pid),
			zap.Error(err))
	}

	select {
	case <-p.done:
		return
	case <-time.After(p.grace):
	}

	p.logger.Warn("Process ignored termination request, killing",
		zap.String("tool", p.command.Tool),
		zap.Int("pid", pid),
		zap.Duration("grace", p.grace))

	descendants := collectDescendants(int32(pid))
	signalKill(p.cmd.Process)
	for _, d := range descendants {
		if err := d.Kill(); err != nil {
			p.logger.Debug("Failed to kill descendant", zap.Int32("pid", d.Pid), zap.Error(err))
		}
	}

	select {
	case <-p.done:
	case <-time.After(p.killWait):
		p.logger.Error("Process still running after kill",
			zap.String("tool", p.command.Tool),
			zap.Int("pid", pid))
	}
}

// collectDescendants walks the process tree below pid
func collectDescendants(pid int32) []*process.Process {
	root, err := process.NewProcess(pid)
	if err != nil {
		return nil
	}
	var out []*process.Process
	queue := []*process.Process{root}
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		children, err := cur.Children()
		if err != nil {
			continue
		}
		out = append(out, children...)
		queue = append(queue, children...)
	}
	return out
}

// closeStreams closes the parent ends of any captured pipes
func (p *ManagedProcess) closeStreams() {
	if p.stdout != nil {
		p.stdout.Close()
	}
	if p.stderr != nil {
		p.stderr.Close()
	}
}

// ProcessInfo is a point-in-time view of a managed process
type ProcessInfo struct {
	Tool       string    `json:"tool"`
	Pid        int       `json:"pid"`
	Command    string    `json:"command"`
	StartedAt  time.Time `json:"started_at"`
	RSSBytes   uint64    `json:"rss_bytes"`
	CPUPercent float64   `json:"cpu_percent"`
}

// Info samples resource usage of the process; usage fields stay zero if
// the process is gone.
func (p *ManagedProcess) Info() ProcessInfo {
	info := ProcessInfo{
		Tool:      p.command.Tool,
		Pid:       p.Pid(),
		Command:   p.command.String(),
		StartedAt: p.startedAt,
	}
	proc, err := process.NewProcess(int32(info.Pid))
	if err != nil {
		return info
	}
	if mem, err := proc.MemoryInfo(); err == nil && mem != nil {
		info.RSSBytes = mem.RSS
	}
	if cpu, err := proc.CPUPercent(); err == nil {
		info.CPUPercent = cpu
	}
	return info
}
