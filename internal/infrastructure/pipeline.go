package infrastructure

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// Pipeline is two processes joined by an OS pipe: upstream stdout feeds
// downstream stdin. Both stderr streams are captured.
type Pipeline struct {
	Upstream   *ManagedProcess
	Downstream *ManagedProcess
}

// StartPipeline launches upstream and downstream connected by a kernel pipe
// and registers both in active before returning. If either launch fails,
// whatever was started is terminated and a *domain.LaunchError is returned.
func (r *ProcessRunner) StartPipeline(ctx context.Context, upstream, downstream domain.Command, active *ProcessSet) (*Pipeline, error) {
	pr, pw, err := os.Pipe()
	if err != nil {
		return nil, &domain.LaunchError{Tool: upstream.Tool, Binary: upstream.Binary, Err: fmt.Errorf("pipe: %w", err)}
	}

	up, err := r.Start(ctx, upstream, StartOptions{Stdout: pw, CaptureStderr: true})
	if err != nil {
		pr.Close()
		pw.Close()
		return nil, err
	}
	active.Add(up)

	down, err := r.Start(ctx, downstream, StartOptions{Stdin: pr, CaptureStderr: true})

	// the children hold their own copies now
	pr.Close()
	pw.Close()

	if err != nil {
		r.logger.Warn("Downstream launch failed, stopping upstream",
			zap.String("upstream", upstream.Tool),
			zap.String("downstream", downstream.Tool),
			zap.Error(err))
		up.Terminate()
		up.closeStreams()
		active.Remove(up)
		return nil, err
	}
	active.Add(down)

	return &Pipeline{Upstream: up, Downstream: down}, nil
}

// Wait waits for both processes concurrently and returns their exit codes
// in upstream, downstream order. The error is the first nonzero exit as a
// *domain.ToolExitError. If ctx ends first the unfinished codes are
// ExitCodeInterrupted and ctx.Err() is returned.
func (p *Pipeline) Wait(ctx context.Context) ([]int, error) {
	codes := make([]int, 2)
	procs := []*ManagedProcess{p.Upstream, p.Downstream}

	var g errgroup.Group
	for i, proc := range procs {
		i, proc := i, proc
		g.Go(func() error {
			codes[i] = proc.Wait(ctx)
			if codes[i] == ExitCodeInterrupted && ctx.Err() != nil {
				return ctx.Err()
			}
			if codes[i] != 0 {
				return &domain.ToolExitError{Tool: proc.Command().Tool, Code: codes[i]}
			}
			return nil
		})
	}
	return codes, g.Wait()
}

// Terminate stops both processes in parallel
func (p *Pipeline) Terminate() {
	var g errgroup.Group
	g.Go(func() error { p.Upstream.Terminate(); return nil })
	g.Go(func() error { p.Downstream.Terminate(); return nil })
	g.Wait()
}
