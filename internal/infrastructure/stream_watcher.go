package infrastructure

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

const initialLineBuffer = 64 * 1024

// WatchOptions configures how one stream is consumed
type WatchOptions struct {
	Label         string               // prefixes every forwarded line as "[label] "
	ParseProgress bool                 // look for "NN%" figures
	OnProgress    func(percent float64) // called for each figure found
}

// StreamWatcher drains process output line by line into a log sink
type StreamWatcher struct {
	sink        domain.LogSink
	maxLineSize int
	logger      *zap.Logger
}

// NewStreamWatcher creates a new stream watcher. Lines longer than
// maxLineSize bytes end the line scanning for that stream.
func NewStreamWatcher(sink domain.LogSink, maxLineSize int64, logger *zap.Logger) *StreamWatcher {
	if maxLineSize < initialLineBuffer {
		maxLineSize = initialLineBuffer
	}
	return &StreamWatcher{
		sink:        sink,
		maxLineSize: int(maxLineSize),
		logger:      logger,
	}
}

// WatchHandle tracks one running watcher
type WatchHandle struct {
	done    chan struct{}
	lines   atomic.Int64
	samples atomic.Int64
}

// Join blocks until the stream has been read to EOF
func (h *WatchHandle) Join() {
	<-h.done
}

// Done is closed when the stream has been fully drained
func (h *WatchHandle) Done() <-chan struct{} {
	return h.done
}

// Lines returns the number of lines forwarded so far
func (h *WatchHandle) Lines() int64 {
	return h.lines.Load()
}

// Samples returns the number of progress figures reported so far
func (h *WatchHandle) Samples() int64 {
	return h.samples.Load()
}

// Watch consumes r on its own goroutine until EOF, then closes it.
// The stream is always drained to the end so the writer never blocks.
func (w *StreamWatcher) Watch(r io.ReadCloser, opts WatchOptions) *WatchHandle {
	h := &WatchHandle{done: make(chan struct{})}
	go func() {
		defer close(h.done)
		defer r.Close()
		defer func() {
			if rec := recover(); rec != nil {
				w.logger.Error("Stream watcher panicked",
					zap.String("label", opts.Label),
					zap.Any("panic", rec))
				io.Copy(io.Discard, r)
			}
		}()
		w.consume(r, opts, h)
	}()
	return h
}

func (w *StreamWatcher) consume(r io.Reader, opts WatchOptions, h *WatchHandle) {
	prefix := ""
	if opts.Label != "" {
		prefix = "[" + opts.Label + "] "
	}

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, initialLineBuffer), w.maxLineSize)
	scanner.Split(ScanLinesOrCR)

	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		h.lines.Add(1)
		w.forward(prefix + line)

		if opts.ParseProgress {
			if pct, ok := ParsePercent(line); ok {
				h.samples.Add(1)
				w.report(opts, pct)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		if errors.Is(err, bufio.ErrTooLong) {
			w.forward(fmt.Sprintf("%soutput line exceeds %d bytes, discarding the rest of this stream", prefix, w.maxLineSize))
		} else {
			// the read end reports an error once the process is gone; nothing to salvage
			w.logger.Debug("Stream read ended with error",
				zap.String("label", opts.Label),
				zap.Error(err))
		}
		io.Copy(io.Discard, r)
	}
}

func (w *StreamWatcher) forward(line string) {
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("Log sink panicked", zap.Any("panic", rec))
		}
	}()
	w.sink.Append(line)
}

func (w *StreamWatcher) report(opts WatchOptions, pct float64) {
	if opts.OnProgress == nil {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			w.logger.Error("Progress callback panicked",
				zap.String("label", opts.Label),
				zap.Any("panic", rec))
		}
	}()
	opts.OnProgress(pct)
}

// ScanLinesOrCR is a bufio.SplitFunc that ends a line at '\n' or '\r'.
// yt-dlp redraws its progress line with bare carriage returns. A "\r\n"
// pair yields an extra empty token, which callers skip.
func ScanLinesOrCR(data []byte, atEOF bool) (advance int, token []byte, err error) {
	if atEOF && len(data) == 0 {
		return 0, nil, nil
	}
	if i := bytes.IndexAny(data, "\r\n"); i >= 0 {
		return i + 1, data[:i], nil
	}
	if atEOF {
		return len(data), data, nil
	}
	return 0, nil, nil
}
