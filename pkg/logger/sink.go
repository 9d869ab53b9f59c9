package logger

import (
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/internal/domain"
)

// TeeSink fans every line out to several sinks
type TeeSink struct {
	sinks []domain.LogSink
}

// Tee combines sinks; nil entries are skipped
func Tee(sinks ...domain.LogSink) *TeeSink {
	t := &TeeSink{}
	for _, s := range sinks {
		if s != nil {
			t.sinks = append(t.sinks, s)
		}
	}
	return t
}

// Append forwards line to every sink
func (t *TeeSink) Append(line string) {
	for _, s := range t.sinks {
		s.Append(line)
	}
}

// BeginSession forwards to every sink that journals sessions
func (t *TeeSink) BeginSession(id, url string) {
	for _, s := range t.sinks {
		if j, ok := s.(domain.SessionJournal); ok {
			j.BeginSession(id, url)
		}
	}
}

// EndSession forwards to every sink that journals sessions
func (t *TeeSink) EndSession(id string, state domain.SessionState, message string) {
	for _, s := range t.sinks {
		if j, ok := s.(domain.SessionJournal); ok {
			j.EndSession(id, state, message)
		}
	}
}

// ZapSink writes tool output lines to a zap logger at debug level
type ZapSink struct {
	logger *zap.Logger
}

// NewZapSink creates a sink over logger
func NewZapSink(logger *zap.Logger) *ZapSink {
	return &ZapSink{logger: logger}
}

// Append logs line
func (s *ZapSink) Append(line string) {
	s.logger.Debug("output", zap.String("line", line))
}
