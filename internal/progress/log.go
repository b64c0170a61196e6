package progress

import (
	"sync"

	"github.com/rs/zerolog"
	"github.com/sin-text/backend/internal/models"
)

// LogSink reports events through a logger. Used by the command-line runner.
type LogSink struct {
	log    zerolog.Logger
	mu     sync.Mutex
	closed bool
}

func NewLogSink(log zerolog.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Emit(evt models.ProgressEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}

	e := s.log.Info()
	if evt.Type == models.EventError {
		e = s.log.Error()
	}
	e = e.Str("type", string(evt.Type))
	if evt.Progress != nil {
		e = e.Int("progress", *evt.Progress)
	}
	if evt.Result != nil {
		e = e.Str("file", evt.Result.FileName).Str("model", evt.Result.ModelUsed)
	}
	e.Msg(evt.Message)
	return nil
}

func (s *LogSink) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}
