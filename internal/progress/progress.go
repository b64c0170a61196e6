// Package progress implements the one-directional event channel that reports a
// pipeline run to the waiting client.
package progress

import (
	"errors"
	"sync"
	"time"

	"github.com/sin-text/backend/internal/models"
)

// ErrClosed is returned by Emit once a sink has been closed.
var ErrClosed = errors.New("progress: sink closed")

// Sink receives progress events in order. Close must be safe to call more than once.
type Sink interface {
	Emit(evt models.ProgressEvent) error
	Close() error
}

// Emit sends a status line, with a numeric marker when percent is given.
func Emit(sink Sink, message string, percent ...int) error {
	evt := models.ProgressEvent{Type: models.EventStatus, Message: message}
	if len(percent) > 0 {
		evt.Type = models.EventProgress
		evt.Progress = models.Percent(percent[0])
	}
	return sink.Emit(evt)
}

// Complete sends the terminal success event.
func Complete(sink Sink, message string, result *models.RunResult) error {
	return sink.Emit(models.ProgressEvent{
		Type:     models.EventComplete,
		Message:  message,
		Progress: models.Percent(100),
		Result:   result,
	})
}

// Fail sends the terminal error event.
func Fail(sink Sink, err error) error {
	evt := models.ProgressEvent{Type: models.EventError, Message: err.Error()}
	var pe *models.PipelineError
	if errors.As(err, &pe) {
		evt.Error = pe.Info()
	}
	return sink.Emit(evt)
}

func stamp(evt models.ProgressEvent) models.ProgressEvent {
	if evt.Timestamp.IsZero() {
		evt.Timestamp = time.Now()
	}
	return evt
}

// bestEffort forwards events until the first write failure, then drops the
// rest. A client that went away must not abort the run.
type bestEffort struct {
	mu     sync.Mutex
	inner  Sink
	failed bool
	onErr  func(error)
}

// BestEffort wraps sink so write failures are reported once through onErr and
// swallowed afterwards.
func BestEffort(sink Sink, onErr func(error)) Sink {
	return &bestEffort{inner: sink, onErr: onErr}
}

func (b *bestEffort) Emit(evt models.ProgressEvent) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.failed {
		return nil
	}
	if err := b.inner.Emit(evt); err != nil {
		b.failed = true
		if b.onErr != nil {
			b.onErr(err)
		}
	}
	return nil
}

func (b *bestEffort) Close() error {
	return b.inner.Close()
}
