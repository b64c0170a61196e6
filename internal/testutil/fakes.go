// Package testutil provides in-memory fakes for the pipeline collaborators.
package testutil

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/sin-text/backend/internal/inference"
	"github.com/sin-text/backend/internal/models"
	"github.com/sin-text/backend/internal/progress"
)

// Reply scripts one answer of FakeCompleter.
type Reply struct {
	Text  string
	Model string
	Err   error
	Delay time.Duration
	// IgnoreContext keeps sleeping for Delay even after ctx is done.
	IgnoreContext bool
}

// Call records one request received by FakeCompleter.
type Call struct {
	System string
	User   string
}

// FakeCompleter answers chat completions from a script. Replies are matched
// by a substring of the user message when Match is set, otherwise served in
// call order; the last reply repeats.
type FakeCompleter struct {
	mu      sync.Mutex
	Replies []Reply
	Match   map[string]Reply
	calls   []Call
}

func NewFakeCompleter(replies ...Reply) *FakeCompleter {
	return &FakeCompleter{Replies: replies}
}

func (f *FakeCompleter) Complete(ctx context.Context, system, user string) (*inference.Completion, error) {
	f.mu.Lock()
	idx := len(f.calls)
	f.calls = append(f.calls, Call{System: system, User: user})
	reply := f.pick(idx, user)
	f.mu.Unlock()

	if reply.Delay > 0 {
		if reply.IgnoreContext {
			time.Sleep(reply.Delay)
		} else {
			select {
			case <-time.After(reply.Delay):
			case <-ctx.Done():
				return nil, models.InferenceFailure(models.ReasonTimeout, "fake request cancelled", ctx.Err())
			}
		}
	}
	if reply.Err != nil {
		return nil, reply.Err
	}

	model := reply.Model
	if model == "" {
		model = "fake/model"
	}
	return &inference.Completion{Text: reply.Text, Model: model}, nil
}

func (f *FakeCompleter) pick(idx int, user string) Reply {
	for key, r := range f.Match {
		if strings.Contains(user, key) {
			return r
		}
	}
	if len(f.Replies) == 0 {
		return Reply{Text: "<p>ok</p>"}
	}
	if idx >= len(f.Replies) {
		idx = len(f.Replies) - 1
	}
	return f.Replies[idx]
}

// Calls returns a copy of the recorded requests.
func (f *FakeCompleter) Calls() []Call {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Call, len(f.calls))
	copy(out, f.calls)
	return out
}

// FakeExtractor returns canned text, or an extraction failure for empty
// files when Text is empty.
type FakeExtractor struct {
	Text  string
	Err   error
	Paths []string
}

func (f *FakeExtractor) Extract(_ context.Context, path string) (string, error) {
	f.Paths = append(f.Paths, path)
	if f.Err != nil {
		return "", f.Err
	}
	if f.Text == "" {
		return "", models.ExtractionFailure("no text extracted", nil)
	}
	return f.Text, nil
}

// FakeConverter returns the HTML bytes prefixed with a marker.
type FakeConverter struct {
	mu     sync.Mutex
	Err    error
	Inputs []string
}

func (f *FakeConverter) Convert(_ context.Context, htmlDoc string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Inputs = append(f.Inputs, htmlDoc)
	if f.Err != nil {
		return nil, f.Err
	}
	return []byte("DOCX\n" + htmlDoc), nil
}

// Recorder is a progress.Sink that keeps every event in memory.
type Recorder struct {
	mu       sync.Mutex
	events   []models.ProgressEvent
	closes   int
	closed   bool
	FailWith error // returned from every Emit when set
}

var _ progress.Sink = (*Recorder)(nil)

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Emit(evt models.ProgressEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return progress.ErrClosed
	}
	if r.FailWith != nil {
		return r.FailWith
	}
	r.events = append(r.events, evt)
	return nil
}

func (r *Recorder) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closes++
	r.closed = true
	return nil
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []models.ProgressEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.ProgressEvent, len(r.events))
	copy(out, r.events)
	return out
}

// CloseCount reports how many times Close was called.
func (r *Recorder) CloseCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.closes
}

// Markers returns the numeric progress values in emission order.
func (r *Recorder) Markers() []int {
	var out []int
	for _, evt := range r.Events() {
		if evt.Progress != nil {
			out = append(out, *evt.Progress)
		}
	}
	return out
}

// Terminal returns the terminal events (complete or error).
func (r *Recorder) Terminal() []models.ProgressEvent {
	var out []models.ProgressEvent
	for _, evt := range r.Events() {
		if evt.Type == models.EventComplete || evt.Type == models.EventError {
			out = append(out, evt)
		}
	}
	return out
}

// ErrBoom is a generic failure for tests.
var ErrBoom = errors.New("boom")
