package models

import "time"

// EventType classifies a progress event on the wire.
type EventType string

const (
	EventStatus   EventType = "status"
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ProgressEvent is the envelope pushed over the progress channel.
// Progress is nil for plain status lines.
type ProgressEvent struct {
	Type      EventType  `json:"type"`
	Message   string     `json:"message,omitempty"`
	Progress  *int       `json:"progress,omitempty"`
	Result    *RunResult `json:"result,omitempty"`
	Error     *ErrorInfo `json:"error,omitempty"`
	Timestamp time.Time  `json:"timestamp"`
}

// ErrorInfo is the machine-readable part of an error event.
type ErrorInfo struct {
	Kind   string `json:"kind"`
	Reason string `json:"reason,omitempty"`
	Stage  int    `json:"stage,omitempty"`
}

// Percent returns a pointer to p, for building events inline.
func Percent(p int) *int {
	return &p
}
