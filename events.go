package mdexport

import (
	"time"
)

// Event is emitted during an export. It is one of EventProgress,
// EventError or EventSuccess.
type Event interface {
	isEvent()
}

// EventProgress reports progress of the running export. Percentage never
// decreases within one export.
type EventProgress struct {
	Session    string
	Message    string
	Percentage float64
	Format     Format
	Elapsed    time.Duration
}

// EventError ends an export that failed or was cancelled.
type EventError struct {
	Session string
	Format  Format
	Err     error
}

// EventSuccess ends an export that produced its artifact.
type EventSuccess struct {
	Session  string
	Filename string
	Format   Format
	Duration time.Duration
}

func (EventProgress) isEvent() {}
func (EventError) isEvent()    {}
func (EventSuccess) isEvent()  {}

// EventHandler receives export events synchronously, in order.
type EventHandler func(Event)
