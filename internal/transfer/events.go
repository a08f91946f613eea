package transfer

import "time"

// Event is the interface implemented by all transfer events.
type Event interface {
	isEvent()
}

// EventEmitter is the interface for emitting events.
type EventEmitter interface {
	Emit(event Event)
}

// EmitterFunc adapts a function to EventEmitter.
type EmitterFunc func(Event)

// Emit calls f(event).
func (f EmitterFunc) Emit(event Event) {
	f(event)
}

// TransferStarted is emitted once before the first task runs.
type TransferStarted struct {
	Tasks      int
	FilesTotal int
	BytesTotal uint64
}

func (TransferStarted) isEvent() {}

// TaskStarted is emitted when a task begins.
type TaskStarted struct {
	Task CopyTask
}

func (TaskStarted) isEvent() {}

// TaskProgress mirrors every progress callback.
type TaskProgress struct {
	Progress Progress
}

func (TaskProgress) isEvent() {}

// TaskCompleted is emitted when a task finishes successfully.
type TaskCompleted struct {
	Task     CopyTask
	Duration time.Duration
	// Created is false for a directory task whose directory already existed.
	Created bool
}

func (TaskCompleted) isEvent() {}

// TransferCompleted is emitted once with the final result, whatever the outcome.
type TransferCompleted struct {
	Result Result
}

func (TransferCompleted) isEvent() {}

// ErrorOccurred is emitted when a task fails or the run is cancelled.
type ErrorOccurred struct {
	Task *CopyTask
	Err  error
}

func (ErrorOccurred) isEvent() {}
