package shared

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/joe/scpi/internal/transfer"
)

// TransferEventMsg wraps a transfer.Event for use as a tea.Msg.
type TransferEventMsg struct {
	Event transfer.Event
}

// EventBridge adapts executor events to bubble tea messages.
// It implements transfer.EventEmitter. Emit never blocks: events queue up, and runs of
// TaskProgress events collapse to the newest one so a slow UI only loses intermediate
// progress, never a task boundary.
type EventBridge struct {
	mu     sync.Mutex
	queue  []tea.Msg
	signal chan struct{}
	closed bool
}

// NewEventBridge creates a new event bridge.
func NewEventBridge() *EventBridge {
	return &EventBridge{
		signal: make(chan struct{}, 1),
	}
}

// Emit implements transfer.EventEmitter.
func (b *EventBridge) Emit(event transfer.Event) {
	b.mu.Lock()

	if b.closed {
		b.mu.Unlock()

		return
	}

	msg := TransferEventMsg{Event: event}

	_, isProgress := event.(transfer.TaskProgress)
	if n := len(b.queue); isProgress && n > 0 && isProgressMsg(b.queue[n-1]) {
		b.queue[n-1] = msg
	} else {
		b.queue = append(b.queue, msg)
	}

	b.mu.Unlock()

	b.wake()
}

func isProgressMsg(msg tea.Msg) bool {
	eventMsg, ok := msg.(TransferEventMsg)
	if !ok {
		return false
	}

	_, ok = eventMsg.Event.(transfer.TaskProgress)

	return ok
}

func (b *EventBridge) wake() {
	select {
	case b.signal <- struct{}{}:
	default:
	}
}

// Pending returns how many messages are queued.
func (b *EventBridge) Pending() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return len(b.queue)
}

// Next blocks until a message is queued and returns it. It returns nil, false once the
// bridge is closed and drained.
func (b *EventBridge) Next() (tea.Msg, bool) {
	for {
		b.mu.Lock()

		if len(b.queue) > 0 {
			msg := b.queue[0]
			b.queue[0] = nil
			b.queue = b.queue[1:]
			b.mu.Unlock()

			return msg, true
		}

		if b.closed {
			b.mu.Unlock()

			return nil, false
		}

		b.mu.Unlock()

		<-b.signal
	}
}

// ListenCmd returns a tea.Cmd that blocks until an event is received.
// Use this after processing an event to continue listening.
func (b *EventBridge) ListenCmd() tea.Cmd {
	return func() tea.Msg {
		msg, ok := b.Next()
		if !ok {
			return nil
		}

		return msg
	}
}

// Close stops accepting events. Queued events are still delivered.
func (b *EventBridge) Close() {
	b.mu.Lock()
	b.closed = true
	b.mu.Unlock()

	b.wake()
}
