package sync

import (
	gosync "sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// PassState is the phase of the reconciliation state machine.
type PassState int

const (
	Idle PassState = iota
	Fetching
	Diffing
	Persisting
	Notifying
)

func (s PassState) String() string {
	switch s {
	case Idle:
		return "idle"
	case Fetching:
		return "fetching"
	case Diffing:
		return "diffing"
	case Persisting:
		return "persisting"
	case Notifying:
		return "notifying"
	default:
		return "unknown"
	}
}

// EventType identifies what an Event reports.
type EventType int

const (
	// PassCompleted follows every pass that got past the in-flight guard.
	PassCompleted EventType = iota
	// ReadStateChanged follows a committed local mark-read.
	ReadStateChanged
	// SignedOut follows a sign-out.
	SignedOut
	// IntervalChanged follows a user or server change of the poll interval.
	IntervalChanged
)

func (t EventType) String() string {
	switch t {
	case PassCompleted:
		return "pass_completed"
	case ReadStateChanged:
		return "read_state_changed"
	case SignedOut:
		return "signed_out"
	case IntervalChanged:
		return "interval_changed"
	default:
		return "unknown"
	}
}

// Event is published to subscribers after engine state changes.
type Event struct {
	Type EventType
	At   time.Time

	// PassID and NewCount are set for PassCompleted.
	PassID   string
	NewCount int

	// Err is the pass or remote failure, if any.
	Err error

	// Interval is set for IntervalChanged.
	Interval time.Duration

	// ServerSuggested marks an interval widened by the server.
	ServerSuggested bool
}

// EventMsg wraps an Event as a tea.Msg.
type EventMsg struct {
	Event
}

// hub fans events out to subscribers without blocking the publisher.
type hub struct {
	mu   gosync.Mutex
	next int
	subs map[int]chan Event
}

func newHub() *hub {
	return &hub{subs: make(map[int]chan Event)}
}

func (h *hub) subscribe(buffer int) (<-chan Event, func()) {
	if buffer < 1 {
		buffer = 1
	}
	ch := make(chan Event, buffer)

	h.mu.Lock()
	id := h.next
	h.next++
	h.subs[id] = ch
	h.mu.Unlock()

	var once gosync.Once
	cancel := func() {
		once.Do(func() {
			h.mu.Lock()
			delete(h.subs, id)
			h.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (h *hub) publish(ev Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, ch := range h.subs {
		select {
		case ch <- ev:
		default:
			// Slow subscriber; drop rather than stall the engine.
		}
	}
}

// WaitForEvent returns a tea.Cmd that waits for the next event on ch.
// Call it again after handling each EventMsg to keep listening.
func WaitForEvent(ch <-chan Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return EventMsg{Event: ev}
	}
}
