package session

import (
	"encoding/json"
	"sync"
)

// EventType enumerates events pushed to session subscribers (the
// WebSocket stream).
type EventType string

const (
	EventTick         EventType = "tick"
	EventPaused       EventType = "paused"
	EventResumed      EventType = "resumed"
	EventSubmitted    EventType = "submitted"
	EventSubmitFailed EventType = "submit_failed"
)

// Navigation intents attached to terminal events, consumed by the
// routing layer on the client.
const (
	NavigateResults   = "results"
	NavigateDashboard = "dashboard"
)

// Event is a session lifecycle or countdown notification.
type Event struct {
	Type      EventType       `json:"event"`
	Remaining int             `json:"remaining_seconds,omitempty"`
	ExamID    string          `json:"exam_id,omitempty"`
	Scoring   json.RawMessage `json:"scoring,omitempty"`
	Error     string          `json:"error,omitempty"`
	Navigate  string          `json:"navigate,omitempty"`
}

// listenerSet fans events out to subscribers. Sends never block: a
// subscriber that stops draining loses events rather than stalling
// the countdown.
type listenerSet struct {
	mu    sync.Mutex
	next  int
	chans map[int]chan Event
}

func newListenerSet() *listenerSet {
	return &listenerSet{chans: make(map[int]chan Event)}
}

func (l *listenerSet) subscribe() (<-chan Event, func()) {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := l.next
	l.next++
	ch := make(chan Event, 16)
	l.chans[id] = ch

	cancel := func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		if _, ok := l.chans[id]; ok {
			delete(l.chans, id)
			close(ch)
		}
	}
	return ch, cancel
}

func (l *listenerSet) broadcast(ev Event) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, ch := range l.chans {
		select {
		case ch <- ev:
		default:
		}
	}
}

func (l *listenerSet) closeAll() {
	l.mu.Lock()
	defer l.mu.Unlock()
	for id, ch := range l.chans {
		delete(l.chans, id)
		close(ch)
	}
}
