package websocket

import (
	"encoding/json"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing   Action = "ping"
	ActionPause  Action = "pause"
	ActionResume Action = "resume"
)

// RequestPayload is the single client → server message shape.
type RequestPayload struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError        Event = "error"
	EventTick         Event = "tick"
	EventPaused       Event = "paused"
	EventResumed      Event = "resumed"
	EventSubmitted    Event = "submitted"
	EventSubmitFailed Event = "submit_failed"
	EventPong         Event = "pong"
)

// TickResponse carries the countdown once per second.
type TickResponse struct {
	Event            Event `json:"event"`
	RemainingSeconds int   `json:"remaining_seconds"`
}

// StateResponse signals a pause-state change.
type StateResponse struct {
	Event Event `json:"event"`
}

// TerminalResponse closes out the session: scoring payload and a
// navigation intent on success, error message and the dashboard
// intent on failure.
type TerminalResponse struct {
	Event    Event           `json:"event"`
	ExamID   string          `json:"exam_id"`
	Scoring  json.RawMessage `json:"scoring,omitempty"`
	Error    string          `json:"error,omitempty"`
	Navigate string          `json:"navigate"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
