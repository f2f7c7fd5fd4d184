package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/prepnest/exam-engine/internal/middleware"
	"github.com/prepnest/exam-engine/internal/session"
	ws "github.com/prepnest/exam-engine/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allowedOrigins slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams the countdown and terminal session events to the
// SPA.
type WSHandler struct {
	registry *session.Registry
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(registry *session.Registry, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		registry: registry,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/student/exams/:exam_id/stream
// Pushes tick/paused/resumed events while the session runs and a
// terminal submitted/submit_failed event carrying the navigation
// intent. Accepts ping/pause/resume actions from the client.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	ctrl, ok := h.registry.Get(claims.UserID, c.Param("exam_id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no session for this exam"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Int("student_id", claims.UserID).
		Str("exam_id", c.Param("exam_id")).
		Logger()

	events, cancel := ctrl.Subscribe()
	defer cancel()

	wsLog.Info().Msg("Student connected")

	// Writer pump: session events → socket. Exits when the listener
	// channel closes on session teardown; closing the connection then
	// unblocks the reader loop below.
	done := make(chan struct{})
	go func() {
		defer close(done)
		defer conn.Close()
		for ev := range events {
			if werr := h.writeEvent(conn, ev); werr != nil {
				wsLog.Debug().Err(werr).Msg("Write failed, dropping stream")
				return
			}
			if ev.Type == session.EventSubmitted || ev.Type == session.EventSubmitFailed {
				return
			}
		}
	}()

	// Reader loop: client actions.
	for {
		var msg ws.RequestPayload
		if rerr := ws.ReadJSON(conn, &msg); rerr != nil {
			if websocket.IsUnexpectedCloseError(rerr, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(rerr).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case ws.ActionPing:
			_ = ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		case ws.ActionPause:
			if perr := ctrl.Pause(); perr != nil {
				_ = ws.WriteError(conn, perr.Error())
			}
		case ws.ActionResume:
			if perr := ctrl.Resume(); perr != nil {
				_ = ws.WriteError(conn, perr.Error())
			}
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			_ = ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}

		select {
		case <-done:
			return
		default:
		}
	}

	<-done
}

func (h *WSHandler) writeEvent(conn *websocket.Conn, ev session.Event) error {
	switch ev.Type {
	case session.EventTick:
		return ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventTick, RemainingSeconds: ev.Remaining})
	case session.EventPaused:
		return ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventPaused})
	case session.EventResumed:
		return ws.WriteTyped(conn, ws.TickResponse{Event: ws.EventResumed, RemainingSeconds: ev.Remaining})
	case session.EventSubmitted:
		return ws.WriteTyped(conn, ws.TerminalResponse{
			Event:    ws.EventSubmitted,
			ExamID:   ev.ExamID,
			Scoring:  ev.Scoring,
			Navigate: ev.Navigate,
		})
	case session.EventSubmitFailed:
		return ws.WriteTyped(conn, ws.TerminalResponse{
			Event:    ws.EventSubmitFailed,
			ExamID:   ev.ExamID,
			Error:    ev.Error,
			Navigate: ev.Navigate,
		})
	default:
		return nil
	}
}
