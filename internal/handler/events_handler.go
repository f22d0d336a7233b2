package handler

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/miss-electronics/proctor-agent/internal/session"
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

// Inbound actions on the event stream. The host environment (browser page)
// forwards its ambient signals here; this is the subscribe capability keyed
// to the session lifetime.
const (
	actionViolation  = "violation"
	actionFullscreen = "fullscreen"
	actionPing       = "ping"
)

// inboundEvent is a front end → agent message.
type inboundEvent struct {
	Action string `json:"action"`
	// Kind is "visibility" or "focus" for violation actions.
	Kind string `json:"kind,omitempty"`
	// Engaged reports the new fullscreen state for fullscreen actions.
	Engaged bool `json:"engaged,omitempty"`
}

// pongEvent answers pings on the same stream the session events use.
type pongEvent struct {
	Event string `json:"event"`
}

// EventsHandler bridges the WebSocket event stream to the session machine:
// inbound host signals feed the violation monitor, outbound events carry
// state snapshots, notifications, and redirects.
type EventsHandler struct {
	ctrl     *session.Controller
	monitor  *session.Monitor
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewEventsHandler creates a new EventsHandler.
func NewEventsHandler(ctrl *session.Controller, monitor *session.Monitor, log zerolog.Logger, allowedOrigins []string) *EventsHandler {
	return &EventsHandler{
		ctrl:     ctrl,
		monitor:  monitor,
		log:      log.With().Str("component", "events_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// Stream godoc
// WS /ws/v1/session/events
// Upgrades to WebSocket. The subscription is scoped to the connection: it is
// acquired on upgrade and released when the peer goes away.
func (h *EventsHandler) Stream(c *gin.Context) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	events, cancel := h.ctrl.Subscribe()
	defer cancel()

	h.log.Info().Str("remote", conn.RemoteAddr().String()).Msg("Front end connected")

	// outbound serializes writes: session events and pongs share one writer.
	outbound := make(chan any, 8)
	done := make(chan struct{})

	go func() {
		defer close(done)
		for {
			select {
			case ev, ok := <-events:
				if !ok {
					return
				}
				if err := writeTyped(conn, ev); err != nil {
					return
				}
			case msg, ok := <-outbound:
				if !ok {
					return
				}
				if err := writeTyped(conn, msg); err != nil {
					return
				}
			}
		}
	}()

	// Deliver the current snapshot immediately so a reconnecting front end
	// renders without waiting for the next mutation.
	outbound <- session.Event{Type: session.EventState, State: h.ctrl.Snapshot()}

	for {
		var msg inboundEvent
		if err := readJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn().Err(err).Msg("Unexpected close")
			} else {
				h.log.Debug().Msg("Connection closed")
			}
			break
		}

		switch msg.Action {
		case actionViolation:
			h.handleViolation(msg.Kind)
		case actionFullscreen:
			h.ctrl.SetFullscreen(msg.Engaged)
			if !msg.Engaged {
				h.monitor.Signal(session.ViolationFullscreen)
			}
		case actionPing:
			select {
			case outbound <- pongEvent{Event: "pong"}:
			default:
			}
		default:
			h.log.Warn().Str("action", msg.Action).Msg("Unknown action")
		}
	}

	close(outbound)
	<-done
}

// handleViolation maps a reported signal kind onto the violation monitor.
func (h *EventsHandler) handleViolation(kind string) {
	switch kind {
	case "visibility":
		h.monitor.Signal(session.ViolationVisibility)
	case "focus":
		h.monitor.Signal(session.ViolationFocus)
	default:
		h.log.Warn().Str("kind", kind).Msg("Unknown violation kind")
	}
}

// writeTyped sends a JSON payload with a write deadline.
func writeTyped(conn *websocket.Conn, v any) error {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	return conn.WriteJSON(v)
}

// readJSON reads and decodes one message with a read deadline.
func readJSON(conn *websocket.Conn, v any) error {
	conn.SetReadDeadline(time.Now().Add(5 * time.Minute))
	return conn.ReadJSON(v)
}
