package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duet/internal/event"
	"duet/internal/logging"
)

const defaultReplayCount = 64

// EventsHandler streams conversation events over a websocket. On connect
// the newest history entries are replayed so a late joiner sees the
// conversation so far, then live events follow. A message published while
// the replay snapshot is taken can arrive twice; consumers key messages on
// seq. Clients narrow delivery with {"subscribe": ["message_posted"]}.
type EventsHandler struct {
	Bus            *event.Bus[event.Event]
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
	Replay         int // history entries replayed on connect, 0 means defaultReplayCount
}

type eventSubscribeMessage struct {
	Subscribe []string `json:"subscribe"`
}

type eventFilter struct {
	mu    sync.RWMutex
	types map[string]struct{}
}

func newEventFilter(allowed map[string]struct{}) *eventFilter {
	types := make(map[string]struct{}, len(allowed))
	for eventType := range allowed {
		types[eventType] = struct{}{}
	}
	return &eventFilter{types: types}
}

func (filter *eventFilter) Allows(eventType string) bool {
	if filter == nil {
		return true
	}
	filter.mu.RLock()
	defer filter.mu.RUnlock()
	if len(filter.types) == 0 {
		return false
	}
	_, ok := filter.types[eventType]
	return ok
}

func (filter *eventFilter) Set(subscriptions []string, allowed map[string]struct{}) {
	if filter == nil {
		return
	}
	types := make(map[string]struct{})
	for _, eventType := range subscriptions {
		if _, ok := allowed[eventType]; ok {
			types[eventType] = struct{}{}
		}
	}
	filter.mu.Lock()
	filter.types = types
	filter.mu.Unlock()
}

func knownEventTypes() map[string]struct{} {
	return map[string]struct{}{
		event.TypeConversationStarted: {},
		event.TypeAgentReady:          {},
		event.TypeInstructionsSent:    {},
		event.TypeMessagePosted:       {},
		event.TypeTurnSkipped:         {},
		event.TypePersonasReloaded:    {},
		event.TypeConversationEnded:   {},
	}
}

func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}

	conn, err := upgradeWebSocket(w, r, h.AllowedOrigins)
	if err != nil {
		logWSError(h.Logger, r, wsError{
			Status:  http.StatusBadRequest,
			Message: "websocket upgrade failed",
			Err:     err,
		})
		return
	}
	defer conn.Close()

	if h.Bus == nil {
		writeWSError(w, r, conn, h.Logger, wsError{
			Status:       http.StatusServiceUnavailable,
			Message:      "event bus unavailable",
			SendEnvelope: true,
		})
		return
	}

	allowed := knownEventTypes()
	filter := newEventFilter(allowed)

	events, cancel := h.Bus.Subscribe()
	defer cancel()

	replay := h.Replay
	if replay == 0 {
		replay = defaultReplayCount
	}
	backlog := h.Bus.Tail(replay)

	writer, err := startWSWriteLoop(wsStreamConfig[event.Event]{
		Conn:   conn,
		Output: events,
		Logger: h.Logger,
		PreWrite: func(conn *websocket.Conn) error {
			for _, ev := range backlog {
				if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
					return err
				}
				if err := conn.WriteJSON(ev); err != nil {
					return err
				}
			}
			return nil
		},
		BuildPayload: func(ev event.Event) (any, bool) {
			if ev == nil || !filter.Allows(ev.Type()) {
				return nil, false
			}
			return ev, true
		},
	})
	if err != nil {
		writeWSError(w, r, conn, h.Logger, wsError{
			Status:       http.StatusInternalServerError,
			Message:      "event stream unavailable",
			Err:          err,
			SendEnvelope: true,
		})
		return
	}
	defer writer.Stop()

	keepAlive(conn)
	for {
		msgType, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		var payload eventSubscribeMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		filter.Set(payload.Subscribe, allowed)
	}
}
