package api

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"duet/internal/logging"
)

// LogsHandler streams log entries over a websocket, replaying the buffered
// tail first. The minimum level starts from the ?level query parameter and
// can be changed mid-stream with {"level": "warning"}.
type LogsHandler struct {
	Logger         *logging.Logger
	AuthToken      string
	AllowedOrigins []string
}

type logFilterMessage struct {
	Level string `json:"level"`
}

type levelFilter struct {
	mu    sync.RWMutex
	level logging.Level
}

func (f *levelFilter) Get() logging.Level {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.level
}

func (f *levelFilter) Set(level logging.Level) {
	f.mu.Lock()
	f.level = level
	f.mu.Unlock()
}

func (f *levelFilter) Allows(level logging.Level) bool {
	minLevel := f.Get()
	return minLevel == "" || logging.AtLeast(level, minLevel)
}

func (h *LogsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !requireWSToken(w, r, h.AuthToken, h.Logger) {
		return
	}

	filter := &levelFilter{}
	if rawLevel := r.URL.Query().Get("level"); rawLevel != "" {
		if level, ok := logging.ParseLevel(rawLevel); ok {
			filter.Set(level)
		}
	}

	if h.Logger == nil || h.Logger.Buffer() == nil {
		writeWSError(w, r, nil, h.Logger, wsError{
			Status:       http.StatusServiceUnavailable,
			Message:      "log stream unavailable",
			SendEnvelope: true,
		})
		return
	}

	output, cancel := h.Logger.Subscribe()
	defer cancel()

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

	snapshot := h.Logger.Buffer().List()
	writer, err := startWSWriteLoop(wsStreamConfig[logging.Entry]{
		Conn:   conn,
		Output: output,
		Logger: h.Logger,
		PreWrite: func(conn *websocket.Conn) error {
			return writeLogSnapshot(conn, snapshot, filter)
		},
		BuildPayload: func(entry logging.Entry) (any, bool) {
			if !filter.Allows(entry.Level) {
				return nil, false
			}
			return entry, true
		},
	})
	if err != nil {
		writeWSError(w, r, conn, h.Logger, wsError{
			Status:       http.StatusInternalServerError,
			Message:      "log stream unavailable",
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
		var payload logFilterMessage
		if err := json.Unmarshal(msg, &payload); err != nil {
			continue
		}
		level, ok := logging.ParseLevel(payload.Level)
		if !ok {
			filter.Set("")
			continue
		}
		filter.Set(level)
	}
}

func writeLogSnapshot(conn *websocket.Conn, entries []logging.Entry, filter *levelFilter) error {
	for _, entry := range entries {
		if !filter.Allows(entry.Level) {
			continue
		}
		if err := conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout)); err != nil {
			return err
		}
		if err := conn.WriteJSON(entry); err != nil {
			return err
		}
	}
	return nil
}
