package api

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"duet/internal/event"
	"duet/internal/logging"
	"duet/internal/metrics"
	"duet/internal/persona"
)

// RestHandler answers the JSON endpoints from the event bus history, so it
// needs no hooks into the running engine.
type RestHandler struct {
	Bus      *event.Bus[event.Event]
	Personas []persona.Persona
	Logger   *logging.Logger
	Registry *metrics.Registry
	Started  time.Time
}

type personaPayload struct {
	Name   string `json:"name"`
	Label  string `json:"label"`
	Model  string `json:"model"`
	Color  string `json:"color"`
	Opener bool   `json:"opener"`
}

type conversationResponse struct {
	Conversation string                `json:"conversation"`
	Scenario     string                `json:"scenario"`
	Transport    string                `json:"transport"`
	Personas     []personaPayload      `json:"personas"`
	StartedAt    time.Time             `json:"started_at"`
	Status       string                `json:"status"`
	EndReason    string                `json:"end_reason,omitempty"`
	Turns        int                   `json:"turns"`
	Messages     []event.MessagePosted `json:"messages"`
}

type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
}

type logQuery struct {
	Limit int
	Level logging.Level
	Since *time.Time
}

func (h *RestHandler) handleConversation(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if err := h.requireBus(); err != nil {
		return err
	}

	response, ok := h.snapshot()
	if !ok {
		return &apiError{Status: http.StatusNotFound, Message: "no conversation started yet"}
	}
	writeJSON(w, http.StatusOK, response)
	return nil
}

// snapshot rebuilds the conversation state from bus history. History is
// bounded, so a very long run reports only the retained tail of messages.
func (h *RestHandler) snapshot() (conversationResponse, bool) {
	history := h.Bus.History()

	started := -1
	for i := len(history) - 1; i >= 0; i-- {
		if _, ok := history[i].(event.ConversationStarted); ok {
			started = i
			break
		}
	}
	if started < 0 {
		return conversationResponse{}, false
	}

	begin := history[started].(event.ConversationStarted)
	response := conversationResponse{
		Conversation: begin.Conversation,
		Scenario:     begin.Scenario,
		Transport:    begin.Transport,
		StartedAt:    begin.OccurredAt,
		Status:       "running",
		Messages:     []event.MessagePosted{},
	}
	for _, p := range h.Personas {
		response.Personas = append(response.Personas, personaPayload{
			Name:   p.Name,
			Label:  p.DisplayLabel(),
			Model:  p.Model,
			Color:  p.Color,
			Opener: p.Opener,
		})
	}
	for _, ev := range history[started:] {
		switch e := ev.(type) {
		case event.MessagePosted:
			response.Messages = append(response.Messages, e)
			response.Turns = e.Seq
		case event.ConversationEnded:
			response.Status = "ended"
			response.EndReason = e.Reason
			response.Turns = e.Turns
		}
	}
	return response, true
}

func (h *RestHandler) handleLogs(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	if err := h.requireLogger(); err != nil {
		return err
	}

	query, apiErr := parseLogQuery(r)
	if apiErr != nil {
		return apiErr
	}

	entries := h.Logger.Buffer().List()
	writeJSON(w, http.StatusOK, filterLogEntries(entries, query))
	return nil
}

func (h *RestHandler) handleMetrics(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	registry := h.Registry
	if registry == nil {
		registry = metrics.Default
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	if err := registry.WritePrometheus(w); err != nil {
		return &apiError{Status: http.StatusInternalServerError, Message: "metrics unavailable"}
	}
	return nil
}

func (h *RestHandler) handleHealth(w http.ResponseWriter, r *http.Request) *apiError {
	if r.Method != http.MethodGet {
		return methodNotAllowed(w, "GET")
	}
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.Started).Seconds(),
	})
	return nil
}

func (h *RestHandler) requireBus() *apiError {
	if h.Bus == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "event bus unavailable"}
	}
	return nil
}

func (h *RestHandler) requireLogger() *apiError {
	if h.Logger == nil || h.Logger.Buffer() == nil {
		return &apiError{Status: http.StatusServiceUnavailable, Message: "log buffer unavailable"}
	}
	return nil
}

func parseLogQuery(r *http.Request) (logQuery, *apiError) {
	values := r.URL.Query()
	query := logQuery{
		Limit: 100,
	}

	if rawLimit := strings.TrimSpace(values.Get("limit")); rawLimit != "" {
		limit, err := strconv.Atoi(rawLimit)
		if err != nil || limit <= 0 {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid limit"}
		}
		query.Limit = limit
	}

	if rawSince := strings.TrimSpace(values.Get("since")); rawSince != "" {
		parsed, err := time.Parse(time.RFC3339, rawSince)
		if err != nil {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid since timestamp"}
		}
		query.Since = &parsed
	}

	if rawLevel := strings.TrimSpace(values.Get("level")); rawLevel != "" {
		level, ok := logging.ParseLevel(rawLevel)
		if !ok {
			return query, &apiError{Status: http.StatusBadRequest, Message: "invalid log level"}
		}
		query.Level = level
	}

	return query, nil
}

func filterLogEntries(entries []logging.Entry, query logQuery) []logging.Entry {
	filtered := make([]logging.Entry, 0, len(entries))
	for _, entry := range entries {
		if query.Level != "" && !logging.AtLeast(entry.Level, query.Level) {
			continue
		}
		if query.Since != nil && entry.Timestamp.Before(*query.Since) {
			continue
		}
		filtered = append(filtered, entry)
	}

	if query.Limit > 0 && len(filtered) > query.Limit {
		filtered = filtered[len(filtered)-query.Limit:]
	}

	return filtered
}
