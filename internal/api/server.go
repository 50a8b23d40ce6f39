// Package api serves the live view of a running conversation: a JSON
// snapshot, websocket event and log streams, Prometheus metrics, and a
// health probe.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"duet/internal/event"
	"duet/internal/logging"
	"duet/internal/metrics"
	"duet/internal/persona"
)

const readHeaderTimeout = 10 * time.Second

// Options wire a Server. Bus and Logger may be nil; the affected endpoints
// then answer 503 instead of panicking.
type Options struct {
	Addr           string
	AuthToken      string
	AllowedOrigins []string
	Bus            *event.Bus[event.Event]
	Personas       []persona.Persona
	Logger         *logging.Logger
	Registry       *metrics.Registry
	Replay         int
}

// Server is the optional HTTP surface behind --serve.
type Server struct {
	http     *http.Server
	listener net.Listener
	log      *logging.Logger
}

func New(opts Options) *Server {
	log := opts.Logger.Component("api")
	rest := &RestHandler{
		Bus:      opts.Bus,
		Personas: opts.Personas,
		Logger:   opts.Logger,
		Registry: opts.Registry,
		Started:  time.Now(),
	}

	mux := http.NewServeMux()
	mux.Handle("/api/conversation", loggingMiddleware(log, restHandler(opts.AuthToken, rest.handleConversation)))
	mux.Handle("/api/logs", loggingMiddleware(log, restHandler(opts.AuthToken, rest.handleLogs)))
	mux.Handle("/api/events", securityHeadersMiddleware(cacheControlNoStore, &EventsHandler{
		Bus:            opts.Bus,
		Logger:         log,
		AuthToken:      opts.AuthToken,
		AllowedOrigins: opts.AllowedOrigins,
		Replay:         opts.Replay,
	}))
	mux.Handle("/ws/logs", securityHeadersMiddleware(cacheControlNoStore, &LogsHandler{
		Logger:         opts.Logger,
		AuthToken:      opts.AuthToken,
		AllowedOrigins: opts.AllowedOrigins,
	}))
	mux.Handle("/metrics", securityHeadersHandler(cacheControlNoStore, jsonErrorMiddleware(rest.handleMetrics)))
	mux.Handle("/healthz", securityHeadersHandler(cacheControlNoStore, jsonErrorMiddleware(rest.handleHealth)))
	mux.Handle("/api/", securityHeadersMiddleware(cacheControlNoStore, http.NotFoundHandler()))

	return &Server{
		http: &http.Server{
			Addr:              opts.Addr,
			Handler:           mux,
			ReadHeaderTimeout: readHeaderTimeout,
		},
		log: log,
	}
}

// Handler exposes the route table for httptest servers.
func (s *Server) Handler() http.Handler {
	if s == nil {
		return nil
	}
	return s.http.Handler
}

// Start binds the listen address and serves in the background. Bind errors
// come back synchronously so a bad --serve address fails the run before
// the conversation starts.
func (s *Server) Start() error {
	if s == nil {
		return nil
	}
	listener, err := net.Listen("tcp", s.http.Addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", s.http.Addr, err)
	}
	s.listener = listener
	s.log.Info("live view listening", map[string]string{"addr": listener.Addr().String()})

	go func() {
		if err := s.http.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("live view server stopped", map[string]string{"error": err.Error()})
		}
	}()
	return nil
}

// Addr reports the bound address, useful with a :0 listen port.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.http.Addr
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s == nil {
		return nil
	}
	return s.http.Shutdown(ctx)
}
