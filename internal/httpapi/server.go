// Package httpapi exposes the task registry over a small JSON API
// plus a server-sent-events progress stream.
package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/MimeLyc/segmented-transcript-translator/internal/engine"
	"github.com/MimeLyc/segmented-transcript-translator/internal/task"
)

type Server struct {
	engine  *engine.Engine
	manager *task.Manager
	hub     *Hub

	defaultTargetLanguage string

	mux    *http.ServeMux
	server *http.Server
}

type Option func(*Server)

// WithHub wires the SSE hub the manager's sink events flow through.
// Without it the stream endpoint answers 501.
func WithHub(hub *Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithDefaultTargetLanguage fills in the target language for create
// requests that omit it. Without it the field stays required.
func WithDefaultTargetLanguage(lang string) Option {
	return func(s *Server) {
		s.defaultTargetLanguage = lang
	}
}

func NewServer(eng *engine.Engine, manager *task.Manager, opts ...Option) *Server {
	s := &Server{
		engine:  eng,
		manager: manager,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.mux
}

func (s *Server) ListenAndServe(addr string) error {
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() {
	s.mux.HandleFunc("/api/tasks", s.handleTasks)
	s.mux.HandleFunc("/api/tasks/stream", s.handleTaskStream)
	s.mux.HandleFunc("/api/tasks/", s.handleTaskByID)
	s.mux.HandleFunc("/api/notifications/", s.handleNotificationByID)
}
