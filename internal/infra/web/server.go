// File: internal/infra/web/server.go
package web

import (
	"net/http"

	"multimodel-video/internal/domain/ports/store"
	"multimodel-video/internal/infra/metrics"
	"multimodel-video/internal/infra/ws"
	"multimodel-video/internal/usecase"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server exposes the coordination API: task submission and tracking, chat
// sessions, the realtime socket and the operational endpoints.
type Server struct {
	taskUC usecase.TaskUseCase
	chatUC usecase.ChatUseCase
	kv     store.KV
	wsSrv  *ws.Server
	log    *zerolog.Logger
}

func NewServer(taskUC usecase.TaskUseCase, chatUC usecase.ChatUseCase, kv store.KV, wsSrv *ws.Server, logger *zerolog.Logger) *Server {
	// The collectors queue up in their init() functions; /metrics is served
	// here, so this is where they reach the registry.
	metrics.MustRegister()
	l := logger.With().Str("component", "web.Server").Logger()
	return &Server{taskUC: taskUC, chatUC: chatUC, kv: kv, wsSrv: wsSrv, log: &l}
}

func (s *Server) Router() *chi.Mux {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", s.handleHealth)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())
	r.Get("/ws", s.wsSrv.Handle)

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/tasks", func(r chi.Router) {
			r.Post("/", s.handleTaskSubmit)
			r.Get("/", s.handleTaskList)
			r.Get("/{id}", s.handleTaskStatus)
			r.Delete("/{id}", s.handleTaskCancel)
		})
		r.Route("/sessions", func(r chi.Router) {
			r.Post("/", s.handleSessionCreate)
			r.Post("/{id}/messages", s.handlePostMessage)
			r.Get("/{id}/messages", s.handleHistory)
			r.Delete("/{id}", s.handleSessionEnd)
		})
	})
	return r
}
