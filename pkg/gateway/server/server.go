package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/core/audio"
	"github.com/vango-go/avatar-live/pkg/engines"
	"github.com/vango-go/avatar-live/pkg/gateway/config"
	"github.com/vango-go/avatar-live/pkg/gateway/handlers"
	"github.com/vango-go/avatar-live/pkg/gateway/lifecycle"
	"github.com/vango-go/avatar-live/pkg/gateway/live/sessions"
	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
	"github.com/vango-go/avatar-live/pkg/gateway/mw"
)

// Dependencies are built once at startup and shared by every request.
type Dependencies struct {
	Characters *character.Registry
	Engines    *engines.Registry
	Processor  audio.Processor
	Metrics    *metrics.Metrics
}

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	router *mux.Router

	chars     *character.Registry
	engines   *engines.Registry
	processor audio.Processor
	metrics   *metrics.Metrics
	sessions  *sessions.Registry
	lifecycle *lifecycle.Lifecycle
}

func New(cfg config.Config, logger *slog.Logger, deps Dependencies) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if deps.Characters == nil {
		deps.Characters = character.NewRegistry()
	}

	s := &Server{
		cfg:       cfg,
		logger:    logger,
		router:    mux.NewRouter(),
		chars:     deps.Characters,
		engines:   deps.Engines,
		processor: deps.Processor,
		metrics:   deps.Metrics,
		sessions:  sessions.NewRegistry(),
		lifecycle: lifecycle.New(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	r := s.router
	r.Use(mw.Metrics(s.metrics))

	r.Handle("/healthz", handlers.HealthHandler{}).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/readyz", handlers.ReadyHandler{
		Engines:    s.engines,
		Characters: s.chars,
		Lifecycle:  s.lifecycle,
	}).Methods(http.MethodGet, http.MethodHead)
	r.Handle("/characters", handlers.CharactersHandler{
		Characters: s.chars,
		Engines:    s.engines,
	})
	r.Handle("/ws/{client_id}", handlers.LiveHandler{
		Config:     s.cfg,
		Characters: s.chars,
		Engines:    s.engines,
		Processor:  s.processor,
		Sessions:   s.sessions,
		Metrics:    s.metrics,
		Logger:     s.logger,
		Lifecycle:  s.lifecycle,
	})
	if s.cfg.MetricsEnabled && s.metrics != nil {
		r.Handle("/metrics", s.metrics.Handler()).Methods(http.MethodGet)
	}
	if s.cfg.Live2DModelsDir != "" {
		r.PathPrefix("/live2d-models/").Handler(
			http.StripPrefix("/live2d-models/", http.FileServer(http.Dir(s.cfg.Live2DModelsDir))),
		).Methods(http.MethodGet, http.MethodHead)
	}

	r.NotFoundHandler = handlers.NotFoundHandler{}
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mw.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.router
	h = cors.New(cors.Options{
		AllowedOrigins: s.cfg.AllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodHead, http.MethodOptions},
		AllowedHeaders: []string{"*"},
		ExposedHeaders: []string{"X-Request-ID"},
	}).Handler(h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining makes /readyz fail and refuses new WebSocket sessions.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

// WarnLiveSessionsDraining tells every live client the server is going away.
func (s *Server) WarnLiveSessionsDraining() int {
	return s.sessions.WarnAll("server_shutdown", "server is shutting down")
}

func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.sessions.Wait(ctx)
}

func (s *Server) CancelLiveSessions() int {
	return s.sessions.CancelAll()
}

func (s *Server) LiveSessions() int {
	return s.sessions.Count()
}
