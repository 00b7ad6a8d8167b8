package handlers

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/core/audio"
	"github.com/vango-go/avatar-live/pkg/gateway/config"
	"github.com/vango-go/avatar-live/pkg/gateway/lifecycle"
	"github.com/vango-go/avatar-live/pkg/gateway/live/session"
	"github.com/vango-go/avatar-live/pkg/gateway/live/sessions"
	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
	"github.com/vango-go/avatar-live/pkg/gateway/mw"
)

// LiveHandler handles /ws/{client_id} avatar sessions.
type LiveHandler struct {
	Config     config.Config
	Characters *character.Registry
	Engines    session.Binder
	Processor  audio.Processor
	Sessions   *sessions.Registry
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	Lifecycle  *lifecycle.Lifecycle
}

func (h LiveHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		mw.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.Lifecycle.IsDraining() {
		mw.WriteError(w, r, http.StatusServiceUnavailable, "server is draining")
		return
	}
	clientID := strings.TrimSpace(mux.Vars(r)["client_id"])
	if clientID == "" {
		mw.WriteError(w, r, http.StatusBadRequest, "client_id is required")
		return
	}
	logger := h.Logger
	if logger == nil {
		logger = slog.Default()
	}

	upgrader := websocket.Upgrader{CheckOrigin: h.originAllowed}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Debug("websocket upgrade failed", "client_id", clientID, "error", err)
		return
	}
	defer conn.Close()

	sessionID := sessions.NewSessionID()
	s, err := session.New(r.Context(), session.Dependencies{
		Conn:       conn,
		Logger:     logger,
		Characters: h.Characters,
		Engines:    h.Engines,
		Processor:  h.Processor,
		Metrics:    h.Metrics,
		ClientID:   clientID,
		SessionID:  sessionID,
		Config: session.Config{
			PingInterval:            h.Config.WSPingInterval,
			WriteTimeout:            h.Config.WSWriteTimeout,
			ReadTimeout:             h.Config.WSReadTimeout,
			MaxMessageBytes:         h.Config.MaxMessageBytes,
			OutboundQueueSize:       h.Config.OutboundQueueSize,
			TurnTimeout:             h.Config.TurnTimeout,
			SynthTimeout:            h.Config.SynthTimeout,
			TranscribeTimeout:       h.Config.TranscribeTimeout,
			SampleRate:              h.Config.SampleRate,
			MaxAudioChunksPerSecond: h.Config.MaxAudioChunksPerSecond,
			MaxAudioBytesPerSecond:  h.Config.MaxAudioBytesPerSecond,
			AudioBurstSeconds:       h.Config.AudioBurstSeconds,
		},
	})
	if err != nil {
		logger.Error("failed to initialize live session", "client_id", clientID, "error", err)
		_ = conn.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "session unavailable"), time.Now().Add(2*time.Second))
		return
	}

	release := h.Sessions.Open(clientID, sessions.Handle{
		SessionID: sessionID,
		Cancel:    s.Cancel,
		Warn:      s.Warn,
	})
	defer release()

	h.Metrics.RecordSessionOpen()
	logger.Info("live session opened", "session_id", sessionID, "client_id", clientID, "request_id", requestIDFromRequest(r))
	start := time.Now()

	runErr := s.Run()

	status := "uninitialized"
	if s.Initialized() {
		status = "ready"
	}
	h.Metrics.RecordSessionClose(status)
	if runErr != nil {
		logger.Warn("live session ended with error", "session_id", sessionID, "client_id", clientID, "error", runErr)
	}
	logger.Info("live session closed", "session_id", sessionID, "client_id", clientID, "status", status, "duration_ms", time.Since(start).Milliseconds())
}

func (h LiveHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" || h.Config.AllowsAnyOrigin() {
		return true
	}
	for _, allowed := range h.Config.AllowedOrigins {
		if strings.EqualFold(allowed, origin) {
			return true
		}
	}
	return false
}

func requestIDFromRequest(r *http.Request) string {
	if id, ok := mw.RequestIDFrom(r.Context()); ok {
		return id
	}
	return ""
}
