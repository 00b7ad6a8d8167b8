package handlers

import (
	"net/http"
	"strings"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/gateway/lifecycle"
	"github.com/vango-go/avatar-live/pkg/gateway/mw"
)

// EngineStatus is the read-only view of the engine registry the HTTP
// surface needs.
type EngineStatus interface {
	Ready(chars *character.Registry) []string
	HasSynthesizer(characterID string) bool
}

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Engines    EngineStatus
	Characters *character.Registry
	Lifecycle  *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		Status     string   `json:"status"`
		Message    string   `json:"message,omitempty"`
		Characters int      `json:"characters"`
		UptimeSec  int64    `json:"uptime_seconds"`
		Missing    []string `json:"missing,omitempty"`
	}

	resp := readyResp{Status: "ok", Characters: h.Characters.Len(), UptimeSec: int64(h.Lifecycle.Uptime().Seconds())}
	if h.Lifecycle.IsDraining() {
		resp.Status = "error"
		resp.Message = "server is draining"
		mw.WriteJSON(w, http.StatusServiceUnavailable, resp)
		return
	}

	var missing []string
	if h.Engines == nil {
		missing = []string{"asr", "llm"}
	} else {
		missing = h.Engines.Ready(h.Characters)
	}

	status := http.StatusOK
	if len(missing) > 0 {
		status = http.StatusServiceUnavailable
		resp.Status = "error"
		resp.Message = "engines not loaded: " + strings.Join(missing, ", ")
		resp.Missing = missing
	}
	mw.WriteJSON(w, status, resp)
}
