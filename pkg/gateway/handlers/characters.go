package handlers

import (
	"net/http"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/gateway/mw"
)

// CharactersHandler lists the characters a client can start a session with:
// those whose synthesizer loaded.
type CharactersHandler struct {
	Characters *character.Registry
	Engines    EngineStatus
}

func (h CharactersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		mw.WriteError(w, r, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	out := make([]character.Info, 0, h.Characters.Len())
	for _, c := range h.Characters.List() {
		if h.Engines != nil && !h.Engines.HasSynthesizer(c.ID) {
			continue
		}
		out = append(out, c.Info())
	}
	mw.WriteJSON(w, http.StatusOK, map[string]any{"characters": out})
}
