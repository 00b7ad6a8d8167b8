package handlers

import (
	"net/http"

	"github.com/vango-go/avatar-live/pkg/gateway/mw"
)

type NotFoundHandler struct{}

func (h NotFoundHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	mw.WriteError(w, r, http.StatusNotFound, "not found")
}
