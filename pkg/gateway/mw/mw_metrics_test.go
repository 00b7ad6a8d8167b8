package mw

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
)

func TestMetrics_LabelsByRouteTemplate(t *testing.T) {
	m := metrics.New("test")
	r := mux.NewRouter()
	r.Use(Metrics(m))
	r.HandleFunc("/items/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, path := range []string{"/items/1", "/items/2"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(m.RequestsTotal.WithLabelValues("/items/{id}", "418")); got != 2 {
		t.Fatalf("requests=%v, want 2", got)
	}
}
