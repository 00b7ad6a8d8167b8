package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Turn outcomes.
const (
	OutcomeCompleted   = "completed"
	OutcomeInterrupted = "interrupted"
)

// Collaborator roles.
const (
	RoleASR   = "asr"
	RoleLLM   = "llm"
	RoleTTS   = "tts"
	RoleAudio = "audio"
)

// Metrics holds all Prometheus metrics for the avatar server. A nil *Metrics
// is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	// HTTP
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Live sessions
	SessionsActive prometheus.Gauge
	SessionsTotal  *prometheus.CounterVec
	TurnsTotal     *prometheus.CounterVec
	BargeInsTotal  prometheus.Counter
	SpeakEvents    prometheus.Counter
	AudioBytesIn   prometheus.Counter

	// Collaborators
	ErrorsTotal  *prometheus.CounterVec
	StageLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with every collector registered on a
// private registry.
func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = "avatar"
	}

	registry := prometheus.NewRegistry()

	requestsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"route", "status"},
	)

	requestDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{0.005, 0.025, 0.1, 0.5, 1, 5},
		},
		[]string{"route"},
	)

	sessionsActive := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "sessions_active",
			Help:      "Number of open live sessions",
		},
	)

	sessionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total number of live sessions by how they started",
		},
		[]string{"status"},
	)

	turnsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Generation turns by outcome",
		},
		[]string{"outcome"},
	)

	bargeIns := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "barge_ins_total",
			Help:      "Generations cancelled by user speech",
		},
	)

	speakEvents := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "speak_events_total",
			Help:      "avatar:speak events emitted",
		},
	)

	audioBytesIn := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_in_bytes_total",
			Help:      "Decoded PCM bytes received from clients",
		},
	)

	errorsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Collaborator failures replaced by empty results",
		},
		[]string{"role"},
	)

	stageLatency := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_latency_seconds",
			Help:      "Latency of pipeline stages",
			Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"stage"},
	)

	registry.MustRegister(
		requestsTotal,
		requestDuration,
		sessionsActive,
		sessionsTotal,
		turnsTotal,
		bargeIns,
		speakEvents,
		audioBytesIn,
		errorsTotal,
		stageLatency,
	)

	return &Metrics{
		registry:        registry,
		RequestsTotal:   requestsTotal,
		RequestDuration: requestDuration,
		SessionsActive:  sessionsActive,
		SessionsTotal:   sessionsTotal,
		TurnsTotal:      turnsTotal,
		BargeInsTotal:   bargeIns,
		SpeakEvents:     speakEvents,
		AudioBytesIn:    audioBytesIn,
		ErrorsTotal:     errorsTotal,
		StageLatency:    stageLatency,
	}
}

// Handler returns an HTTP handler for the metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

func (m *Metrics) RecordRequest(route string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	m.RequestsTotal.WithLabelValues(route, strconv.Itoa(status)).Inc()
	m.RequestDuration.WithLabelValues(route).Observe(duration.Seconds())
}

// RecordSessionOpen records a new connection.
func (m *Metrics) RecordSessionOpen() {
	if m == nil {
		return
	}
	m.SessionsActive.Inc()
}

// RecordSessionClose records a connection ending. status is "ready" when the
// session was initialized and "uninitialized" otherwise.
func (m *Metrics) RecordSessionClose(status string) {
	if m == nil {
		return
	}
	m.SessionsActive.Dec()
	m.SessionsTotal.WithLabelValues(status).Inc()
}

func (m *Metrics) RecordTurn(outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.StageLatency.WithLabelValues("turn").Observe(duration.Seconds())
}

func (m *Metrics) RecordBargeIn() {
	if m == nil {
		return
	}
	m.BargeInsTotal.Inc()
}

func (m *Metrics) RecordSpeak() {
	if m == nil {
		return
	}
	m.SpeakEvents.Inc()
}

func (m *Metrics) RecordAudioIn(bytes int) {
	if m == nil || bytes <= 0 {
		return
	}
	m.AudioBytesIn.Add(float64(bytes))
}

// RecordError counts a collaborator failure for role.
func (m *Metrics) RecordError(role string) {
	if m == nil {
		return
	}
	m.ErrorsTotal.WithLabelValues(role).Inc()
}

// ObserveStage records how long a pipeline stage took.
func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.StageLatency.WithLabelValues(stage).Observe(d.Seconds())
}
