// Package lifecycle holds process state shared by the HTTP handlers.
package lifecycle

import (
	"sync/atomic"
	"time"
)

// Lifecycle flips to draining on shutdown: /readyz reports 503 and new
// WebSocket sessions are refused while live ones finish.
type Lifecycle struct {
	draining atomic.Bool
	started  time.Time
}

func New() *Lifecycle {
	return &Lifecycle{started: time.Now()}
}

func (l *Lifecycle) SetDraining(draining bool) {
	if l == nil {
		return
	}
	l.draining.Store(draining)
}

func (l *Lifecycle) IsDraining() bool {
	if l == nil {
		return false
	}
	return l.draining.Load()
}

// Uptime is zero for a nil or zero-value Lifecycle.
func (l *Lifecycle) Uptime() time.Duration {
	if l == nil || l.started.IsZero() {
		return 0
	}
	return time.Since(l.started)
}
