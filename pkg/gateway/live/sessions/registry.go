// Package sessions tracks the live sessions of the process, keyed by the
// client id from the WebSocket path.
package sessions

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle is how the registry reaches a running session. Both funcs must be
// safe to call from any goroutine and must not block on the session.
type Handle struct {
	SessionID string
	Cancel    func()
	Warn      func(code, message string) error
}

type Registry struct {
	mu       sync.Mutex
	sessions map[string]*entry
	wg       sync.WaitGroup
}

type entry struct {
	handle Handle
	once   sync.Once
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[string]*entry),
	}
}

// NewSessionID returns a fresh opaque session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Open registers h under clientID. A session already registered for the same
// client is cancelled and replaced. The returned func removes h; it is
// idempotent and leaves a newer registration in place.
func (r *Registry) Open(clientID string, h Handle) (closeFn func()) {
	if r == nil {
		return func() {}
	}

	e := &entry{handle: h}

	r.mu.Lock()
	if r.sessions == nil {
		r.sessions = make(map[string]*entry)
	}
	old := r.sessions[clientID]
	r.sessions[clientID] = e
	r.wg.Add(1)
	r.mu.Unlock()

	if old != nil {
		if old.handle.Cancel != nil {
			old.handle.Cancel()
		}
		r.release(clientID, old)
	}

	return func() { r.release(clientID, e) }
}

func (r *Registry) release(clientID string, e *entry) {
	if r == nil || e == nil {
		return
	}
	e.once.Do(func() {
		r.mu.Lock()
		if r.sessions != nil && r.sessions[clientID] == e {
			delete(r.sessions, clientID)
		}
		r.mu.Unlock()
		r.wg.Done()
	})
}

func (r *Registry) Count() int {
	if r == nil {
		return 0
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.sessions)
}

// WarnAll sends a session:error to every session. Best effort.
func (r *Registry) WarnAll(code, message string) (sent int) {
	if r == nil {
		return 0
	}

	var warns []func(code, message string) error
	r.mu.Lock()
	for _, e := range r.sessions {
		if e == nil || e.handle.Warn == nil {
			continue
		}
		warns = append(warns, e.handle.Warn)
	}
	r.mu.Unlock()

	for _, warn := range warns {
		if warn(code, message) == nil {
			sent++
		}
	}
	return sent
}

func (r *Registry) CancelAll() (canceled int) {
	if r == nil {
		return 0
	}

	var cancels []func()
	r.mu.Lock()
	for _, e := range r.sessions {
		if e == nil || e.handle.Cancel == nil {
			continue
		}
		cancels = append(cancels, e.handle.Cancel)
	}
	r.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
		canceled++
	}
	return canceled
}

// Wait blocks until every opened session has been released or ctx is done.
func (r *Registry) Wait(ctx context.Context) bool {
	if r == nil {
		return true
	}
	if ctx == nil {
		r.wg.Wait()
		return true
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.wg.Wait()
	}()

	select {
	case <-done:
		return true
	case <-ctx.Done():
		return false
	}
}
