package session

import (
	"context"
	"sync/atomic"
	"time"
)

// turn is one generation. cancel is its cancellation token; done closes
// after the turn has appended its reply and emitted avatar:idle.
type turn struct {
	id      int
	ctx     context.Context
	cancel  context.CancelFunc
	done    chan struct{}
	started time.Time
}

type phase int

const (
	phaseIdle phase = iota
	phaseGenerating
)

// generation is the single generation slot: Idle, or Generating(turn).
// Every transition goes through begin and finish under Session.mu.
type generation struct {
	phase  phase
	active *turn
}

func (g *generation) begin(t *turn) {
	g.phase = phaseGenerating
	g.active = t
}

// finish returns the slot to Idle if t still owns it.
func (g *generation) finish(t *turn) bool {
	if g.phase != phaseGenerating || g.active != t {
		return false
	}
	g.phase = phaseIdle
	g.active = nil
	return true
}

func (g *generation) current() *turn {
	if g.phase != phaseGenerating {
		return nil
	}
	return g.active
}

// bargeIn is the interrupted flag shared by the reader and the turn.
type bargeIn struct {
	flag atomic.Bool
}

// trip sets the flag and reports whether this call was the one that set it.
func (b *bargeIn) trip() bool { return b.flag.CompareAndSwap(false, true) }
func (b *bargeIn) set()       { b.flag.Store(true) }
func (b *bargeIn) reset()     { b.flag.Store(false) }
func (b *bargeIn) isSet() bool {
	return b.flag.Load()
}
