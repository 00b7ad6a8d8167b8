package sessions

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

func TestRegistry_OpenClose_CountAndWait(t *testing.T) {
	r := NewRegistry()
	if r.Count() != 0 {
		t.Fatalf("initial count=%d, want 0", r.Count())
	}

	c1 := r.Open("alice", Handle{SessionID: "s1"})
	c2 := r.Open("bob", Handle{SessionID: "s2"})
	if r.Count() != 2 {
		t.Fatalf("count=%d, want 2", r.Count())
	}

	c1()
	c1()
	if r.Count() != 1 {
		t.Fatalf("count=%d, want 1", r.Count())
	}

	c2()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if ok := r.Wait(ctx); !ok {
		t.Fatalf("expected Wait to return true")
	}
	if r.Count() != 0 {
		t.Fatalf("count=%d, want 0", r.Count())
	}
}

func TestRegistry_DuplicateClientReplacesAndCancels(t *testing.T) {
	r := NewRegistry()
	var cancelled atomic.Int64
	closeOld := r.Open("alice", Handle{SessionID: "old", Cancel: func() { cancelled.Add(1) }})
	var cancelledNew atomic.Int64
	closeNew := r.Open("alice", Handle{SessionID: "new", Cancel: func() { cancelledNew.Add(1) }})

	if cancelled.Load() != 1 {
		t.Fatalf("old cancel calls=%d, want 1", cancelled.Load())
	}
	if r.Count() != 1 {
		t.Fatalf("count=%d, want 1", r.Count())
	}

	// The old session's deferred close must not evict the new one.
	closeOld()
	if r.Count() != 1 {
		t.Fatalf("count=%d after old close, want 1", r.Count())
	}
	if n := r.CancelAll(); n != 1 || cancelledNew.Load() != 1 {
		t.Fatalf("CancelAll=%d, new cancel calls=%d; want the new session still registered", n, cancelledNew.Load())
	}

	closeNew()
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	if !r.Wait(ctx) {
		t.Fatal("Wait did not return after both sessions closed")
	}
}

func TestRegistry_WaitTimesOut(t *testing.T) {
	r := NewRegistry()
	r.Open("alice", Handle{})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if r.Wait(ctx) {
		t.Fatal("Wait returned true with an open session")
	}
}

func TestRegistry_CancelAll_CallsCancel(t *testing.T) {
	r := NewRegistry()
	var c1, c2 atomic.Int64
	r.Open("alice", Handle{Cancel: func() { c1.Add(1) }})
	r.Open("bob", Handle{Cancel: func() { c2.Add(1) }})
	r.Open("carol", Handle{})

	if n := r.CancelAll(); n != 2 {
		t.Fatalf("canceled=%d, want 2", n)
	}
	if c1.Load() != 1 || c2.Load() != 1 {
		t.Fatalf("cancel calls=%d/%d, want 1/1", c1.Load(), c2.Load())
	}
}

func TestRegistry_WarnAll_BestEffort(t *testing.T) {
	r := NewRegistry()
	var w1 atomic.Int64
	r.Open("alice", Handle{Warn: func(code, message string) error {
		if code != "server_shutdown" {
			t.Errorf("code=%q", code)
		}
		w1.Add(1)
		return nil
	}})
	r.Open("bob", Handle{Warn: func(string, string) error { return errors.New("closed") }})

	if sent := r.WarnAll("server_shutdown", "server is shutting down"); sent != 1 {
		t.Fatalf("sent=%d, want 1", sent)
	}
	if w1.Load() != 1 {
		t.Fatalf("warn calls=%d, want 1", w1.Load())
	}
}

func TestRegistry_NilIsNoop(t *testing.T) {
	var r *Registry
	r.Open("x", Handle{})()
	if r.Count() != 0 || r.CancelAll() != 0 || r.WarnAll("a", "b") != 0 {
		t.Fatal("nil registry should report nothing")
	}
	if !r.Wait(context.Background()) {
		t.Fatal("nil registry Wait should return true")
	}
}

func TestNewSessionID_Unique(t *testing.T) {
	a, b := NewSessionID(), NewSessionID()
	if a == "" || a == b {
		t.Fatalf("ids %q %q", a, b)
	}
}
