package dummy

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
)

func TestStream_RuneByRune(t *testing.T) {
	s, err := New(0).StreamChat(context.Background(), nil)
	if err != nil {
		t.Fatalf("StreamChat() error = %v", err)
	}
	var b strings.Builder
	n := 0
	for {
		delta, err := s.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			t.Fatalf("Next() error = %v", err)
		}
		b.WriteString(delta)
		n++
	}
	if b.String() != Response {
		t.Fatalf("text=%q", b.String())
	}
	if n != len([]rune(Response)) {
		t.Fatalf("deltas=%d, want %d", n, len([]rune(Response)))
	}
}

func TestStream_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	s, _ := New(0).StreamChat(ctx, nil)
	cancel()
	if _, err := s.Next(); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v, want context.Canceled", err)
	}
}
