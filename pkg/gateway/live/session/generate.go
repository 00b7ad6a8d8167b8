package session

import (
	"context"
	"encoding/base64"
	"errors"
	"io"
	"strings"

	"github.com/vango-go/avatar-live/pkg/character"
	"github.com/vango-go/avatar-live/pkg/core/segment"
	"github.com/vango-go/avatar-live/pkg/core/types"
	"github.com/vango-go/avatar-live/pkg/engines"
	"github.com/vango-go/avatar-live/pkg/gateway/live/protocol"
	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
)

// startTurn supersedes any running turn with a new one for text. The previous
// turn is cancelled and its cleanup (assistant message, avatar:idle) finishes
// before the user message is appended.
func (s *Session) startTurn(text string) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	prev := s.last
	if active := s.gen.current(); active != nil {
		active.cancel()
	}
	s.mu.Unlock()

	if prev != nil {
		<-prev.done
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.turnSeq++
	ctx, cancel := withTimeout(s.ctx, s.cfg.TurnTimeout)
	t := &turn{
		id:      s.turnSeq,
		ctx:     ctx,
		cancel:  cancel,
		done:    make(chan struct{}),
		started: s.now(),
	}
	s.history.appendUser(text)
	s.interrupted.reset()
	history := s.history.snapshot()
	s.gen.begin(t)
	s.last = t
	set := s.engines
	c := s.character
	s.mu.Unlock()

	go s.runTurn(t, set, c, history)
}

// cancelled is checked at every suspension point of a turn.
func (s *Session) cancelled(t *turn) bool {
	return t.ctx.Err() != nil || s.interrupted.isSet()
}

func (s *Session) runTurn(t *turn, set engines.Set, c *character.Character, history []types.Message) {
	logger := s.logger.With("turn_id", t.id)
	var reply strings.Builder

	defer func() {
		outcome := metrics.OutcomeCompleted
		if s.cancelled(t) {
			outcome = metrics.OutcomeInterrupted
		}
		if errors.Is(t.ctx.Err(), context.DeadlineExceeded) {
			logger.Warn("turn timed out")
		}
		t.cancel()

		s.mu.Lock()
		if reply.Len() > 0 {
			s.history.appendAssistant(reply.String())
		}
		s.gen.finish(t)
		s.mu.Unlock()

		s.metrics.RecordTurn(outcome, s.now().Sub(t.started))
		logger.Debug("turn finished", "outcome", outcome, "chars", reply.Len())
		s.emit(protocol.TypeAvatarIdle, nil)
		close(t.done)
	}()

	if s.cancelled(t) {
		return
	}
	stream, err := set.LLM.StreamChat(t.ctx, history)
	if err != nil {
		if !s.cancelled(t) {
			logger.Error("llm stream failed", "error", err)
			s.metrics.RecordError(metrics.RoleLLM)
		}
		return
	}
	defer stream.Close()

	var (
		buffer     string
		dispatched bool
		firstDelta = true
	)
	for {
		if s.cancelled(t) {
			return
		}
		delta, err := stream.Next()
		if err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if s.cancelled(t) {
				return
			}
			logger.Error("llm stream error", "error", err)
			s.metrics.RecordError(metrics.RoleLLM)
			break
		}
		if s.cancelled(t) {
			return
		}
		if firstDelta {
			s.metrics.ObserveStage("llm_first_delta", s.now().Sub(t.started))
			firstDelta = false
		}
		reply.WriteString(delta)

		var sentences []string
		sentences, buffer = segment.Feed(buffer, delta, !dispatched)
		for _, sentence := range sentences {
			if s.cancelled(t) {
				return
			}
			s.speak(t, set, c, sentence)
			dispatched = true
		}
	}

	for _, sentence := range segment.Flush(buffer, !dispatched) {
		if s.cancelled(t) {
			return
		}
		s.speak(t, set, c, sentence)
	}
}

// speak turns one sentence into an avatar:speak event.
func (s *Session) speak(t *turn, set engines.Set, c *character.Character, sentence string) {
	res := c.Extract(strings.TrimSpace(sentence))
	expressions := c.ResolveExpressions(res.Expressions)
	motions := c.ResolveMotions(res.Motions)

	var audioB64 string
	if res.Text != "" {
		audioB64 = s.synthesize(t, set, res.Text)
	}
	if res.Text == "" && len(expressions) == 0 && len(motions) == 0 {
		return
	}
	// A barge-in can land while synthesis is in flight.
	if s.cancelled(t) {
		return
	}
	s.emit(protocol.TypeAvatarSpeak, protocol.ServerAvatarSpeak{
		Text:        res.Text,
		Audio:       audioB64,
		Expressions: expressions,
		Motions:     motions,
	})
	s.metrics.RecordSpeak()
}

func (s *Session) synthesize(t *turn, set engines.Set, text string) string {
	ctx, cancel := withTimeout(t.ctx, s.cfg.SynthTimeout)
	defer cancel()

	start := s.now()
	out, err := set.TTS.Synthesize(ctx, text, set.TTSOptions)
	s.metrics.ObserveStage("tts", s.now().Sub(start))
	if err != nil {
		if !s.cancelled(t) {
			s.logger.Error("tts failed", "turn_id", t.id, "engine", set.TTS.Name(), "error", err)
			s.metrics.RecordError(metrics.RoleTTS)
		}
		return ""
	}
	if out == nil || len(out.Audio) == 0 {
		return ""
	}
	return base64.StdEncoding.EncodeToString(out.Audio)
}
