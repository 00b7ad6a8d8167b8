package session

import (
	"fmt"

	"github.com/vango-go/avatar-live/pkg/gateway/live/protocol"
)

// Handle dispatches one decoded client message. It is called from the
// connection goroutine only, so messages are handled strictly in order.
func (s *Session) Handle(msg any) {
	if start, ok := msg.(protocol.ClientSessionStart); ok {
		s.handleStart(start)
		return
	}
	if !s.Initialized() {
		s.logger.Warn("ignoring message before session:start", "type", fmt.Sprintf("%T", msg))
		return
	}

	switch m := msg.(type) {
	case protocol.ClientUserText:
		s.startTurn(m.Text)
	case protocol.ClientInterrupt:
		s.handleInterrupt()
	case protocol.ClientAudioChunk:
		s.handleAudioChunk(m)
	case protocol.ClientAudioEnd:
		s.handleAudioEnd()
	default:
		s.logger.Warn("unhandled client message", "type", fmt.Sprintf("%T", msg))
	}
}

func (s *Session) handleStart(msg protocol.ClientSessionStart) {
	s.mu.Lock()
	current := s.character
	s.mu.Unlock()

	if current != nil {
		if current.ID == msg.CharacterID {
			s.sendReady()
			return
		}
		s.logger.Warn("session already started", "character_id", current.ID, "requested", msg.CharacterID)
		s.sendError("already_started", fmt.Sprintf("session already started with character %q", current.ID))
		return
	}

	c, err := s.chars.Get(msg.CharacterID)
	if err != nil {
		s.logger.Warn("session:start failed", "character_id", msg.CharacterID, "error", err)
		s.sendError("unknown_character", err.Error())
		return
	}
	set, err := s.binder.Bind(c.ID)
	if err != nil {
		s.logger.Error("session:start failed", "character_id", c.ID, "error", err)
		s.sendError("engine_unavailable", err.Error())
		return
	}

	s.mu.Lock()
	s.character = c
	s.engines = set
	s.history.seed(c.SystemPrompt())
	s.mu.Unlock()

	s.logger.Info("session started", "character_id", c.ID, "tts", set.TTS.Name(), "llm", set.LLM.Name(), "asr", set.STT.Name())
	s.sendReady()
}

func (s *Session) sendReady() {
	s.mu.Lock()
	c := s.character
	s.mu.Unlock()

	info := c.Info()
	s.emit(protocol.TypeSessionReady, protocol.ServerSessionReady{
		SessionID: s.id,
		Character: protocol.CharacterInfo{
			ID:              info.ID,
			Name:            info.Name,
			Persona:         info.Persona,
			Live2DModelName: info.Live2DModelName,
			ExtraData:       info.ExtraData,
		},
		Live2DModelInfo: c.Model.Info,
	})
}

func (s *Session) handleInterrupt() {
	s.mu.Lock()
	s.interrupted.set()
	t := s.gen.current()
	if t != nil {
		t.cancel()
	}
	s.transcript = ""
	s.mu.Unlock()

	if t != nil {
		s.logger.Info("turn interrupted by client", "turn_id", t.id)
	}
}
