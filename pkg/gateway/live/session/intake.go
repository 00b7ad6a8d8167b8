package session

import (
	"strings"

	"github.com/vango-go/avatar-live/pkg/core/audio"
	"github.com/vango-go/avatar-live/pkg/gateway/live/protocol"
	"github.com/vango-go/avatar-live/pkg/gateway/metrics"
)

func (s *Session) handleAudioChunk(msg protocol.ClientAudioChunk) {
	samples, err := audio.DecodeBase64PCM16(msg.Data)
	if err != nil {
		s.logger.Warn("invalid audio chunk", "error", err)
		return
	}
	size := len(samples) * 2
	if !s.limiter.Allow(size) {
		s.logger.Warn("audio chunk dropped by rate limit", "bytes", size)
		return
	}
	s.metrics.RecordAudioIn(size)

	samples = s.preprocess(samples)
	text := strings.TrimSpace(s.transcribe(samples))
	if text != "" {
		s.maybeBargeIn()
	}
	s.emit(protocol.TypeASRPartial, protocol.ServerTranscript{Text: s.accumulate(text)})
}

// preprocess runs the audio processor; any failure degrades to whatever
// samples it managed to produce, or the raw chunk.
func (s *Session) preprocess(samples audio.Samples) audio.Samples {
	if s.processor == nil {
		return samples
	}
	start := s.now()
	out, err := s.processor.Process(samples, s.cfg.SampleRate)
	s.metrics.ObserveStage("audio", s.now().Sub(start))
	if err != nil {
		s.logger.Warn("audio processing degraded", "error", err)
		s.metrics.RecordError(metrics.RoleAudio)
	}
	if out == nil {
		return samples
	}
	return out
}

func (s *Session) transcribe(samples audio.Samples) string {
	s.mu.Lock()
	set := s.engines
	s.mu.Unlock()

	ctx, cancel := withTimeout(s.ctx, s.cfg.TranscribeTimeout)
	defer cancel()

	opts := set.STTOptions
	if opts.SampleRate <= 0 {
		opts.SampleRate = s.cfg.SampleRate
	}
	start := s.now()
	tr, err := set.STT.Transcribe(ctx, samples, opts)
	s.metrics.ObserveStage("asr", s.now().Sub(start))
	if err != nil {
		if s.ctx.Err() == nil {
			s.logger.Error("asr failed", "engine", set.STT.Name(), "error", err)
			s.metrics.RecordError(metrics.RoleASR)
		}
		return ""
	}
	if tr == nil {
		return ""
	}
	return tr.Text
}

// maybeBargeIn cancels the active turn the first time speech is heard while
// it runs.
func (s *Session) maybeBargeIn() {
	s.mu.Lock()
	defer s.mu.Unlock()
	t := s.gen.current()
	if t == nil || !s.interrupted.trip() {
		return
	}
	t.cancel()
	s.metrics.RecordBargeIn()
	s.logger.Info("turn interrupted by user speech", "turn_id", t.id)
}

// accumulate appends a non-empty partial to the transcript and returns it.
func (s *Session) accumulate(text string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if text == "" {
		return s.transcript
	}
	if s.transcript == "" {
		s.transcript = text
	} else {
		s.transcript += " " + text
	}
	return s.transcript
}

func (s *Session) handleAudioEnd() {
	s.mu.Lock()
	final := s.transcript
	s.transcript = ""
	s.mu.Unlock()

	s.emit(protocol.TypeASRFinal, protocol.ServerTranscript{Text: final})
	if final != "" {
		s.startTurn(final)
	}
}
