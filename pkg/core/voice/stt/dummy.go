package stt

import (
	"context"

	"github.com/vango-go/avatar-live/pkg/core/audio"
)

// DummyProvider hears nothing. It lets the server run without an ASR
// backend; typed user:text turns still work.
type DummyProvider struct{}

func NewDummy() *DummyProvider { return &DummyProvider{} }

func (DummyProvider) Name() string { return "dummy" }

func (DummyProvider) Transcribe(_ context.Context, samples audio.Samples, opts TranscribeOptions) (*Transcript, error) {
	return &Transcript{Duration: audio.Duration(samples, opts.SampleRate)}, nil
}
