package tts

import "context"

// DummyProvider returns no audio. The avatar still receives text and
// animation cues.
type DummyProvider struct{}

func NewDummy() *DummyProvider { return &DummyProvider{} }

func (DummyProvider) Name() string { return "dummy" }

func (DummyProvider) Synthesize(context.Context, string, SynthesizeOptions) (*Synthesis, error) {
	return &Synthesis{Audio: []byte{}, Format: "wav"}, nil
}
