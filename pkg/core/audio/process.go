package audio

import (
	"errors"
	"fmt"
	"math"
)

// Processor prepares a chunk before transcription. Implementations return
// usable samples alongside any error so callers can degrade per stage.
type Processor interface {
	Process(s Samples, sampleRate int) (Samples, error)
}

// PipelineConfig toggles the pre-processing stages.
type PipelineConfig struct {
	NoiseGate     bool
	GateThreshold float64 // frame RMS below which a frame is muted
	GateFrame     int     // frame length in milliseconds

	Normalize  bool
	TargetDBFS float64 // RMS loudness target
	MaxGain    float64 // linear gain ceiling
}

// Pipeline runs the enabled stages in order. A failing stage is skipped and
// the chunk continues through the rest unchanged by it.
type Pipeline struct {
	cfg PipelineConfig
}

var errNonFinite = errors.New("non-finite sample")

func NewPipeline(cfg PipelineConfig) *Pipeline {
	if cfg.GateThreshold <= 0 {
		cfg.GateThreshold = 0.01
	}
	if cfg.GateFrame <= 0 {
		cfg.GateFrame = 20
	}
	if cfg.TargetDBFS == 0 {
		cfg.TargetDBFS = -23
	}
	if cfg.MaxGain <= 0 {
		cfg.MaxGain = 10
	}
	return &Pipeline{cfg: cfg}
}

// Enabled reports whether any stage would run.
func (p *Pipeline) Enabled() bool {
	return p != nil && (p.cfg.NoiseGate || p.cfg.Normalize)
}

func (p *Pipeline) Process(s Samples, sampleRate int) (Samples, error) {
	if !p.Enabled() || len(s) == 0 {
		return s, nil
	}
	out := s
	var errs []error
	if p.cfg.NoiseGate {
		gated, err := p.gate(out, sampleRate)
		if err != nil {
			errs = append(errs, fmt.Errorf("noise gate: %w", err))
		} else {
			out = gated
		}
	}
	if p.cfg.Normalize {
		normalized, err := p.normalize(out)
		if err != nil {
			errs = append(errs, fmt.Errorf("loudness normalization: %w", err))
		} else {
			out = normalized
		}
	}
	return out, errors.Join(errs...)
}

func (p *Pipeline) gate(s Samples, sampleRate int) (Samples, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	frame := sampleRate * p.cfg.GateFrame / 1000
	if frame <= 0 {
		frame = 1
	}
	out := make(Samples, len(s))
	copy(out, s)
	for start := 0; start < len(out); start += frame {
		end := min(start+frame, len(out))
		level := RMS(out[start:end])
		if math.IsNaN(level) || math.IsInf(level, 0) {
			return nil, errNonFinite
		}
		if level < p.cfg.GateThreshold {
			clear(out[start:end])
		}
	}
	return out, nil
}

func (p *Pipeline) normalize(s Samples) (Samples, error) {
	level := RMS(s)
	if math.IsNaN(level) || math.IsInf(level, 0) {
		return nil, errNonFinite
	}
	if level < 1e-6 {
		return s, nil
	}
	current := 20 * math.Log10(level)
	gain := math.Pow(10, (p.cfg.TargetDBFS-current)/20)
	gain = math.Min(gain, p.cfg.MaxGain)

	out := make(Samples, len(s))
	for i, f := range s {
		v := float64(f) * gain
		out[i] = float32(math.Max(-1, math.Min(1, v)))
	}
	return out, nil
}
