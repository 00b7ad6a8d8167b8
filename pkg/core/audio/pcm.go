// Package audio converts client PCM and prepares it for transcription.
package audio

import (
	"encoding/base64"
	"errors"
	"fmt"
	"math"
)

// DefaultSampleRate is the rate clients stream microphone audio at.
const DefaultSampleRate = 16000

// Samples is mono audio normalized to [-1, 1].
type Samples []float32

var ErrOddLength = errors.New("pcm16 payload has an odd number of bytes")

// DecodeBase64PCM16 decodes a base64 string of 16-bit signed little-endian
// mono PCM.
func DecodeBase64PCM16(data string) (Samples, error) {
	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return nil, fmt.Errorf("decode base64 audio: %w", err)
	}
	return DecodePCM16(raw)
}

// DecodePCM16 converts 16-bit signed little-endian PCM to samples.
func DecodePCM16(pcm []byte) (Samples, error) {
	if len(pcm)%2 != 0 {
		return nil, ErrOddLength
	}
	out := make(Samples, len(pcm)/2)
	for i := range out {
		v := int16(pcm[2*i]) | int16(pcm[2*i+1])<<8
		out[i] = float32(v) / 32768.0
	}
	return out, nil
}

// EncodePCM16 converts samples back to 16-bit little-endian PCM, clipping
// out-of-range values.
func EncodePCM16(s Samples) []byte {
	out := make([]byte, len(s)*2)
	for i, f := range s {
		v := float64(f) * 32768.0
		if v > math.MaxInt16 {
			v = math.MaxInt16
		} else if v < math.MinInt16 {
			v = math.MinInt16
		}
		n := int16(v)
		out[2*i] = byte(n)
		out[2*i+1] = byte(n >> 8)
	}
	return out
}

// RMS returns the root-mean-square level of s, between 0 and 1.
func RMS(s Samples) float64 {
	if len(s) == 0 {
		return 0
	}
	var sum float64
	for _, f := range s {
		sum += float64(f) * float64(f)
	}
	return math.Sqrt(sum / float64(len(s)))
}

// Peak returns the largest absolute sample value.
func Peak(s Samples) float64 {
	var peak float64
	for _, f := range s {
		if a := math.Abs(float64(f)); a > peak {
			peak = a
		}
	}
	return peak
}

// Duration returns the playback length of s in seconds at sampleRate.
func Duration(s Samples, sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(len(s)) / float64(sampleRate)
}
