// Package synth renders parsed melodies to mono audio so they can be fed
// through the note mapper.
package synth

import (
	"errors"
	"fmt"
	"math"
)

// ErrInvalidOptions is wrapped by every option validation failure.
var ErrInvalidOptions = errors.New("synth: invalid options")

// Waveform selects the voice used for every note.
type Waveform string

const (
	// WaveformPluck is a plucked waveguide string.
	WaveformPluck Waveform = "pluck"
	// WaveformSine is a plain sine tone.
	WaveformSine Waveform = "sine"
)

// Options controls rendering.
type Options struct {
	SampleRate  int      `json:"sample_rate"`
	Waveform    Waveform `json:"waveform"`
	Gain        float64  `json:"gain"`
	AttackMs    float64  `json:"attack_ms"`
	ReleaseMs   float64  `json:"release_ms"`
	DetuneCents float64  `json:"detune_cents"`

	// ToneHz low-passes the mix; 0 leaves it open.
	ToneHz float64 `json:"tone_hz"`
	Seed   int64   `json:"seed"`

	// RoomMix blends in a synthesized room response; 0 renders dry.
	RoomMix     float64 `json:"room_mix"`
	RoomDecayMs float64 `json:"room_decay_ms"`
}

// DefaultOptions returns the renderer defaults.
func DefaultOptions() Options {
	return Options{
		SampleRate:  44100,
		Waveform:    WaveformPluck,
		Gain:        0.8,
		AttackMs:    2,
		ReleaseMs:   60,
		Seed:        1,
		RoomDecayMs: 400,
	}
}

// Validate checks o for obvious mistakes.
func (o Options) Validate() error {
	if o.SampleRate < 8000 || o.SampleRate > 384000 {
		return fmt.Errorf("%w: sample rate %d out of range [8000,384000]", ErrInvalidOptions, o.SampleRate)
	}
	switch o.Waveform {
	case WaveformPluck, WaveformSine:
	default:
		return fmt.Errorf("%w: unknown waveform %q (valid: pluck, sine)", ErrInvalidOptions, o.Waveform)
	}
	if !isFinite(o.Gain) || o.Gain <= 0 {
		return fmt.Errorf("%w: gain must be > 0", ErrInvalidOptions)
	}
	if !isFinite(o.AttackMs) || o.AttackMs < 0 || !isFinite(o.ReleaseMs) || o.ReleaseMs < 0 {
		return fmt.Errorf("%w: attack and release must be >= 0", ErrInvalidOptions)
	}
	if !isFinite(o.DetuneCents) || math.Abs(o.DetuneCents) > 1200 {
		return fmt.Errorf("%w: detune must be within one octave", ErrInvalidOptions)
	}
	if !isFinite(o.ToneHz) || o.ToneHz < 0 || o.ToneHz >= float64(o.SampleRate)/2 {
		return fmt.Errorf("%w: tone must be in [0, nyquist)", ErrInvalidOptions)
	}
	if !isFinite(o.RoomMix) || o.RoomMix < 0 || o.RoomMix > 1 {
		return fmt.Errorf("%w: room mix must be in [0,1]", ErrInvalidOptions)
	}
	if o.RoomMix > 0 && (!isFinite(o.RoomDecayMs) || o.RoomDecayMs <= 0 || o.RoomDecayMs > maxRoomDecayMs) {
		return fmt.Errorf("%w: room decay must be in (0,%g] ms", ErrInvalidOptions, float64(maxRoomDecayMs))
	}
	return nil
}

func isFinite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
