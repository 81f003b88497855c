// Package notemap turns a decoded mono audio signal into a sequence of
// rhythm-game notes spread over three frequency lanes.
//
// The pipeline is a spectral analyzer (fixed-size, non-overlapping FFT
// frames), an optional calibration pass that derives per-lane base
// thresholds, and an adaptive gate engine that walks the frames in order
// and emits a note whenever a lane's peak clears its current gate.
package notemap

import (
	"errors"
	"fmt"
	"math"
)

var (
	// ErrInvalidConfig wraps every configuration failure.
	ErrInvalidConfig = errors.New("notemap: invalid configuration")
	// ErrInvalidSignal is returned for signals that cannot be analyzed.
	ErrInvalidSignal = errors.New("notemap: invalid signal")
)

// NumLanes is the number of playable lanes.
const NumLanes = 3

// Lane identifies a frequency band.
type Lane int

const (
	LaneBass Lane = iota
	LaneMid
	LaneTreble
)

// NoLane marks a frame where no lane fired.
const NoLane Lane = -1

var laneNames = [NumLanes]string{"bass", "mid", "treble"}

func (l Lane) String() string {
	if l < 0 || int(l) >= NumLanes {
		return "none"
	}
	return laneNames[l]
}

// LanePeaks holds the maximum spectral magnitude per lane for one frame.
type LanePeaks [NumLanes]float64

// Thresholds holds one gate value per lane.
type Thresholds [NumLanes]float64

// NoteEvent is one emitted note.
type NoteEvent struct {
	Lane   Lane  `json:"lane"`
	TimeMs int64 `json:"time_ms"`
}

// Signal is a decoded mono buffer. The engine never modifies it.
type Signal struct {
	Samples    []float64
	SampleRate int
}

// DurationMs returns the signal length in milliseconds.
func (s Signal) DurationMs() float64 {
	if s.SampleRate <= 0 {
		return 0
	}
	return float64(len(s.Samples)) * 1000.0 / float64(s.SampleRate)
}

// Validate checks that the signal can be analyzed.
func (s Signal) Validate() error {
	if s.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate must be > 0 (got %d)", ErrInvalidSignal, s.SampleRate)
	}
	for i, v := range s.Samples {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: non-finite sample at index %d", ErrInvalidSignal, i)
		}
	}
	return nil
}

// frameTimeMs converts a frame start offset to whole milliseconds, rounding
// down.
func frameTimeMs(startSample int, sampleRate int) int64 {
	return int64(startSample) * 1000 / int64(sampleRate)
}
