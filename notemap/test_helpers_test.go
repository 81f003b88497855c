package notemap

import (
	"math"
	"testing"
)

const (
	testRate  = 44100
	testFrame = DefaultBufferSize
)

// Frequencies that sit well inside each lane for 2048-sample frames at 44.1 kHz.
var laneHz = [NumLanes]float64{220, 5000, 15000}

// addBurst mixes a Hann-windowed sine into x starting at sample start.
func addBurst(x []float64, start, length int, hz, amp float64) {
	for i := 0; i < length && start+i < len(x); i++ {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(length-1))
		x[start+i] += amp * w * math.Sin(2*math.Pi*hz*float64(i)/testRate)
	}
}

// addFrameBurst places a burst in the middle of frame index f.
func addFrameBurst(x []float64, f int, l Lane, amp float64) {
	addBurst(x, f*testFrame+testFrame/4, testFrame/2, laneHz[l], amp)
}

func silentSignal(frames int) Signal {
	return Signal{Samples: make([]float64, frames*testFrame), SampleRate: testRate}
}

// fixedTestConfig gates every lane at 10 and recovers fully within one frame.
func fixedTestConfig() Config {
	cfg := DefaultFixedConfig()
	cfg.Fixed.Thresholds = Thresholds{10, 10, 10}
	cfg.Fixed.Recovery = [NumLanes]float64{100, 100, 100}
	return cfg
}

func frameMs(f int) int64 {
	return frameTimeMs(f*testFrame, testRate)
}

func mustMap(t *testing.T, sig Signal, cfg Config, opts ...Option) *Result {
	t.Helper()
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	res, err := e.Map(t.Context(), sig)
	if err != nil {
		t.Fatalf("Map: %v", err)
	}
	return res
}

// melodicSignal is a deterministic mixture of bursts over all lanes with
// varying amplitude, long enough to exercise every gate rule.
func melodicSignal(frames int) Signal {
	sig := silentSignal(frames)
	for f := 4; f < frames; f++ {
		l := Lane((f*7 + f/5) % NumLanes)
		amp := 0.2 + 0.8*math.Abs(math.Sin(float64(f)*0.37))
		if f%3 == 0 {
			addFrameBurst(sig.Samples, f, l, amp)
		}
		if f%4 == 1 {
			addFrameBurst(sig.Samples, f, (l+1)%NumLanes, amp*0.6)
		}
	}
	return sig
}

func checkNoteInvariants(t *testing.T, notes []NoteEvent, cfg Config) {
	t.Helper()
	lastByLane := map[Lane]int64{}
	run := 0
	for i, n := range notes {
		if n.Lane < 0 || int(n.Lane) >= NumLanes {
			t.Fatalf("note %d has invalid lane %d", i, n.Lane)
		}
		if n.TimeMs < 0 {
			t.Fatalf("note %d has negative time %d", i, n.TimeMs)
		}
		if i > 0 {
			prev := notes[i-1]
			if n.TimeMs <= prev.TimeMs {
				t.Fatalf("timestamps not strictly increasing at %d: %d then %d", i, prev.TimeMs, n.TimeMs)
			}
			if n.TimeMs-prev.TimeMs <= cfg.GlobalCooldownMs {
				t.Fatalf("global cooldown violated at %d: dt=%d", i, n.TimeMs-prev.TimeMs)
			}
			if n.Lane == prev.Lane {
				run++
			} else {
				run = 1
			}
		} else {
			run = 1
		}
		if run > cfg.StreakLimit {
			t.Fatalf("streak of %d notes on lane %v at %d (limit %d)", run, n.Lane, i, cfg.StreakLimit)
		}
		if last, ok := lastByLane[n.Lane]; ok && n.TimeMs-last <= cfg.MinNoteGapMs {
			t.Fatalf("per-lane gap violated on lane %v at %d: dt=%d", n.Lane, i, n.TimeMs-last)
		}
		lastByLane[n.Lane] = n.TimeMs
	}
}
