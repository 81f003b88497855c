package notemap

import (
	"errors"
	"math"
	"math/cmplx"
	"testing"

	"github.com/mjibson/go-dsp/fft"
)

var defaultCutoffs = [NumLanes]float64{0.10, 0.45, 1.0}

func TestNewAnalyzerRejectsBadSize(t *testing.T) {
	for _, n := range []int{0, -2, 3, 1000} {
		if _, err := NewAnalyzer(n, defaultCutoffs); !errors.Is(err, ErrInvalidConfig) {
			t.Fatalf("size=%d: expected ErrInvalidConfig, got %v", n, err)
		}
	}
}

func TestAnalyzerLaneBinSplit(t *testing.T) {
	an, err := NewAnalyzer(2048, defaultCutoffs)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	if an.Bins() != 1025 {
		t.Fatalf("bins=%d want=1025", an.Bins())
	}
	var counts [NumLanes]int
	for _, l := range an.laneOf {
		counts[l]++
	}
	// p=i/1025: i<102.5 is bass, i<461.25 is mid.
	want := [NumLanes]int{103, 359, 563}
	if counts != want {
		t.Fatalf("lane bin counts got=%v want=%v", counts, want)
	}
}

func TestAnalyzerPeaksMatchReferenceFFT(t *testing.T) {
	const n = 1024
	an, err := NewAnalyzer(n, defaultCutoffs)
	if err != nil {
		t.Fatalf("NewAnalyzer: %v", err)
	}
	frame := make([]float64, n)
	for i := range frame {
		// Bin-centred tones, one per lane.
		frame[i] = 0.8*math.Sin(2*math.Pi*20*float64(i)/n) +
			0.5*math.Sin(2*math.Pi*150*float64(i)/n) +
			0.3*math.Cos(2*math.Pi*400*float64(i)/n)
	}
	got := an.Peaks(frame)

	ref := fft.FFTReal(frame)
	bins := n/2 + 1
	var want LanePeaks
	for i := range bins {
		l := laneForBin(i, bins, defaultCutoffs)
		want[l] = math.Max(want[l], cmplx.Abs(ref[i]))
	}
	for l := range NumLanes {
		if math.Abs(got[l]-want[l]) > 1e-6*want[l] {
			t.Fatalf("lane %d peak got=%v want=%v", l, got[l], want[l])
		}
	}
	// A bin-centred sine of amplitude a has magnitude a*n/2.
	if math.Abs(got[LaneBass]-0.8*n/2) > 1e-6 {
		t.Fatalf("bass magnitude got=%v want=%v", got[LaneBass], 0.8*n/2)
	}
}

func TestAnalyzerSilenceHasZeroPeaks(t *testing.T) {
	an, _ := NewAnalyzer(256, defaultCutoffs)
	if got := an.Peaks(make([]float64, 256)); got != (LanePeaks{}) {
		t.Fatalf("silence peaks=%v", got)
	}
}

func TestAnalyzerFramesSkipsPartialTail(t *testing.T) {
	an, _ := NewAnalyzer(64, defaultCutoffs)
	sig := Signal{Samples: make([]float64, 64*5+63), SampleRate: 8000}

	var starts []int
	for start := range an.Frames(sig, 64*2) {
		starts = append(starts, start)
	}
	want := []int{128, 192, 256}
	if len(starts) != len(want) {
		t.Fatalf("starts=%v want=%v", starts, want)
	}
	for i := range want {
		if starts[i] != want[i] {
			t.Fatalf("starts=%v want=%v", starts, want)
		}
	}
	if c := an.FrameCount(len(sig.Samples), 128); c != 3 {
		t.Fatalf("FrameCount=%d want=3", c)
	}
	if c := an.FrameCount(63, 0); c != 0 {
		t.Fatalf("FrameCount of a partial frame=%d", c)
	}
}

func TestAnalyzerFramesRestartAndBreak(t *testing.T) {
	an, _ := NewAnalyzer(32, defaultCutoffs)
	sig := Signal{Samples: make([]float64, 32*10), SampleRate: 8000}

	seq := an.Frames(sig, 0)
	count := func() int {
		n := 0
		for range seq {
			n++
		}
		return n
	}
	if a, b := count(), count(); a != 10 || b != 10 {
		t.Fatalf("sequence not restartable: %d then %d", a, b)
	}

	n := 0
	for start := range seq {
		n++
		if start >= 64 {
			break
		}
	}
	if n != 3 {
		t.Fatalf("early break visited %d frames", n)
	}
}
