package notemap

import (
	"iter"
	"math/cmplx"

	algofft "github.com/cwbudde/algo-fft"
)

// Analyzer computes per-lane spectral peaks for fixed-size frames.
//
// An Analyzer owns its FFT scratch buffers and must not be shared between
// goroutines. Peaks is a pure function of the frame contents.
type Analyzer struct {
	size    int
	forward func(dst []complex128, src []float64)
	buf     []float64
	spec    []complex128
	laneOf  []Lane
}

// NewAnalyzer builds an analyzer for frames of bufferSize samples split into
// lanes at the given normalized bin cutoffs.
func NewAnalyzer(bufferSize int, cutoffs [NumLanes]float64) (*Analyzer, error) {
	if bufferSize <= 0 || bufferSize&(bufferSize-1) != 0 {
		return nil, configErrorf("buffer size must be a positive power of two (got %d)", bufferSize)
	}
	if err := validateCutoffs(cutoffs); err != nil {
		return nil, err
	}
	plan, err := algofft.NewPlanReal64(bufferSize)
	if err != nil {
		return nil, configErrorf("fft plan for size %d: %v", bufferSize, err)
	}

	bins := bufferSize/2 + 1
	a := &Analyzer{
		size: bufferSize,
		forward: func(dst []complex128, src []float64) {
			plan.Forward(dst, src)
		},
		buf:    make([]float64, bufferSize),
		spec:   make([]complex128, bins),
		laneOf: make([]Lane, bins),
	}
	for i := range bins {
		a.laneOf[i] = laneForBin(i, bins, cutoffs)
	}
	return a, nil
}

func laneForBin(i, bins int, cutoffs [NumLanes]float64) Lane {
	p := float64(i) / float64(bins)
	switch {
	case p < cutoffs[LaneBass]:
		return LaneBass
	case p < cutoffs[LaneMid]:
		return LaneMid
	default:
		return LaneTreble
	}
}

// Size returns the frame length in samples.
func (a *Analyzer) Size() int { return a.size }

// Bins returns the spectrum length.
func (a *Analyzer) Bins() int { return len(a.spec) }

// Peaks returns the maximum magnitude per lane of one frame. frame must hold
// exactly Size samples.
func (a *Analyzer) Peaks(frame []float64) LanePeaks {
	copy(a.buf, frame[:a.size])
	a.forward(a.spec, a.buf)

	var peaks LanePeaks
	for i, c := range a.spec {
		mag := cmplx.Abs(c)
		if l := a.laneOf[i]; mag > peaks[l] {
			peaks[l] = mag
		}
	}
	return peaks
}

// Frames yields (frameStartSample, peaks) for every full frame of sig starting
// at offset. A trailing partial frame is skipped. The sequence can be ranged
// over any number of times.
func (a *Analyzer) Frames(sig Signal, offset int) iter.Seq2[int, LanePeaks] {
	return func(yield func(int, LanePeaks) bool) {
		for start := max(offset, 0); start+a.size <= len(sig.Samples); start += a.size {
			if !yield(start, a.Peaks(sig.Samples[start:start+a.size])) {
				return
			}
		}
	}
}

// FrameCount returns how many full frames Frames yields for a signal of n
// samples starting at offset.
func (a *Analyzer) FrameCount(n int, offset int) int {
	if offset < 0 {
		offset = 0
	}
	if n-offset < a.size {
		return 0
	}
	return (n - offset) / a.size
}
