package notemap

import (
	"context"
	"fmt"
	"math"
	"slices"
	"sync"
)

// Calibration is the outcome of the statistical pass over a signal.
type Calibration struct {
	Thresholds Thresholds    `json:"thresholds"`
	Counts     [NumLanes]int `json:"counts"`
}

// FellBack reports whether lane never rose above the noise floor, so its base
// threshold is the configured default.
func (c Calibration) FellBack(l Lane) bool {
	return c.Counts[l] == 0
}

// Calibrate derives per-lane base thresholds from the whole signal using the
// auto-mode parameters of cfg. The mode field itself is not consulted.
func Calibrate(ctx context.Context, sig Signal, cfg Config) (Calibration, error) {
	auto := cfg
	auto.Mode = ModeAuto
	if err := auto.Validate(); err != nil {
		return Calibration{}, err
	}
	if err := sig.Validate(); err != nil {
		return Calibration{}, err
	}
	return calibrate(ctx, sig, auto)
}

func calibrate(ctx context.Context, sig Signal, cfg Config) (Calibration, error) {
	an, err := NewAnalyzer(cfg.BufferSize, cfg.LaneCutoffs)
	if err != nil {
		return Calibration{}, err
	}
	total := an.FrameCount(len(sig.Samples), 0)

	workers := cfg.CalibrationWorkers
	if workers > total {
		workers = total
	}

	var observed [NumLanes][]float64
	if workers <= 1 {
		observed, err = collectPeaks(ctx, an, sig, 0, total, cfg.Auto.NoiseFloor)
		if err != nil {
			return Calibration{}, err
		}
	} else {
		observed, err = collectPeaksParallel(ctx, sig, cfg, total, workers)
		if err != nil {
			return Calibration{}, err
		}
	}

	var cal Calibration
	for l := range NumLanes {
		cal.Counts[l] = len(observed[l])
		if len(observed[l]) == 0 {
			cal.Thresholds[l] = cfg.Auto.DefaultThreshold
			continue
		}
		cal.Thresholds[l] = percentile(observed[l], cfg.Auto.Percentile)
	}
	return cal, nil
}

// collectPeaks gathers the above-floor lane peaks of frames [first, last).
func collectPeaks(ctx context.Context, an *Analyzer, sig Signal, first, last int, floor float64) ([NumLanes][]float64, error) {
	var out [NumLanes][]float64
	size := an.Size()
	for f := first; f < last; f++ {
		if err := ctx.Err(); err != nil {
			return out, fmt.Errorf("calibration cancelled: %w", err)
		}
		start := f * size
		peaks := an.Peaks(sig.Samples[start : start+size])
		for l, p := range peaks {
			if p > floor {
				out[l] = append(out[l], p)
			}
		}
	}
	return out, nil
}

func collectPeaksParallel(ctx context.Context, sig Signal, cfg Config, total, workers int) ([NumLanes][]float64, error) {
	type chunk struct {
		peaks [NumLanes][]float64
		err   error
	}
	results := make([]chunk, workers)
	per := (total + workers - 1) / workers

	var wg sync.WaitGroup
	for w := range workers {
		first := w * per
		last := min(first+per, total)
		if first >= last {
			continue
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			an, err := NewAnalyzer(cfg.BufferSize, cfg.LaneCutoffs)
			if err != nil {
				results[w].err = err
				return
			}
			results[w].peaks, results[w].err = collectPeaks(ctx, an, sig, first, last, cfg.Auto.NoiseFloor)
		}()
	}
	wg.Wait()

	var merged [NumLanes][]float64
	for _, r := range results {
		if r.err != nil {
			return merged, r.err
		}
		for l := range NumLanes {
			merged[l] = append(merged[l], r.peaks[l]...)
		}
	}
	return merged, nil
}

// percentile returns the p-th percentile of values using linear
// interpolation between closest ranks. values is sorted in place.
func percentile(values []float64, p float64) float64 {
	if len(values) == 0 {
		return math.NaN()
	}
	slices.Sort(values)
	if len(values) == 1 {
		return values[0]
	}
	rank := p / 100.0 * float64(len(values)-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if hi >= len(values) {
		hi = len(values) - 1
	}
	frac := rank - float64(lo)
	return values[lo] + (values[hi]-values[lo])*frac
}
