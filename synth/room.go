package synth

import (
	"fmt"
	"math"
	"math/rand"

	dspconv "github.com/cwbudde/algo-dsp/dsp/conv"
)

const (
	roomBlock      = 128
	roomEarlyCount = 16
	maxRoomDecayMs = 5000
)

// roomIR synthesizes a mono room response: sparse early reflections in the
// first 50 ms over a low-passed noise tail that decays by 60 dB in decayMs.
// The response has unit energy.
func roomIR(sampleRate int, decayMs float64, seed int64) []float32 {
	n := max(1, int(math.Round(decayMs*float64(sampleRate)/1000.0)))
	ir := make([]float64, n)
	rng := rand.New(rand.NewSource(seed))

	ir[0] = 1
	for range roomEarlyCount {
		t := 0.001 + 0.049*rng.Float64()
		idx := int(t * float64(sampleRate))
		if idx <= 0 || idx >= n {
			continue
		}
		sign := 1.0
		if rng.Intn(2) == 0 {
			sign = -1
		}
		ir[idx] += sign * (0.10 + 0.35*rng.Float64()) * math.Exp(-t*20.0)
	}

	// ln(1000) time constants reach -60 dB at the end.
	tau := decayMs / 1000.0 / math.Log(1000)
	lp := 0.0
	for i := 1; i < n; i++ {
		lp = 0.9*lp + 0.1*rng.NormFloat64()
		t := float64(i) / float64(sampleRate)
		ir[i] += 0.4 * lp * math.Exp(-t/tau)
	}

	energy := 0.0
	for _, v := range ir {
		energy += v * v
	}
	scale := 1 / math.Sqrt(energy)
	out := make([]float32, n)
	for i, v := range ir {
		out[i] = float32(v * scale)
	}
	return out
}

// applyRoom convolves x with ir in place, blending wet and dry by mix.
// Reverb past the end of x is dropped.
func applyRoom(x []float64, mix float64, ir []float32) error {
	ola, err := dspconv.NewStreamingOverlapAdd32(ir, roomBlock)
	if err != nil {
		return fmt.Errorf("room convolver: %w", err)
	}
	in := make([]float32, roomBlock)
	wet := make([]float32, roomBlock)
	for start := 0; start < len(x); start += roomBlock {
		n := min(roomBlock, len(x)-start)
		clear(in)
		for i := range n {
			in[i] = float32(x[start+i])
		}
		if err := ola.ProcessBlockTo(wet, in); err != nil {
			return fmt.Errorf("room convolver: %w", err)
		}
		for i := range n {
			x[start+i] = (1-mix)*x[start+i] + mix*float64(wet[i])
		}
	}
	return nil
}
