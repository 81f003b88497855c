package synth

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/cwbudde/algo-approx"
	"github.com/cwbudde/algo-notemap/melody"
)

// Render mixes notes one after another into a mono buffer. Each sounding
// note starts at its onset and keeps ringing for ReleaseMs past its end, so
// the buffer is the song length plus one release tail.
func Render(notes []melody.Note, opts Options) ([]float64, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	rate := float64(opts.SampleRate)
	totalMs := 0.0
	for _, n := range notes {
		if !isFinite(n.DurationMs) || n.DurationMs < 0 {
			return nil, fmt.Errorf("%w: note duration %g", ErrInvalidOptions, n.DurationMs)
		}
		totalMs += n.DurationMs
	}
	releaseSamples := msToSamples(opts.ReleaseMs, rate)
	out := make([]float64, msToSamples(totalMs, rate)+releaseSamples)

	rng := rand.New(rand.NewSource(opts.Seed))
	detune := 1.0
	if opts.DetuneCents != 0 {
		detune = float64(pow2Approx(float32(opts.DetuneCents / 1200.0)))
	}
	t := 0.0
	for _, n := range notes {
		start := msToSamples(t, rate)
		t += n.DurationMs
		if n.IsRest() || n.Frequency <= 0 {
			continue
		}
		hold := msToSamples(t, rate) - start
		renderNote(out[start:], n.Frequency*detune, hold, releaseSamples, opts, rng)
	}

	if opts.ToneHz > 0 {
		newLowpass(opts.ToneHz, opts.SampleRate, math.Sqrt2/2).processBlock(out)
	}
	if opts.RoomMix > 0 {
		ir := roomIR(opts.SampleRate, opts.RoomDecayMs, opts.Seed)
		if err := applyRoom(out, opts.RoomMix, ir); err != nil {
			return nil, err
		}
	}
	for i, v := range out {
		out[i] = math.Max(-1, math.Min(1, v*opts.Gain))
	}
	return out, nil
}

// renderNote adds one note to dst: hold samples with a linear attack, then
// an exponential release of release samples.
func renderNote(dst []float64, freq float64, hold, release int, opts Options, rng *rand.Rand) {
	attack := msToSamples(opts.AttackMs, float64(opts.SampleRate))
	var next func() float64
	switch opts.Waveform {
	case WaveformSine:
		phase, step := 0.0, 2*math.Pi*freq/float64(opts.SampleRate)
		next = func() float64 {
			v := math.Sin(phase)
			phase += step
			return v
		}
	default:
		str := newPluckString(opts.SampleRate, float32(freq))
		str.excite(rng, 1)
		next = func() float64 { return float64(str.process()) }
	}

	// Five time constants over the tail.
	tau := float32(release) / 5
	for i := 0; i < hold+release && i < len(dst); i++ {
		env := float32(1)
		if i < attack {
			env = float32(i+1) / float32(attack)
		}
		if i >= hold {
			env *= approx.FastExp(-float32(i-hold) / tau)
		}
		dst[i] += float64(env) * next()
	}
}

func pow2Approx(x float32) float32 {
	const ln2 = 0.69314718055994530942
	return approx.FastExp(x * ln2)
}

func msToSamples(ms, rate float64) int {
	return int(ms * rate / 1000.0)
}
