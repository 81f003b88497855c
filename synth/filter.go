package synth

import "math"

// biquad is a direct form I second-order section.
type biquad struct {
	b0, b1, b2 float64
	a1, a2     float64

	x1, x2 float64
	y1, y2 float64
}

// newLowpass returns an RBJ lowpass at cutoff Hz.
func newLowpass(cutoff float64, sampleRate int, q float64) *biquad {
	w0 := 2.0 * math.Pi * cutoff / float64(sampleRate)
	alpha := math.Sin(w0) / (2.0 * q)
	cosw0 := math.Cos(w0)
	a0 := 1.0 + alpha
	return &biquad{
		b0: (1.0 - cosw0) / 2.0 / a0,
		b1: (1.0 - cosw0) / a0,
		b2: (1.0 - cosw0) / 2.0 / a0,
		a1: -2.0 * cosw0 / a0,
		a2: (1.0 - alpha) / a0,
	}
}

func (b *biquad) process(x float64) float64 {
	y := b.b0*x + b.b1*b.x1 + b.b2*b.x2 - b.a1*b.y1 - b.a2*b.y2
	b.x2, b.x1 = b.x1, x
	b.y2, b.y1 = b.y1, y
	return y
}

func (b *biquad) processBlock(x []float64) {
	for i, v := range x {
		x[i] = b.process(v)
	}
}
