package synth

import (
	"math/rand"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// pluckString is a single-delay waveguide string excited with noise.
type pluckString struct {
	delayLength float32
	delayLine   []float32
	writePos    int

	reflection   float32
	lowpassCoeff float32
	loopState    float32
}

func newPluckString(sampleRate int, f0 float32) *pluckString {
	s := &pluckString{
		delayLength:  float32(sampleRate) / f0,
		reflection:   0.996,
		lowpassCoeff: 0.5,
	}
	intDelay := int(s.delayLength)
	if intDelay < 2 {
		intDelay = 2
	}
	s.delayLine = make([]float32, intDelay+4)
	return s
}

// excite fills one period of the loop with zero-mean noise.
func (s *pluckString) excite(rng *rand.Rand, force float32) {
	n := int(s.delayLength)
	if n > len(s.delayLine) {
		n = len(s.delayLine)
	}
	mean := float32(0)
	burst := make([]float32, n)
	for i := range burst {
		burst[i] = rng.Float32()*2 - 1
		mean += burst[i]
	}
	mean /= float32(n)
	for i, v := range burst {
		pos := (s.writePos + i) % len(s.delayLine)
		s.delayLine[pos] += force * (v - mean)
	}
}

func (s *pluckString) process() float32 {
	delayed := s.readDelayFractional(s.delayLength)
	s.delayLine[s.writePos] = s.processLoopLoss(delayed)
	s.writePos = (s.writePos + 1) % len(s.delayLine)
	return delayed
}

func (s *pluckString) processLoopLoss(input float32) float32 {
	lp := (1.0-s.lowpassCoeff)*input + s.lowpassCoeff*s.loopState
	lp = float32(dspcore.FlushDenormals(float64(lp)))
	s.loopState = lp
	return float32(dspcore.FlushDenormals(float64(lp * s.reflection)))
}

func (s *pluckString) readDelayFractional(delay float32) float32 {
	intDelay := int(delay)
	frac := delay - float32(intDelay)
	readPos1 := (s.writePos - intDelay + len(s.delayLine)) % len(s.delayLine)
	readPos2 := (s.writePos - intDelay - 1 + len(s.delayLine)) % len(s.delayLine)
	return s.delayLine[readPos1]*(1.0-frac) + s.delayLine[readPos2]*frac
}
