// Package audiofile decodes and encodes the WAV files the tools exchange.
package audiofile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	dspresample "github.com/cwbudde/algo-dsp/dsp/resample"
	"github.com/cwbudde/wav"
	"github.com/go-audio/audio"

	"github.com/cwbudde/algo-notemap/notemap"
)

// ErrInvalidWAV is returned for files the decoder cannot use.
var ErrInvalidWAV = errors.New("audiofile: invalid wav")

// ReadWAVMono decodes path and averages all channels into one.
func ReadWAVMono(path string) (notemap.Signal, error) {
	f, err := os.Open(path)
	if err != nil {
		return notemap.Signal{}, err
	}
	defer f.Close()
	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return notemap.Signal{}, fmt.Errorf("%w: %s", ErrInvalidWAV, path)
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return notemap.Signal{}, fmt.Errorf("decode %s: %w", path, err)
	}
	if buf == nil || buf.Format == nil || buf.Format.NumChannels < 1 || buf.Format.SampleRate <= 0 {
		return notemap.Signal{}, fmt.Errorf("%w: bad buffer in %s", ErrInvalidWAV, path)
	}
	ch := buf.Format.NumChannels
	frames := len(buf.Data) / ch
	out := make([]float64, frames)
	for i := range frames {
		var sum float64
		for c := range ch {
			sum += float64(buf.Data[i*ch+c])
		}
		out[i] = sum / float64(ch)
	}
	return notemap.Signal{Samples: out, SampleRate: buf.Format.SampleRate}, nil
}

// LoadSignal reads path and, when targetRate > 0, resamples to it.
func LoadSignal(path string, targetRate int) (notemap.Signal, error) {
	sig, err := ReadWAVMono(path)
	if err != nil {
		return notemap.Signal{}, err
	}
	if targetRate <= 0 || targetRate == sig.SampleRate {
		return sig, nil
	}
	samples, err := ResampleIfNeeded(sig.Samples, sig.SampleRate, targetRate)
	if err != nil {
		return notemap.Signal{}, fmt.Errorf("resample %s %d->%d: %w", path, sig.SampleRate, targetRate, err)
	}
	return notemap.Signal{Samples: samples, SampleRate: targetRate}, nil
}

// ResampleIfNeeded converts in from fromRate to toRate.
func ResampleIfNeeded(in []float64, fromRate int, toRate int) ([]float64, error) {
	if fromRate == toRate {
		return in, nil
	}
	r, err := dspresample.NewForRates(
		float64(fromRate),
		float64(toRate),
		dspresample.WithQuality(dspresample.QualityBest),
	)
	if err != nil {
		return nil, err
	}
	return r.Process(in), nil
}

// WriteMonoWAV writes samples as 16-bit PCM, creating parent directories.
func WriteMonoWAV(path string, samples []float64, sampleRate int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)

	data := make([]float32, len(samples))
	for i, v := range samples {
		data[i] = float32(v)
	}
	buf := &audio.Float32Buffer{
		Format: &audio.Format{
			SampleRate:  sampleRate,
			NumChannels: 1,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return err
	}
	return enc.Close()
}
