package audiofile

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
)

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", "tone.wav")
	const rate = 22050
	in := make([]float64, rate/2)
	for i := range in {
		in[i] = 0.5 * math.Sin(2*math.Pi*440*float64(i)/rate)
	}
	if err := WriteMonoWAV(path, in, rate); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}
	sig, err := ReadWAVMono(path)
	if err != nil {
		t.Fatalf("ReadWAVMono: %v", err)
	}
	if sig.SampleRate != rate || len(sig.Samples) != len(in) {
		t.Fatalf("format mismatch: rate=%d len=%d", sig.SampleRate, len(sig.Samples))
	}
	for i := range in {
		if math.Abs(sig.Samples[i]-in[i]) > 1e-3 {
			t.Fatalf("sample %d: got=%v want=%v", i, sig.Samples[i], in[i])
		}
	}
}

func TestLoadSignalResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a.wav")
	in := make([]float64, 22050)
	if err := WriteMonoWAV(path, in, 22050); err != nil {
		t.Fatalf("WriteMonoWAV: %v", err)
	}
	sig, err := LoadSignal(path, 44100)
	if err != nil {
		t.Fatalf("LoadSignal: %v", err)
	}
	if sig.SampleRate != 44100 {
		t.Fatalf("rate=%d", sig.SampleRate)
	}
	if d := sig.DurationMs(); math.Abs(d-1000) > 20 {
		t.Fatalf("duration after resample=%vms", d)
	}
}

func TestReadWAVMonoRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.wav")
	if err := os.WriteFile(path, []byte("definitely not riff"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := ReadWAVMono(path); !errors.Is(err, ErrInvalidWAV) {
		t.Fatalf("expected ErrInvalidWAV, got %v", err)
	}
}

func TestResampleIfNeededPassThrough(t *testing.T) {
	in := []float64{1, 2, 3}
	out, err := ResampleIfNeeded(in, 48000, 48000)
	if err != nil || &out[0] != &in[0] {
		t.Fatalf("expected the input slice back, err=%v", err)
	}
}
