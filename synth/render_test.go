package synth

import (
	"errors"
	"math"
	"testing"

	"github.com/cwbudde/algo-notemap/melody"
)

func testSong(t *testing.T, src string) melody.Song {
	t.Helper()
	s, err := melody.Parse(src)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return s
}

func rms(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

func TestRenderLengthIncludesReleaseTail(t *testing.T) {
	s := testSong(t, "t:d=4,o=5,b=120:c,d,e")
	opts := DefaultOptions()
	out, err := Render(s.Notes, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	want := msToSamples(1500, 44100) + msToSamples(opts.ReleaseMs, 44100)
	if len(out) != want {
		t.Fatalf("length=%d want=%d", len(out), want)
	}
}

func TestRenderRestsAreSilent(t *testing.T) {
	s := testSong(t, "t:d=4,o=5,b=120:c,p,p,e")
	opts := DefaultOptions()
	opts.ReleaseMs = 20
	out, err := Render(s.Notes, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// The first note's tail ends 20ms into the rest.
	restStart := msToSamples(500+30, 44100)
	restEnd := msToSamples(1500, 44100)
	if r := rms(out[restStart:restEnd]); r != 0 {
		t.Fatalf("rest region rms=%v", r)
	}
	if r := rms(out[:restStart]); r < 0.01 {
		t.Fatalf("first note too quiet: rms=%v", r)
	}
	if r := rms(out[restEnd:]); r < 0.01 {
		t.Fatalf("last note too quiet: rms=%v", r)
	}
}

func TestRenderSinePitch(t *testing.T) {
	s := testSong(t, "t:d=1,o=4,b=60:a")
	opts := DefaultOptions()
	opts.Waveform = WaveformSine
	out, err := Render(s.Notes, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	// A whole note at 60 bpm lasts 4s; count rising zero crossings over 1s.
	seg := out[44100 : 2*44100]
	crossings := 0
	for i := 1; i < len(seg); i++ {
		if seg[i-1] < 0 && seg[i] >= 0 {
			crossings++
		}
	}
	if crossings < 438 || crossings > 442 {
		t.Fatalf("rising zero crossings=%d want ~440", crossings)
	}
}

func TestRenderDeterministicPerSeed(t *testing.T) {
	s := testSong(t, "t:d=8,o=5,b=180:c,e,g,c6")
	opts := DefaultOptions()
	a, _ := Render(s.Notes, opts)
	b, _ := Render(s.Notes, opts)
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("sample %d differs between runs", i)
		}
	}
	opts.Seed = 99
	c, _ := Render(s.Notes, opts)
	same := true
	for i := range a {
		if a[i] != c[i] {
			same = false
			break
		}
	}
	if same {
		t.Fatal("different seeds produced identical excitation")
	}
}

func TestRenderClipsAndToneFilters(t *testing.T) {
	s := testSong(t, "t:d=4,o=5,b=120:c,c,c")
	opts := DefaultOptions()
	opts.Waveform = WaveformSine
	opts.Gain = 8
	opts.ToneHz = 2000
	out, err := Render(s.Notes, opts)
	if err != nil {
		t.Fatalf("Render: %v", err)
	}
	for i, v := range out {
		if v > 1 || v < -1 || math.IsNaN(v) {
			t.Fatalf("sample %d out of range: %v", i, v)
		}
	}
}

func TestRenderRejectsBadOptions(t *testing.T) {
	cases := []func(*Options){
		func(o *Options) { o.SampleRate = 100 },
		func(o *Options) { o.Waveform = "square" },
		func(o *Options) { o.Gain = 0 },
		func(o *Options) { o.ReleaseMs = -1 },
		func(o *Options) { o.DetuneCents = 5000 },
		func(o *Options) { o.ToneHz = 30000 },
	}
	for i, edit := range cases {
		opts := DefaultOptions()
		edit(&opts)
		if _, err := Render(nil, opts); !errors.Is(err, ErrInvalidOptions) {
			t.Fatalf("case %d: expected ErrInvalidOptions, got %v", i, err)
		}
	}
}

func TestPluckStringDecays(t *testing.T) {
	s := newPluckString(44100, 220)
	s.excite(newTestRand(), 1)
	early := make([]float64, 2048)
	for i := range early {
		early[i] = float64(s.process())
	}
	for range 44100 {
		s.process()
	}
	late := make([]float64, 2048)
	for i := range late {
		late[i] = float64(s.process())
	}
	if rms(late) >= rms(early)*0.5 {
		t.Fatalf("string did not decay: early=%v late=%v", rms(early), rms(late))
	}
}
