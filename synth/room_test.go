package synth

import (
	"math"
	"testing"

	"github.com/cwbudde/algo-notemap/melody"
)

func TestRoomIRHasUnitEnergy(t *testing.T) {
	ir := roomIR(22050, 300, 7)
	if want := int(math.Round(0.3 * 22050)); len(ir) != want {
		t.Fatalf("len=%d want=%d", len(ir), want)
	}
	e := 0.0
	for _, v := range ir {
		e += float64(v) * float64(v)
	}
	if math.Abs(e-1) > 1e-4 {
		t.Fatalf("energy=%v want=1", e)
	}
}

func TestRoomIRDeterministicPerSeed(t *testing.T) {
	a := roomIR(22050, 200, 1)
	b := roomIR(22050, 200, 1)
	c := roomIR(22050, 200, 2)
	same := true
	for i := range a {
		if a[i] != b[i] {
			t.Fatalf("same seed differs at %d", i)
		}
		if a[i] != c[i] {
			same = false
		}
	}
	if same {
		t.Fatal("different seeds gave identical responses")
	}
}

func TestApplyRoomImpulseReproducesResponse(t *testing.T) {
	ir := roomIR(8000, 50, 3)
	x := make([]float64, 1000)
	x[0] = 1
	if err := applyRoom(x, 1, ir); err != nil {
		t.Fatalf("applyRoom: %v", err)
	}
	for i, v := range x {
		want := 0.0
		if i < len(ir) {
			want = float64(ir[i])
		}
		if math.Abs(v-want) > 1e-4 {
			t.Fatalf("sample %d: got %v want %v", i, v, want)
		}
	}
}

func TestApplyRoomDryMixIsIdentity(t *testing.T) {
	x := []float64{0.5, -0.25, 0.125, 0, 0.75}
	orig := append([]float64(nil), x...)
	if err := applyRoom(x, 0, roomIR(8000, 20, 1)); err != nil {
		t.Fatalf("applyRoom: %v", err)
	}
	for i := range x {
		if x[i] != orig[i] {
			t.Fatalf("sample %d changed: %v -> %v", i, orig[i], x[i])
		}
	}
}

func TestRenderRoomFillsRests(t *testing.T) {
	song, err := melody.Parse("r:d=4,o=5,b=120:8c,p")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	opts := DefaultOptions()
	opts.Waveform = WaveformSine
	opts.ReleaseMs = 10

	dry, err := Render(song.Notes, opts)
	if err != nil {
		t.Fatalf("dry: %v", err)
	}
	opts.RoomMix = 0.5
	wet, err := Render(song.Notes, opts)
	if err != nil {
		t.Fatalf("wet: %v", err)
	}
	if len(wet) != len(dry) {
		t.Fatalf("len wet=%d dry=%d", len(wet), len(dry))
	}

	// 100 ms into the rest the dry render is silent.
	i := msToSamples(350, float64(opts.SampleRate))
	if dry[i] != 0 {
		t.Fatalf("dry render not silent at %d: %v", i, dry[i])
	}
	tail := 0.0
	for _, v := range wet[i : i+1000] {
		tail = math.Max(tail, math.Abs(v))
	}
	if tail < 1e-4 {
		t.Fatalf("room tail missing: peak %v", tail)
	}
}

func TestRoomOptionsValidate(t *testing.T) {
	o := DefaultOptions()
	o.RoomMix = 1.5
	if o.Validate() == nil {
		t.Fatal("room mix > 1 accepted")
	}
	o.RoomMix = 0.3
	o.RoomDecayMs = 0
	if o.Validate() == nil {
		t.Fatal("zero room decay accepted with room enabled")
	}
	o.RoomMix = 0
	if err := o.Validate(); err != nil {
		t.Fatalf("dry render rejected: %v", err)
	}
}
