package cli

import (
	"bytes"
	"runtime"
	"strings"
	"testing"

	"github.com/cwbudde/algo-notemap/notemap"
)

func TestParseWorkers(t *testing.T) {
	if n, err := ParseWorkers(" Auto "); err != nil || n != runtime.NumCPU() {
		t.Fatalf("auto: n=%d err=%v", n, err)
	}
	if n, err := ParseWorkers("4"); err != nil || n != 4 {
		t.Fatalf("4: n=%d err=%v", n, err)
	}
	for _, bad := range []string{"", "0", "-3", "many"} {
		if _, err := ParseWorkers(bad); err == nil {
			t.Fatalf("expected error for %q", bad)
		}
	}
}

func TestPrintSummaryListsLanes(t *testing.T) {
	res := &notemap.Result{
		Notes: []notemap.NoteEvent{
			{Lane: notemap.LaneBass, TimeMs: 10},
			{Lane: notemap.LaneTreble, TimeMs: 200},
		},
		Frames: 40,
	}
	var buf bytes.Buffer
	PrintSummary(&buf, "song", res, notemap.ModeFixed)
	out := buf.String()
	for _, want := range []string{"Frames", "40", "bass", "mid", "treble", "fixed"} {
		if !strings.Contains(out, want) {
			t.Fatalf("summary missing %q:\n%s", want, out)
		}
	}
}

func TestLaneChartSkipsInvalidLanes(t *testing.T) {
	chart := LaneChart([]notemap.NoteEvent{{Lane: notemap.NoLane}, {Lane: notemap.LaneMid}})
	if !strings.Contains(chart, "M") || strings.Contains(chart, "N") {
		t.Fatalf("chart=%q", chart)
	}
}
