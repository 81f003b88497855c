package analysis

import (
	"math"
	"math/rand"
	"testing"

	"github.com/cwbudde/algo-notemap/notemap"
)

func notesAt(times []int64) []notemap.NoteEvent {
	out := make([]notemap.NoteEvent, len(times))
	for i, t := range times {
		out[i] = notemap.NoteEvent{Lane: notemap.Lane(i % notemap.NumLanes), TimeMs: t}
	}
	return out
}

func TestComparePerfectChartHasLowScore(t *testing.T) {
	onsets := []int64{0, 300, 600, 900, 1200, 1500}
	m := Compare(onsets, notesAt(onsets), DefaultToleranceMs)
	if m.Matched != 6 || m.F1 != 1 || m.MeanAbsOffsetMs != 0 {
		t.Fatalf("unexpected metrics: %+v", m)
	}
	if math.Abs(m.LaneBalance-1) > 1e-12 {
		t.Fatalf("even lanes should balance to 1, got %v", m.LaneBalance)
	}
	if m.Score > 1e-9 || m.Similarity < 0.999 {
		t.Fatalf("score=%v similarity=%v", m.Score, m.Similarity)
	}
}

func TestCompareCountsMissesAndFalsePositives(t *testing.T) {
	onsets := []int64{100, 500, 900}
	notes := notesAt([]int64{80, 300, 940, 2000})
	m := Compare(onsets, notes, 50)
	if m.Matched != 2 || m.Missed != 1 || m.FalsePositives != 2 {
		t.Fatalf("counts mismatch: %+v", m)
	}
	if math.Abs(m.Precision-0.5) > 1e-12 || math.Abs(m.Recall-2.0/3) > 1e-12 {
		t.Fatalf("precision=%v recall=%v", m.Precision, m.Recall)
	}
	if m.MeanOffsetMs != 10 || m.MeanAbsOffsetMs != 30 {
		t.Fatalf("offsets mean=%v abs=%v", m.MeanOffsetMs, m.MeanAbsOffsetMs)
	}
}

func TestCompareLagIsMedianOffset(t *testing.T) {
	onsets := []int64{0, 1000, 2000, 3000}
	notes := notesAt([]int64{-20, 980, 1990, 2970})
	m := Compare(onsets, notes, 50)
	if m.LagMs != -20 {
		t.Fatalf("lag=%v want=-20", m.LagMs)
	}
}

func TestCompareWorseChartScoresHigher(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	onsets := make([]int64, 40)
	for i := range onsets {
		onsets[i] = int64(i) * 250
	}
	good := notesAt(onsets)
	noisy := make([]int64, 0, len(onsets))
	for i, o := range onsets {
		if i%3 == 0 {
			continue
		}
		noisy = append(noisy, o+int64(rng.Intn(80))-40)
	}
	a := Compare(onsets, good, DefaultToleranceMs)
	b := Compare(onsets, notesAt(noisy), DefaultToleranceMs)
	if b.Score <= a.Score {
		t.Fatalf("noisy chart should score worse: good=%v noisy=%v", a.Score, b.Score)
	}
}

func TestCompareEmptyInputs(t *testing.T) {
	m := Compare(nil, notesAt([]int64{1, 2}), 50)
	if m.Score != 1 || m.Similarity != 0 || m.FalsePositives != 2 {
		t.Fatalf("unexpected metrics for missing onsets: %+v", m)
	}
	m = Compare([]int64{5}, nil, 50)
	if m.Score != 1 || m.Missed != 1 {
		t.Fatalf("unexpected metrics for missing notes: %+v", m)
	}
}

func TestLaneBalanceSingleLane(t *testing.T) {
	if b := laneBalance([notemap.NumLanes]int{7, 0, 0}); b != 0 {
		t.Fatalf("single lane balance=%v", b)
	}
}
