// Package analysis scores generated note charts against known onsets.
package analysis

import (
	"math"
	"slices"

	"github.com/cwbudde/algo-notemap/notemap"
)

// DefaultToleranceMs is the matching window used by the tools.
const DefaultToleranceMs = 70

// Metrics contains agreement measurements between reference onsets and
// generated notes.
type Metrics struct {
	ToleranceMs int64 `json:"tolerance_ms"`

	Onsets         int `json:"onsets"`
	Notes          int `json:"notes"`
	Matched        int `json:"matched"`
	Missed         int `json:"missed"`
	FalsePositives int `json:"false_positives"`

	Precision       float64 `json:"precision"`
	Recall          float64 `json:"recall"`
	F1              float64 `json:"f1"`
	MeanOffsetMs    float64 `json:"mean_offset_ms"`
	MeanAbsOffsetMs float64 `json:"mean_abs_offset_ms"`
	LagMs           float64 `json:"lag_ms"`

	LaneCounts  [notemap.NumLanes]int `json:"lane_counts"`
	LaneBalance float64               `json:"lane_balance"`

	Score      float64 `json:"score"`
	Similarity float64 `json:"similarity"`
}

// Compare matches notes to onsets (both in ms, ascending) and returns a
// combined score in [0,1], lower is better.
func Compare(onsetsMs []int64, notes []notemap.NoteEvent, toleranceMs int64) Metrics {
	m := Metrics{
		ToleranceMs: toleranceMs,
		Onsets:      len(onsetsMs),
		Notes:       len(notes),
	}
	for _, n := range notes {
		if n.Lane >= 0 && int(n.Lane) < notemap.NumLanes {
			m.LaneCounts[n.Lane]++
		}
	}
	m.LaneBalance = laneBalance(m.LaneCounts)
	if toleranceMs < 0 || len(onsetsMs) == 0 || len(notes) == 0 {
		m.Missed = len(onsetsMs)
		m.FalsePositives = len(notes)
		m.Score = 1.0
		m.Similarity = 0.0
		return m
	}

	offsets := matchGreedy(onsetsMs, notes, toleranceMs)
	m.Matched = len(offsets)
	m.Missed = m.Onsets - m.Matched
	m.FalsePositives = m.Notes - m.Matched
	m.Precision = float64(m.Matched) / float64(m.Notes)
	m.Recall = float64(m.Matched) / float64(m.Onsets)
	if m.Precision+m.Recall > 0 {
		m.F1 = 2 * m.Precision * m.Recall / (m.Precision + m.Recall)
	}
	if len(offsets) > 0 {
		var sum, abs float64
		for _, d := range offsets {
			sum += d
			abs += math.Abs(d)
		}
		m.MeanOffsetMs = sum / float64(len(offsets))
		m.MeanAbsOffsetMs = abs / float64(len(offsets))
		m.LagMs = median(offsets)
	}

	offNorm := 1.0
	if toleranceMs > 0 && len(offsets) > 0 {
		offNorm = clamp01(m.MeanAbsOffsetMs / float64(toleranceMs))
	} else if len(offsets) > 0 {
		offNorm = 0
	}
	m.Score = clamp01(0.65*(1-m.F1) + 0.20*offNorm + 0.15*(1-m.LaneBalance))
	m.Similarity = clamp01(math.Exp(-4.0 * m.Score))
	return m
}

// matchGreedy walks both sequences in time order and pairs each onset with
// the first unused note inside the window. It returns note-minus-onset
// offsets of the pairs.
func matchGreedy(onsets []int64, notes []notemap.NoteEvent, tol int64) []float64 {
	var offsets []float64
	i, j := 0, 0
	for i < len(onsets) && j < len(notes) {
		d := notes[j].TimeMs - onsets[i]
		switch {
		case d < -tol:
			j++
		case d > tol:
			i++
		default:
			offsets = append(offsets, float64(d))
			i++
			j++
		}
	}
	return offsets
}

// laneBalance is the normalized entropy of the lane histogram: 1 for an even
// spread, 0 when everything lands in one lane.
func laneBalance(counts [notemap.NumLanes]int) float64 {
	total := 0
	for _, c := range counts {
		total += c
	}
	if total == 0 {
		return 0
	}
	h := 0.0
	for _, c := range counts {
		if c == 0 {
			continue
		}
		p := float64(c) / float64(total)
		h -= p * math.Log(p)
	}
	return clamp01(h / math.Log(notemap.NumLanes))
}

func median(x []float64) float64 {
	s := slices.Clone(x)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return 0.5 * (s[mid-1] + s[mid])
}

func clamp01(x float64) float64 {
	if x < 0 {
		return 0
	}
	if x > 1 {
		return 1
	}
	return x
}
