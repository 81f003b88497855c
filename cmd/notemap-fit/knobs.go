package main

import (
	"fmt"
	"math"

	"github.com/cwbudde/algo-notemap/notemap"
)

type knobDef struct {
	Name  string
	Min   float64
	Max   float64
	IsInt bool
}

type candidate struct {
	Vals []float64
}

func initCandidate(base notemap.Config, tuneGaps bool) ([]knobDef, candidate) {
	defs := make([]knobDef, 0, 12)
	vals := make([]float64, 0, 12)
	addKnob := func(def knobDef, val float64) {
		defs = append(defs, def)
		vals = append(vals, val)
	}

	for l := range notemap.NumLanes {
		name := notemap.Lane(l).String()
		addKnob(knobDef{Name: fmt.Sprintf("threshold.%s", name), Min: 0.5, Max: 120}, base.Fixed.Thresholds[l])
		addKnob(knobDef{Name: fmt.Sprintf("recovery.%s", name), Min: 0.05, Max: 20}, base.Fixed.Recovery[l])
	}
	addKnob(knobDef{Name: "up_mod", Min: 1.0, Max: 3.0}, base.UpMod)
	addKnob(knobDef{Name: "max_limit", Min: 20, Max: 400}, base.Fixed.MaxLimit)
	if tuneGaps {
		addKnob(knobDef{Name: "global_cooldown_ms", Min: 0, Max: 250, IsInt: true}, float64(base.GlobalCooldownMs))
		addKnob(knobDef{Name: "min_note_gap_ms", Min: 50, Max: 500, IsInt: true}, float64(base.MinNoteGapMs))
	}

	for i := range vals {
		vals[i] = clamp(vals[i], defs[i].Min, defs[i].Max)
		if defs[i].IsInt {
			vals[i] = math.Round(vals[i])
		}
	}
	return defs, candidate{Vals: vals}
}

// applyCandidate returns base in fixed mode with every knob of c applied.
func applyCandidate(base notemap.Config, defs []knobDef, c candidate) notemap.Config {
	cfg := base
	cfg.Mode = notemap.ModeFixed
	for i, def := range defs {
		v := c.Vals[i]
		switch def.Name {
		case "threshold.bass":
			cfg.Fixed.Thresholds[notemap.LaneBass] = v
		case "threshold.mid":
			cfg.Fixed.Thresholds[notemap.LaneMid] = v
		case "threshold.treble":
			cfg.Fixed.Thresholds[notemap.LaneTreble] = v
		case "recovery.bass":
			cfg.Fixed.Recovery[notemap.LaneBass] = v
		case "recovery.mid":
			cfg.Fixed.Recovery[notemap.LaneMid] = v
		case "recovery.treble":
			cfg.Fixed.Recovery[notemap.LaneTreble] = v
		case "up_mod":
			cfg.UpMod = v
		case "max_limit":
			cfg.Fixed.MaxLimit = v
		case "global_cooldown_ms":
			cfg.GlobalCooldownMs = int64(math.Round(v))
		case "min_note_gap_ms":
			cfg.MinNoteGapMs = int64(math.Round(v))
		}
	}

	// The ceiling can never sit below a base gate.
	for _, th := range cfg.Fixed.Thresholds {
		cfg.Fixed.MaxLimit = math.Max(cfg.Fixed.MaxLimit, th)
	}
	if cfg.UpMod < 1 {
		cfg.UpMod = 1
	}
	return cfg
}

func fromNormalized(pos []float64, defs []knobDef) candidate {
	vals := make([]float64, len(defs))
	for i := range defs {
		x := 0.0
		if i < len(pos) {
			x = clamp(pos[i], 0, 1)
		}
		v := defs[i].Min + x*(defs[i].Max-defs[i].Min)
		if defs[i].IsInt {
			v = math.Round(v)
		}
		vals[i] = v
	}
	return candidate{Vals: vals}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
