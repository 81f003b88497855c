package main

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/cwbudde/algo-notemap/analysis"
	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/preset"
)

type outputPaths struct {
	melody       string
	basePreset   string
	outputPreset string
	report       string
}

func (o outputPaths) reportPath() string {
	if o.report != "" {
		return o.report
	}
	return o.outputPreset + ".report.json"
}

type runReport struct {
	Melody          string             `json:"melody"`
	PresetPath      string             `json:"preset_path,omitempty"`
	OutputPreset    string             `json:"output_preset"`
	DurationSec     float64            `json:"elapsed_seconds"`
	Evaluations     int                `json:"evaluations"`
	MayflyVariant   string             `json:"mayfly_variant"`
	BestScore       float64            `json:"best_score"`
	BestSimilarity  float64            `json:"best_similarity"`
	BestMetrics     analysis.Metrics   `json:"best_metrics"`
	BestKnobs       map[string]float64 `json:"best_knobs"`
	CheckpointCount int                `json:"checkpoint_count"`
	TopCandidates   []topCandidate     `json:"top_candidates,omitempty"`
}

// writeOutputs stores the tuned configuration as a preset next to a report of
// the run. Synth settings are carried over from base unchanged.
func writeOutputs(
	out outputPaths,
	base *preset.Preset,
	elapsed float64,
	evals int,
	variant string,
	defs []knobDef,
	best candidate,
	bestM analysis.Metrics,
	bestConfig notemap.Config,
	checkpoints int,
	top []topCandidate,
) error {
	tuned := preset.Default()
	if base != nil {
		*tuned = *base
	}
	tuned.Config = bestConfig
	if err := preset.SaveJSON(out.outputPreset, tuned); err != nil {
		return err
	}

	knobs := make(map[string]float64, len(defs))
	for i, d := range defs {
		knobs[d.Name] = best.Vals[i]
	}

	rep := runReport{
		Melody:          out.melody,
		PresetPath:      out.basePreset,
		OutputPreset:    out.outputPreset,
		DurationSec:     elapsed,
		Evaluations:     evals,
		MayflyVariant:   variant,
		BestScore:       bestM.Score,
		BestSimilarity:  bestM.Similarity,
		BestMetrics:     bestM,
		BestKnobs:       knobs,
		CheckpointCount: checkpoints,
		TopCandidates:   top,
	}
	return writeJSON(out.reportPath(), rep)
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}
