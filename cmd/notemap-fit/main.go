// Command notemap-fit tunes the fixed-mode gate parameters against a melody
// whose onsets are known, using Mayfly rounds on parallel workers.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/cwbudde/algo-notemap/analysis"
	"github.com/cwbudde/algo-notemap/internal/audiofile"
	"github.com/cwbudde/algo-notemap/internal/cli"
	"github.com/cwbudde/algo-notemap/melody"
	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/preset"
	"github.com/cwbudde/algo-notemap/synth"
)

func main() {
	melodyArg := flag.String("melody", "", "RTTTL melody text or path to a file holding one")
	wavPath := flag.String("wav", "", "Optional recording of the melody to map instead of the synthesized render")
	presetPath := flag.String("preset", "", "Base preset JSON path (empty uses built-in defaults)")
	outputPreset := flag.String("output-preset", "out/fit/tuned.json", "Path to write best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	seed := flag.Int64("seed", 1, "Random seed")
	timeBudget := flag.Float64("time-budget", 60.0, "Optimization time budget in seconds")
	maxEvals := flag.Int("max-evals", 2000, "Maximum objective evaluations")
	reportEvery := flag.Int("report-every", 50, "Print progress every N evaluations")
	checkpointEvery := flag.Int("checkpoint-every", 1, "Write checkpoint every N best-score improvements")
	toleranceMs := flag.Int64("tolerance-ms", analysis.DefaultToleranceMs, "Onset matching window in milliseconds")
	tuneGaps := flag.Bool("tune-gaps", false, "Also tune the global cooldown and per-lane gap")
	topK := flag.Int("top-k", 5, "How many top candidates to keep in report")
	resume := flag.Bool("resume", true, "Resume from previous best_knobs report when available")
	resumeReport := flag.String("resume-report", "", "Optional report JSON path to resume from (default: current report path)")
	workers := flag.String("workers", "1", "Parallel optimization workers running independent Mayfly rounds (number or 'auto')")

	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 10, "Male and female population size per Mayfly run")
	mayflyRoundEvals := flag.Int("mayfly-round-evals", 240, "Target eval budget per Mayfly round")
	flag.Parse()

	if *melodyArg == "" {
		die("melody is required")
	}
	if *outputPreset == "" {
		die("output-preset must not be empty")
	}
	if *maxEvals < 1 {
		die("max-evals must be >= 1")
	}
	if *timeBudget <= 0 {
		die("time-budget must be > 0")
	}
	if *toleranceMs < 1 {
		die("tolerance-ms must be >= 1")
	}
	if *reportEvery < 1 {
		*reportEvery = 1
	}
	if *checkpointEvery < 1 {
		*checkpointEvery = 1
	}
	if *mayflyPop < 2 {
		*mayflyPop = 2
	}
	if *mayflyRoundEvals < *mayflyPop*2 {
		*mayflyRoundEvals = *mayflyPop * 2
	}
	if *topK < 1 {
		*topK = 1
	}
	parsedWorkers, err := cli.ParseWorkers(*workers)
	if err != nil {
		die("invalid workers value: %v", err)
	}

	base := preset.Default()
	if *presetPath != "" {
		if base, err = preset.LoadJSON(*presetPath); err != nil {
			die("failed to load preset: %v", err)
		}
	}

	song, err := loadSong(*melodyArg)
	if err != nil {
		die("failed to parse melody: %v", err)
	}
	sig, err := fitSignal(song, *wavPath, base.Synth)
	if err != nil {
		die("failed to prepare signal: %v", err)
	}
	onsets := song.Onsets()
	if len(onsets) == 0 {
		die("melody %q has no sounding notes", song.Name)
	}
	fmt.Printf("Fitting %q: %d onsets over %.1fs\n", song.Name, len(onsets), sig.DurationMs()/1000.0)

	out := outputPaths{
		melody:       *melodyArg,
		basePreset:   *presetPath,
		outputPreset: *outputPreset,
		report:       *reportPath,
	}

	defs, initCand := initCandidate(base.Config, *tuneGaps)
	if *resume {
		resumePath := *resumeReport
		if resumePath == "" {
			resumePath = out.reportPath()
		}
		if resumed, ok, err := loadCandidateFromReport(resumePath, defs, initCand); err != nil {
			fmt.Fprintf(os.Stderr, "resume skipped (%s): %v\n", resumePath, err)
		} else if ok {
			initCand = resumed
			fmt.Printf("Resumed candidate from %s\n", resumePath)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cfg := &optimizationConfig{
		signal:           sig,
		onsets:           onsets,
		baseConfig:       base.Config,
		defs:             defs,
		initCandidate:    initCand,
		toleranceMs:      *toleranceMs,
		seed:             *seed,
		timeBudget:       *timeBudget,
		maxEvals:         *maxEvals,
		reportEvery:      *reportEvery,
		checkpointEvery:  *checkpointEvery,
		mayflyVariant:    *mayflyVariant,
		mayflyPop:        *mayflyPop,
		mayflyRoundEvals: *mayflyRoundEvals,
		workers:          parsedWorkers,
		topK:             *topK,
		out:              out,
		basePreset:       base,
	}

	result, err := runOptimization(ctx, cfg)
	if err != nil {
		die("optimization failed: %v", err)
	}

	variant := strings.ToLower(*mayflyVariant)
	if err := writeOutputs(out, base, result.elapsed, result.evals, variant, defs, result.best,
		result.bestMetrics, result.bestConfig, result.checkpoints, result.top); err != nil {
		die("failed to write outputs: %v", err)
	}

	fmt.Printf("Done evals=%d elapsed=%.1fs best_score=%.4f f1=%.3f variant=%s\n", result.evals, result.elapsed, result.bestMetrics.Score, result.bestMetrics.F1, variant)
}

func loadSong(arg string) (melody.Song, error) {
	src := arg
	if _, err := os.Stat(arg); err == nil {
		b, err := os.ReadFile(arg)
		if err != nil {
			return melody.Song{}, err
		}
		src = strings.TrimSpace(string(b))
	}
	return melody.Parse(src)
}

// fitSignal renders song, or loads the recording at wavPath resampled to the
// synth rate.
func fitSignal(song melody.Song, wavPath string, opts synth.Options) (notemap.Signal, error) {
	if wavPath != "" {
		return audiofile.LoadSignal(wavPath, opts.SampleRate)
	}
	samples, err := synth.Render(song.Notes, opts)
	if err != nil {
		return notemap.Signal{}, err
	}
	return notemap.Signal{Samples: samples, SampleRate: opts.SampleRate}, nil
}

func loadCandidateFromReport(path string, defs []knobDef, fallback candidate) (candidate, bool, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fallback, false, nil
		}
		return fallback, false, err
	}

	var rep struct {
		BestKnobs map[string]float64 `json:"best_knobs"`
	}
	if err := json.Unmarshal(b, &rep); err != nil {
		return fallback, false, err
	}
	if len(rep.BestKnobs) == 0 {
		return fallback, false, nil
	}

	vals := make([]float64, len(fallback.Vals))
	copy(vals, fallback.Vals)
	updated := false
	for i, d := range defs {
		if v, ok := rep.BestKnobs[d.Name]; ok {
			vals[i] = clamp(v, d.Min, d.Max)
			if d.IsInt {
				vals[i] = math.Round(vals[i])
			}
			updated = true
		}
	}
	if !updated {
		return fallback, false, nil
	}
	return candidate{Vals: vals}, true, nil
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
