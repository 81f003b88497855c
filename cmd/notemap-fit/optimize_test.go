package main

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/cwbudde/algo-notemap/analysis"
	"github.com/cwbudde/algo-notemap/melody"
	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/synth"
)

func TestNewMayflyConfig(t *testing.T) {
	tests := []struct {
		variant string
		wantErr bool
	}{
		{variant: "ma"},
		{variant: "desma"},
		{variant: "olce"},
		{variant: "eobbma"},
		{variant: "gsasma"},
		{variant: "mpma"},
		{variant: "aoblmoa"},
		{variant: "bogus", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.variant, func(t *testing.T) {
			cfg, err := newMayflyConfig(tt.variant, 10, 8, 20)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("newMayflyConfig(%q) expected error", tt.variant)
				}
				return
			}
			if err != nil {
				t.Fatalf("newMayflyConfig(%q) unexpected error: %v", tt.variant, err)
			}
			if cfg.ProblemSize != 8 {
				t.Fatalf("ProblemSize = %d, want 8", cfg.ProblemSize)
			}
			if cfg.NPop != 10 || cfg.NC != 20 || cfg.NM != 1 {
				t.Fatalf("NPop=%d NC=%d NM=%d", cfg.NPop, cfg.NC, cfg.NM)
			}
			if cfg.MaxIterations != 20 {
				t.Fatalf("MaxIterations = %d, want 20", cfg.MaxIterations)
			}
		})
	}
}

func TestReserveEvalCapsAtMax(t *testing.T) {
	const (
		maxEvals = 47
		workers  = 8
	)

	var evals int64
	var granted int64
	var wg sync.WaitGroup

	for range workers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				if _, ok := reserveEval(&evals, maxEvals); !ok {
					return
				}
				atomic.AddInt64(&granted, 1)
			}
		}()
	}
	wg.Wait()

	if got := atomic.LoadInt64(&granted); got != maxEvals {
		t.Fatalf("granted evaluations = %d, want %d", got, maxEvals)
	}
	if got := atomic.LoadInt64(&evals); got != maxEvals {
		t.Fatalf("eval counter = %d, want %d", got, maxEvals)
	}
}

func TestUpdateTopCandidatesOrdersAndTruncates(t *testing.T) {
	defs := []knobDef{{Name: "a", Min: 0, Max: 10}}
	var top []topCandidate
	scores := []float64{0.5, 0.2, 0.7, 0.2, 0.1}
	for i, s := range scores {
		top = updateTopCandidates(top, 3, i+1, analysis.Metrics{Score: s}, defs, candidate{Vals: []float64{float64(i)}})
	}
	if len(top) != 3 {
		t.Fatalf("len=%d want=3", len(top))
	}
	wantEvals := []int{5, 2, 4}
	for i, e := range wantEvals {
		if top[i].Eval != e {
			t.Fatalf("top[%d].Eval=%d want=%d (top=%+v)", i, top[i].Eval, e, top)
		}
	}
}

func TestUpdateTopCandidatesSkipsDuplicates(t *testing.T) {
	defs := []knobDef{{Name: "a", Min: 0, Max: 10}}
	c := candidate{Vals: []float64{3}}
	top := updateTopCandidates(nil, 5, 1, analysis.Metrics{Score: 0.4}, defs, c)
	top = updateTopCandidates(top, 5, 2, analysis.Metrics{Score: 0.4}, defs, c)
	if len(top) != 1 {
		t.Fatalf("duplicate recorded: %+v", top)
	}
}

func TestCloneCandidateCopiesSlice(t *testing.T) {
	orig := candidate{Vals: []float64{1.0, 2.0, 3.0}}
	cloned := cloneCandidate(orig)
	cloned.Vals[0] = 99.0

	if orig.Vals[0] != 1.0 {
		t.Fatalf("clone mutated original: got %.1f want 1.0", orig.Vals[0])
	}
}

func TestRunOptimizationNeverWorsensStart(t *testing.T) {
	song, err := melody.Parse("fit:d=8,o=5,b=140:c,e,g,c6,p,a4,c,e,a,p,f4,a4,c,f")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	opts := synth.DefaultOptions()
	opts.SampleRate = 22050
	samples, err := synth.Render(song.Notes, opts)
	if err != nil {
		t.Fatalf("render: %v", err)
	}

	base := notemap.DefaultFixedConfig()
	defs, initCand := initCandidate(base, false)
	dir := t.TempDir()
	cfg := &optimizationConfig{
		signal:           notemap.Signal{Samples: samples, SampleRate: opts.SampleRate},
		onsets:           song.Onsets(),
		baseConfig:       base,
		defs:             defs,
		initCandidate:    initCand,
		toleranceMs:      analysis.DefaultToleranceMs,
		seed:             3,
		timeBudget:       30,
		maxEvals:         24,
		reportEvery:      1000,
		checkpointEvery:  1000,
		mayflyVariant:    "ma",
		mayflyPop:        2,
		mayflyRoundEvals: 8,
		workers:          2,
		topK:             3,
		out:              outputPaths{outputPreset: dir + "/tuned.json"},
	}

	start, err := evaluateCandidate(t.Context(), cfg, initCand)
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	res, err := runOptimization(t.Context(), cfg)
	if err != nil {
		t.Fatalf("runOptimization: %v", err)
	}
	if res.evals > cfg.maxEvals || res.evals < 1 {
		t.Fatalf("evals=%d max=%d", res.evals, cfg.maxEvals)
	}
	if res.bestMetrics.Score > start.metrics.Score {
		t.Fatalf("best %.4f worse than start %.4f", res.bestMetrics.Score, start.metrics.Score)
	}
	if res.bestConfig.Mode != notemap.ModeFixed {
		t.Fatalf("best config mode=%s", res.bestConfig.Mode)
	}
	if len(res.top) == 0 || len(res.top) > cfg.topK {
		t.Fatalf("top=%d", len(res.top))
	}
}
