package notemap

import (
	"context"
	"fmt"
	"math"
	"math/rand"
)

// never is the last-note time of a lane that has not fired yet. It sits far
// enough below zero that every cooldown comparison passes without overflow.
const never = math.MinInt64 / 4

// FrameTrace describes one gated frame after its decision and decay.
type FrameTrace struct {
	Index       int
	StartSample int
	TimeMs      int64
	Eligible    bool
	Peaks       LanePeaks
	Thresholds  Thresholds
	Lane        Lane
}

// Result is the output of one mapping run.
type Result struct {
	Notes       []NoteEvent `json:"notes"`
	Base        Thresholds  `json:"base"`
	Calibration Calibration `json:"calibration"`
	Frames      int         `json:"frames"`
}

// Option configures an Engine.
type Option func(*Engine)

// WithTrace installs a callback invoked for every frame of the gating pass.
func WithTrace(fn func(FrameTrace)) Option {
	return func(e *Engine) { e.trace = fn }
}

// WithNoteHook installs a callback invoked for every emitted note, in order.
func WithNoteHook(fn func(NoteEvent)) Option {
	return func(e *Engine) { e.onNote = fn }
}

// Engine maps signals to notes. It holds only immutable configuration, so one
// Engine may serve concurrent Map calls; every call owns its gate state and
// random stream.
type Engine struct {
	cfg    Config
	trace  func(FrameTrace)
	onNote func(NoteEvent)
}

// NewEngine validates cfg and returns an engine for it.
func NewEngine(cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Engine{cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Config returns the engine configuration.
func (e *Engine) Config() Config { return e.cfg }

// Map is a convenience wrapper around NewEngine and Engine.Map.
func Map(ctx context.Context, sig Signal, cfg Config, opts ...Option) (*Result, error) {
	e, err := NewEngine(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return e.Map(ctx, sig)
}

// Calibrate returns the base thresholds the engine would use for sig.
func (e *Engine) Calibrate(ctx context.Context, sig Signal) (Calibration, error) {
	if err := sig.Validate(); err != nil {
		return Calibration{}, err
	}
	return e.baseline(ctx, sig)
}

func (e *Engine) baseline(ctx context.Context, sig Signal) (Calibration, error) {
	if e.cfg.Mode == ModeFixed {
		return Calibration{Thresholds: e.cfg.Fixed.Thresholds}, nil
	}
	return calibrate(ctx, sig, e.cfg)
}

// Map runs the gating pass over sig.
//
// A signal too short to hold one frame past the warm-up region yields an
// empty note list and a nil error; only a malformed signal or a cancelled
// context produce an error.
func (e *Engine) Map(ctx context.Context, sig Signal) (*Result, error) {
	if err := sig.Validate(); err != nil {
		return nil, err
	}
	cal, err := e.baseline(ctx, sig)
	if err != nil {
		return nil, err
	}
	an, err := NewAnalyzer(e.cfg.BufferSize, e.cfg.LaneCutoffs)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Notes:       []NoteEvent{},
		Base:        cal.Thresholds,
		Calibration: cal,
	}
	st := newGateState(cal.Thresholds, e.cfg.Seed, e.cfg.StreakLimit)
	for start, peaks := range an.Frames(sig, e.cfg.WarmupFrames*e.cfg.BufferSize) {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("mapping cancelled at sample %d: %w", start, err)
		}
		nowMs := frameTimeMs(start, sig.SampleRate)
		lane, eligible := e.step(st, peaks, nowMs)
		if lane != NoLane {
			ev := NoteEvent{Lane: lane, TimeMs: nowMs}
			res.Notes = append(res.Notes, ev)
			if e.onNote != nil {
				e.onNote(ev)
			}
		}
		if e.trace != nil {
			e.trace(FrameTrace{
				Index:       res.Frames,
				StartSample: start,
				TimeMs:      nowMs,
				Eligible:    eligible,
				Peaks:       peaks,
				Thresholds:  st.thresholds,
				Lane:        lane,
			})
		}
		res.Frames++
	}
	return res, nil
}

// gateState is everything the gating fold carries from one frame to the next.
type gateState struct {
	base       Thresholds
	thresholds Thresholds
	lastNote   [NumLanes]int64
	lastGlobal int64
	history    []Lane
	order      []Lane
	rng        *rand.Rand
}

func newGateState(base Thresholds, seed int64, streakLimit int) *gateState {
	st := &gateState{
		base:       base,
		thresholds: base,
		lastGlobal: never,
		history:    make([]Lane, 0, streakLimit+1),
		order:      []Lane{LaneBass, LaneMid, LaneTreble},
		rng:        rand.New(rand.NewSource(seed)),
	}
	for l := range NumLanes {
		st.lastNote[l] = never
	}
	return st
}

// step applies one frame to st and returns the lane that fired, or NoLane.
func (e *Engine) step(st *gateState, peaks LanePeaks, nowMs int64) (Lane, bool) {
	best := NoLane
	eligible := nowMs-st.lastGlobal > e.cfg.GlobalCooldownMs
	if eligible {
		// Order only matters for exact ties: the first lane visited wins.
		st.rng.Shuffle(len(st.order), func(i, j int) {
			st.order[i], st.order[j] = st.order[j], st.order[i]
		})
		bestStrength := 0.0
		for _, l := range st.order {
			strength := peaks[l] - st.thresholds[l]
			if strength <= 0 || strength <= bestStrength {
				continue
			}
			if st.streakBlocks(l, e.cfg.StreakLimit) {
				continue
			}
			if nowMs-st.lastNote[l] <= e.cfg.MinNoteGapMs {
				continue
			}
			best = l
			bestStrength = strength
		}
	}

	if best != NoLane {
		st.lastNote[best] = nowMs
		st.lastGlobal = nowMs
		st.history = append(st.history, best)
		if len(st.history) > e.cfg.StreakLimit {
			st.history = st.history[len(st.history)-e.cfg.StreakLimit:]
		}
		st.thresholds[best] *= e.cfg.UpMod
		if e.cfg.Mode == ModeFixed && st.thresholds[best] > e.cfg.Fixed.MaxLimit {
			st.thresholds[best] = e.cfg.Fixed.MaxLimit
		}
	}

	for l := range NumLanes {
		if st.thresholds[l] <= st.base[l] {
			continue
		}
		st.thresholds[l] = math.Max(st.thresholds[l]-e.decayStep(st.base, Lane(l)), st.base[l])
	}
	return best, eligible
}

func (e *Engine) decayStep(base Thresholds, l Lane) float64 {
	if e.cfg.Mode == ModeFixed {
		return e.cfg.Fixed.Recovery[l]
	}
	return base[l] * e.cfg.Auto.RecoveryRate
}

// streakBlocks reports whether the last limit notes all went to l.
func (st *gateState) streakBlocks(l Lane, limit int) bool {
	if len(st.history) < limit {
		return false
	}
	for _, h := range st.history[len(st.history)-limit:] {
		if h != l {
			return false
		}
	}
	return true
}
