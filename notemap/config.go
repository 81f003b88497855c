package notemap

import (
	"fmt"
	"math"
)

// Mode selects where base thresholds come from and how gates decay.
type Mode string

const (
	// ModeAuto derives base thresholds from a percentile calibration pass and
	// decays gates proportionally to their base.
	ModeAuto Mode = "auto"
	// ModeFixed uses caller-supplied base thresholds, absolute decay steps and
	// a ceiling on raised gates.
	ModeFixed Mode = "fixed"
)

// Defaults shared by both modes.
const (
	DefaultBufferSize       = 2048
	DefaultWarmupFrames     = 3
	DefaultGlobalCooldownMs = 100
	DefaultMinNoteGapMs     = 200
	DefaultStreakLimit      = 2
	DefaultUpMod            = 1.6
	DefaultSeed             = 42

	DefaultPercentile    = 75.0
	DefaultRecoveryRate  = 0.15
	DefaultNoiseFloor    = 0.1
	DefaultThreshold     = 10.0
	DefaultFixedMaxLimit = 150.0
)

const (
	defaultCutoffBass       = 0.10
	defaultCutoffMid        = 0.45
	defaultCutoffTreble     = 1.0
	maxCalibrationWorkers   = 64
	minPowerOfTwoBufferSize = 2
)

// AutoConfig holds the calibrated-mode parameters.
type AutoConfig struct {
	Percentile       float64
	RecoveryRate     float64
	NoiseFloor       float64
	DefaultThreshold float64
}

// FixedConfig holds the fixed-mode parameters.
type FixedConfig struct {
	Thresholds Thresholds
	Recovery   [NumLanes]float64
	MaxLimit   float64
}

// Config is the immutable parameter set of one mapping run.
type Config struct {
	BufferSize       int
	WarmupFrames     int
	GlobalCooldownMs int64
	MinNoteGapMs     int64
	StreakLimit      int
	UpMod            float64
	LaneCutoffs      [NumLanes]float64
	Seed             int64
	Mode             Mode

	Auto  AutoConfig
	Fixed FixedConfig

	// CalibrationWorkers > 1 spreads the calibration pass over goroutines.
	CalibrationWorkers int
}

// DefaultConfig returns the calibrated (auto) configuration.
func DefaultConfig() Config {
	return Config{
		BufferSize:       DefaultBufferSize,
		WarmupFrames:     DefaultWarmupFrames,
		GlobalCooldownMs: DefaultGlobalCooldownMs,
		MinNoteGapMs:     DefaultMinNoteGapMs,
		StreakLimit:      DefaultStreakLimit,
		UpMod:            DefaultUpMod,
		LaneCutoffs:      [NumLanes]float64{defaultCutoffBass, defaultCutoffMid, defaultCutoffTreble},
		Seed:             DefaultSeed,
		Mode:             ModeAuto,
		Auto: AutoConfig{
			Percentile:       DefaultPercentile,
			RecoveryRate:     DefaultRecoveryRate,
			NoiseFloor:       DefaultNoiseFloor,
			DefaultThreshold: DefaultThreshold,
		},
		Fixed: FixedConfig{
			Thresholds: Thresholds{8.0, 6.0, 4.0},
			Recovery:   [NumLanes]float64{0.5, 0.4, 0.6},
			MaxLimit:   DefaultFixedMaxLimit,
		},
	}
}

// DefaultFixedConfig returns the hand-tuned fixed-threshold configuration.
func DefaultFixedConfig() Config {
	cfg := DefaultConfig()
	cfg.Mode = ModeFixed
	return cfg
}

// FrameDurationMs is the nominal duration of one analysis frame.
func (c Config) FrameDurationMs(sampleRate int) float64 {
	if sampleRate <= 0 {
		return 0
	}
	return float64(c.BufferSize) * 1000.0 / float64(sampleRate)
}

// Validate reports the first problem with c, wrapped in ErrInvalidConfig.
func (c Config) Validate() error {
	if c.BufferSize <= 0 {
		return configErrorf("buffer size must be > 0 (got %d)", c.BufferSize)
	}
	if c.BufferSize < minPowerOfTwoBufferSize || c.BufferSize&(c.BufferSize-1) != 0 {
		return configErrorf("buffer size must be a power of two >= %d (got %d)", minPowerOfTwoBufferSize, c.BufferSize)
	}
	if c.WarmupFrames < 0 {
		return configErrorf("warmup frames must be >= 0 (got %d)", c.WarmupFrames)
	}
	if c.GlobalCooldownMs < 0 {
		return configErrorf("global cooldown must be >= 0 ms (got %d)", c.GlobalCooldownMs)
	}
	if c.MinNoteGapMs < 0 {
		return configErrorf("min note gap must be >= 0 ms (got %d)", c.MinNoteGapMs)
	}
	if c.StreakLimit < 1 {
		return configErrorf("streak limit must be >= 1 (got %d)", c.StreakLimit)
	}
	if !finitePositive(c.UpMod) || c.UpMod < 1 {
		return configErrorf("up mod must be finite and >= 1 (got %g)", c.UpMod)
	}
	if err := validateCutoffs(c.LaneCutoffs); err != nil {
		return err
	}
	if c.CalibrationWorkers < 0 || c.CalibrationWorkers > maxCalibrationWorkers {
		return configErrorf("calibration workers must be in [0,%d] (got %d)", maxCalibrationWorkers, c.CalibrationWorkers)
	}

	switch c.Mode {
	case ModeAuto:
		return c.Auto.validate()
	case ModeFixed:
		return c.Fixed.validate()
	default:
		return configErrorf("unknown mode %q (valid: auto, fixed)", c.Mode)
	}
}

func (a AutoConfig) validate() error {
	if math.IsNaN(a.Percentile) || a.Percentile <= 0 || a.Percentile > 100 {
		return configErrorf("auto.percentile must be in (0,100] (got %g)", a.Percentile)
	}
	if math.IsNaN(a.RecoveryRate) || a.RecoveryRate <= 0 || a.RecoveryRate > 1 {
		return configErrorf("auto.recovery_rate must be in (0,1] (got %g)", a.RecoveryRate)
	}
	if math.IsNaN(a.NoiseFloor) || math.IsInf(a.NoiseFloor, 0) || a.NoiseFloor < 0 {
		return configErrorf("auto.noise_floor must be finite and >= 0 (got %g)", a.NoiseFloor)
	}
	if !finitePositive(a.DefaultThreshold) {
		return configErrorf("auto.default_threshold must be finite and > 0 (got %g)", a.DefaultThreshold)
	}
	return nil
}

func (f FixedConfig) validate() error {
	for l := range NumLanes {
		if !finitePositive(f.Thresholds[l]) {
			return configErrorf("fixed.thresholds[%d] must be finite and > 0 (got %g)", l, f.Thresholds[l])
		}
		if !finitePositive(f.Recovery[l]) {
			return configErrorf("fixed.recovery[%d] must be finite and > 0 (got %g)", l, f.Recovery[l])
		}
		if f.MaxLimit < f.Thresholds[l] {
			return configErrorf("fixed.max_limit %g is below fixed.thresholds[%d]=%g", f.MaxLimit, l, f.Thresholds[l])
		}
	}
	if !finitePositive(f.MaxLimit) {
		return configErrorf("fixed.max_limit must be finite and > 0 (got %g)", f.MaxLimit)
	}
	return nil
}

func validateCutoffs(c [NumLanes]float64) error {
	prev := 0.0
	for _, v := range c {
		if math.IsNaN(v) || v <= prev || v > 1 {
			return configErrorf("lane cutoffs must be strictly increasing in (0,1] (got %v)", c)
		}
		prev = v
	}
	if c[NumLanes-1] != 1 {
		return configErrorf("last lane cutoff must be 1.0 (got %g)", c[NumLanes-1])
	}
	return nil
}

func finitePositive(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v > 0
}

func configErrorf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidConfig, fmt.Sprintf(format, args...))
}
