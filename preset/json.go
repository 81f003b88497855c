// Package preset loads and saves note-mapping presets as JSON.
package preset

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/synth"
)

// Preset is a fully resolved mapping and rendering configuration.
type Preset struct {
	Config notemap.Config
	Synth  synth.Options
}

// Default returns the built-in preset.
func Default() *Preset {
	return &Preset{Config: notemap.DefaultConfig(), Synth: synth.DefaultOptions()}
}

// File is the JSON schema for presets. Every field is optional and overlays
// the defaults.
type File struct {
	Mode               *string                `json:"mode,omitempty"`
	BufferSize         *int                   `json:"buffer_size,omitempty"`
	WarmupFrames       *int                   `json:"warmup_frames,omitempty"`
	GlobalCooldownMs   *int64                 `json:"global_cooldown_ms,omitempty"`
	MinNoteGapMs       *int64                 `json:"min_note_gap_ms,omitempty"`
	StreakLimit        *int                   `json:"streak_limit,omitempty"`
	UpMod              *float64               `json:"up_mod,omitempty"`
	LaneCutoffs        *[3]float64            `json:"lane_cutoffs,omitempty"`
	Seed               *int64                 `json:"seed,omitempty"`
	CalibrationWorkers *int                   `json:"calibration_workers,omitempty"`
	Auto               *AutoSetting           `json:"auto,omitempty"`
	MaxLimit           *float64               `json:"max_limit,omitempty"`
	PerLane            map[string]LaneSetting `json:"per_lane,omitempty"`
	Synth              *SynthSetting          `json:"synth,omitempty"`
}

// AutoSetting overrides the calibrated-mode parameters.
type AutoSetting struct {
	Percentile       *float64 `json:"percentile,omitempty"`
	RecoveryRate     *float64 `json:"recovery_rate,omitempty"`
	NoiseFloor       *float64 `json:"noise_floor,omitempty"`
	DefaultThreshold *float64 `json:"default_threshold,omitempty"`
}

// LaneSetting is a partial fixed-mode override for one lane.
type LaneSetting struct {
	Threshold *float64 `json:"threshold,omitempty"`
	Recovery  *float64 `json:"recovery,omitempty"`
}

// SynthSetting overrides the renderer options.
type SynthSetting struct {
	SampleRate  *int     `json:"sample_rate,omitempty"`
	Waveform    *string  `json:"waveform,omitempty"`
	Gain        *float64 `json:"gain,omitempty"`
	AttackMs    *float64 `json:"attack_ms,omitempty"`
	ReleaseMs   *float64 `json:"release_ms,omitempty"`
	DetuneCents *float64 `json:"detune_cents,omitempty"`
	ToneHz      *float64 `json:"tone_hz,omitempty"`
	Seed        *int64   `json:"seed,omitempty"`
	RoomMix     *float64 `json:"room_mix,omitempty"`
	RoomDecayMs *float64 `json:"room_decay_ms,omitempty"`
}

// LoadJSON loads a preset JSON file, applies it on top of the defaults and
// validates the result.
func LoadJSON(path string) (*Preset, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}

	p := Default()
	if err := ApplyFile(p, &f); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := p.Config.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if err := p.Synth.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return p, nil
}

// ApplyFile applies a parsed preset file onto an existing preset.
func ApplyFile(dst *Preset, f *File) error {
	if dst == nil {
		return fmt.Errorf("nil destination preset")
	}
	if f == nil {
		return nil
	}
	c := &dst.Config

	if f.Mode != nil {
		c.Mode = notemap.Mode(strings.ToLower(strings.TrimSpace(*f.Mode)))
	}
	if f.BufferSize != nil {
		c.BufferSize = *f.BufferSize
	}
	if f.WarmupFrames != nil {
		c.WarmupFrames = *f.WarmupFrames
	}
	if f.GlobalCooldownMs != nil {
		c.GlobalCooldownMs = *f.GlobalCooldownMs
	}
	if f.MinNoteGapMs != nil {
		c.MinNoteGapMs = *f.MinNoteGapMs
	}
	if f.StreakLimit != nil {
		c.StreakLimit = *f.StreakLimit
	}
	if f.UpMod != nil {
		c.UpMod = *f.UpMod
	}
	if f.LaneCutoffs != nil {
		c.LaneCutoffs = *f.LaneCutoffs
	}
	if f.Seed != nil {
		c.Seed = *f.Seed
	}
	if f.CalibrationWorkers != nil {
		c.CalibrationWorkers = *f.CalibrationWorkers
	}
	if a := f.Auto; a != nil {
		if a.Percentile != nil {
			c.Auto.Percentile = *a.Percentile
		}
		if a.RecoveryRate != nil {
			c.Auto.RecoveryRate = *a.RecoveryRate
		}
		if a.NoiseFloor != nil {
			c.Auto.NoiseFloor = *a.NoiseFloor
		}
		if a.DefaultThreshold != nil {
			c.Auto.DefaultThreshold = *a.DefaultThreshold
		}
	}
	if f.MaxLimit != nil {
		if *f.MaxLimit <= 0 {
			return fmt.Errorf("max_limit must be > 0")
		}
		c.Fixed.MaxLimit = *f.MaxLimit
	}
	if err := applyLanes(&c.Fixed, f.PerLane); err != nil {
		return err
	}
	applySynth(&dst.Synth, f.Synth)
	return nil
}

func applyLanes(dst *notemap.FixedConfig, perLane map[string]LaneSetting) error {
	if len(perLane) == 0 {
		return nil
	}
	keys := make([]string, 0, len(perLane))
	for k := range perLane {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		lane, ok := parseLane(k)
		if !ok {
			return fmt.Errorf("invalid per_lane key %q (expected bass, mid or treble)", k)
		}
		override := perLane[k]
		if override.Threshold != nil {
			if *override.Threshold <= 0 {
				return fmt.Errorf("per_lane[%s].threshold must be > 0", lane)
			}
			dst.Thresholds[lane] = *override.Threshold
		}
		if override.Recovery != nil {
			if *override.Recovery <= 0 {
				return fmt.Errorf("per_lane[%s].recovery must be > 0", lane)
			}
			dst.Recovery[lane] = *override.Recovery
		}
	}
	return nil
}

func parseLane(k string) (notemap.Lane, bool) {
	k = strings.ToLower(strings.TrimSpace(k))
	for l := range notemap.NumLanes {
		if notemap.Lane(l).String() == k {
			return notemap.Lane(l), true
		}
	}
	return notemap.NoLane, false
}

func applySynth(dst *synth.Options, s *SynthSetting) {
	if s == nil {
		return
	}
	if s.SampleRate != nil {
		dst.SampleRate = *s.SampleRate
	}
	if s.Waveform != nil {
		dst.Waveform = synth.Waveform(strings.ToLower(strings.TrimSpace(*s.Waveform)))
	}
	if s.Gain != nil {
		dst.Gain = *s.Gain
	}
	if s.AttackMs != nil {
		dst.AttackMs = *s.AttackMs
	}
	if s.ReleaseMs != nil {
		dst.ReleaseMs = *s.ReleaseMs
	}
	if s.DetuneCents != nil {
		dst.DetuneCents = *s.DetuneCents
	}
	if s.ToneHz != nil {
		dst.ToneHz = *s.ToneHz
	}
	if s.Seed != nil {
		dst.Seed = *s.Seed
	}
	if s.RoomMix != nil {
		dst.RoomMix = *s.RoomMix
	}
	if s.RoomDecayMs != nil {
		dst.RoomDecayMs = *s.RoomDecayMs
	}
}

// FromPreset returns a File that reproduces p exactly.
func FromPreset(p *Preset) *File {
	c := p.Config
	mode := string(c.Mode)
	cutoffs := c.LaneCutoffs
	f := &File{
		Mode:               &mode,
		BufferSize:         &c.BufferSize,
		WarmupFrames:       &c.WarmupFrames,
		GlobalCooldownMs:   &c.GlobalCooldownMs,
		MinNoteGapMs:       &c.MinNoteGapMs,
		StreakLimit:        &c.StreakLimit,
		UpMod:              &c.UpMod,
		LaneCutoffs:        &cutoffs,
		Seed:               &c.Seed,
		CalibrationWorkers: &c.CalibrationWorkers,
		Auto: &AutoSetting{
			Percentile:       &c.Auto.Percentile,
			RecoveryRate:     &c.Auto.RecoveryRate,
			NoiseFloor:       &c.Auto.NoiseFloor,
			DefaultThreshold: &c.Auto.DefaultThreshold,
		},
		MaxLimit: &c.Fixed.MaxLimit,
		PerLane:  make(map[string]LaneSetting, notemap.NumLanes),
	}
	for l := range notemap.NumLanes {
		f.PerLane[notemap.Lane(l).String()] = LaneSetting{
			Threshold: &c.Fixed.Thresholds[l],
			Recovery:  &c.Fixed.Recovery[l],
		}
	}
	s := p.Synth
	waveform := string(s.Waveform)
	f.Synth = &SynthSetting{
		SampleRate:  &s.SampleRate,
		Waveform:    &waveform,
		Gain:        &s.Gain,
		AttackMs:    &s.AttackMs,
		ReleaseMs:   &s.ReleaseMs,
		DetuneCents: &s.DetuneCents,
		ToneHz:      &s.ToneHz,
		Seed:        &s.Seed,
		RoomMix:     &s.RoomMix,
		RoomDecayMs: &s.RoomDecayMs,
	}
	return f
}

// SaveJSON writes p as an indented preset file, creating parent directories.
func SaveJSON(path string, p *Preset) error {
	b, err := json.MarshalIndent(FromPreset(p), "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, append(b, '\n'), 0o644)
}
