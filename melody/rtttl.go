// Package melody parses RTTTL ringtone notation into timed notes.
package melody

import (
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// ErrSyntax is wrapped by every parse failure.
var ErrSyntax = errors.New("melody: syntax error")

// RTTTL header defaults used when a key is missing.
const (
	DefaultDuration = 4
	DefaultOctave   = 6
	DefaultBPM      = 63
)

// Rest is the pitch of a silent note.
const Rest = -1

// Note is one parsed token.
type Note struct {
	Pitch      int     `json:"pitch"`
	Frequency  float64 `json:"frequency"`
	DurationMs float64 `json:"duration_ms"`
	Dotted     bool    `json:"dotted,omitempty"`
}

// IsRest reports whether the note is silent.
func (n Note) IsRest() bool { return n.Pitch == Rest }

// Song is a parsed melody.
type Song struct {
	Name     string `json:"name"`
	Duration int    `json:"duration"`
	Octave   int    `json:"octave"`
	BPM      int    `json:"bpm"`
	Notes    []Note `json:"notes"`
}

var tokenRE = regexp.MustCompile(`^(1|2|4|8|16|32)?([a-gp])(#?)(\.?)([4-7]?)(\.?)$`)

var semitones = map[byte]int{'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11}

var validDurations = map[int]bool{1: true, 2: true, 4: true, 8: true, 16: true, 32: true}

// Parse reads an RTTTL string of the form name:d=N,o=N,b=N:notes.
func Parse(src string) (Song, error) {
	parts := strings.SplitN(strings.TrimSpace(src), ":", 3)
	if len(parts) != 3 {
		return Song{}, fmt.Errorf("%w: expected name:defaults:notes", ErrSyntax)
	}
	song := Song{
		Name:     strings.TrimSpace(parts[0]),
		Duration: DefaultDuration,
		Octave:   DefaultOctave,
		BPM:      DefaultBPM,
	}
	if err := song.parseDefaults(parts[1]); err != nil {
		return Song{}, err
	}

	for i, raw := range strings.Split(parts[2], ",") {
		tok := strings.ToLower(strings.TrimSpace(raw))
		if tok == "" {
			continue
		}
		n, err := song.parseNote(tok)
		if err != nil {
			return Song{}, fmt.Errorf("note %d (%q): %w", i, tok, err)
		}
		song.Notes = append(song.Notes, n)
	}
	if len(song.Notes) == 0 {
		return Song{}, fmt.Errorf("%w: no notes", ErrSyntax)
	}
	return song, nil
}

func (s *Song) parseDefaults(section string) error {
	for _, kv := range strings.Split(section, ",") {
		kv = strings.TrimSpace(kv)
		if kv == "" {
			continue
		}
		key, val, ok := strings.Cut(kv, "=")
		if !ok {
			return fmt.Errorf("%w: malformed default %q", ErrSyntax, kv)
		}
		v, err := strconv.Atoi(strings.TrimSpace(val))
		if err != nil {
			return fmt.Errorf("%w: default %q: %v", ErrSyntax, kv, err)
		}
		switch strings.ToLower(strings.TrimSpace(key)) {
		case "d":
			if !validDurations[v] {
				return fmt.Errorf("%w: invalid default duration %d", ErrSyntax, v)
			}
			s.Duration = v
		case "o":
			if v < 4 || v > 7 {
				return fmt.Errorf("%w: invalid default octave %d", ErrSyntax, v)
			}
			s.Octave = v
		case "b":
			if v <= 0 {
				return fmt.Errorf("%w: invalid bpm %d", ErrSyntax, v)
			}
			s.BPM = v
		default:
			return fmt.Errorf("%w: unknown default %q", ErrSyntax, key)
		}
	}
	return nil
}

func (s *Song) parseNote(tok string) (Note, error) {
	m := tokenRE.FindStringSubmatch(tok)
	if m == nil {
		return Note{}, ErrSyntax
	}
	dur := s.Duration
	if m[1] != "" {
		dur, _ = strconv.Atoi(m[1])
	}
	octave := s.Octave
	if m[5] != "" {
		octave = int(m[5][0] - '0')
	}
	dotted := m[4] == "." || m[6] == "."

	ms := 60000.0 / float64(s.BPM) * 4.0 / float64(dur)
	if dotted {
		ms *= 1.5
	}
	n := Note{Pitch: Rest, DurationMs: ms, Dotted: dotted}
	if m[2] == "p" {
		return n, nil
	}
	if m[3] == "#" && (m[2] == "e" || m[2] == "b") {
		return Note{}, fmt.Errorf("%w: %s# has no sharp", ErrSyntax, m[2])
	}
	n.Pitch = 12*(octave+1) + semitones[m[2][0]]
	if m[3] == "#" {
		n.Pitch++
	}
	n.Frequency = MIDIToFreq(n.Pitch)
	return n, nil
}

// MIDIToFreq converts a MIDI note number to Hz (A4 = 69 = 440 Hz).
func MIDIToFreq(pitch int) float64 {
	return 440.0 * math.Pow(2, float64(pitch-69)/12.0)
}

// TotalMs is the length of the song.
func (s Song) TotalMs() float64 {
	total := 0.0
	for _, n := range s.Notes {
		total += n.DurationMs
	}
	return total
}

// Ticks returns the whole-millisecond start of every note followed by the
// end of the song.
func (s Song) Ticks() []int64 {
	ticks := make([]int64, 0, len(s.Notes)+1)
	t := 0.0
	for _, n := range s.Notes {
		ticks = append(ticks, int64(t))
		t += n.DurationMs
	}
	return append(ticks, int64(t))
}

// Onsets returns the start of every sounding note in whole milliseconds.
func (s Song) Onsets() []int64 {
	var out []int64
	t := 0.0
	for _, n := range s.Notes {
		if !n.IsRest() {
			out = append(out, int64(t))
		}
		t += n.DurationMs
	}
	return out
}
