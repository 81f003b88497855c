// Package export formats mapping results for firmware and tooling.
package export

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/cwbudde/algo-notemap/melody"
	"github.com/cwbudde/algo-notemap/notemap"
)

// CHeader renders the static arrays a handheld player links against: the
// melody frequencies (zero terminated), cumulative note ticks in ms, the
// note lanes, note times in 10 ms units and the note count.
func CHeader(songID int, song melody.Song, notes []notemap.NoteEvent) string {
	var b strings.Builder

	freqs := make([]string, 0, len(song.Notes)+1)
	for _, n := range song.Notes {
		freqs = append(freqs, strconv.Itoa(int(n.Frequency)))
	}
	freqs = append(freqs, "0")
	fmt.Fprintf(&b, "static const int song%d_melody[]={%s};\n", songID, strings.Join(freqs, ","))

	ticks := song.Ticks()
	tickStrs := make([]string, len(ticks))
	for i, t := range ticks {
		tickStrs[i] = strconv.FormatInt(t, 10)
	}
	fmt.Fprintf(&b, "static const int song%d_note_ticks[]={%s};\n", songID, strings.Join(tickStrs, ","))

	lanes := make([]string, len(notes))
	tickNs := make([]string, len(notes))
	for i, n := range notes {
		lanes[i] = strconv.Itoa(int(n.Lane))
		tickNs[i] = strconv.FormatInt(n.TimeMs/10, 10)
	}
	fmt.Fprintf(&b, "static const int song%d_lanes[] = {%s};\n", songID, strings.Join(lanes, ", "))
	fmt.Fprintf(&b, "static const int song%d_tickNs[] = {%s};\n", songID, strings.Join(tickNs, ", "))
	fmt.Fprintf(&b, "static const int song%d_num_notes=%d;", songID, len(notes))
	return b.String()
}

// Document is the JSON form of one mapping run.
type Document struct {
	SampleRate int                 `json:"sample_rate"`
	DurationMs float64             `json:"duration_ms"`
	Mode       notemap.Mode        `json:"mode"`
	Base       notemap.Thresholds  `json:"base"`
	Frames     int                 `json:"frames"`
	Notes      []notemap.NoteEvent `json:"notes"`
}

// JSON encodes res as an indented Document.
func JSON(res *notemap.Result, sig notemap.Signal, mode notemap.Mode) ([]byte, error) {
	doc := Document{
		SampleRate: sig.SampleRate,
		DurationMs: sig.DurationMs(),
		Mode:       mode,
		Base:       res.Base,
		Frames:     res.Frames,
		Notes:      res.Notes,
	}
	out, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode result: %w", err)
	}
	return append(out, '\n'), nil
}
