package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-notemap/beatmap"
	"github.com/cwbudde/algo-notemap/internal/audiofile"
	"github.com/cwbudde/algo-notemap/internal/cli"
	"github.com/cwbudde/algo-notemap/internal/export"
	"github.com/cwbudde/algo-notemap/internal/server"
	"github.com/cwbudde/algo-notemap/melody"
	"github.com/cwbudde/algo-notemap/synth"
)

// RenderCmd renders a melody to a WAV file.
type RenderCmd struct {
	Melody     string `arg:"" help:"RTTTL text or a file containing it"`
	Output     string `short:"o" required:"" type:"path" help:"Output WAV path"`
	Waveform   string `help:"Voice: pluck or sine (default from preset)"`
	SampleRate int    `help:"Output sample rate (default from preset)"`
}

func (c *RenderCmd) Run(g *Globals) error {
	p, err := g.load()
	if err != nil {
		return err
	}
	if c.Waveform != "" {
		p.Synth.Waveform = synth.Waveform(c.Waveform)
	}
	if c.SampleRate > 0 {
		p.Synth.SampleRate = c.SampleRate
	}
	song, err := parseMelody(c.Melody)
	if err != nil {
		return err
	}
	samples, err := synth.Render(song.Notes, p.Synth)
	if err != nil {
		return err
	}
	if err := audiofile.WriteMonoWAV(c.Output, samples, p.Synth.SampleRate); err != nil {
		return err
	}
	cli.PrintKV(os.Stdout, "Wrote", c.Output)
	cli.PrintKV(os.Stdout, "Duration", fmt.Sprintf("%.0f ms", song.TotalMs()))
	return nil
}

// MapCmd maps a WAV file to notes.
type MapCmd struct {
	Input      string `arg:"" type:"existingfile" help:"Input WAV file"`
	Format     string `short:"f" enum:"summary,c,json" default:"summary" help:"Output format: summary, c or json"`
	Output     string `short:"o" type:"path" help:"Write to this file instead of stdout"`
	SongID     int    `default:"2" help:"Array suffix for the C format"`
	SampleRate int    `help:"Resample to this rate before mapping"`
	Workers    string `default:"1" help:"Calibration workers (integer or auto)"`
}

func (c *MapCmd) Run(g *Globals) error {
	p, err := g.load()
	if err != nil {
		return err
	}
	workers, err := cli.ParseWorkers(c.Workers)
	if err != nil {
		return fmt.Errorf("invalid --workers: %w", err)
	}
	p.Config.CalibrationWorkers = min(workers, 64)

	opts := g.options(p)
	opts.SampleRate = c.SampleRate
	opts.SongID = c.SongID
	res, sig, err := beatmap.MapFile(g.ctx, c.Input, opts)
	if err != nil {
		return err
	}

	var out []byte
	switch c.Format {
	case "json":
		out, err = export.JSON(res, sig, p.Config.Mode)
		if err != nil {
			return err
		}
	case "c":
		out = []byte(export.CHeader(c.SongID, melody.Song{}, res.Notes) + "\n")
	default:
		cli.PrintSummary(os.Stdout, filepath.Base(c.Input), res, p.Config.Mode)
		return nil
	}
	return writeOutput(c.Output, out)
}

// SongCmd generates the C header for a melody.
type SongCmd struct {
	Melody string `arg:"" help:"RTTTL text or a file containing it"`
	SongID int    `default:"2" help:"Array suffix"`
	Output string `short:"o" type:"path" help:"Write the header to this file instead of stdout"`
	WAV    string `name:"wav" type:"path" help:"Also write the rendered audio"`
}

func (c *SongCmd) Run(g *Globals) error {
	p, err := g.load()
	if err != nil {
		return err
	}
	src, err := melodySource(c.Melody)
	if err != nil {
		return err
	}
	opts := g.options(p)
	opts.SongID = c.SongID
	art, err := beatmap.Generate(g.ctx, src, opts)
	if err != nil {
		return err
	}
	if c.WAV != "" {
		if err := audiofile.WriteMonoWAV(c.WAV, art.Signal.Samples, art.Signal.SampleRate); err != nil {
			return err
		}
	}
	return writeOutput(c.Output, []byte(art.Header+"\n"))
}

// ServeCmd runs the HTTP server.
type ServeCmd struct {
	Addr string `default:":8000" help:"Listen address"`
	Jobs int    `default:"2" help:"Concurrent pipelines"`
}

func (c *ServeCmd) Run(g *Globals) error {
	p, err := g.load()
	if err != nil {
		return err
	}
	if g.log.GetLevel() < logrus.InfoLevel {
		g.log.SetLevel(logrus.InfoLevel)
	}
	return server.New(g.options(p), g.log, c.Jobs).ListenAndServe(g.ctx, c.Addr)
}

// melodySource returns arg itself, or the contents of the file it names.
func melodySource(arg string) (string, error) {
	if strings.Contains(arg, ":") {
		if _, err := os.Stat(arg); err != nil {
			return arg, nil
		}
	}
	b, err := os.ReadFile(arg)
	if err != nil {
		return "", fmt.Errorf("melody %q is neither RTTTL nor a readable file: %w", arg, err)
	}
	return strings.TrimSpace(string(b)), nil
}

func parseMelody(arg string) (melody.Song, error) {
	src, err := melodySource(arg)
	if err != nil {
		return melody.Song{}, err
	}
	return melody.Parse(src)
}

func writeOutput(path string, data []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(data)
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return err
	}
	cli.PrintKV(os.Stderr, "Wrote", path)
	return nil
}
