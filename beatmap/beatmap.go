// Package beatmap ties parsing, rendering, mapping and export together.
package beatmap

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-notemap/internal/audiofile"
	"github.com/cwbudde/algo-notemap/internal/export"
	"github.com/cwbudde/algo-notemap/melody"
	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/synth"
)

// DefaultSongID is the array suffix used when none is given.
const DefaultSongID = 2

// Options configures one pipeline run.
type Options struct {
	Config notemap.Config
	Synth  synth.Options
	SongID int
	// SampleRate resamples decoded files when > 0.
	SampleRate int
	Logger     logrus.FieldLogger
	OnNote     func(notemap.NoteEvent)
}

// DefaultOptions returns options built from the package defaults.
func DefaultOptions() Options {
	return Options{
		Config: notemap.DefaultConfig(),
		Synth:  synth.DefaultOptions(),
		SongID: DefaultSongID,
	}
}

func (o Options) logger() logrus.FieldLogger {
	if o.Logger != nil {
		return o.Logger
	}
	return logrus.StandardLogger()
}

func (o Options) engineOptions() []notemap.Option {
	if o.OnNote == nil {
		return nil
	}
	return []notemap.Option{notemap.WithNoteHook(o.OnNote)}
}

// Artifacts is everything Generate produces for one melody.
type Artifacts struct {
	Song   melody.Song
	Signal notemap.Signal
	Result *notemap.Result
	Header string
}

// Generate parses an RTTTL melody, renders it, maps the audio to notes and
// formats the C header.
func Generate(ctx context.Context, source string, opts Options) (*Artifacts, error) {
	log := opts.logger()
	song, err := melody.Parse(source)
	if err != nil {
		log.WithFields(logrus.Fields{
			"function": "Generate",
			"error":    err,
		}).Warn("Melody rejected")
		return nil, err
	}

	started := time.Now()
	samples, err := synth.Render(song.Notes, opts.Synth)
	if err != nil {
		return nil, fmt.Errorf("render %q: %w", song.Name, err)
	}
	sig := notemap.Signal{Samples: samples, SampleRate: opts.Synth.SampleRate}
	log.WithFields(logrus.Fields{
		"function":    "Generate",
		"song":        song.Name,
		"notes":       len(song.Notes),
		"duration_ms": int64(sig.DurationMs()),
		"waveform":    opts.Synth.Waveform,
	}).Debug("Melody rendered")

	res, err := mapSignal(ctx, log, sig, opts)
	if err != nil {
		return nil, err
	}
	art := &Artifacts{
		Song:   song,
		Signal: sig,
		Result: res,
		Header: export.CHeader(opts.SongID, song, res.Notes),
	}
	log.WithFields(logrus.Fields{
		"function": "Generate",
		"song":     song.Name,
		"song_id":  opts.SongID,
		"notes":    len(res.Notes),
		"elapsed":  time.Since(started).Round(time.Millisecond),
	}).Info("Song artifacts generated")
	return art, nil
}

// MapFile decodes a WAV file and maps it.
func MapFile(ctx context.Context, path string, opts Options) (*notemap.Result, notemap.Signal, error) {
	log := opts.logger()
	sig, err := audiofile.LoadSignal(path, opts.SampleRate)
	if err != nil {
		return nil, notemap.Signal{}, err
	}
	log.WithFields(logrus.Fields{
		"function":    "MapFile",
		"path":        path,
		"sample_rate": sig.SampleRate,
		"duration_ms": int64(sig.DurationMs()),
	}).Debug("Audio decoded")

	res, err := mapSignal(ctx, log, sig, opts)
	if err != nil {
		return nil, notemap.Signal{}, fmt.Errorf("%s: %w", path, err)
	}
	return res, sig, nil
}

func mapSignal(ctx context.Context, log logrus.FieldLogger, sig notemap.Signal, opts Options) (*notemap.Result, error) {
	engine, err := notemap.NewEngine(opts.Config, opts.engineOptions()...)
	if err != nil {
		return nil, err
	}
	res, err := engine.Map(ctx, sig)
	if err != nil {
		log.WithFields(logrus.Fields{
			"function": "mapSignal",
			"error":    err,
		}).Error("Mapping failed")
		return nil, err
	}

	fields := logrus.Fields{
		"function": "mapSignal",
		"mode":     opts.Config.Mode,
		"frames":   res.Frames,
		"notes":    len(res.Notes),
		"base":     res.Base,
	}
	for l := range notemap.NumLanes {
		if opts.Config.Mode == notemap.ModeAuto && res.Calibration.FellBack(notemap.Lane(l)) {
			fields["fallback_"+notemap.Lane(l).String()] = true
		}
	}
	log.WithFields(fields).Debug("Signal mapped")
	return res, nil
}
