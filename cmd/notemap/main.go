package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"
	"github.com/sirupsen/logrus"

	"github.com/cwbudde/algo-notemap/beatmap"
	"github.com/cwbudde/algo-notemap/internal/cli"
	"github.com/cwbudde/algo-notemap/notemap"
	"github.com/cwbudde/algo-notemap/preset"
)

var (
	version = "0.1.0"
)

type versionFlag bool

// BeforeApply prints the styled version banner and exits.
func (v versionFlag) BeforeApply(app *kong.Kong, vars kong.Vars) error {
	cli.PrintVersion(vars["version"])
	app.Exit(0)
	return nil
}

// Globals are the flags shared by every command.
type Globals struct {
	Preset  string      `short:"p" type:"existingfile" help:"Preset JSON applied on top of the defaults"`
	Mode    string      `short:"m" help:"Threshold mode override (auto or fixed)"`
	Verbose bool        `short:"v" help:"Log pipeline details"`
	Version versionFlag `help:"Show version information"`

	ctx context.Context
	log *logrus.Logger
}

// CLI defines the command-line interface
type CLI struct {
	Globals

	Render RenderCmd `cmd:"" help:"Render an RTTTL melody to WAV"`
	Map    MapCmd    `cmd:"" help:"Map a WAV file to lane notes"`
	Song   SongCmd   `cmd:"" help:"Generate the C header for an RTTTL melody"`
	Serve  ServeCmd  `cmd:"" help:"Serve the song generator over HTTP"`
}

// load resolves the preset and the mode override.
func (g *Globals) load() (*preset.Preset, error) {
	p := preset.Default()
	if g.Preset != "" {
		loaded, err := preset.LoadJSON(g.Preset)
		if err != nil {
			return nil, err
		}
		p = loaded
	}
	if g.Mode != "" {
		p.Config.Mode = notemap.Mode(g.Mode)
		if err := p.Config.Validate(); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func (g *Globals) options(p *preset.Preset) beatmap.Options {
	opts := beatmap.DefaultOptions()
	opts.Config = p.Config
	opts.Synth = p.Synth
	opts.Logger = g.log
	return opts
}

func main() {
	var c CLI
	ctx := kong.Parse(&c,
		kong.Name("notemap"),
		kong.Description("Turn melodies and audio into three-lane rhythm game charts"),
		kong.UsageOnError(),
		kong.Vars{
			"version": version,
		},
	)

	log := logrus.New()
	log.SetOutput(os.Stderr)
	log.SetLevel(logrus.WarnLevel)
	if c.Verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	c.Globals.ctx = runCtx
	c.Globals.log = log

	if err := ctx.Run(&c.Globals); err != nil {
		cli.PrintError(err.Error())
		stop()
		os.Exit(1)
	}
}
