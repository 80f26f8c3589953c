package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotFounds/mvtcurl/internal/config"
	"github.com/NotFounds/mvtcurl/internal/fetch"
	"github.com/NotFounds/mvtcurl/internal/geo"
	"github.com/NotFounds/mvtcurl/internal/logger"
	"github.com/NotFounds/mvtcurl/internal/mvt"
	"github.com/NotFounds/mvtcurl/internal/processor"

	"github.com/jessevdk/go-flags"
	"github.com/rs/zerolog/log"
)

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile  string   `short:"c" long:"config"      env:"MVTCURL_CONFIG" description:"Path to configuration file" default:"mvtcurl.yaml"`
	OutDir      string   `short:"o" long:"out"         env:"OUT_DIR"        description:"Directory for the decoded tiles" default:"tiles"`
	Depth       int      `short:"d" long:"depth"       description:"Zoom levels to descend below the root tile" default:"2"`
	Concurrency int      `short:"p" long:"concurrency" env:"CONCURRENCY"    description:"Concurrency" default:"8"`
	Force       bool     `long:"force"                 description:"Force overwrite of existing files"`
	Format      string   `short:"f" long:"format"      description:"Output format" choice:"json" choice:"yaml" choice:"geojson" default:"json"`
	Compact     bool     `long:"compact"               description:"Output compact JSON instead of pretty-printed"`
	WGS84       bool     `long:"wgs84"                 description:"Project geojson output to longitude/latitude"`
	Layers      []string `short:"l" long:"layer"       description:"Only output the named layer (repeatable)"`
	Headers     []string `short:"H" long:"header"      description:"Add custom HTTP header (format: 'Name: Value')"`
	Zoom        *uint32  `short:"z" long:"zoom"        description:"Zoom level of the root tile"`
	X           *uint32  `short:"x" long:"x"           description:"X coordinate of the root tile"`
	Y           *uint32  `short:"y" long:"y"           description:"Y coordinate of the root tile"`
	Location    string   `short:"L" long:"location"    description:"Root the pyramid at a named location (requires --zoom)"`

	Args struct {
		Source string `positional-arg-name:"SOURCE" required:"yes" description:"Configured source name or {z}/{x}/{y} URL template"`
	} `positional-args:"yes"`
}

func main() {
	var opts Options
	parser := flags.NewParser(&opts, flags.Default)
	if _, err := parser.Parse(); err != nil {
		if flagsErr, ok := err.(*flags.Error); ok && flagsErr.Type == flags.ErrHelp {
			os.Exit(0)
		}
		os.Exit(1)
	}

	opts.Logger.Setup()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts); err != nil {
		log.Fatal().Err(err).Msg("Dump failed")
	}
}

func run(ctx context.Context, opts Options) error {
	cfg, err := config.LoadOptional(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	tpl, rawHeaders := cfg.Resolve(opts.Args.Source, opts.Headers)
	if !fetch.IsTemplate(tpl) {
		return fmt.Errorf("%q is neither a configured source nor a URL template", opts.Args.Source)
	}
	headers, err := fetch.ParseHeaders(rawHeaders)
	if err != nil {
		return err
	}

	sel := geo.Selection{Zoom: opts.Zoom, X: opts.X, Y: opts.Y}
	if opts.Location != "" {
		sel.Locations = []string{opts.Location}
	}
	root, _, err := cfg.GeoLocations().Select(sel)
	if err != nil {
		return err
	}
	if opts.Depth < 0 {
		return errors.New("depth must not be negative")
	}

	client := fetch.NewClient(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}

	log.Info().
		Str("source", opts.Args.Source).
		Uint32("z", uint32(root.Z)).
		Uint32("x", root.X).
		Uint32("y", root.Y).
		Int("depth", opts.Depth).
		Int("concurrency", opts.Concurrency).
		Msg("Starting dump")

	stats, err := processor.ProcessTiles(ctx, client, root, processor.Options{
		URLTemplate: tpl,
		Headers:     headers,
		OutDir:      opts.OutDir,
		Depth:       opts.Depth,
		Concurrency: opts.Concurrency,
		Force:       opts.Force,
		Layers:      opts.Layers,
		Render: mvt.RenderOptions{
			Format:  mvt.Format(opts.Format),
			Compact: opts.Compact,
		},
		WGS84: opts.WGS84,
	})
	if err != nil {
		return err
	}

	log.Info().
		Int("written", stats.Written).
		Int("skipped", stats.Skipped).
		Int("empty", stats.Empty).
		Int("failed", stats.Failed).
		Str("dir", opts.OutDir).
		Msg("Dump finished")
	return nil
}
