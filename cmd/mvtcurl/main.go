package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/NotFounds/mvtcurl/internal/config"
	"github.com/NotFounds/mvtcurl/internal/fetch"
	"github.com/NotFounds/mvtcurl/internal/geo"
	"github.com/NotFounds/mvtcurl/internal/logger"
	"github.com/NotFounds/mvtcurl/internal/mvt"
	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/jessevdk/go-flags"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

const defaultConfigFile = "mvtcurl.yaml"

type Options struct {
	Logger logger.Logger `group:"Logger options"`

	ConfigFile string   `short:"c" long:"config"   env:"MVTCURL_CONFIG" description:"Path to configuration file (default: ./mvtcurl.yaml if present)"`
	Input      string   `short:"i" long:"in"       description:"Decode a local tile file instead of fetching ('-' for stdin)"`
	Output     string   `short:"o" long:"out"      description:"Output file path. Writes to stdout if empty"`
	Format     string   `short:"f" long:"format"   description:"Output format" choice:"json" choice:"yaml" choice:"geojson" default:"json"`
	Compact    bool     `long:"compact"            description:"Output compact JSON instead of pretty-printed"`
	WGS84      bool     `long:"wgs84"              description:"Project geojson output to longitude/latitude (needs tile coordinates)"`
	Layers     []string `short:"l" long:"layer"    description:"Only output the named layer (repeatable)"`
	Headers    []string `short:"H" long:"header"   description:"Add custom HTTP header (format: 'Name: Value')"`
	Zoom       *uint32  `short:"z" long:"zoom"     description:"Zoom level for {z} placeholder"`
	X          *uint32  `short:"x" long:"x"        description:"X tile coordinate for {x} placeholder"`
	Y          *uint32  `short:"y" long:"y"        description:"Y tile coordinate for {y} placeholder"`
	Tokyo      bool     `long:"tokyo"              description:"Use Tokyo Station coordinates (requires --zoom)"`
	Fuji       bool     `long:"fuji"               description:"Use Mt. Fuji summit coordinates (requires --zoom)"`
	Location   string   `short:"L" long:"location" description:"Use a named location from the configuration (requires --zoom)"`

	Args struct {
		URL string `positional-arg-name:"URL" description:"Tile URL, {z}/{x}/{y} template or configured source name"`
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

	if err := run(ctx, opts, os.Stdin, os.Stdout); err != nil {
		log.Fatal().Err(err).Msg("mvtcurl failed")
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		return config.LoadOptional(defaultConfigFile)
	}
	return config.Load(path)
}

func run(ctx context.Context, opts Options, stdin io.Reader, stdout io.Writer) error {
	if opts.Args.URL == "" && opts.Input == "" {
		return errors.New("a URL argument or --in is required")
	}

	cfg, err := loadConfig(opts.ConfigFile)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	tile, located, err := resolveTile(opts, cfg.GeoLocations())
	if err != nil {
		return err
	}

	var data []byte
	if opts.Input != "" {
		data, err = readInput(opts.Input, stdin)
	} else {
		data, err = fetchTile(ctx, cfg, opts, tile)
	}
	if err != nil {
		return err
	}

	doc, err := mvt.DecodeBytes(data)
	if err != nil {
		return err
	}
	doc = doc.Filter(opts.Layers...)

	log.Info().
		Int("layers", len(doc.Layers)).
		Int("features", doc.FeatureCount()).
		Msg("Tile decoded")

	renderOpts := mvt.RenderOptions{
		Format:  mvt.Format(opts.Format),
		Compact: opts.Compact,
	}
	if opts.WGS84 {
		tileKnown := located || opts.Zoom != nil || (opts.Input == "" && fetch.IsTemplate(opts.Args.URL))
		switch {
		case renderOpts.Format != mvt.FormatGeoJSON:
			log.Warn().Str("format", opts.Format).Msg("--wgs84 only applies to the geojson format, ignoring")
		case !tileKnown:
			return errors.New("--wgs84 needs the tile coordinates (--zoom/-x/-y or a location)")
		default:
			renderOpts.Projection = geo.TileProjection(tile)
		}
	}

	var buf bytes.Buffer
	if err := mvt.Render(&buf, doc, renderOpts); err != nil {
		return err
	}

	if opts.Output != "" {
		if err := os.WriteFile(opts.Output, buf.Bytes(), 0644); err != nil {
			return fmt.Errorf("write output: %w", err)
		}
		log.Info().Str("path", opts.Output).Str("format", opts.Format).Msg("Output written")
		return nil
	}
	_, err = stdout.Write(buf.Bytes())
	return err
}

// resolveTile picks the tile from a named location or from -z/-x/-y. The
// second result reports whether a location was used.
func resolveTile(opts Options, locs geo.Locations) (maptile.Tile, bool, error) {
	sel := geo.Selection{Zoom: opts.Zoom, X: opts.X, Y: opts.Y}
	if opts.Tokyo {
		sel.Locations = append(sel.Locations, "tokyo")
	}
	if opts.Fuji {
		sel.Locations = append(sel.Locations, "fuji")
	}
	if opts.Location != "" {
		sel.Locations = append(sel.Locations, opts.Location)
	}
	return locs.Select(sel)
}

func fetchTile(ctx context.Context, cfg *config.Config, opts Options, tile maptile.Tile) ([]byte, error) {
	tpl, rawHeaders := cfg.Resolve(opts.Args.URL, opts.Headers)
	headers, err := fetch.ParseHeaders(rawHeaders)
	if err != nil {
		return nil, err
	}

	url := tpl
	if fetch.IsTemplate(tpl) {
		url = fetch.BuildURL(tpl, tile)
	}

	client := fetch.NewClient(cfg.Timeout)
	if cfg.UserAgent != "" {
		client.UserAgent = cfg.UserAgent
	}

	log.Debug().
		Str("url", url).
		Int("headers", len(headers)).
		Msg("Fetching tile")

	return client.Fetch(ctx, url, headers)
}

func readInput(path string, stdin io.Reader) ([]byte, error) {
	var (
		data []byte
		err  error
	)
	if path == "-" {
		data, err = io.ReadAll(stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, fmt.Errorf("read input: %w", err)
	}
	return vectortile.Decompress(data)
}
