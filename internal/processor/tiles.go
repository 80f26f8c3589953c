// Package processor downloads and decodes whole pyramids of vector tiles.
package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"github.com/NotFounds/mvtcurl/internal/fetch"
	"github.com/NotFounds/mvtcurl/internal/geo"
	"github.com/NotFounds/mvtcurl/internal/mvt"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

// DefaultConcurrency is used when Options.Concurrency is not positive.
const DefaultConcurrency = 8

const maxZoom = 30

// Fetcher retrieves raw tile bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers []fetch.Header) ([]byte, error)
}

// Options control a pyramid download.
type Options struct {
	URLTemplate string
	Headers     []fetch.Header
	OutDir      string
	Depth       int // zoom levels below the root tile
	Concurrency int
	Force       bool // overwrite existing files
	Layers      []string
	Render      mvt.RenderOptions
	WGS84       bool // project geojson output of every tile to lon/lat
}

// Stats counts tile outcomes of a run.
type Stats struct {
	Written int `json:"written"`
	Skipped int `json:"skipped"`
	Empty   int `json:"empty"`
	Failed  int `json:"failed"`
}

type outcome int

const (
	written outcome = iota
	skipped
	empty
	failed
)

type result struct {
	Tile    maptile.Tile
	Outcome outcome
}

// ProcessTiles walks down from root for opts.Depth levels. Only children of
// tiles that had data are queued for the next level. Every tile is written to
// OutDir/z/x/y.<format>.
func ProcessTiles(ctx context.Context, f Fetcher, root maptile.Tile, opts Options) (Stats, error) {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Render.Format == "" {
		opts.Render.Format = mvt.FormatJSON
	}

	var stats Stats
	current := maptile.Tiles{root}

	for depth := 0; depth <= opts.Depth && len(current) > 0; depth++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		log.Debug().
			Uint32("zoom", uint32(current[0].Z)).
			Int("count", len(current)).
			Msg("Processing zoom level")

		valid := processBatch(ctx, f, current, opts, &stats)
		if depth == opts.Depth || current[0].Z >= maxZoom {
			break
		}

		next := make(maptile.Tiles, 0, len(valid)*4)
		for _, t := range valid {
			next = append(next, t.Children()...)
		}
		current = next
	}

	return stats, ctx.Err()
}

func processBatch(ctx context.Context, f Fetcher, tiles maptile.Tiles, opts Options, stats *Stats) maptile.Tiles {
	jobs := make(chan maptile.Tile, len(tiles))
	results := make(chan result, len(tiles))

	go func() {
		for _, t := range tiles {
			jobs <- t
		}
		close(jobs)
	}()

	var wg sync.WaitGroup
	for i := 0; i < opts.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for t := range jobs {
				if ctx.Err() != nil {
					results <- result{Tile: t, Outcome: failed}
					continue
				}
				o, err := processTile(ctx, f, t, opts)
				if err != nil {
					log.Warn().
						Err(err).
						Str("tile", tileName(t)).
						Msg("Failed to process tile")
				}
				results <- result{Tile: t, Outcome: o}
			}
		}()
	}
	wg.Wait()
	close(results)

	var valid maptile.Tiles
	for res := range results {
		switch res.Outcome {
		case written:
			stats.Written++
			valid = append(valid, res.Tile)
		case skipped:
			stats.Skipped++
			valid = append(valid, res.Tile)
		case empty:
			stats.Empty++
		case failed:
			stats.Failed++
		}
	}
	return valid
}

func processTile(ctx context.Context, f Fetcher, t maptile.Tile, opts Options) (outcome, error) {
	outPath := TilePath(opts.OutDir, t, opts.Render.Format)

	if !opts.Force {
		if info, err := os.Stat(outPath); err == nil && info.Size() > 0 {
			return skipped, nil
		}
	}

	url := fetch.BuildURL(opts.URLTemplate, t)
	data, err := f.Fetch(ctx, url, opts.Headers)
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			log.Trace().Str("url", url).Msg("Tile not found")
			return empty, nil
		}
		return failed, err
	}
	if len(data) == 0 {
		return empty, nil
	}

	doc, err := mvt.DecodeBytes(data)
	if err != nil {
		return failed, fmt.Errorf("%s: %w", url, err)
	}
	doc = doc.Filter(opts.Layers...)
	if doc.FeatureCount() == 0 {
		log.Trace().Str("url", url).Msg("Skipped tile without features")
		return empty, nil
	}

	ropts := opts.Render
	if opts.WGS84 && ropts.Format == mvt.FormatGeoJSON {
		ropts.Projection = geo.TileProjection(t)
	}

	var buf bytes.Buffer
	if err := mvt.Render(&buf, doc, ropts); err != nil {
		return failed, err
	}

	if err := os.MkdirAll(filepath.Dir(outPath), 0755); err != nil {
		return failed, err
	}
	if err := os.WriteFile(outPath, buf.Bytes(), 0644); err != nil {
		return failed, err
	}

	return written, nil
}

// TilePath returns dir/z/x/y.<format>.
func TilePath(dir string, t maptile.Tile, format mvt.Format) string {
	return filepath.Join(
		dir,
		strconv.FormatUint(uint64(t.Z), 10),
		strconv.FormatUint(uint64(t.X), 10),
		strconv.FormatUint(uint64(t.Y), 10)+"."+string(format))
}

func tileName(t maptile.Tile) string {
	return fmt.Sprintf("%d/%d/%d", t.Z, t.X, t.Y)
}
