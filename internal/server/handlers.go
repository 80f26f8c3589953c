// Package server handles HTTP requests and middleware.
package server

import (
	"bytes"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/NotFounds/mvtcurl/internal/fetch"
	"github.com/NotFounds/mvtcurl/internal/geo"
	"github.com/NotFounds/mvtcurl/internal/mvt"
	"github.com/NotFounds/mvtcurl/internal/vectortile"

	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

const (
	etagCap       = 64
	maxTileBytes  = 16 << 20
	maxZoomLevels = 30
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var contentTypes = map[mvt.Format]string{
	mvt.FormatJSON:    "application/json",
	mvt.FormatGeoJSON: "application/geo+json",
	mvt.FormatYAML:    "application/yaml",
}

// HandleIndex serves the landing page.
func (s *ServerContext) HandleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" || s.IndexHTML == nil {
		http.NotFound(w, r)
		return
	}

	etag := makeETag(s.IndexHTML, "")

	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(s.IndexHTML)
}

// HandleSources serves the JSON list of configured sources.
func (s *ServerContext) HandleSources(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	// Ignoring error as we cannot handle client disconnects
	_ = json.NewEncoder(w).Encode(s.Config.Sources)
}

// HandleTile fetches a tile from a configured source and serves it decoded.
func (s *ServerContext) HandleTile(w http.ResponseWriter, r *http.Request) {
	// Path: /tiles/{source}/{z}/{x}/{y}[.json]
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 5 {
		http.NotFound(w, r)
		return
	}

	src, ok := s.SourceResolver[parts[1]]
	if !ok {
		http.NotFound(w, r)
		return
	}

	tile, err := parseTile(parts[2], parts[3], strings.TrimSuffix(parts[4], ".json"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if src.MaxZoom > 0 && int(tile.Z) > src.MaxZoom {
		http.NotFound(w, r)
		return
	}

	url := fetch.BuildURL(src.URL, tile)
	data, err := s.Fetcher.Fetch(r.Context(), url, src.headers)
	if err != nil {
		var se *fetch.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			http.NotFound(w, r)
			return
		}
		log.Error().Err(err).Str("source", src.Name).Str("url", url).Msg("Upstream fetch failed")
		http.Error(w, "upstream fetch failed", http.StatusBadGateway)
		return
	}

	s.serveDecoded(w, r, data, &tile)
}

// HandleDecode decodes a tile posted as the request body.
func (s *ServerContext) HandleDecode(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTileBytes))
	if err != nil {
		http.Error(w, "tile too large or unreadable", http.StatusRequestEntityTooLarge)
		return
	}
	data, err := vectortile.Decompress(body)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.serveDecoded(w, r, data, nil)
}

// serveDecoded decodes data and writes it in the format requested by the
// query string. The ETag derives from the tile bytes and the query.
func (s *ServerContext) serveDecoded(w http.ResponseWriter, r *http.Request, data []byte, tile *maptile.Tile) {
	q := r.URL.Query()
	opts := mvt.RenderOptions{
		Format:  mvt.Format(q.Get("format")),
		Compact: q.Get("compact") != "" && q.Get("compact") != "0",
	}
	if opts.Format == "" {
		opts.Format = mvt.FormatJSON
	}
	contentType, ok := contentTypes[opts.Format]
	if !ok {
		http.Error(w, fmt.Sprintf("unknown format %q", opts.Format), http.StatusBadRequest)
		return
	}
	if tile != nil && q.Get("wgs84") != "" {
		opts.Projection = geo.TileProjection(*tile)
	}

	etag := makeETag(data, r.URL.RawQuery)
	if match := r.Header.Get("If-None-Match"); match == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	doc, err := mvt.DecodeBytes(data)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	doc = doc.Filter(q["layer"]...)

	var buf bytes.Buffer
	if err := mvt.Render(&buf, doc, opts); err != nil {
		log.Error().Err(err).Msg("Failed to render document")
		http.Error(w, "render failed", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", contentType)
	w.Header().Set("ETag", etag)
	w.Header().Set("Cache-Control", "public, no-cache")
	_, _ = w.Write(buf.Bytes())
}

func parseTile(zs, xs, ys string) (maptile.Tile, error) {
	z, err := strconv.ParseUint(zs, 10, 32)
	if err != nil || z > maxZoomLevels {
		return maptile.Tile{}, fmt.Errorf("invalid zoom %q", zs)
	}
	x, err := strconv.ParseUint(xs, 10, 32)
	if err != nil || x >= 1<<z {
		return maptile.Tile{}, fmt.Errorf("invalid x %q at zoom %d", xs, z)
	}
	y, err := strconv.ParseUint(ys, 10, 32)
	if err != nil || y >= 1<<z {
		return maptile.Tile{}, fmt.Errorf("invalid y %q at zoom %d", ys, z)
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}

func makeETag(data []byte, query string) string {
	h := fnv.New64a()
	_, _ = h.Write(data)
	_, _ = io.WriteString(h, query)

	buf := make([]byte, 0, etagCap)
	buf = append(buf, '"')
	buf = strconv.AppendInt(buf, int64(len(data)), 16)
	buf = append(buf, '-')
	buf = strconv.AppendUint(buf, h.Sum64(), 16)
	buf = append(buf, '"')
	return string(buf)
}
