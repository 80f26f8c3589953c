package server

import (
	"context"
	"sort"

	"github.com/NotFounds/mvtcurl/internal/config"
	"github.com/NotFounds/mvtcurl/internal/fetch"

	"github.com/rs/zerolog/log"
)

// Fetcher downloads raw tile bytes.
type Fetcher interface {
	Fetch(ctx context.Context, url string, headers []fetch.Header) ([]byte, error)
}

// source is a configured source with its headers parsed once.
type source struct {
	config.Source
	headers []fetch.Header
}

// ServerContext holds dependencies for request handlers.
type ServerContext struct {
	Config         *config.Config
	Fetcher        Fetcher
	SourceResolver map[string]*source
	IndexHTML      []byte
}

// NewServerContext initializes the context and validates the configured sources.
// Sources without tile placeholders or with malformed headers are skipped.
func NewServerContext(cfg *config.Config, fetcher Fetcher) *ServerContext {
	log.Info().Int("config_sources_count", len(cfg.Sources)).Msg("Initializing server context")

	resolver := make(map[string]*source)
	validSources := make([]config.Source, 0, len(cfg.Sources))

	for _, s := range cfg.Sources {
		if !fetch.IsTemplate(s.URL) {
			log.Warn().
				Str("source", s.Name).
				Str("url", s.URL).
				Msg("Skipping source: url has no {z}/{x}/{y} placeholders")
			continue
		}

		headers, err := fetch.ParseHeaders(append(append([]string{}, cfg.Headers...), s.Headers...))
		if err != nil {
			log.Warn().
				Err(err).
				Str("source", s.Name).
				Msg("Skipping source: invalid headers")
			continue
		}

		src := &source{Source: s, headers: headers}
		resolver[s.Name] = src
		for _, alias := range s.Aliases {
			resolver[alias] = src
		}

		log.Debug().
			Str("source", s.Name).
			Strs("aliases", s.Aliases).
			Int("max_zoom", s.MaxZoom).
			Msg("Source validated and added to context")

		validSources = append(validSources, s)
	}

	sort.Slice(validSources, func(i, j int) bool {
		return validSources[i].Name < validSources[j].Name
	})
	cfg.Sources = validSources

	index, err := renderIndex(cfg)
	if err != nil {
		log.Error().Err(err).Msg("Failed to render index page")
	}

	log.Info().
		Int("valid_sources_count", len(cfg.Sources)).
		Int("index_bytes", len(index)).
		Msg("Server context initialized successfully")

	return &ServerContext{
		Config:         cfg,
		Fetcher:        fetcher,
		SourceResolver: resolver,
		IndexHTML:      index,
	}
}
