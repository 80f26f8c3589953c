// Package config handles configuration loading and shared data structures.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/NotFounds/mvtcurl/internal/geo"

	"gopkg.in/yaml.v3"
)

// DefaultTimeout bounds a single tile request when the config sets none.
const DefaultTimeout = 15 * time.Second

// ErrUnknownSource is returned when a source name or alias is not configured.
var ErrUnknownSource = errors.New("unknown source")

// Config represents the root configuration file structure.
type Config struct {
	UserAgent string        `yaml:"user_agent,omitempty" json:"-"`
	Headers   []string      `yaml:"headers,omitempty" json:"-"` // sent with every request
	Sources   []Source      `yaml:"sources" json:"sources"`
	Locations []Location    `yaml:"locations,omitempty" json:"locations,omitempty"`
	Timeout   time.Duration `yaml:"timeout,omitempty" json:"-"`
}

// Source is a named tile endpoint.
type Source struct {
	Name    string   `yaml:"name" json:"name"`
	URL     string   `yaml:"url" json:"url"` // {z}/{x}/{y}/{tms_y} template
	Aliases []string `yaml:"aliases,omitempty" json:"aliases,omitempty"`
	Headers []string `yaml:"headers,omitempty" json:"-"` // may carry credentials
	MaxZoom int      `yaml:"max_zoom,omitempty" json:"max_zoom,omitempty"`
}

// Location is a named position usable instead of explicit tile coordinates.
type Location struct {
	Name       string `yaml:"name" json:"name"`
	geo.LatLon `yaml:",inline"`
}

// Load reads and parses the YAML configuration file from the specified path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}

	return &cfg, nil
}

// LoadOptional is Load, except that a missing file yields an empty config.
func LoadOptional(path string) (*Config, error) {
	cfg, err := Load(path)
	if errors.Is(err, fs.ErrNotExist) {
		return &Config{Timeout: DefaultTimeout}, nil
	}
	return cfg, err
}

func (c *Config) validate() error {
	seen := make(map[string]bool)
	for i, s := range c.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is empty", i)
		}
		if s.URL == "" {
			return fmt.Errorf("source %q: url is empty", s.Name)
		}
		for _, n := range append([]string{s.Name}, s.Aliases...) {
			if seen[n] {
				return fmt.Errorf("source name %q is used twice", n)
			}
			seen[n] = true
		}
	}
	for i, l := range c.Locations {
		if l.Name == "" {
			return fmt.Errorf("location %d: name is empty", i)
		}
	}
	return nil
}

// Source finds a source by name or alias.
func (c *Config) Source(name string) (Source, error) {
	for _, s := range c.Sources {
		if s.Name == name {
			return s, nil
		}
		for _, a := range s.Aliases {
			if a == name {
				return s, nil
			}
		}
	}
	return Source{}, fmt.Errorf("%w %q", ErrUnknownSource, name)
}

// Resolve expands a URL argument. A configured source name becomes its URL
// template; the global headers come first, then the source headers, then
// extra. Anything that is not a source name is returned as the URL itself.
func (c *Config) Resolve(arg string, extra []string) (string, []string) {
	headers := append([]string{}, c.Headers...)

	url := arg
	if !strings.Contains(arg, "/") {
		if s, err := c.Source(arg); err == nil {
			url = s.URL
			headers = append(headers, s.Headers...)
		}
	}
	return url, append(headers, extra...)
}

// GeoLocations returns the built-in locations extended by the configured ones.
func (c *Config) GeoLocations() geo.Locations {
	locs := geo.DefaultLocations()
	for _, l := range c.Locations {
		locs.Add(l.Name, l.LatLon)
	}
	return locs
}
