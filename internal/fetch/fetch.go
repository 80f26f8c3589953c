// Package fetch downloads vector tiles over HTTP.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/paulmach/orb/maptile"
	"github.com/rs/zerolog/log"
)

// DefaultUserAgent is sent when the caller does not set one.
const DefaultUserAgent = "mvtcurl/1.0"

var (
	// ErrInvalidHeader is returned for a header not in "Name: Value" form.
	ErrInvalidHeader = errors.New("invalid header format")

	// ErrStatus is returned for a response with a non-2xx status code.
	ErrStatus = errors.New("unexpected status")
)

// Header is one parsed request header.
type Header struct {
	Name  string
	Value string
}

// ParseHeader splits "Name: Value" at the first colon and trims both sides.
func ParseHeader(s string) (Header, error) {
	name, value, ok := strings.Cut(s, ":")
	name = strings.TrimSpace(name)
	if !ok || name == "" {
		return Header{}, fmt.Errorf("%w: %q, expected 'Name: Value'", ErrInvalidHeader, s)
	}
	return Header{Name: name, Value: strings.TrimSpace(value)}, nil
}

// ParseHeaders parses every header, stopping at the first invalid one.
func ParseHeaders(raw []string) ([]Header, error) {
	headers := make([]Header, 0, len(raw))
	for _, s := range raw {
		h, err := ParseHeader(s)
		if err != nil {
			return nil, err
		}
		headers = append(headers, h)
	}
	return headers, nil
}

// IsTemplate reports whether tpl contains any tile placeholder.
func IsTemplate(tpl string) bool {
	for _, p := range []string{"{z}", "{x}", "{y}", "{tms_y}"} {
		if strings.Contains(tpl, p) {
			return true
		}
	}
	return false
}

// BuildURL fills the {z}, {x}, {y} and {tms_y} placeholders of tpl.
func BuildURL(tpl string, t maptile.Tile) string {
	s := strings.ReplaceAll(tpl, "{z}", strconv.FormatUint(uint64(t.Z), 10))
	s = strings.ReplaceAll(s, "{x}", strconv.FormatUint(uint64(t.X), 10))
	s = strings.ReplaceAll(s, "{y}", strconv.FormatUint(uint64(t.Y), 10))

	if strings.Contains(s, "{tms_y}") {
		maxCoord := uint64(1)<<t.Z - 1
		tmsY := maxCoord - uint64(t.Y)
		s = strings.ReplaceAll(s, "{tms_y}", strconv.FormatUint(tmsY, 10))
	}

	return s
}

// Client fetches raw tile payloads.
type Client struct {
	HTTP      *http.Client
	UserAgent string
}

// NewClient returns a Client with the given request timeout.
func NewClient(timeout time.Duration) *Client {
	return &Client{
		HTTP: &http.Client{
			Transport: &http.Transport{
				Proxy:               http.ProxyFromEnvironment,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 100,
			},
			Timeout: timeout,
		},
		UserAgent: DefaultUserAgent,
	}
}

// Fetch downloads url and returns the tile bytes, inflated when the server
// sent them gzip wrapped.
func (c *Client) Fetch(ctx context.Context, url string, headers []Header) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}
	for _, h := range headers {
		req.Header.Add(h.Name, h.Value)
	}

	client := c.HTTP
	if client == nil {
		client = http.DefaultClient
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{URL: url, Code: resp.StatusCode}
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", url, err)
	}

	log.Debug().
		Str("url", url).
		Int("status", resp.StatusCode).
		Int("bytes", len(body)).
		Dur("duration", time.Since(start)).
		Msg("Tile fetched")

	return vectortile.Decompress(body)
}

// StatusError reports a non-2xx response. It matches ErrStatus with errors.Is.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fetch %s: %v %d", e.URL, ErrStatus, e.Code)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrStatus
}
