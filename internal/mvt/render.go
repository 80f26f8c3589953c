package mvt

import (
	"bytes"
	stdjson "encoding/json"
	"fmt"
	"io"

	jsoniter "github.com/json-iterator/go"
	"github.com/paulmach/orb"
	"gopkg.in/yaml.v3"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Format names an output encoding.
type Format string

// Supported output formats.
const (
	FormatJSON    Format = "json"
	FormatYAML    Format = "yaml"
	FormatGeoJSON Format = "geojson"
)

// RenderOptions controls Render.
type RenderOptions struct {
	Format  Format
	Compact bool

	// Projection is applied to positions in the geojson format only.
	Projection orb.Projection
}

// Render writes the document to w in the requested format, followed by a
// newline. An empty format means json.
func Render(w io.Writer, doc *Document, opts RenderOptions) error {
	var (
		out []byte
		err error
	)

	switch opts.Format {
	case FormatJSON, "":
		if opts.Compact {
			out, err = json.Marshal(doc)
		} else {
			out, err = json.MarshalIndent(doc, "", "  ")
		}

	case FormatGeoJSON:
		out, err = json.Marshal(doc.FeatureCollection(opts.Projection))
		if err == nil && !opts.Compact {
			var buf bytes.Buffer
			if err = stdjson.Indent(&buf, out, "", "  "); err == nil {
				out = buf.Bytes()
			}
		}

	case FormatYAML:
		var buf bytes.Buffer
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err = enc.Encode(doc); err == nil {
			err = enc.Close()
		}
		out = bytes.TrimRight(buf.Bytes(), "\n")

	default:
		return fmt.Errorf("unknown output format %q", opts.Format)
	}
	if err != nil {
		return fmt.Errorf("render %s: %w", opts.Format, err)
	}

	out = append(out, '\n')
	_, err = w.Write(out)
	return err
}
