package mvt

import (
	"fmt"

	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/project"
	"github.com/rs/zerolog/log"
)

// Document is a decoded tile.
type Document struct {
	Layers []Layer `json:"layers" yaml:"layers"`
}

// Layer is a decoded tile layer.
type Layer struct {
	Name     string    `json:"name" yaml:"name"`
	Extent   Extent    `json:"extent" yaml:"extent"`
	Version  uint32    `json:"version" yaml:"version"`
	Features []Feature `json:"features" yaml:"features"`
}

// Feature is a decoded feature in GeoJSON layout. ID is nil, and omitted from
// the output, when the tile does not carry one.
type Feature struct {
	Type       string     `json:"type" yaml:"type"`
	ID         *uint64    `json:"id,omitempty" yaml:"id,omitempty"`
	Geometry   Geometry   `json:"geometry" yaml:"geometry"`
	Properties Properties `json:"properties" yaml:"properties"`
}

// DecodeBytes decodes a protobuf encoded tile. The only error is a wire level
// decode failure, which wraps vectortile.ErrMalformed.
func DecodeBytes(data []byte) (*Document, error) {
	tile, err := vectortile.Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("decode tile: %w", err)
	}
	return Decode(tile), nil
}

// Decode converts a parsed tile into a document, keeping layer and feature
// order. It never fails.
func Decode(tile *vectortile.Tile) *Document {
	doc := &Document{Layers: make([]Layer, 0, len(tile.Layers))}
	for _, l := range tile.Layers {
		doc.Layers = append(doc.Layers, decodeLayer(l))
	}
	return doc
}

func decodeLayer(l *vectortile.Layer) Layer {
	extent := LayerExtent(l)
	layer := Layer{
		Name:     l.Name,
		Extent:   extent,
		Version:  l.Version,
		Features: make([]Feature, 0, len(l.Features)),
	}

	for _, f := range l.Features {
		typ := vectortile.Unknown
		if f.Type != nil && f.Type.Known() {
			typ = *f.Type
		} else if f.Type != nil {
			log.Trace().
				Str("layer", l.Name).
				Int32("type", int32(*f.Type)).
				Msg("Unrecognised geometry type, decoding as Unknown")
		}

		layer.Features = append(layer.Features, Feature{
			Type:       "Feature",
			ID:         f.ID,
			Geometry:   BuildGeometry(typ, f.Geometry, extent),
			Properties: ResolveProperties(f.Tags, l.Keys, l.Values),
		})
	}
	return layer
}

// FeatureCount returns the number of features over all layers.
func (d *Document) FeatureCount() int {
	n := 0
	for _, l := range d.Layers {
		n += len(l.Features)
	}
	return n
}

// Filter returns a document holding only the named layers, in their original
// order. With no names the document is returned as is.
func (d *Document) Filter(names ...string) *Document {
	if len(names) == 0 {
		return d
	}
	keep := make(map[string]bool, len(names))
	for _, n := range names {
		keep[n] = true
	}

	out := &Document{Layers: make([]Layer, 0, len(names))}
	for _, l := range d.Layers {
		if keep[l.Name] {
			out.Layers = append(out.Layers, l)
		}
	}
	return out
}

// FeatureCollection flattens the document into one GeoJSON feature collection.
// Every feature records its layer name in the "layer" property. Features with
// Unknown geometry are left out. When proj is non-nil it is applied to
// every position, e.g. to move normalised tile positions to WGS84.
func (d *Document) FeatureCollection(proj orb.Projection) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, l := range d.Layers {
		for _, f := range l.Features {
			g := f.Geometry.Orb()
			if g == nil {
				log.Debug().
					Str("layer", l.Name).
					Msg("Skipping feature without a GeoJSON geometry")
				continue
			}
			if proj != nil {
				g = project.Geometry(g, proj)
			}

			gf := geojson.NewFeature(g)
			if f.ID != nil {
				gf.ID = *f.ID
			}
			for k, v := range f.Properties {
				gf.Properties[k] = v
			}
			gf.Properties["layer"] = l.Name
			fc.Append(gf)
		}
	}
	return fc
}
