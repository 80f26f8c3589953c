// Package vectortile reads the Mapbox Vector Tile protobuf schema (version 2.1)
// into plain Go structures.
//
// Only the wire format is interpreted here. Geometry command streams and tag
// arrays are returned as the raw integer sequences found in the tile.
package vectortile

// GeomType is the geometry type code carried by a feature.
type GeomType int32

// Geometry type codes defined by the Vector Tile schema.
const (
	Unknown    GeomType = 0
	Point      GeomType = 1
	LineString GeomType = 2
	Polygon    GeomType = 3
)

// String returns the GeoJSON name of the type. Codes outside the schema are
// reported as "Unknown".
func (t GeomType) String() string {
	switch t {
	case Point:
		return "Point"
	case LineString:
		return "LineString"
	case Polygon:
		return "Polygon"
	default:
		return "Unknown"
	}
}

// MarshalText implements encoding.TextMarshaler so documents carry the type name.
func (t GeomType) MarshalText() ([]byte, error) {
	return []byte(t.String()), nil
}

// Known reports whether t is one of Point, LineString or Polygon.
func (t GeomType) Known() bool {
	return t == Point || t == LineString || t == Polygon
}

// Tile is a decoded vector tile message.
type Tile struct {
	Layers []*Layer
}

// Layer is one named layer of a tile.
type Layer struct {
	Version  uint32
	Name     string
	Features []*Feature
	Keys     []string
	Values   []*Value
	Extent   *uint32 // nil when the layer omits it
}

// Feature is a single feature with its raw tag and geometry arrays.
type Feature struct {
	ID       *uint64
	Tags     []uint32
	Type     *GeomType
	Geometry []uint32
}

// Value is the dictionary value type. A well formed tile populates exactly one
// field; every field stays nil when absent.
type Value struct {
	StringValue *string
	FloatValue  *float32
	DoubleValue *float64
	IntValue    *int64
	UintValue   *uint64
	SintValue   *int64
	BoolValue   *bool
}
