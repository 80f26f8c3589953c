package mvt

import (
	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/paulmach/orb"
	"github.com/rs/zerolog/log"
)

// DefaultExtent is used when a layer does not declare its extent.
const DefaultExtent Extent = 4096

// Extent is the size of a layer's local coordinate space along each axis.
type Extent uint32

// LayerExtent returns the extent declared by the layer, or DefaultExtent when
// it is absent. A declared extent of zero cannot normalise anything and is
// treated as absent.
func LayerExtent(l *vectortile.Layer) Extent {
	if l.Extent == nil || *l.Extent == 0 {
		return DefaultExtent
	}
	return Extent(*l.Extent)
}

// Normalize maps a tile-local position onto the unit interval.
func (e Extent) Normalize(v int32) float64 {
	return float64(v) / float64(e)
}

// Coordinates is the coordinate payload of a Geometry. It is one of Point,
// Points, Ring or Rings.
type Coordinates interface {
	isCoordinates()
}

// Point is a normalised [x, y] position.
type Point [2]float64

// Points is a flat list of positions, used for multi-point features.
type Points []Point

// Ring is an ordered position sequence: a line, or one boundary of a polygon.
type Ring []Point

// Rings is a list of rings: polygon boundaries or multiple lines.
type Rings []Ring

func (Point) isCoordinates()  {}
func (Points) isCoordinates() {}
func (Ring) isCoordinates()   {}
func (Rings) isCoordinates()  {}

// Geometry is a decoded feature geometry. The payload shape depends on Type:
//
//	Point       Point for a single point, Points otherwise
//	LineString  Ring for a single line, Rings otherwise
//	Polygon     Rings, always
//	Unknown     empty Points
type Geometry struct {
	Type        vectortile.GeomType `json:"type" yaml:"type"`
	Coordinates Coordinates         `json:"coordinates" yaml:"coordinates"`
}

// cursor is the running absolute position of one feature's command stream.
type cursor struct {
	x, y int32
}

// BuildGeometry replays a feature's geometry command stream.
//
// Each MoveTo or LineTo repetition consumes a zigzag encoded (dx, dy) pair,
// moves the cursor and emits the normalised position. For Point features
// MoveTo positions form a flat list. For LineString and Polygon features each
// MoveTo position starts a new ring and LineTo positions extend the latest
// one. ClosePath emits nothing and ring closure is left implicit. Unknown
// command ids consume only the command integer. A repetition without two
// remaining parameters ends the walk, keeping what was built.
func BuildGeometry(typ vectortile.GeomType, geom []uint32, extent Extent) Geometry {
	var (
		cur    cursor
		points = Points{}
		rings  = Rings{}
	)

walk:
	for i := 0; i < len(geom); {
		cmd, count := ParseCommand(geom[i])
		i++

		switch cmd {
		case MoveTo, LineTo:
			for n := 0; n < count; n++ {
				if i+1 >= len(geom) {
					log.Trace().
						Stringer("command", cmd).
						Int("offset", i).
						Int("length", len(geom)).
						Msg("Geometry truncated, dropping remainder")
					break walk
				}
				cur.x += DecodeZigzag(geom[i])
				cur.y += DecodeZigzag(geom[i+1])
				i += 2

				p := Point{extent.Normalize(cur.x), extent.Normalize(cur.y)}
				switch typ {
				case vectortile.Point:
					if cmd == MoveTo {
						points = append(points, p)
					}
				case vectortile.LineString, vectortile.Polygon:
					if cmd == MoveTo {
						rings = append(rings, Ring{p})
					} else if len(rings) > 0 {
						rings[len(rings)-1] = append(rings[len(rings)-1], p)
					}
				}
			}

		case ClosePath:

		default:
			log.Trace().
				Stringer("command", cmd).
				Int("offset", i-1).
				Msg("Skipping unknown geometry command")
		}
	}

	g := Geometry{Type: typ}
	switch typ {
	case vectortile.Point:
		if len(points) == 1 {
			g.Coordinates = points[0]
		} else {
			g.Coordinates = points
		}
	case vectortile.LineString:
		if len(rings) == 1 {
			g.Coordinates = rings[0]
		} else {
			g.Coordinates = rings
		}
	case vectortile.Polygon:
		g.Coordinates = rings
	default:
		g.Type = vectortile.Unknown
		g.Coordinates = points
	}
	return g
}

// Orb converts the geometry to its orb equivalent. Unknown geometries have no
// equivalent and yield nil.
func (g Geometry) Orb() orb.Geometry {
	switch c := g.Coordinates.(type) {
	case Point:
		return orb.Point(c)
	case Points:
		if g.Type != vectortile.Point {
			return nil
		}
		mp := make(orb.MultiPoint, len(c))
		for i, p := range c {
			mp[i] = orb.Point(p)
		}
		return mp
	case Ring:
		return orbLine(c)
	case Rings:
		if g.Type == vectortile.Polygon {
			poly := make(orb.Polygon, len(c))
			for i, r := range c {
				poly[i] = orb.Ring(orbLine(r))
			}
			return poly
		}
		mls := make(orb.MultiLineString, len(c))
		for i, r := range c {
			mls[i] = orbLine(r)
		}
		return mls
	}
	return nil
}

func orbLine(r Ring) orb.LineString {
	ls := make(orb.LineString, len(r))
	for i, p := range r {
		ls[i] = orb.Point(p)
	}
	return ls
}
