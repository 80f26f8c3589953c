// Package geo handles Web Mercator tile addressing and named locations.
package geo

import (
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// LatLon is a WGS84 position in degrees.
type LatLon struct {
	Lat float64 `yaml:"lat" json:"lat"`
	Lon float64 `yaml:"lon" json:"lon"`
}

// TileCoord returns the slippy map tile containing the position at the given
// zoom. Latitudes near the poles fall outside the Web Mercator range and give
// meaningless tiles.
func (p LatLon) TileCoord(zoom uint32) maptile.Tile {
	n := math.Exp2(float64(zoom))
	latRad := p.Lat * math.Pi / 180

	x := math.Floor((p.Lon + 180) / 360 * n)
	y := math.Floor((1 - math.Log(math.Tan(latRad)+1/math.Cos(latRad))/math.Pi) / 2 * n)

	return maptile.New(uint32(math.Max(x, 0)), uint32(math.Max(y, 0)), maptile.Zoom(zoom))
}

// TileProjection returns a projection from positions normalised to the tile
// (0..1 on both axes, y growing southwards) to WGS84 [lon, lat].
func TileProjection(t maptile.Tile) orb.Projection {
	n := math.Exp2(float64(t.Z))
	return func(p orb.Point) orb.Point {
		lon := (float64(t.X)+p[0])/n*360 - 180
		mercY := math.Pi * (1 - 2*(float64(t.Y)+p[1])/n)
		lat := math.Atan(math.Sinh(mercY)) * 180 / math.Pi
		return orb.Point{lon, lat}
	}
}
