package geo

import (
	"errors"
	"fmt"

	"github.com/paulmach/orb/maptile"
)

// Errors returned by Locations.Select.
var (
	ErrManyLocations  = errors.New("only one location can be used at a time")
	ErrZoomRequired   = errors.New("a zoom level is required with a location")
	ErrMixedSelection = errors.New("tile coordinates cannot be combined with a location")
)

// Selection names a tile either by location or by explicit coordinates.
// Missing coordinates default to zero.
type Selection struct {
	Locations []string
	Zoom      *uint32
	X, Y      *uint32
}

// Select resolves the selection to a tile. The second result reports whether
// a location was used.
func (l Locations) Select(sel Selection) (maptile.Tile, bool, error) {
	zoom := deref(sel.Zoom)

	switch len(sel.Locations) {
	case 0:
		return maptile.New(deref(sel.X), deref(sel.Y), maptile.Zoom(zoom)), false, nil
	case 1:
	default:
		return maptile.Tile{}, false, fmt.Errorf("%w: %v", ErrManyLocations, sel.Locations)
	}

	name := sel.Locations[0]
	if sel.Zoom == nil {
		return maptile.Tile{}, false, fmt.Errorf("%w (%s)", ErrZoomRequired, name)
	}
	if sel.X != nil || sel.Y != nil {
		return maptile.Tile{}, false, ErrMixedSelection
	}
	p, err := l.Lookup(name)
	if err != nil {
		return maptile.Tile{}, false, err
	}
	return p.TileCoord(zoom), true, nil
}

func deref(v *uint32) uint32 {
	if v == nil {
		return 0
	}
	return *v
}
