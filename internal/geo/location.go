package geo

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrUnknownLocation is returned for a location name that is not registered.
var ErrUnknownLocation = errors.New("unknown location")

// Built-in locations.
var (
	TokyoStation = LatLon{Lat: 35.681236, Lon: 139.767125}
	MtFuji       = LatLon{Lat: 35.360556, Lon: 138.727778}
)

// Locations maps lower case names to positions.
type Locations map[string]LatLon

// DefaultLocations returns a fresh set holding the built-in locations.
func DefaultLocations() Locations {
	return Locations{
		"tokyo": TokyoStation,
		"fuji":  MtFuji,
	}
}

// Add registers a location, replacing any previous one with the same name.
func (l Locations) Add(name string, p LatLon) {
	l[strings.ToLower(name)] = p
}

// Lookup finds a location by name, ignoring case.
func (l Locations) Lookup(name string) (LatLon, error) {
	p, ok := l[strings.ToLower(name)]
	if !ok {
		return LatLon{}, fmt.Errorf("%w %q (known: %s)", ErrUnknownLocation, name, strings.Join(l.Names(), ", "))
	}
	return p, nil
}

// Names returns the registered names in sorted order.
func (l Locations) Names() []string {
	names := make([]string, 0, len(l))
	for n := range l {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
