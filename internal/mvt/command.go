// Package mvt turns decoded vector tile messages into GeoJSON-like documents.
//
// Geometry command streams are replayed against a per-feature cursor and the
// resulting tile-local positions are normalised by the layer extent, so every
// coordinate falls in the unit square for well formed tiles. Attribute tags
// are resolved against the layer dictionaries.
//
// Anomalies inside a tile (unknown command ids, truncated parameters, out of
// range tags, unknown geometry types) never fail a decode. They are absorbed
// and reported at trace level.
package mvt

import "strconv"

// Command is a geometry command id.
type Command uint32

// Commands defined by the Vector Tile specification.
const (
	MoveTo    Command = 1
	LineTo    Command = 2
	ClosePath Command = 7
)

func (c Command) String() string {
	switch c {
	case MoveTo:
		return "MoveTo"
	case LineTo:
		return "LineTo"
	case ClosePath:
		return "ClosePath"
	default:
		return "Command(" + strconv.FormatUint(uint64(c), 10) + ")"
	}
}

// ParseCommand splits a command integer into its id and repeat count.
// Ids outside MoveTo, LineTo and ClosePath are returned as is.
func ParseCommand(c uint32) (Command, int) {
	return Command(c & 0x7), int(c >> 3)
}

// DecodeZigzag maps a zigzag encoded parameter back to its signed delta:
// 0, 1, 2, 3, 4 decode to 0, -1, 1, -2, 2.
func DecodeZigzag(v uint32) int32 {
	return int32(v>>1) ^ -int32(v&1)
}
