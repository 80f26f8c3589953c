package mvt

import (
	"math"

	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/rs/zerolog/log"
)

// Properties maps attribute keys to string, float32, float64, int64, uint64,
// bool or nil values.
type Properties map[string]interface{}

// ResolveProperties resolves a feature's (key index, value index) tag pairs
// against the layer dictionaries. Pairs with an index out of range are
// skipped, a trailing unpaired index is ignored, and a later duplicate key
// overwrites an earlier one.
func ResolveProperties(tags []uint32, keys []string, values []*vectortile.Value) Properties {
	props := make(Properties, len(tags)/2)
	for i := 0; i+1 < len(tags); i += 2 {
		k, v := tags[i], tags[i+1]
		if int64(k) >= int64(len(keys)) || int64(v) >= int64(len(values)) {
			log.Trace().
				Uint32("key_index", k).
				Uint32("value_index", v).
				Int("keys", len(keys)).
				Int("values", len(values)).
				Msg("Skipping out of range tag pair")
			continue
		}
		props[keys[k]] = Value(values[v])
	}
	return props
}

// Value returns the populated field of a dictionary value. When several fields
// are populated the first in the order string, float, double, int, uint, sint,
// bool wins. An empty value, and a NaN or infinite float, is nil since JSON
// cannot carry it.
func Value(v *vectortile.Value) interface{} {
	switch {
	case v == nil:
		return nil
	case v.StringValue != nil:
		return *v.StringValue
	case v.FloatValue != nil:
		if !finite(float64(*v.FloatValue)) {
			return nil
		}
		return *v.FloatValue
	case v.DoubleValue != nil:
		if !finite(*v.DoubleValue) {
			return nil
		}
		return *v.DoubleValue
	case v.IntValue != nil:
		return *v.IntValue
	case v.UintValue != nil:
		return *v.UintValue
	case v.SintValue != nil:
		return *v.SintValue
	case v.BoolValue != nil:
		return *v.BoolValue
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}
