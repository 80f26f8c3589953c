package vectortile

import (
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// Marshal encodes the tile in the wire format read by Unmarshal. Repeated
// integer fields are written packed and nil optional fields are omitted.
func Marshal(t *Tile) []byte {
	var b []byte
	for _, l := range t.Layers {
		b = protowire.AppendTag(b, tileLayers, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalLayer(l))
	}
	return b
}

func marshalLayer(l *Layer) []byte {
	var b []byte
	b = protowire.AppendTag(b, layerVersion, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(l.Version))
	b = protowire.AppendTag(b, layerName, protowire.BytesType)
	b = protowire.AppendString(b, l.Name)
	for _, f := range l.Features {
		b = protowire.AppendTag(b, layerFeatures, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalFeature(f))
	}
	for _, k := range l.Keys {
		b = protowire.AppendTag(b, layerKeys, protowire.BytesType)
		b = protowire.AppendString(b, k)
	}
	for _, v := range l.Values {
		b = protowire.AppendTag(b, layerValues, protowire.BytesType)
		b = protowire.AppendBytes(b, marshalValue(v))
	}
	if l.Extent != nil {
		b = protowire.AppendTag(b, layerExtent, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*l.Extent))
	}
	return b
}

func marshalFeature(f *Feature) []byte {
	var b []byte
	if f.ID != nil {
		b = protowire.AppendTag(b, featureID, protowire.VarintType)
		b = protowire.AppendVarint(b, *f.ID)
	}
	if len(f.Tags) > 0 {
		b = appendPacked(b, featureTags, f.Tags)
	}
	if f.Type != nil {
		b = protowire.AppendTag(b, featureType, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*f.Type))
	}
	if len(f.Geometry) > 0 {
		b = appendPacked(b, featureGeometry, f.Geometry)
	}
	return b
}

func appendPacked(b []byte, num protowire.Number, vs []uint32) []byte {
	var packed []byte
	for _, v := range vs {
		packed = protowire.AppendVarint(packed, uint64(v))
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, packed)
}

func marshalValue(v *Value) []byte {
	var b []byte
	if v == nil {
		return b
	}
	if v.StringValue != nil {
		b = protowire.AppendTag(b, valueString, protowire.BytesType)
		b = protowire.AppendString(b, *v.StringValue)
	}
	if v.FloatValue != nil {
		b = protowire.AppendTag(b, valueFloat, protowire.Fixed32Type)
		b = protowire.AppendFixed32(b, math.Float32bits(*v.FloatValue))
	}
	if v.DoubleValue != nil {
		b = protowire.AppendTag(b, valueDouble, protowire.Fixed64Type)
		b = protowire.AppendFixed64(b, math.Float64bits(*v.DoubleValue))
	}
	if v.IntValue != nil {
		b = protowire.AppendTag(b, valueInt, protowire.VarintType)
		b = protowire.AppendVarint(b, uint64(*v.IntValue))
	}
	if v.UintValue != nil {
		b = protowire.AppendTag(b, valueUint, protowire.VarintType)
		b = protowire.AppendVarint(b, *v.UintValue)
	}
	if v.SintValue != nil {
		b = protowire.AppendTag(b, valueSint, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeZigZag(*v.SintValue))
	}
	if v.BoolValue != nil {
		b = protowire.AppendTag(b, valueBool, protowire.VarintType)
		b = protowire.AppendVarint(b, protowire.EncodeBool(*v.BoolValue))
	}
	return b
}
