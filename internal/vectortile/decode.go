package vectortile

import (
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"math"

	"google.golang.org/protobuf/encoding/protowire"
)

// ErrMalformed wraps every failure to read the protobuf wire format.
var ErrMalformed = errors.New("malformed vector tile")

// Field numbers of the vector_tile.proto schema.
const (
	tileLayers protowire.Number = 3

	layerName     protowire.Number = 1
	layerFeatures protowire.Number = 2
	layerKeys     protowire.Number = 3
	layerValues   protowire.Number = 4
	layerExtent   protowire.Number = 5
	layerVersion  protowire.Number = 15

	featureID       protowire.Number = 1
	featureTags     protowire.Number = 2
	featureType     protowire.Number = 3
	featureGeometry protowire.Number = 4

	valueString protowire.Number = 1
	valueFloat  protowire.Number = 2
	valueDouble protowire.Number = 3
	valueInt    protowire.Number = 4
	valueUint   protowire.Number = 5
	valueSint   protowire.Number = 6
	valueBool   protowire.Number = 7
)

// defaultVersion is the proto2 default of Layer.version.
const defaultVersion = 1

var gzipMagic = []byte{0x1f, 0x8b}

// fieldFunc handles one field whose tag has already been consumed. It returns
// the number of bytes used, or -1 to have the field skipped as unknown.
type fieldFunc func(num protowire.Number, typ protowire.Type, b []byte) (int, error)

// Unmarshal decodes a vector tile. Unknown fields, and known fields carrying an
// unexpected wire type, are skipped.
func Unmarshal(data []byte) (*Tile, error) {
	tile := &Tile{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		if num != tileLayers || typ != protowire.BytesType {
			return -1, nil
		}
		msg, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		layer, err := unmarshalLayer(msg)
		if err != nil {
			return 0, fmt.Errorf("layer %d: %w", len(tile.Layers), err)
		}
		tile.Layers = append(tile.Layers, layer)
		return n, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformed, err)
	}
	return tile, nil
}

// Decompress inflates gzip-wrapped tile payloads and returns any other payload
// unchanged.
func Decompress(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, gzipMagic) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("gzip header: %w", err)
	}
	defer func() { _ = zr.Close() }()

	out, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("gzip body: %w", err)
	}
	return out, nil
}

func walk(b []byte, fn fieldFunc) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return protowire.ParseError(n)
		}
		b = b[n:]

		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			m = protowire.ConsumeFieldValue(num, typ, b)
			if m < 0 {
				return protowire.ParseError(m)
			}
		}
		b = b[m:]
	}
	return nil
}

func unmarshalLayer(data []byte) (*Layer, error) {
	layer := &Layer{Version: defaultVersion}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == layerName && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			layer.Name = string(v)
			return n, nil

		case num == layerKeys && typ == protowire.BytesType:
			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			layer.Keys = append(layer.Keys, string(v))
			return n, nil

		case num == layerFeatures && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			f, err := unmarshalFeature(msg)
			if err != nil {
				return 0, fmt.Errorf("feature %d: %w", len(layer.Features), err)
			}
			layer.Features = append(layer.Features, f)
			return n, nil

		case num == layerValues && typ == protowire.BytesType:
			msg, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			v, err := unmarshalValue(msg)
			if err != nil {
				return 0, fmt.Errorf("value %d: %w", len(layer.Values), err)
			}
			layer.Values = append(layer.Values, v)
			return n, nil

		case num == layerExtent && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			extent := uint32(v)
			layer.Extent = &extent
			return n, nil

		case num == layerVersion && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			layer.Version = uint32(v)
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return layer, nil
}

func unmarshalFeature(data []byte) (*Feature, error) {
	f := &Feature{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case featureID:
			if typ != protowire.VarintType {
				return -1, nil
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			f.ID = &v
			return n, nil

		case featureType:
			if typ != protowire.VarintType {
				return -1, nil
			}
			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			t := GeomType(int32(v))
			f.Type = &t
			return n, nil

		case featureTags:
			return appendUint32s(&f.Tags, typ, b)

		case featureGeometry:
			return appendUint32s(&f.Geometry, typ, b)
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// appendUint32s reads a repeated uint32 field in either packed or unpacked form.
func appendUint32s(dst *[]uint32, typ protowire.Type, b []byte) (int, error) {
	switch typ {
	case protowire.VarintType:
		v, n := protowire.ConsumeVarint(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		*dst = append(*dst, uint32(v))
		return n, nil

	case protowire.BytesType:
		packed, n := protowire.ConsumeBytes(b)
		if n < 0 {
			return 0, protowire.ParseError(n)
		}
		for len(packed) > 0 {
			v, m := protowire.ConsumeVarint(packed)
			if m < 0 {
				return 0, protowire.ParseError(m)
			}
			*dst = append(*dst, uint32(v))
			packed = packed[m:]
		}
		return n, nil
	}
	return -1, nil
}

func unmarshalValue(data []byte) (*Value, error) {
	v := &Value{}
	err := walk(data, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch {
		case num == valueString && typ == protowire.BytesType:
			s, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			str := string(s)
			v.StringValue = &str
			return n, nil

		case num == valueFloat && typ == protowire.Fixed32Type:
			bits, n := protowire.ConsumeFixed32(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			f := math.Float32frombits(bits)
			v.FloatValue = &f
			return n, nil

		case num == valueDouble && typ == protowire.Fixed64Type:
			bits, n := protowire.ConsumeFixed64(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			d := math.Float64frombits(bits)
			v.DoubleValue = &d
			return n, nil

		case typ == protowire.VarintType && num >= valueInt && num <= valueBool:
			raw, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return 0, protowire.ParseError(n)
			}
			switch num {
			case valueInt:
				i := int64(raw)
				v.IntValue = &i
			case valueUint:
				v.UintValue = &raw
			case valueSint:
				i := protowire.DecodeZigZag(raw)
				v.SintValue = &i
			case valueBool:
				t := raw != 0
				v.BoolValue = &t
			}
			return n, nil
		}
		return -1, nil
	})
	if err != nil {
		return nil, err
	}
	return v, nil
}
