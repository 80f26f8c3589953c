package mvt

import (
	"reflect"
	"testing"

	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/paulmach/orb"
)

func encodeZigzag(d int32) uint32 {
	return uint32((d << 1) ^ (d >> 31))
}

func TestDecodeZigzag(t *testing.T) {
	for v, want := range []int32{0, -1, 1, -2, 2} {
		if got := DecodeZigzag(uint32(v)); got != want {
			t.Errorf("DecodeZigzag(%d): got %d, want %d", v, got, want)
		}
	}
	if got := DecodeZigzag(0xffffffff); got != -2147483648 {
		t.Errorf("DecodeZigzag(max uint32): got %d", got)
	}
	for _, d := range []int32{0, 1, -1, 63, -64, 4096, -4096, 1<<30 - 1, -(1 << 30)} {
		if got := DecodeZigzag(encodeZigzag(d)); got != d {
			t.Errorf("round trip %d: got %d", d, got)
		}
	}
}

func TestParseCommand(t *testing.T) {
	tests := []struct {
		in    uint32
		cmd   Command
		count int
	}{
		{9, MoveTo, 1},
		{18, LineTo, 2},
		{15, ClosePath, 1},
		{(120 << 3) | 1, MoveTo, 120},
		{4, Command(4), 0},
		{0, Command(0), 0},
	}
	for _, tt := range tests {
		cmd, count := ParseCommand(tt.in)
		if cmd != tt.cmd || count != tt.count {
			t.Errorf("ParseCommand(%d): got (%v, %d), want (%v, %d)", tt.in, cmd, count, tt.cmd, tt.count)
		}
		if uint32(cmd) != tt.in&7 || uint32(count) != tt.in>>3 {
			t.Errorf("ParseCommand(%d) does not split as (c&7, c>>3)", tt.in)
		}
	}
	if got := Command(5).String(); got != "Command(5)" {
		t.Errorf("Command(5).String(): got %q", got)
	}
}

func TestExtentNormalize(t *testing.T) {
	e := Extent(4096)
	tests := []struct {
		in   int32
		want float64
	}{
		{0, 0},
		{4096, 1},
		{2048, 0.5},
		{-1024, -0.25},
		{8192, 2},
	}
	for _, tt := range tests {
		if got := e.Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%d): got %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestLayerExtent(t *testing.T) {
	v := func(e uint32) *uint32 { return &e }
	tests := []struct {
		in   *uint32
		want Extent
	}{
		{nil, DefaultExtent},
		{v(0), DefaultExtent},
		{v(512), 512},
		{v(8192), 8192},
	}
	for _, tt := range tests {
		if got := LayerExtent(&vectortile.Layer{Extent: tt.in}); got != tt.want {
			t.Errorf("LayerExtent: got %d, want %d", got, tt.want)
		}
	}
}

func TestBuildGeometry(t *testing.T) {
	tests := []struct {
		name   string
		typ    vectortile.GeomType
		geom   []uint32
		extent Extent
		want   Coordinates
	}{
		{
			name:   "single point is bare",
			typ:    vectortile.Point,
			geom:   []uint32{9, 4096, 2048},
			extent: 4096,
			want:   Point{0.5, 0.25},
		},
		{
			name:   "multi point",
			typ:    vectortile.Point,
			geom:   []uint32{17, 10, 14, 3, 9},
			extent: 10,
			want:   Points{{5.0 / 10, 7.0 / 10}, {3.0 / 10, 2.0 / 10}},
		},
		{
			name:   "point ignores LineTo but keeps the cursor moving",
			typ:    vectortile.Point,
			geom:   []uint32{9, 2, 2, 10, 2, 2, 9, 2, 2},
			extent: 16,
			want:   Points{{1.0 / 16, 1.0 / 16}, {3.0 / 16, 3.0 / 16}},
		},
		{
			name:   "single line is flat",
			typ:    vectortile.LineString,
			geom:   []uint32{9, 4, 4, 18, 0, 16, 16, 0},
			extent: 16,
			want:   Ring{{2.0 / 16, 2.0 / 16}, {2.0 / 16, 10.0 / 16}, {10.0 / 16, 10.0 / 16}},
		},
		{
			name:   "multi line",
			typ:    vectortile.LineString,
			geom:   []uint32{9, 4, 4, 18, 0, 16, 16, 0, 9, 17, 17, 10, 4, 8},
			extent: 16,
			want: Rings{
				{{2.0 / 16, 2.0 / 16}, {2.0 / 16, 10.0 / 16}, {10.0 / 16, 10.0 / 16}},
				{{1.0 / 16, 1.0 / 16}, {3.0 / 16, 5.0 / 16}},
			},
		},
		{
			name:   "polygon with one ring stays nested",
			typ:    vectortile.Polygon,
			geom:   []uint32{9, 6, 12, 18, 10, 12, 24, 44, 15},
			extent: 40,
			want:   Rings{{{3.0 / 40, 6.0 / 40}, {8.0 / 40, 12.0 / 40}, {20.0 / 40, 34.0 / 40}}},
		},
		{
			name:   "polygon with two rings",
			typ:    vectortile.Polygon,
			geom:   []uint32{9, 0, 0, 26, 20, 0, 0, 20, 19, 0, 15, 9, 22, 2, 26, 18, 0, 0, 18, 17, 0, 15},
			extent: 20,
			want: Rings{
				{{0, 0}, {10.0 / 20, 0}, {10.0 / 20, 10.0 / 20}, {0, 10.0 / 20}},
				{{11.0 / 20, 11.0 / 20}, {20.0 / 20, 11.0 / 20}, {20.0 / 20, 20.0 / 20}, {11.0 / 20, 20.0 / 20}},
			},
		},
		{
			name:   "negative positions",
			typ:    vectortile.Point,
			geom:   []uint32{9, 3, 1},
			extent: 4,
			want:   Point{-0.5, -0.25},
		},
		{
			name:   "unknown command consumes only itself",
			typ:    vectortile.LineString,
			geom:   []uint32{9, 4, 4, 3, 10, 4, 4},
			extent: 8,
			want:   Ring{{2.0 / 8, 2.0 / 8}, {4.0 / 8, 4.0 / 8}},
		},
		{
			name:   "close path takes no parameters",
			typ:    vectortile.LineString,
			geom:   []uint32{9, 4, 4, 15, 10, 4, 4},
			extent: 8,
			want:   Ring{{2.0 / 8, 2.0 / 8}, {4.0 / 8, 4.0 / 8}},
		},
		{
			name:   "LineTo before MoveTo is dropped",
			typ:    vectortile.LineString,
			geom:   []uint32{10, 2, 2, 9, 2, 2, 10, 2, 2},
			extent: 8,
			want:   Ring{{2.0 / 8, 2.0 / 8}, {3.0 / 8, 3.0 / 8}},
		},
		{
			name:   "truncated point",
			typ:    vectortile.Point,
			geom:   []uint32{9, 4},
			extent: 8,
			want:   Points{},
		},
		{
			name:   "truncated after first repetition",
			typ:    vectortile.Point,
			geom:   []uint32{17, 4, 4, 6},
			extent: 8,
			want:   Point{2.0 / 8, 2.0 / 8},
		},
		{
			name:   "truncation stops the whole walk",
			typ:    vectortile.LineString,
			geom:   []uint32{9, 4, 4, 26, 2, 2, 9},
			extent: 8,
			want:   Ring{{2.0 / 8, 2.0 / 8}, {3.0 / 8, 3.0 / 8}},
		},
		{
			name:   "empty polygon",
			typ:    vectortile.Polygon,
			geom:   nil,
			extent: 4096,
			want:   Rings{},
		},
		{
			name:   "unknown type",
			typ:    vectortile.Unknown,
			geom:   []uint32{9, 4, 4, 10, 2, 2},
			extent: 4096,
			want:   Points{},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := BuildGeometry(tt.typ, tt.geom, tt.extent)
			if g.Type != tt.typ {
				t.Errorf("type: got %v, want %v", g.Type, tt.typ)
			}
			if !reflect.DeepEqual(g.Coordinates, tt.want) {
				t.Errorf("coordinates:\ngot  %#v\nwant %#v", g.Coordinates, tt.want)
			}
		})
	}
}

func TestBuildGeometryUnrecognisedType(t *testing.T) {
	g := BuildGeometry(vectortile.GeomType(9), []uint32{9, 2, 2}, 4096)
	if g.Type != vectortile.Unknown {
		t.Errorf("type: got %v, want Unknown", g.Type)
	}
	if !reflect.DeepEqual(g.Coordinates, Points{}) {
		t.Errorf("coordinates: got %#v, want empty", g.Coordinates)
	}
}

func TestGeometryOrb(t *testing.T) {
	tests := []struct {
		name string
		geom Geometry
		want orb.Geometry
	}{
		{
			name: "point",
			geom: Geometry{Type: vectortile.Point, Coordinates: Point{0.5, 0.5}},
			want: orb.Point{0.5, 0.5},
		},
		{
			name: "multi point",
			geom: Geometry{Type: vectortile.Point, Coordinates: Points{{0, 0}, {1, 1}}},
			want: orb.MultiPoint{{0, 0}, {1, 1}},
		},
		{
			name: "line",
			geom: Geometry{Type: vectortile.LineString, Coordinates: Ring{{0, 0}, {1, 1}}},
			want: orb.LineString{{0, 0}, {1, 1}},
		},
		{
			name: "multi line",
			geom: Geometry{Type: vectortile.LineString, Coordinates: Rings{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}}},
			want: orb.MultiLineString{{{0, 0}, {1, 1}}, {{2, 2}, {3, 3}}},
		},
		{
			name: "polygon",
			geom: Geometry{Type: vectortile.Polygon, Coordinates: Rings{{{0, 0}, {1, 0}, {1, 1}}}},
			want: orb.Polygon{{{0, 0}, {1, 0}, {1, 1}}},
		},
		{
			name: "unknown",
			geom: Geometry{Type: vectortile.Unknown, Coordinates: Points{}},
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.geom.Orb(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("got %#v, want %#v", got, tt.want)
			}
		})
	}
}
