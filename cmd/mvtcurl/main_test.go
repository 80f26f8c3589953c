package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/NotFounds/mvtcurl/internal/geo"
	"github.com/NotFounds/mvtcurl/internal/vectortile"

	"github.com/paulmach/orb/maptile"
)

func ptr[T any](v T) *T { return &v }

func testTile() []byte {
	return vectortile.Marshal(&vectortile.Tile{Layers: []*vectortile.Layer{
		{
			Version: 2,
			Name:    "poi",
			Keys:    []string{"name"},
			Values:  []*vectortile.Value{{StringValue: ptr("Tokyo Station")}},
			Features: []*vectortile.Feature{{
				Type:     ptr(vectortile.Point),
				Tags:     []uint32{0, 0},
				Geometry: []uint32{9, 4096, 4096},
			}},
		},
		{Version: 2, Name: "roads"},
	}})
}

// emptyConfig writes a config file so tests never pick up ./mvtcurl.yaml.
func emptyConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mvtcurl.yaml")
	if err := os.WriteFile(path, []byte(body), 0644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestResolveTile(t *testing.T) {
	locs := geo.DefaultLocations()
	locs.Add("Sydney", geo.LatLon{Lat: -33.8688, Lon: 151.2093})

	tests := []struct {
		name    string
		opts    Options
		want    maptile.Tile
		located bool
		wantErr bool
	}{
		{
			name:    "tokyo",
			opts:    Options{Tokyo: true, Zoom: ptr(uint32(14))},
			want:    maptile.New(14552, 6451, 14),
			located: true,
		},
		{
			name:    "fuji",
			opts:    Options{Fuji: true, Zoom: ptr(uint32(10))},
			want:    maptile.New(906, 404, 10),
			located: true,
		},
		{
			name:    "configured location",
			opts:    Options{Location: "sydney", Zoom: ptr(uint32(12))},
			want:    maptile.New(3768, 2457, 12),
			located: true,
		},
		{
			name: "explicit coordinates",
			opts: Options{Zoom: ptr(uint32(3)), X: ptr(uint32(5)), Y: ptr(uint32(2))},
			want: maptile.New(5, 2, 3),
		},
		{
			name: "defaults",
			opts: Options{},
			want: maptile.New(0, 0, 0),
		},
		{name: "location without zoom", opts: Options{Tokyo: true}, wantErr: true},
		{name: "two locations", opts: Options{Tokyo: true, Fuji: true, Zoom: ptr(uint32(1))}, wantErr: true},
		{name: "location and x", opts: Options{Fuji: true, Zoom: ptr(uint32(1)), X: ptr(uint32(0))}, wantErr: true},
		{name: "unknown location", opts: Options{Location: "atlantis", Zoom: ptr(uint32(1))}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, located, err := resolveTile(tt.opts, locs)
			if tt.wantErr {
				if err == nil {
					t.Fatalf("expected an error, got %v", got)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want || located != tt.located {
				t.Errorf("got %v (located %v), want %v (located %v)", got, located, tt.want, tt.located)
			}
		})
	}

	_, _, err := resolveTile(Options{Location: "atlantis", Zoom: ptr(uint32(1))}, locs)
	if !errors.Is(err, geo.ErrUnknownLocation) {
		t.Errorf("unknown location: got %v", err)
	}
}

func TestRunFetchTemplate(t *testing.T) {
	var gotPath, gotKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Key")
		_, _ = w.Write(testTile())
	}))
	defer srv.Close()

	opts := Options{
		ConfigFile: emptyConfig(t, ""),
		Format:     "json",
		Compact:    true,
		Tokyo:      true,
		Zoom:       ptr(uint32(14)),
		Headers:    []string{"X-Key: secret"},
		Layers:     []string{"poi"},
	}
	opts.Args.URL = srv.URL + "/{z}/{x}/{y}.pbf"

	var out bytes.Buffer
	if err := run(context.Background(), opts, nil, &out); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/14/14552/6451.pbf" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotKey != "secret" {
		t.Errorf("X-Key: got %q", gotKey)
	}
	want := `{"layers":[{"name":"poi","extent":4096,"version":2,"features":[` +
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[0.5,0.5]},"properties":{"name":"Tokyo Station"}}` +
		`]}]}` + "\n"
	if out.String() != want {
		t.Errorf("output:\ngot  %s\nwant %s", out.String(), want)
	}
}

func TestRunConfiguredSource(t *testing.T) {
	var gotPath, gotReferer string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotReferer = r.Header.Get("Referer")
		_, _ = w.Write(testTile())
	}))
	defer srv.Close()

	cfg := "sources:\n" +
		"  - name: local\n" +
		"    url: " + srv.URL + "/{z}/{x}/{tms_y}.mvt\n" +
		"    headers:\n" +
		"      - \"Referer: https://example.com/\"\n"

	outFile := filepath.Join(t.TempDir(), "tile.yaml")
	opts := Options{
		ConfigFile: emptyConfig(t, cfg),
		Format:     "yaml",
		Output:     outFile,
		Zoom:       ptr(uint32(2)),
		X:          ptr(uint32(1)),
		Y:          ptr(uint32(0)),
	}
	opts.Args.URL = "local"

	var stdout bytes.Buffer
	if err := run(context.Background(), opts, nil, &stdout); err != nil {
		t.Fatal(err)
	}
	if gotPath != "/2/1/3.mvt" {
		t.Errorf("path: got %q", gotPath)
	}
	if gotReferer != "https://example.com/" {
		t.Errorf("Referer: got %q", gotReferer)
	}
	if stdout.Len() != 0 {
		t.Errorf("stdout should stay empty when --out is set, got %q", stdout.String())
	}
	data, err := os.ReadFile(outFile)
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"name: poi\n", "name: roads\n", "type: Point\n"} {
		if !strings.Contains(string(data), want) {
			t.Errorf("output file is missing %q:\n%s", want, data)
		}
	}
}

func TestRunStdinGeoJSON(t *testing.T) {
	opts := Options{
		ConfigFile: emptyConfig(t, ""),
		Input:      "-",
		Format:     "geojson",
		Compact:    true,
		WGS84:      true,
		Zoom:       ptr(uint32(0)),
	}

	var out bytes.Buffer
	if err := run(context.Background(), opts, bytes.NewReader(testTile()), &out); err != nil {
		t.Fatal(err)
	}
	// the centre of the world tile is at 0,0
	if !strings.Contains(out.String(), `"coordinates":[0,0]`) {
		t.Errorf("projected output: %s", out.String())
	}
	if !strings.Contains(out.String(), `"layer":"poi"`) {
		t.Errorf("layer property missing: %s", out.String())
	}
}

func TestRunErrors(t *testing.T) {
	cfgPath := emptyConfig(t, "")

	tests := []struct {
		name string
		opts Options
		url  string
	}{
		{name: "no url", opts: Options{ConfigFile: cfgPath, Format: "json"}},
		{name: "missing config", opts: Options{ConfigFile: filepath.Join(t.TempDir(), "nope.yaml"), Format: "json"}, url: "x"},
		{name: "wgs84 without tile", opts: Options{ConfigFile: cfgPath, Format: "geojson", WGS84: true, Input: "-"}},
		{name: "bad header", opts: Options{ConfigFile: cfgPath, Format: "json", Headers: []string{"nocolon"}}, url: "http://127.0.0.1:1/t.pbf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.opts.Args.URL = tt.url
			err := run(context.Background(), tt.opts, bytes.NewReader(testTile()), &bytes.Buffer{})
			if err == nil {
				t.Fatal("expected an error, got nil")
			}
		})
	}
}
