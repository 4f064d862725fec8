package ingest

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const collection = `{
  "type": "FeatureCollection",
  "features": [
    {"type": "Feature", "properties": {"weight": 2},
     "geometry": {"type": "Polygon", "coordinates": [
       [[0,0],[10,0],[10,10],[0,10],[0,0]],
       [[2,2],[3,2],[3,3],[2,2]]
     ]}},
    {"type": "Feature", "properties": {"weight": 5, "name": "b"},
     "geometry": {"type": "MultiPolygon", "coordinates": [
       [[[5,5],[15,5],[15,15],[5,15],[5,5]]],
       [[[20,20,100],[30,20,100],[30,30,100]]]
     ]}},
    {"type": "Feature", "properties": {"weight": 9},
     "geometry": {"type": "Point", "coordinates": [1,1]}}
  ]
}`

func TestDecode(t *testing.T) {
	src, err := Decode(strings.NewReader(collection), DefaultWeightProperty)
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}

	if len(src.Positions) != 3 || len(src.Weights) != 3 {
		t.Fatalf("got %d polygons, %d weights, want 3, 3", len(src.Positions), len(src.Weights))
	}
	wantWeights := []uint64{2, 5, 5}
	for i, w := range wantWeights {
		if src.Weights[i] != w {
			t.Errorf("Weights[%d] = %d, want %d", i, src.Weights[i], w)
		}
	}
	if got := len(src.Positions[0]); got != 5 {
		t.Errorf("len(Positions[0]) = %d, want 5 (holes dropped)", got)
	}

	// The unclosed triangle is closed and loses its altitude.
	tri := src.Positions[2]
	if len(tri) != 4 || tri[0] != tri[3] || tri[1] != [2]float64{30, 20} {
		t.Errorf("Positions[2] = %v", tri)
	}
}

func TestDecodeOutlineIgnoresWeights(t *testing.T) {
	in := `{"type":"FeatureCollection","features":[
	  {"type":"Feature","properties":null,
	   "geometry":{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}}]}`
	src, err := Decode(strings.NewReader(in), "")
	if err != nil {
		t.Fatalf("Decode() error = %v", err)
	}
	if len(src.Positions) != 1 || len(src.Weights) != 1 || src.Weights[0] != 0 {
		t.Errorf("Decode() = %+v", src)
	}
}

func TestDecodeErrors(t *testing.T) {
	feature := func(props, coords string) string {
		return `{"type":"FeatureCollection","features":[{"type":"Feature","properties":` +
			props + `,"geometry":{"type":"Polygon","coordinates":` + coords + `}}]}`
	}
	square := `[[[0,0],[1,0],[1,1],[0,1],[0,0]]]`

	tests := []struct {
		name string
		in   string
		want error
	}{
		{"missing weight", feature(`{}`, square), ErrWeight},
		{"negative weight", feature(`{"weight":-1}`, square), ErrWeight},
		{"fractional weight", feature(`{"weight":1.5}`, square), ErrWeight},
		{"string weight", feature(`{"weight":"3"}`, square), ErrWeight},
		{"short ring", feature(`{"weight":1}`, `[[[0,0],[1,0]]]`), ErrRing},
		{"degenerate closed ring", feature(`{"weight":1}`, `[[[0,0],[1,0],[0,0]]]`), ErrRing},
		{"one coordinate", feature(`{"weight":1}`, `[[[0],[1,0],[1,1],[0]]]`), ErrRing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(tt.in), DefaultWeightProperty)
			if !errors.Is(err, tt.want) {
				t.Errorf("Decode() error = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := Decode(strings.NewReader("{"), ""); err == nil {
		t.Error("Decode(malformed) error = nil")
	}
}

func TestReadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heat.geojson")
	if err := os.WriteFile(path, []byte(collection), 0o600); err != nil {
		t.Fatal(err)
	}
	src, err := ReadFile(path, DefaultWeightProperty)
	if err != nil {
		t.Fatalf("ReadFile() error = %v", err)
	}
	if len(src.Positions) != 3 {
		t.Errorf("len(Positions) = %d, want 3", len(src.Positions))
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing"), ""); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("ReadFile(missing) error = %v, want os.ErrNotExist", err)
	}
}
