package resources

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestReadTileTable(t *testing.T) {
	table, err := ReadTileTable(strings.NewReader(`[
		{"type": 28, "speed": 0.5},
		{"type": 72, "speed": 1.2},
		{"type": 65535, "speed": 0}
	]`))
	if err != nil {
		t.Fatalf("ReadTileTable: %v", err)
	}

	tests := []struct {
		tile   uint16
		want   float64
		wantOK bool
	}{
		{28, 0.5, true},
		{72, 1.2, true},
		{65535, 0, true},
		{1, 0, false},
	}
	for _, tt := range tests {
		got, ok := table.SpeedMultiplier(tt.tile)
		if got != tt.want || ok != tt.wantOK {
			t.Errorf("SpeedMultiplier(%d) = %v, %v, want %v, %v", tt.tile, got, ok, tt.want, tt.wantOK)
		}
	}
	if table.Len() != 3 {
		t.Errorf("Len = %d, want 3", table.Len())
	}
}

func TestReadTileTableErrors(t *testing.T) {
	for _, input := range []string{
		`{"type": 1}`,
		`[{"type": 1, "speed": -1}]`,
		`not json`,
	} {
		if _, err := ReadTileTable(strings.NewReader(input)); err == nil {
			t.Errorf("ReadTileTable(%q) should fail", input)
		}
	}
}

func TestLoadTileTable(t *testing.T) {
	missing, err := LoadTileTable(filepath.Join(t.TempDir(), "none.json"))
	if err != nil {
		t.Fatalf("missing file: %v", err)
	}
	if missing.Len() != 0 {
		t.Errorf("missing file Len = %d, want 0", missing.Len())
	}

	path := filepath.Join(t.TempDir(), "tiles.json")
	if err := os.WriteFile(path, []byte(`[{"type": 5, "speed": 2}]`), 0644); err != nil {
		t.Fatal(err)
	}
	table, err := LoadTileTable(path)
	if err != nil {
		t.Fatalf("LoadTileTable: %v", err)
	}
	if s, ok := table.SpeedMultiplier(5); !ok || s != 2 {
		t.Errorf("SpeedMultiplier(5) = %v, %v, want 2, true", s, ok)
	}

	table.Set(5, 3)
	if s, _ := table.SpeedMultiplier(5); s != 3 {
		t.Errorf("after Set, SpeedMultiplier(5) = %v, want 3", s)
	}
}

func TestNilTileTable(t *testing.T) {
	var table *TileTable
	if s, ok := table.SpeedMultiplier(5); ok || s != 0 {
		t.Errorf("nil SpeedMultiplier(5) = %v, %v, want 0, false", s, ok)
	}
	if n := table.Len(); n != 0 {
		t.Errorf("nil Len = %d, want 0", n)
	}
}
