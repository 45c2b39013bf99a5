// Package resources loads static game data used by the client.
package resources

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/rs/zerolog/log"
)

// TileSpeed is one entry of the tile speed file.
type TileSpeed struct {
	Type  uint16  `json:"type"`
	Speed float64 `json:"speed"`
}

// TileTable maps ground tile types to movement speed multipliers. It is
// safe for concurrent use.
type TileTable struct {
	mu     sync.RWMutex
	speeds map[uint16]float64
}

// NewTileTable creates an empty table. Every lookup misses until entries
// are added.
func NewTileTable() *TileTable {
	return &TileTable{speeds: make(map[uint16]float64)}
}

// LoadTileTable reads a JSON array of TileSpeed from path. A missing file
// yields an empty table.
func LoadTileTable(path string) (*TileTable, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warn().Str("path", path).Msg("tile speed file not found, using speed 1 for all tiles")
			return NewTileTable(), nil
		}
		return nil, fmt.Errorf("failed to open tile speed file %s: %w", path, err)
	}
	defer f.Close()

	t, err := ReadTileTable(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read tile speed file %s: %w", path, err)
	}
	log.Info().Str("path", path).Int("tiles", t.Len()).Msg("tile speeds loaded")
	return t, nil
}

// ReadTileTable decodes a JSON array of TileSpeed.
func ReadTileTable(r io.Reader) (*TileTable, error) {
	var entries []TileSpeed
	if err := json.NewDecoder(r).Decode(&entries); err != nil {
		return nil, err
	}

	t := NewTileTable()
	for _, e := range entries {
		if e.Speed < 0 {
			return nil, fmt.Errorf("tile 0x%04x: negative speed %v", e.Type, e.Speed)
		}
		t.speeds[e.Type] = e.Speed
	}
	return t, nil
}

// Set adds or replaces one entry.
func (t *TileTable) Set(tileType uint16, speed float64) {
	t.mu.Lock()
	t.speeds[tileType] = speed
	t.mu.Unlock()
}

// SpeedMultiplier returns the multiplier for a tile type. A nil table
// knows no tiles.
func (t *TileTable) SpeedMultiplier(tileType uint16) (float64, bool) {
	if t == nil {
		return 0, false
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	s, ok := t.speeds[tileType]
	return s, ok
}

// Len returns the number of known tile types.
func (t *TileTable) Len() int {
	if t == nil {
		return 0
	}
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.speeds)
}
