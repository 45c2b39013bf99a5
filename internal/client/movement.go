package client

import (
	"math"

	"github.com/nrelay-go/nrelay/internal/protocol"
)

const (
	MinMoveSpeed = 0.004
	MaxMoveSpeed = 0.0096

	// Tick intervals outside [minTickDelta, maxTickDelta] ms get a step of
	// zero: reporting movement during irregular ticks gets the client
	// disconnected by the server.
	minTickDelta = 180
	maxTickDelta = 220
	tickDeltaCap = 200

	// Only half of the theoretical speed is used. Moving faster makes the
	// server drop the connection.
	speedFactor = 0.5
)

// TileSpeeds resolves the movement multiplier of a ground tile type.
type TileSpeeds interface {
	SpeedMultiplier(tileType uint16) (float64, bool)
}

// EffectiveTickDelta clamps a raw tick interval for the speed formula.
func EffectiveTickDelta(delta int64) float64 {
	if delta > maxTickDelta || delta < minTickDelta {
		return 0
	}
	if delta > tickDeltaCap {
		delta = tickDeltaCap
	}
	return float64(delta)
}

// BaseSpeed converts the speed stat to tiles per millisecond.
func BaseSpeed(spd int32) float64 {
	return MinMoveSpeed + float64(spd)/75*(MaxMoveSpeed-MinMoveSpeed)
}

// StepDistance returns how far the player may move in one tick.
func StepDistance(spd int32, tileMultiplier float64, tickDelta int64) float64 {
	return BaseSpeed(spd) * tileMultiplier * EffectiveTickDelta(tickDelta) * speedFactor
}

// Step moves from towards to by at most step tiles. It reports true, and
// returns to exactly, when the target is within reach.
func Step(from, to protocol.WorldPosData, step float64) (protocol.WorldPosData, bool) {
	if from.SquareDistanceTo(to) > step*step {
		angle := math.Atan2(float64(to.Y)-float64(from.Y), float64(to.X)-float64(from.X))
		return protocol.WorldPosData{
			X: float32(float64(from.X) + math.Cos(angle)*step),
			Y: float32(float64(from.Y) + math.Sin(angle)*step),
		}, false
	}
	return to, true
}

// moveTo computes this tick's position on the way to target and clears
// NextPos on arrival.
func (c *Client) moveTo(target protocol.WorldPosData) protocol.WorldPosData {
	step := StepDistance(c.PlayerData.Spd, c.tileMultiplier(), c.currentTickTime-c.lastTickTime)
	pos, arrived := Step(c.PlayerData.WorldPos, target, step)
	if arrived {
		c.NextPos = nil
	}
	return pos
}

// tileMultiplier looks up the speed multiplier of the tile under the
// player, defaulting to 1.
func (c *Client) tileMultiplier() float64 {
	tile := c.TileAt(int(math.Floor(float64(c.PlayerData.WorldPos.X))), int(math.Floor(float64(c.PlayerData.WorldPos.Y))))
	if tile == nil || c.opts.Tiles == nil {
		return 1
	}
	if m, ok := c.opts.Tiles.SpeedMultiplier(tile.Type); ok && m != 0 {
		return m
	}
	return 1
}

// TileAt returns the known tile at x, y or nil.
func (c *Client) TileAt(x, y int) *protocol.GroundTileData {
	if x < 0 || y < 0 || x >= int(c.MapInfo.Width) || y >= int(c.MapInfo.Height) {
		return nil
	}
	idx := y*int(c.MapInfo.Width) + x
	if idx >= len(c.MapTiles) {
		return nil
	}
	return c.MapTiles[idx]
}
