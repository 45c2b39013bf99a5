package client

import (
	"context"

	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/protocol"
	"github.com/nrelay-go/nrelay/internal/util"
)

// onConnect resets the per-connection clock and logs in.
func (c *Client) onConnect(ctx context.Context) {
	c.connectTime = c.opts.Now()
	c.lastTickTime = 0
	c.currentTickTime = 0
	c.lastTickID = 0

	c.logger.Info().Msg("connected to server")
	c.emit(ctx, events.EventConnected, c.sessionPayload(""))

	c.setState(StateAwaitingMapInfo)
	c.send(c.hello())
}

func (c *Client) hello() *protocol.HelloPacket {
	return &protocol.HelloPacket{
		BuildVersion:  c.opts.BuildVersion,
		GameID:        defaultGameID,
		GUID:          c.account.GUID,
		Random1:       randomSeed(),
		Password:      c.account.Password,
		Random2:       randomSeed(),
		Secret:        "",
		KeyTime:       defaultKeyTime,
		Key:           []byte{},
		MapJSON:       "",
		EntryTag:      "",
		GameNet:       defaultPlatform,
		GameNetUserID: "",
		PlayPlatform:  defaultPlatform,
		PlatformToken: "",
		UserToken:     "",
	}
}

// react runs the built-in reaction to a packet. Hooks run afterwards.
func (c *Client) react(ctx context.Context, pkt protocol.Packet) {
	switch p := pkt.(type) {
	case *protocol.MapInfoPacket:
		c.onMapInfo(ctx, p)
	case *protocol.UpdatePacket:
		c.onUpdate(p)
	case *protocol.GotoPacket:
		c.onGoto(p)
	case *protocol.FailurePacket:
		c.onFailure(ctx, p)
	case *protocol.NewTickPacket:
		c.onNewTick(p)
	case *protocol.PingPacket:
		c.onPing(p)
	case *protocol.CreateSuccessPacket:
		c.onCreateSuccess(ctx, p)
	}
}

func (c *Client) onMapInfo(ctx context.Context, p *protocol.MapInfoPacket) {
	if c.CharInfo.CharID > 0 {
		c.send(&protocol.LoadPacket{
			CharID:      c.CharInfo.CharID,
			IsFromArena: false,
		})
	} else {
		c.send(&protocol.CreatePacket{
			ClassType: protocol.ClassWizard,
			SkinType:  0,
		})
	}

	c.MapInfo = MapInfo{
		Width:  p.Width,
		Height: p.Height,
		Name:   p.Name,
	}

	size := int64(p.Width) * int64(p.Height)
	if p.Width <= 0 || p.Height <= 0 || size > maxMapTiles {
		c.logger.Warn().
			Int32("width", p.Width).
			Int32("height", p.Height).
			Msg("map dimensions out of range, tiles will not be tracked")
		c.MapTiles = nil
	} else {
		c.MapTiles = make([]*protocol.GroundTileData, size)
	}

	c.setState(StateInCharSelectOrCreate)
	c.logger.Info().Str("map", p.Name).Msg("received map info")
	c.emit(ctx, events.EventMapChanged, events.MapPayload{
		SessionPayload: c.sessionPayload(""),
		Name:           p.Name,
		Width:          p.Width,
		Height:         p.Height,
	})
}

func (c *Client) onUpdate(p *protocol.UpdatePacket) {
	// The ack goes out before anything else is done with the update.
	c.send(&protocol.UpdateAckPacket{})

	for _, obj := range p.NewObjects {
		if obj.Status.ObjectID != c.PlayerData.ObjectID {
			continue
		}
		pd := ProcessStatData(obj.Status)
		pd.Class = obj.ObjectType
		pd.Server = c.PlayerData.Server
		c.PlayerData = pd
	}

	for i := range p.Tiles {
		tile := p.Tiles[i]
		if tile.X < 0 || tile.Y < 0 || int32(tile.X) >= c.MapInfo.Width || int32(tile.Y) >= c.MapInfo.Height {
			continue
		}
		idx := int(tile.Y)*int(c.MapInfo.Width) + int(tile.X)
		if idx < len(c.MapTiles) {
			c.MapTiles[idx] = &tile
		}
	}
}

func (c *Client) onGoto(p *protocol.GotoPacket) {
	c.send(&protocol.GotoAckPacket{Time: c.GetTime()})
	c.PlayerData.WorldPos = p.Position
}

func (c *Client) onFailure(ctx context.Context, p *protocol.FailurePacket) {
	c.logger.Error().
		Int32("error_id", p.ErrorID).
		Str("description", p.ErrorDescription).
		Msgf("received failure: %s", p.ErrorDescription)
	c.emit(ctx, events.EventFailure, events.FailurePayload{
		SessionPayload: c.sessionPayload(p.ErrorDescription),
		ErrorID:        p.ErrorID,
		Description:    p.ErrorDescription,
	})
	c.closeConn("server failure")
}

func (c *Client) onNewTick(p *protocol.NewTickPacket) {
	c.lastTickID = p.TickID
	c.lastTickTime = c.currentTickTime
	c.currentTickTime = int64(c.GetTime())

	pos := c.PlayerData.WorldPos
	if c.NextPos != nil {
		pos = c.moveTo(*c.NextPos)
		c.PlayerData.WorldPos = pos
	}

	c.send(&protocol.MovePacket{
		TickID:      p.TickID,
		Time:        int32(c.currentTickTime),
		NewPosition: pos,
		Records:     []protocol.MoveRecord{},
	})

	for _, status := range p.Statuses {
		if status.ObjectID == c.PlayerData.ObjectID {
			c.PlayerData.WorldPos = status.Pos
		}
	}
}

func (c *Client) onPing(p *protocol.PingPacket) {
	c.send(&protocol.PongPacket{
		Serial: p.Serial,
		Time:   c.GetTime(),
	})
}

func (c *Client) onCreateSuccess(ctx context.Context, p *protocol.CreateSuccessPacket) {
	c.PlayerData.ObjectID = p.ObjectID
	c.CharInfo.CharID = p.CharID
	c.CharInfo.NextCharID = p.CharID + 1
	c.setState(StateInGame)

	util.Success(&c.logger).
		Int32("object_id", p.ObjectID).
		Int32("char_id", p.CharID).
		Msg("connected!")
	c.emit(ctx, events.EventCharacterCreated, events.CharacterPayload{
		SessionPayload: c.sessionPayload(""),
		ObjectID:       p.ObjectID,
		CharID:         p.CharID,
	})
}
