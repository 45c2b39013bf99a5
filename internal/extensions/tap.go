package extensions

import (
	"context"
	"fmt"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/hooks"
	"github.com/nrelay-go/nrelay/internal/protocol"
)

const tapName = "Packet Tap"

// Tap republishes selected packets on the event bus for the API feed.
type Tap struct {
	types []protocol.PacketType
	bus   *events.EventBus
}

// NewTap creates a tap for the named packet types, e.g. "TEXT".
func NewTap(names []string, bus *events.EventBus) (*Tap, error) {
	t := &Tap{bus: bus}
	for _, name := range names {
		pt, ok := protocol.ParsePacketType(name)
		if !ok {
			return nil, fmt.Errorf("unknown packet type %q", name)
		}
		t.types = append(t.types, pt)
	}
	return t, nil
}

func (t *Tap) Info() hooks.Info {
	return hooks.Info{
		Name:        tapName,
		Author:      "nrelay",
		Description: "streams selected packets to the API websocket feed",
	}
}

func (t *Tap) Register(r *hooks.Registry) {
	for _, pt := range t.types {
		r.Register(pt, t.publish, tapName)
	}
}

func (t *Tap) publish(c *client.Client, pkt protocol.Packet) error {
	t.bus.Emit(context.Background(), events.Event{
		Type:   events.EventPacketTapped,
		Source: tapName,
		Payload: events.PacketPayload{
			GUID:   c.GUID(),
			Type:   pkt.Type().String(),
			Packet: pkt,
		},
	})
	return nil
}
