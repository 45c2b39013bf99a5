package extensions

import (
	"sync"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/hooks"
	"github.com/nrelay-go/nrelay/internal/protocol"
)

const walkerName = "Waypoint Walker"

// Walker hands each client the next point of a fixed path whenever it
// enters a map with no movement target pending. Every client walks the
// path independently and wraps around at the end.
type Walker struct {
	path []protocol.WorldPosData

	mu      sync.Mutex
	cursors map[string]int
}

// NewWalker creates a walker over path.
func NewWalker(path []config.Waypoint) *Walker {
	w := &Walker{cursors: make(map[string]int)}
	for _, p := range path {
		w.path = append(w.path, protocol.WorldPosData{X: p.X, Y: p.Y})
	}
	return w
}

func (w *Walker) Info() hooks.Info {
	return hooks.Info{
		Name:        walkerName,
		Author:      "tcrane",
		Description: "walks each client along a configured path",
	}
}

func (w *Walker) Register(r *hooks.Registry) {
	hooks.On(r, walkerName, w.onMapInfo)
}

func (w *Walker) onMapInfo(c *client.Client, _ *protocol.MapInfoPacket) error {
	if c.NextPos != nil {
		return nil
	}
	next, ok := w.next(c.RawGUID())
	if !ok {
		return nil
	}
	c.NextPos = &next
	c.Logger().Debug().
		Float32("x", next.X).
		Float32("y", next.Y).
		Msg("walking to waypoint")
	return nil
}

// next returns the waypoint after the one last handed to guid.
func (w *Walker) next(guid string) (protocol.WorldPosData, bool) {
	if len(w.path) == 0 {
		return protocol.WorldPosData{}, false
	}
	w.mu.Lock()
	defer w.mu.Unlock()

	i := w.cursors[guid]
	w.cursors[guid] = (i + 1) % len(w.path)
	return w.path[i], true
}
