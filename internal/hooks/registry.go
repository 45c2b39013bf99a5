// Package hooks implements the packet hook registry: a process-wide table of
// handlers keyed by packet type, and the extension host that fills it.
package hooks

import (
	"fmt"
	"sort"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/protocol"
)

// HandlerFunc handles one decoded packet for one client. A returned error is
// logged and counted against the owner; it never stops dispatch.
type HandlerFunc func(c *client.Client, pkt protocol.Packet) error

type handlerEntry struct {
	owner   string
	handler HandlerFunc
}

// Registry holds the hook table. Registrations are append-only, except
// that a failed extension load removes what it added. Dispatch
// runs handlers synchronously on the caller's goroutine, in registration
// order.
type Registry struct {
	mu       sync.RWMutex
	handlers map[protocol.PacketType][]handlerEntry
	faults   map[string]int
	calls    map[string]int
	logger   zerolog.Logger
}

// NewRegistry creates an empty hook registry.
func NewRegistry() *Registry {
	return &Registry{
		handlers: make(map[protocol.PacketType][]handlerEntry),
		faults:   make(map[string]int),
		calls:    make(map[string]int),
		logger:   log.With().Str("component", "hooks").Logger(),
	}
}

// Register appends a handler for a packet type. The owner identifies the
// extension in logs and statistics.
func (r *Registry) Register(packetType protocol.PacketType, handler HandlerFunc, owner string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.handlers[packetType] = append(r.handlers[packetType], handlerEntry{
		owner:   owner,
		handler: handler,
	})

	r.logger.Debug().
		Str("packet", packetType.String()).
		Str("owner", owner).
		Msg("hook registered")
}

// On registers a handler typed to one concrete packet. P must be a pointer
// to a catalog struct, e.g. *protocol.TextPacket.
func On[P protocol.Packet](r *Registry, owner string, fn func(c *client.Client, pkt P) error) {
	var zero P
	r.Register(zero.Type(), func(c *client.Client, pkt protocol.Packet) error {
		typed, ok := pkt.(P)
		if !ok {
			return fmt.Errorf("hook for %s got %T", zero.Type(), pkt)
		}
		return fn(c, typed)
	}, owner)
}

// Dispatch invokes every handler registered for packetType. Handler errors
// and panics are recovered, logged and counted; the remaining handlers
// still run.
func (r *Registry) Dispatch(packetType protocol.PacketType, pkt protocol.Packet, c *client.Client) {
	r.mu.RLock()
	handlers := r.handlers[packetType]
	r.mu.RUnlock()

	// handlers is never mutated in place: Register only appends, and an
	// append that reallocates leaves this slice header untouched.
	for _, h := range handlers {
		r.invoke(h, packetType, pkt, c)
	}
}

func (r *Registry) invoke(h handlerEntry, packetType protocol.PacketType, pkt protocol.Packet, c *client.Client) {
	defer func() {
		if rec := recover(); rec != nil {
			r.recordFault(h.owner)
			r.logger.Error().
				Str("packet", packetType.String()).
				Str("owner", h.owner).
				Interface("panic", rec).
				Msg("hook panicked")
		}
	}()

	r.recordCall(h.owner)
	if err := h.handler(c, pkt); err != nil {
		r.recordFault(h.owner)
		r.logger.Error().
			Err(err).
			Str("packet", packetType.String()).
			Str("owner", h.owner).
			Msg("hook returned error")
	}
}

func (r *Registry) recordCall(owner string) {
	r.mu.Lock()
	r.calls[owner]++
	r.mu.Unlock()
}

func (r *Registry) recordFault(owner string) {
	r.mu.Lock()
	r.faults[owner]++
	r.mu.Unlock()
}

// checkpoint records how many handlers each packet type has.
func (r *Registry) checkpoint() map[protocol.PacketType]int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	mark := make(map[protocol.PacketType]int, len(r.handlers))
	for t, hs := range r.handlers {
		mark[t] = len(hs)
	}
	return mark
}

// rollback drops every handler registered since mark and returns how many
// were removed. The kept prefix is copied so in-flight Dispatch snapshots
// never see a later append.
func (r *Registry) rollback(mark map[protocol.PacketType]int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	removed := 0
	for t, hs := range r.handlers {
		n := mark[t]
		if len(hs) <= n {
			continue
		}
		removed += len(hs) - n
		if n == 0 {
			delete(r.handlers, t)
			continue
		}
		r.handlers[t] = append([]handlerEntry(nil), hs[:n]...)
	}
	return removed
}

// HandlerCount returns the number of handlers registered for a packet type.
func (r *Registry) HandlerCount(packetType protocol.PacketType) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[packetType])
}

// OwnerStats summarizes how often an owner's handlers ran and failed.
type OwnerStats struct {
	Owner  string `json:"owner"`
	Calls  int    `json:"calls"`
	Faults int    `json:"faults"`
}

// Stats returns per-owner call and fault counters.
func (r *Registry) Stats() []OwnerStats {
	r.mu.RLock()
	defer r.mu.RUnlock()

	seen := make(map[string]bool)
	var out []OwnerStats
	for _, entries := range r.handlers {
		for _, e := range entries {
			if seen[e.owner] {
				continue
			}
			seen[e.owner] = true
			out = append(out, OwnerStats{
				Owner:  e.owner,
				Calls:  r.calls[e.owner],
				Faults: r.faults[e.owner],
			})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Owner < out[j].Owner })
	return out
}
