// Package extensions contains the extensions shipped with nrelay. Each one
// implements hooks.Extension and is loaded through the hooks.Host.
package extensions

import (
	"fmt"

	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/hooks"
)

// FromConfig builds the enabled extensions in load order.
func FromConfig(cfg config.ExtensionsConfig, bus *events.EventBus) ([]hooks.Extension, error) {
	var exts []hooks.Extension
	if cfg.Notifier.Enabled {
		exts = append(exts, NewNotifier(cfg.Notifier.Rules, bus))
	}
	if cfg.Waypoints.Enabled {
		exts = append(exts, NewWalker(cfg.Waypoints.Path))
	}
	if cfg.PacketTap.Enabled {
		tap, err := NewTap(cfg.PacketTap.Types, bus)
		if err != nil {
			return nil, fmt.Errorf("packet tap: %w", err)
		}
		exts = append(exts, tap)
	}
	return exts, nil
}
