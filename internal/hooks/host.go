package hooks

import (
	"github.com/rs/zerolog/log"
)

// Info describes an extension.
type Info struct {
	Name        string `json:"name"`
	Author      string `json:"author"`
	Description string `json:"description,omitempty"`
}

// Extension is a unit of third-party behaviour. Register is called once at
// startup and must only add hooks; it should not block.
type Extension interface {
	Info() Info
	Register(r *Registry)
}

// Host loads extensions into a Registry.
type Host struct {
	registry *Registry
	loaded   []Info
}

// NewHost creates a host bound to a registry.
func NewHost(registry *Registry) *Host {
	return &Host{registry: registry}
}

// Load registers each extension in order. An extension whose Register
// panics is skipped and reported, and any hooks it added before panicking
// are removed; the others still load.
func (h *Host) Load(exts ...Extension) {
	for _, ext := range exts {
		h.load(ext)
	}
}

func (h *Host) load(ext Extension) {
	info := ext.Info()
	mark := h.registry.checkpoint()
	defer func() {
		if rec := recover(); rec != nil {
			removed := h.registry.rollback(mark)
			log.Warn().
				Str("extension", info.Name).
				Interface("panic", rec).
				Int("hooks_removed", removed).
				Msg("error while loading extension")
		}
	}()

	ext.Register(h.registry)
	h.loaded = append(h.loaded, info)

	log.Info().
		Str("extension", info.Name).
		Str("author", info.Author).
		Msgf("loaded %s by %s", info.Name, info.Author)
}

// Loaded returns the extensions that registered successfully.
func (h *Host) Loaded() []Info {
	out := make([]Info, len(h.loaded))
	copy(out, h.loaded)
	return out
}

// Registry returns the registry the host fills.
func (h *Host) Registry() *Registry {
	return h.registry
}
