// Package relay runs one client per configured account and gives the API,
// CLI and scheduler a single place to find and control them.
package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
)

var ErrSessionNotFound = errors.New("relay: session not found")

// Manager owns the set of clients.
type Manager struct {
	mu      sync.RWMutex
	clients []*client.Client
	ctx     context.Context
	wg      sync.WaitGroup
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{}
}

// BuildClients creates one client per configured account. base supplies the
// shared registries and event bus.
func BuildClients(cfg *config.Config, base client.Options) ([]*client.Client, error) {
	cc := cfg.GetClient()
	base.BuildVersion = cc.BuildVersion
	base.ReconnectDelay = time.Duration(cc.ReconnectDelaySec) * time.Second
	base.ConnectTimeout = time.Duration(cc.ConnectTimeoutSec) * time.Second

	var clients []*client.Client
	for i, acc := range cfg.GetAccounts() {
		srv, ok := cfg.FindServer(acc.Server)
		if !ok {
			return nil, fmt.Errorf("account %d: unknown server %q", i, acc.Server)
		}
		clients = append(clients, client.New(
			client.Account{GUID: acc.GUID, Password: acc.Password, CharID: acc.CharID},
			client.Server{Name: srv.Name, Host: srv.Host, Port: srv.Port},
			base,
		))
	}
	return clients, nil
}

// Add registers a client. Clients added after Start are launched at once.
func (m *Manager) Add(c *client.Client) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.clients {
		if existing.RawGUID() == c.RawGUID() {
			return fmt.Errorf("account %s is already managed", c.GUID())
		}
	}
	m.clients = append(m.clients, c)
	if m.ctx != nil {
		m.launch(c)
	}
	return nil
}

// Start runs every client and blocks until ctx is cancelled and all of them
// have returned.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	for _, c := range m.clients {
		m.launch(c)
	}
	n := len(m.clients)
	m.mu.Unlock()

	log.Info().Int("sessions", n).Msg("relay started")
	<-ctx.Done()
	m.wg.Wait()
	log.Info().Msg("relay stopped")
}

// launch must be called with mu held. A client re-enabled by Restart while
// its Run was already returning is run again.
func (m *Manager) launch(c *client.Client) {
	ctx := m.ctx
	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			err := c.Run(ctx)
			if errors.Is(err, client.ErrAlreadyRunning) {
				return
			}
			if err != nil {
				log.Error().Err(err).Str("guid", c.GUID()).Msg("session ended with error")
			}
			if ctx.Err() != nil || c.Disabled() {
				return
			}
			log.Info().Str("guid", c.GUID()).Msg("session re-enabled while stopping, relaunching")
		}
	}()
}

// Clients returns the managed clients in the order they were added.
func (m *Manager) Clients() []*client.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*client.Client, len(m.clients))
	copy(out, m.clients)
	return out
}

// Find resolves a session by index, GUID or censored GUID.
func (m *Manager) Find(id string) (*client.Client, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if i, err := strconv.Atoi(id); err == nil {
		if i >= 0 && i < len(m.clients) {
			return m.clients[i], nil
		}
		return nil, ErrSessionNotFound
	}
	for _, c := range m.clients {
		if c.RawGUID() == id || c.GUID() == id {
			return c, nil
		}
	}
	return nil, ErrSessionNotFound
}

// Statuses snapshots every client. Clients that don't answer before ctx
// expires are reported with their state only.
func (m *Manager) Statuses(ctx context.Context) []client.Status {
	clients := m.Clients()
	out := make([]client.Status, 0, len(clients))
	for _, c := range clients {
		st, err := c.Snapshot(ctx)
		if err != nil {
			st = client.Status{
				GUID:     c.GUID(),
				Server:   c.Server().Name,
				State:    c.State(),
				Disabled: c.Disabled(),
			}
		}
		out = append(out, st)
	}
	return out
}

// Stop disconnects a session and keeps it from reconnecting.
func (m *Manager) Stop(ctx context.Context, id string) error {
	c, err := m.Find(id)
	if err != nil {
		return err
	}
	log.Info().Str("guid", c.GUID()).Msg("stopping session")
	return c.Disconnect(ctx, true)
}

// Restart re-enables a session and launches it if it is not running.
func (m *Manager) Restart(id string) error {
	c, err := m.Find(id)
	if err != nil {
		return err
	}
	c.Enable()

	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ctx == nil {
		return nil
	}
	if !c.Running() {
		log.Info().Str("guid", c.GUID()).Msg("restarting session")
		m.launch(c)
	}
	return nil
}

// CountByState returns how many sessions are in each state.
func (m *Manager) CountByState() map[client.State]int {
	counts := make(map[client.State]int)
	for _, c := range m.Clients() {
		counts[c.State()]++
	}
	return counts
}
