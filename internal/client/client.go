// Package client implements one game session: the TCP connection to a game
// server, the login handshake, the built-in packet reactions that keep the
// session alive, and the per-tick movement of the player.
package client

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/protocol"
	"github.com/nrelay-go/nrelay/internal/util"
)

const (
	DefaultPort           = 2050
	DefaultReconnectDelay = 5 * time.Second
	DefaultConnectTimeout = 10 * time.Second
	DefaultWriteTimeout   = 10 * time.Second

	defaultGameID    = -2
	defaultPlatform  = "rotmg"
	defaultKeyTime   = -1
	maxMapTiles      = 4096 * 4096
	frameBufferDepth = 64
)

var (
	ErrNotConnected   = errors.New("client: not connected")
	ErrAlreadyRunning = errors.New("client: already running")
)

// Dispatcher receives every decoded packet after the client's own reaction.
type Dispatcher interface {
	Dispatch(packetType protocol.PacketType, pkt protocol.Packet, c *Client)
}

// DialFunc opens the transport to a game server.
type DialFunc func(ctx context.Context, network, address string) (net.Conn, error)

// Account holds the credentials a client logs in with.
type Account struct {
	GUID     string
	Password string
	// CharID selects an existing character. Zero creates a new one.
	CharID int32
}

// Server is a game server endpoint.
type Server struct {
	Name string
	Host string
	Port int
}

// Address returns host:port, using the default game port when Port is 0.
func (s Server) Address() string {
	port := s.Port
	if port == 0 {
		port = DefaultPort
	}
	return net.JoinHostPort(s.Host, strconv.Itoa(port))
}

// Options configures a client. Zero values select the defaults; a
// ReconnectDelay below DefaultReconnectDelay is raised to it.
type Options struct {
	BuildVersion   string
	ReconnectDelay time.Duration
	ConnectTimeout time.Duration

	Packets *protocol.Registry
	Hooks   Dispatcher
	Tiles   TileSpeeds
	Events  *events.EventBus

	Dial  DialFunc
	Now   func() time.Time
	After func(time.Duration) <-chan time.Time
}

// Client is one session with a game server. All session state is owned by
// the goroutine running Run; hooks are invoked on that goroutine and may
// read and mutate the exported fields and call Send directly. Other
// goroutines must go through Do.
type Client struct {
	PlayerData PlayerData
	CharInfo   CharInfo
	MapInfo    MapInfo
	// MapTiles is indexed by y*MapInfo.Width+x; nil entries are unknown.
	MapTiles []*protocol.GroundTileData
	// NextPos is the movement target, or nil when idle.
	NextPos *protocol.WorldPosData

	account Account
	server  Server
	opts    Options
	logger  zerolog.Logger

	state    atomic.Int32
	disabled atomic.Bool
	running  atomic.Bool
	loopMu   sync.Mutex
	commands chan func(*Client)

	conn        net.Conn
	closing     bool
	connectTime time.Time

	lastTickTime    int64
	currentTickTime int64
	lastTickID      int32

	reconnects int
	packetsIn  uint64
	packetsOut uint64
}

// New creates a disconnected client. Call Run to connect.
func New(account Account, server Server, opts Options) *Client {
	if opts.ReconnectDelay < DefaultReconnectDelay {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ConnectTimeout <= 0 {
		opts.ConnectTimeout = DefaultConnectTimeout
	}
	if opts.Packets == nil {
		opts.Packets = protocol.DefaultRegistry()
	}
	if opts.Dial == nil {
		dialer := &net.Dialer{Timeout: opts.ConnectTimeout}
		opts.Dial = dialer.DialContext
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.After == nil {
		opts.After = time.After
	}

	c := &Client{
		PlayerData: DefaultPlayerData(),
		CharInfo: CharInfo{
			CharID:      account.CharID,
			NextCharID:  account.CharID + 1,
			MaxNumChars: 1,
		},
		account:  account,
		server:   server,
		opts:     opts,
		commands: make(chan func(*Client)),
		logger: util.ComponentLogger("client").With().
			Str("guid", util.CensorGUID(account.GUID)).
			Str("server", server.Name).
			Logger(),
	}
	c.PlayerData.Server = server.Name
	return c
}

// GUID returns the censored account identifier, safe for logs and APIs.
func (c *Client) GUID() string {
	return util.CensorGUID(c.account.GUID)
}

// RawGUID returns the account identifier as configured.
func (c *Client) RawGUID() string {
	return c.account.GUID
}

// Server returns the configured server.
func (c *Client) Server() Server {
	return c.server
}

// State returns the current connection phase. Safe from any goroutine.
func (c *Client) State() State {
	return State(c.state.Load())
}

func (c *Client) setState(s State) {
	if old := State(c.state.Swap(int32(s))); old != s {
		c.logger.Debug().Str("from", old.String()).Str("to", s.String()).Msg("state changed")
	}
}

// Logger returns the client's logger, for hooks that want the client's
// identifying fields on their own lines.
func (c *Client) Logger() *zerolog.Logger {
	return &c.logger
}

// Disable stops the client from reconnecting after the current connection
// ends. It does not close the connection.
func (c *Client) Disable() {
	c.disabled.Store(true)
}

// Enable re-allows reconnection.
func (c *Client) Enable() {
	c.disabled.Store(false)
}

// ReconnectDelay returns the wait between a connection loss and the next
// attempt. It is never below DefaultReconnectDelay.
func (c *Client) ReconnectDelay() time.Duration {
	return c.opts.ReconnectDelay
}

// Running reports whether Run is active.
func (c *Client) Running() bool {
	return c.running.Load()
}

// Disabled reports whether reconnection is suppressed.
func (c *Client) Disabled() bool {
	return c.disabled.Load()
}

// Disconnect closes the current connection. With force set the client is
// also disabled, so Run returns instead of reconnecting.
func (c *Client) Disconnect(ctx context.Context, force bool) error {
	if force {
		c.Disable()
	}
	return c.Do(ctx, func(c *Client) {
		c.closeConn("disconnect requested")
	})
}

// Do runs fn on the session goroutine and waits for it to finish. When Run
// is not active fn runs on the calling goroutine. Do must not be called from
// a hook.
func (c *Client) Do(ctx context.Context, fn func(*Client)) error {
	if c.loopMu.TryLock() {
		defer c.loopMu.Unlock()
		fn(c)
		return nil
	}

	done := make(chan struct{})
	wrapped := func(c *Client) {
		defer close(done)
		fn(c)
	}
	select {
	case c.commands <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run connects and serves the session until ctx is cancelled or the client
// is disabled. Every connection loss other than those two schedules a
// reconnect after the reconnect delay. Client state is retained across
// reconnects.
func (c *Client) Run(ctx context.Context) error {
	if !c.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer c.running.Store(false)
	c.loopMu.Lock()
	defer c.loopMu.Unlock()

	for {
		if err := c.connect(ctx); err != nil {
			c.logger.Error().Err(err).Msg("connection failed")
		} else {
			c.serve(ctx)
		}
		c.setState(StateDisconnected)

		if ctx.Err() != nil {
			return nil
		}
		if c.Disabled() {
			c.logger.Info().Msg("client disabled, not reconnecting")
			return nil
		}

		c.reconnects++
		c.logger.Info().
			Dur("delay", c.opts.ReconnectDelay).
			Msgf("reconnecting in %s", c.opts.ReconnectDelay)
		c.emit(ctx, events.EventReconnectScheduled, c.sessionPayload(""))

		if !c.waitReconnect(ctx) {
			return nil
		}
	}
}

// waitReconnect sleeps for the reconnect delay while still serving Do. It
// returns false when the client should stop instead.
func (c *Client) waitReconnect(ctx context.Context) bool {
	timer := c.opts.After(c.opts.ReconnectDelay)
	for {
		select {
		case <-ctx.Done():
			return false
		case fn := <-c.commands:
			fn(c)
			if c.Disabled() {
				return false
			}
		case <-timer:
			return !c.Disabled()
		}
	}
}

func (c *Client) connect(ctx context.Context) error {
	c.setState(StateConnecting)
	addr := c.server.Address()
	c.logger.Info().Str("address", addr).Msg("connecting")
	c.emit(ctx, events.EventConnecting, c.sessionPayload(""))

	dialCtx, cancel := context.WithTimeout(ctx, c.opts.ConnectTimeout)
	defer cancel()

	conn, err := c.opts.Dial(dialCtx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", addr, err)
	}

	c.conn = conn
	c.closing = false
	c.onConnect(ctx)
	return nil
}

// serve runs the session loop for one connection.
func (c *Client) serve(ctx context.Context) {
	frames := make(chan protocol.Frame, frameBufferDepth)
	readErr := make(chan error, 1)
	go readLoop(c.conn, frames, readErr)

	for {
		select {
		case <-ctx.Done():
			c.closeConn("shutting down")
			for range frames {
			}
			<-readErr
			c.logger.Info().Msg("disconnected on shutdown")
			c.emit(context.WithoutCancel(ctx), events.EventDisconnected, c.sessionPayload("shutdown"))
			return

		case fn := <-c.commands:
			fn(c)

		case f, ok := <-frames:
			if !ok {
				c.onClose(ctx, <-readErr)
				return
			}
			if c.closing {
				continue
			}
			c.handleFrame(ctx, f)
		}
	}
}

func readLoop(conn net.Conn, frames chan<- protocol.Frame, errc chan<- error) {
	defer close(frames)
	fr := protocol.NewFrameReader(conn)
	for {
		f, err := fr.Next()
		if err != nil {
			errc <- err
			return
		}
		frames <- f
	}
}

func (c *Client) onClose(ctx context.Context, err error) {
	graceful := c.closing || errors.Is(err, io.EOF) || errors.Is(err, net.ErrClosed)
	c.closeConn("")

	if graceful {
		c.logger.Warn().Msg("the connection was closed")
	} else {
		c.logger.Error().Err(err).Msg("connection error")
	}
	reason := "closed"
	if !graceful {
		reason = err.Error()
	}
	c.emit(ctx, events.EventDisconnected, c.sessionPayload(reason))
}

func (c *Client) closeConn(reason string) {
	if c.conn == nil {
		return
	}
	if reason != "" && !c.closing {
		c.logger.Debug().Str("reason", reason).Msg("closing connection")
	}
	c.closing = true
	c.conn.Close()
}

func (c *Client) handleFrame(ctx context.Context, f protocol.Frame) {
	c.packetsIn++
	pkt, err := c.opts.Packets.DecodeFrame(f)
	if err != nil {
		c.logger.Warn().Err(err).Str("packet", f.Type.String()).Msg("failed to decode packet")
		return
	}
	if pkt == nil {
		return
	}

	c.react(ctx, pkt)
	if c.opts.Hooks != nil {
		c.opts.Hooks.Dispatch(pkt.Type(), pkt, c)
	}
}

// Send encodes pkt and writes it to the connection. It must be called from
// the session goroutine, i.e. from a hook or inside Do.
func (c *Client) Send(pkt protocol.Packet) error {
	if c.conn == nil || c.closing {
		return ErrNotConnected
	}
	frame, err := protocol.EncodeFrame(pkt)
	if err != nil {
		c.logger.Warn().Err(err).Str("packet", pkt.Type().String()).Msg("failed to encode packet")
		return err
	}

	c.conn.SetWriteDeadline(time.Now().Add(DefaultWriteTimeout))
	if _, err := c.conn.Write(frame); err != nil {
		return fmt.Errorf("failed to send %s: %w", pkt.Type(), err)
	}
	c.packetsOut++
	return nil
}

// send is Send for the built-in reactions, which log instead of returning.
func (c *Client) send(pkt protocol.Packet) {
	if err := c.Send(pkt); err != nil && !errors.Is(err, ErrNotConnected) {
		c.logger.Error().Err(err).Msg("send failed")
		c.closeConn("write error")
	}
}

// GetTime returns the milliseconds elapsed since the connection opened.
func (c *Client) GetTime() int32 {
	return int32(c.opts.Now().Sub(c.connectTime).Milliseconds())
}

func (c *Client) sessionPayload(reason string) events.SessionPayload {
	return events.SessionPayload{
		GUID:   c.GUID(),
		Server: c.server.Name,
		Reason: reason,
	}
}

func (c *Client) emit(ctx context.Context, t events.EventType, payload interface{}) {
	if c.opts.Events == nil {
		return
	}
	c.opts.Events.Emit(ctx, events.Event{
		Type:    t,
		Source:  "client",
		Payload: payload,
	})
}

// Status is a point-in-time view of a client.
type Status struct {
	GUID       string                 `json:"guid"`
	Server     string                 `json:"server"`
	State      State                  `json:"state"`
	Disabled   bool                   `json:"disabled"`
	PlayerData PlayerData             `json:"player_data"`
	CharInfo   CharInfo               `json:"char_info"`
	MapInfo    MapInfo                `json:"map_info"`
	NextPos    *protocol.WorldPosData `json:"next_pos,omitempty"`
	Reconnects int                    `json:"reconnects"`
	PacketsIn  uint64                 `json:"packets_in"`
	PacketsOut uint64                 `json:"packets_out"`
}

// Snapshot captures the client's status through Do.
func (c *Client) Snapshot(ctx context.Context) (Status, error) {
	var st Status
	err := c.Do(ctx, func(c *Client) {
		st = Status{
			GUID:       c.GUID(),
			Server:     c.server.Name,
			State:      c.State(),
			Disabled:   c.Disabled(),
			PlayerData: c.PlayerData,
			CharInfo:   c.CharInfo,
			MapInfo:    c.MapInfo,
			Reconnects: c.reconnects,
			PacketsIn:  c.packetsIn,
			PacketsOut: c.packetsOut,
		}
		if c.NextPos != nil {
			pos := *c.NextPos
			st.NextPos = &pos
		}
	})
	return st, err
}

// MoveTo sets the movement target from any goroutine.
func (c *Client) MoveTo(ctx context.Context, pos protocol.WorldPosData) error {
	return c.Do(ctx, func(c *Client) {
		c.NextPos = &pos
	})
}

func randomSeed() int32 {
	return rand.Int31n(1_000_000_000)
}
