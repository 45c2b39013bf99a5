package client

import (
	"context"
	"errors"
	"io"
	"math"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/protocol"
)

const ioTimeout = 2 * time.Second

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

type serverConn struct {
	t       *testing.T
	conn    net.Conn
	frames  *protocol.FrameReader
	packets *protocol.Registry
}

func (s *serverConn) send(pkt protocol.Packet) {
	s.t.Helper()
	s.conn.SetWriteDeadline(time.Now().Add(ioTimeout))
	if err := protocol.WriteFrame(s.conn, pkt); err != nil {
		s.t.Fatalf("server send %s: %v", pkt.Type(), err)
	}
}

func (s *serverConn) expect(want protocol.PacketType) protocol.Packet {
	s.t.Helper()
	s.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	f, err := s.frames.Next()
	if err != nil {
		s.t.Fatalf("waiting for %s: %v", want, err)
	}
	pkt, err := s.packets.DecodeFrame(f)
	if err != nil {
		s.t.Fatalf("decode %s: %v", f.Type, err)
	}
	if pkt.Type() != want {
		s.t.Fatalf("got %s, want %s", pkt.Type(), want)
	}
	return pkt
}

// expectClosed waits for the client to drop the connection.
func (s *serverConn) expectClosed() {
	s.t.Helper()
	s.conn.SetReadDeadline(time.Now().Add(ioTimeout))
	if _, err := s.frames.Next(); !errors.Is(err, io.EOF) {
		s.t.Fatalf("expected EOF, got %v", err)
	}
}

type harness struct {
	t      *testing.T
	client *Client
	clock  *fakeClock

	mu      sync.Mutex
	servers []net.Conn
	conns   chan net.Conn
	afters  chan time.Duration
	fire    chan time.Time
	done    chan error
}

func newHarness(t *testing.T, account Account, opts Options) *harness {
	h := &harness{
		t:      t,
		clock:  &fakeClock{t: time.Now()},
		conns:  make(chan net.Conn, 4),
		afters: make(chan time.Duration, 4),
		fire:   make(chan time.Time),
		done:   make(chan error, 1),
	}

	opts.Dial = func(ctx context.Context, network, address string) (net.Conn, error) {
		cli, srv := net.Pipe()
		h.mu.Lock()
		h.servers = append(h.servers, srv)
		h.mu.Unlock()
		h.conns <- srv
		return cli, nil
	}
	opts.Now = h.clock.Now
	opts.After = func(d time.Duration) <-chan time.Time {
		h.afters <- d
		return h.fire
	}

	h.client = New(account, Server{Name: "test", Host: "127.0.0.1"}, opts)

	ctx, cancel := context.WithCancel(context.Background())
	go func() { h.done <- h.client.Run(ctx) }()

	t.Cleanup(func() {
		cancel()
		h.mu.Lock()
		for _, s := range h.servers {
			s.Close()
		}
		h.mu.Unlock()
		select {
		case <-h.done:
		case <-time.After(ioTimeout):
			t.Error("Run did not return after cancel")
		}
	})
	return h
}

func (h *harness) accept() *serverConn {
	h.t.Helper()
	select {
	case conn := <-h.conns:
		return &serverConn{
			t:       h.t,
			conn:    conn,
			frames:  protocol.NewFrameReader(conn),
			packets: protocol.DefaultRegistry().SetStrict(true),
		}
	case <-time.After(ioTimeout):
		h.t.Fatal("client did not dial")
		return nil
	}
}

func (h *harness) expectReconnectScheduled() time.Duration {
	h.t.Helper()
	select {
	case d := <-h.afters:
		return d
	case <-time.After(ioTimeout):
		h.t.Fatal("reconnect was not scheduled")
		return 0
	}
}

func (h *harness) snapshot() Status {
	h.t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	st, err := h.client.Snapshot(ctx)
	if err != nil {
		h.t.Fatalf("Snapshot: %v", err)
	}
	return st
}

func emptyMapInfo(name string, w, h int32) *protocol.MapInfoPacket {
	return &protocol.MapInfoPacket{
		Width:     w,
		Height:    h,
		Name:      name,
		ClientXML: []string{},
		ExtraXML:  []string{},
	}
}

// login drives a fresh connection up to InGame and returns it.
func login(h *harness, wantCreate bool) *serverConn {
	h.t.Helper()
	srv := h.accept()
	srv.expect(protocol.PktHello)
	srv.send(emptyMapInfo("Nexus", 8, 8))
	if wantCreate {
		srv.expect(protocol.PktCreate)
	} else {
		srv.expect(protocol.PktLoad)
	}
	srv.send(&protocol.CreateSuccessPacket{ObjectID: 7, CharID: 3})
	return srv
}

func TestHandshake(t *testing.T) {
	h := newHarness(t, Account{GUID: "someone@example.com", Password: "hunter2"}, Options{BuildVersion: "X1.0"})
	srv := h.accept()

	hello := srv.expect(protocol.PktHello).(*protocol.HelloPacket)
	if hello.BuildVersion != "X1.0" {
		t.Errorf("BuildVersion = %q, want X1.0", hello.BuildVersion)
	}
	if hello.GUID != "someone@example.com" || hello.Password != "hunter2" {
		t.Errorf("credentials = %q/%q", hello.GUID, hello.Password)
	}
	if hello.GameID != -2 || hello.KeyTime != -1 {
		t.Errorf("GameID, KeyTime = %d, %d, want -2, -1", hello.GameID, hello.KeyTime)
	}
	if hello.GameNet != "rotmg" || hello.PlayPlatform != "rotmg" {
		t.Errorf("GameNet, PlayPlatform = %q, %q", hello.GameNet, hello.PlayPlatform)
	}
	if len(hello.Key) != 0 || hello.MapJSON != "" || hello.UserToken != "" {
		t.Error("optional fields should be empty")
	}
	if hello.Random1 < 0 || hello.Random1 >= 1e9 || hello.Random2 < 0 || hello.Random2 >= 1e9 {
		t.Errorf("seeds out of range: %d, %d", hello.Random1, hello.Random2)
	}

	srv.send(emptyMapInfo("Nexus", 8, 8))
	create := srv.expect(protocol.PktCreate).(*protocol.CreatePacket)
	if create.ClassType != protocol.ClassWizard || create.SkinType != 0 {
		t.Errorf("Create = %+v, want wizard with default skin", create)
	}

	srv.send(&protocol.CreateSuccessPacket{ObjectID: 7, CharID: 3})

	st := h.snapshot()
	if st.State != StateInGame {
		t.Errorf("State = %s, want in_game", st.State)
	}
	if st.PlayerData.ObjectID != 7 || st.CharInfo.CharID != 3 || st.CharInfo.NextCharID != 4 {
		t.Errorf("identity = %d/%d/%d, want 7/3/4", st.PlayerData.ObjectID, st.CharInfo.CharID, st.CharInfo.NextCharID)
	}
	if st.MapInfo.Name != "Nexus" || st.MapInfo.Width != 8 {
		t.Errorf("MapInfo = %+v", st.MapInfo)
	}
	if st.GUID != "s***@e***.com" {
		t.Errorf("GUID = %q, want censored", st.GUID)
	}
}

func TestKnownCharacterLoads(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c", CharID: 12}, Options{})
	srv := h.accept()
	srv.expect(protocol.PktHello)
	srv.send(emptyMapInfo("Nexus", 8, 8))

	load := srv.expect(protocol.PktLoad).(*protocol.LoadPacket)
	if load.CharID != 12 || load.IsFromArena {
		t.Errorf("Load = %+v, want char 12 not from arena", load)
	}
}

func TestUpdateAckIsSentFirst(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{})
	srv := login(h, true)

	srv.send(&protocol.UpdatePacket{
		Tiles: []protocol.GroundTileData{
			{X: 1, Y: 2, Type: 5},
			{X: 100, Y: 2, Type: 9}, // outside the map
		},
		NewObjects: []protocol.ObjectData{{
			ObjectType: protocol.ClassWizard,
			Status: protocol.ObjectStatusData{
				ObjectID: 7,
				Pos:      protocol.WorldPosData{X: 1.5, Y: 2.5},
				Stats: []protocol.StatData{
					{StatType: protocol.StatName, StringValue: "Bot"},
					{StatType: protocol.StatSpeed, Value: 50},
				},
			},
		}, {
			ObjectType: 1,
			Status:     protocol.ObjectStatusData{ObjectID: 8, Stats: []protocol.StatData{}},
		}},
		Drops: []int32{},
	})
	srv.expect(protocol.PktUpdateAck)

	st := h.snapshot()
	if st.PlayerData.Name != "Bot" || st.PlayerData.Spd != 50 {
		t.Errorf("PlayerData = %+v", st.PlayerData)
	}
	if st.PlayerData.Server != "test" {
		t.Errorf("Server = %q, want preserved", st.PlayerData.Server)
	}
	if st.PlayerData.Class != protocol.ClassWizard {
		t.Errorf("Class = %d, want %d", st.PlayerData.Class, protocol.ClassWizard)
	}

	var tile *protocol.GroundTileData
	h.client.Do(context.Background(), func(c *Client) { tile = c.TileAt(1, 2) })
	if tile == nil || tile.Type != 5 {
		t.Errorf("TileAt(1, 2) = %+v, want type 5", tile)
	}
}

func TestPingAndGoto(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{})
	srv := login(h, true)

	h.clock.Advance(1500 * time.Millisecond)
	srv.send(&protocol.PingPacket{Serial: 99})
	pong := srv.expect(protocol.PktPong).(*protocol.PongPacket)
	if pong.Serial != 99 || pong.Time != 1500 {
		t.Errorf("Pong = %+v, want serial 99 at 1500", pong)
	}

	srv.send(&protocol.GotoPacket{ObjectID: 1234, Position: protocol.WorldPosData{X: 50, Y: 60}})
	ack := srv.expect(protocol.PktGotoAck).(*protocol.GotoAckPacket)
	if ack.Time != 1500 {
		t.Errorf("GotoAck.Time = %d, want 1500", ack.Time)
	}
	if pos := h.snapshot().PlayerData.WorldPos; pos.X != 50 || pos.Y != 60 {
		t.Errorf("position = %+v, want snapped to 50,60", pos)
	}
}

func TestNewTickMovement(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{Tiles: tileSpeeds{5: 2}})
	srv := login(h, true)

	srv.send(&protocol.UpdatePacket{
		Tiles: []protocol.GroundTileData{{X: 1, Y: 1, Type: 5}},
		NewObjects: []protocol.ObjectData{{
			ObjectType: protocol.ClassWizard,
			Status: protocol.ObjectStatusData{
				ObjectID: 7,
				Pos:      protocol.WorldPosData{X: 1.5, Y: 1.5},
				Stats:    []protocol.StatData{{StatType: protocol.StatSpeed, Value: 50}},
			},
		}},
		Drops: []int32{},
	})
	srv.expect(protocol.PktUpdateAck)

	ctx := context.Background()
	if err := h.client.MoveTo(ctx, protocol.WorldPosData{X: 6.5, Y: 1.5}); err != nil {
		t.Fatalf("MoveTo: %v", err)
	}

	// Idle statuses for other objects must not move the player.
	h.clock.Advance(200 * time.Millisecond)
	srv.send(&protocol.NewTickPacket{
		TickID:   1,
		TickTime: 200,
		Statuses: []protocol.ObjectStatusData{{ObjectID: 8, Pos: protocol.WorldPosData{X: 99, Y: 99}, Stats: []protocol.StatData{}}},
	})
	move := srv.expect(protocol.PktMove).(*protocol.MovePacket)

	step := StepDistance(50, 2, 200)
	wantX := 1.5 + step
	if move.TickID != 1 || move.Time != 200 {
		t.Errorf("Move tick/time = %d/%d, want 1/200", move.TickID, move.Time)
	}
	if math.Abs(float64(move.NewPosition.X)-wantX) > 1e-4 || move.NewPosition.Y != 1.5 {
		t.Errorf("Move.NewPosition = %+v, want X=%v Y=1.5", move.NewPosition, wantX)
	}
	if len(move.Records) != 0 {
		t.Errorf("Records = %v, want empty", move.Records)
	}

	st := h.snapshot()
	if st.NextPos == nil {
		t.Error("NextPos cleared before arrival")
	}
	if st.PlayerData.WorldPos != move.NewPosition {
		t.Errorf("WorldPos = %+v, want %+v", st.PlayerData.WorldPos, move.NewPosition)
	}

	// An anomalous interval reports the current position unchanged.
	h.clock.Advance(400 * time.Millisecond)
	srv.send(&protocol.NewTickPacket{TickID: 2, TickTime: 400, Statuses: []protocol.ObjectStatusData{}})
	still := srv.expect(protocol.PktMove).(*protocol.MovePacket)
	if still.NewPosition != move.NewPosition {
		t.Errorf("Move after anomalous tick = %+v, want %+v", still.NewPosition, move.NewPosition)
	}

	// Server truth overrides the local position.
	h.clock.Advance(200 * time.Millisecond)
	srv.send(&protocol.NewTickPacket{
		TickID:   3,
		TickTime: 200,
		Statuses: []protocol.ObjectStatusData{{ObjectID: 7, Pos: protocol.WorldPosData{X: 6, Y: 1.5}, Stats: []protocol.StatData{}}},
	})
	srv.expect(protocol.PktMove)
	if pos := h.snapshot().PlayerData.WorldPos; pos.X != 6 {
		t.Errorf("WorldPos.X = %v, want 6 from server status", pos.X)
	}
}

func TestFailureClosesAndReconnects(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{})
	srv := login(h, true)

	srv.send(&protocol.FailurePacket{ErrorID: 4, ErrorDescription: "Account in use"})
	srv.expectClosed()

	if d := h.expectReconnectScheduled(); d != 5*time.Second {
		t.Errorf("reconnect delay = %v, want 5s", d)
	}
	if st := h.snapshot(); st.State != StateDisconnected {
		t.Errorf("State = %s, want disconnected", st.State)
	}

	h.fire <- time.Now()

	// State survives: the second login loads the character created before.
	srv2 := h.accept()
	srv2.expect(protocol.PktHello)
	srv2.send(emptyMapInfo("Nexus", 8, 8))
	load := srv2.expect(protocol.PktLoad).(*protocol.LoadPacket)
	if load.CharID != 3 {
		t.Errorf("Load.CharID = %d, want 3", load.CharID)
	}
	if st := h.snapshot(); st.Reconnects != 1 || st.PlayerData.ObjectID != 7 {
		t.Errorf("Reconnects, ObjectID = %d, %d, want 1, 7", st.Reconnects, st.PlayerData.ObjectID)
	}
}

func TestServerCloseReconnects(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{})
	srv := h.accept()
	srv.expect(protocol.PktHello)
	srv.conn.Close()

	if d := h.expectReconnectScheduled(); d != DefaultReconnectDelay {
		t.Errorf("reconnect delay = %v, want %v", d, DefaultReconnectDelay)
	}
	h.fire <- time.Now()
	h.accept().expect(protocol.PktHello)
}

func TestDisabledClientStops(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{})
	srv := h.accept()
	srv.expect(protocol.PktHello)

	ctx, cancel := context.WithTimeout(context.Background(), ioTimeout)
	defer cancel()
	if err := h.client.Disconnect(ctx, true); err != nil {
		t.Fatalf("Disconnect: %v", err)
	}

	select {
	case err := <-h.done:
		if err != nil {
			t.Errorf("Run = %v, want nil", err)
		}
		h.done <- err
	case <-time.After(ioTimeout):
		t.Fatal("Run did not return after Disconnect(force)")
	}

	select {
	case d := <-h.afters:
		t.Errorf("reconnect scheduled after %v, want none", d)
	default:
	}
	if h.client.Running() {
		t.Error("Running = true after Run returned")
	}
}

func TestRunTwice(t *testing.T) {
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{})
	h.accept().expect(protocol.PktHello)

	if err := h.client.Run(context.Background()); !errors.Is(err, ErrAlreadyRunning) {
		t.Errorf("second Run = %v, want ErrAlreadyRunning", err)
	}
}

type recordingDispatcher struct {
	mu    sync.Mutex
	types []protocol.PacketType
}

func (d *recordingDispatcher) Dispatch(t protocol.PacketType, pkt protocol.Packet, c *Client) {
	d.mu.Lock()
	d.types = append(d.types, t)
	d.mu.Unlock()
}

func TestHooksSeeEveryPacket(t *testing.T) {
	rec := &recordingDispatcher{}
	h := newHarness(t, Account{GUID: "a@b.c"}, Options{Hooks: rec})
	srv := login(h, true)
	srv.send(&protocol.TextPacket{Name: "Oryx", Text: "hello", Recipient: "", CleanText: "hello"})
	srv.send(&protocol.PingPacket{Serial: 1})
	srv.expect(protocol.PktPong)

	h.snapshot()
	rec.mu.Lock()
	defer rec.mu.Unlock()
	want := []protocol.PacketType{protocol.PktMapInfo, protocol.PktCreateSuccess, protocol.PktText, protocol.PktPing}
	if len(rec.types) != len(want) {
		t.Fatalf("dispatched %v, want %v", rec.types, want)
	}
	for i := range want {
		if rec.types[i] != want[i] {
			t.Errorf("dispatch[%d] = %s, want %s", i, rec.types[i], want[i])
		}
	}
}

func TestShutdownEmitsDisconnected(t *testing.T) {
	bus := events.NewEventBus()
	var mu sync.Mutex
	var got []events.Event
	record := func(ctx context.Context, e events.Event) error {
		mu.Lock()
		got = append(got, e)
		mu.Unlock()
		return nil
	}
	bus.Subscribe(events.EventConnected, "test", record)
	bus.Subscribe(events.EventDisconnected, "test", record)

	conns := make(chan net.Conn, 1)
	c := New(Account{GUID: "someone@example.com"}, Server{Name: "test", Host: "127.0.0.1"}, Options{
		Events: bus,
		Dial: func(ctx context.Context, network, address string) (net.Conn, error) {
			cli, srv := net.Pipe()
			conns <- srv
			return cli, nil
		},
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	var conn net.Conn
	select {
	case conn = <-conns:
	case <-time.After(ioTimeout):
		t.Fatal("client did not dial")
	}
	defer conn.Close()
	srv := &serverConn{t: t, conn: conn, frames: protocol.NewFrameReader(conn), packets: protocol.DefaultRegistry()}
	srv.expect(protocol.PktHello)

	cancel()
	select {
	case <-done:
	case <-time.After(ioTimeout):
		t.Fatal("Run did not return after cancel")
	}
	bus.Stop()

	if len(got) != 2 || got[0].Type != events.EventConnected || got[1].Type != events.EventDisconnected {
		t.Fatalf("events = %+v, want connected then disconnected", got)
	}
	if p, ok := got[1].Payload.(events.SessionPayload); !ok || p.Reason != "shutdown" {
		t.Errorf("disconnect payload = %+v, want reason shutdown", got[1].Payload)
	}
}
