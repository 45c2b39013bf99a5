package extensions

import (
	"context"
	"testing"
	"time"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
	"github.com/nrelay-go/nrelay/internal/events"
	"github.com/nrelay-go/nrelay/internal/hooks"
	"github.com/nrelay-go/nrelay/internal/protocol"
)

func newClient(guid string) *client.Client {
	return client.New(client.Account{GUID: guid}, client.Server{Name: "USEast", Host: "127.0.0.1"}, client.Options{})
}

func TestLeadingCount(t *testing.T) {
	tests := []struct {
		text  string
		want  int
		found bool
	}{
		{"3 Liches remain", 3, true},
		{"Lich count: 12. Next 4", 12, true},
		{"The Lich has risen", 0, false},
		{".5 Liches", 0, false},
	}
	for _, tt := range tests {
		got, ok := leadingCount(tt.text)
		if got != tt.want || ok != tt.found {
			t.Errorf("leadingCount(%q) = %d, %v, want %d, %v", tt.text, got, ok, tt.want, tt.found)
		}
	}
}

func TestNotifierMatch(t *testing.T) {
	n := NewNotifier(config.DefaultNotifierRules(), nil)

	tests := []struct {
		text  string
		level string
		match bool
	}{
		{"Only 3 Liches left", "error", true},
		{"Only 9 Liches left", "", false},
		{"The Avatar of the Forgotten King has awoken", "success", true},
		{"A Cube God has appeared", "message", true},
		{"9 Liches and an Avatar", "success", true},
		{"hello world", "", false},
	}
	for _, tt := range tests {
		rule, ok := n.Match(tt.text)
		if ok != tt.match || rule.Level != tt.level {
			t.Errorf("Match(%q) = %q, %v, want %q, %v", tt.text, rule.Level, ok, tt.level, tt.match)
		}
	}
}

func TestNotifierEmitsNotification(t *testing.T) {
	bus := events.NewEventBus()
	got := make(chan events.NotificationPayload, 1)
	bus.Subscribe(events.EventNotification, "test", func(ctx context.Context, e events.Event) error {
		got <- e.Payload.(events.NotificationPayload)
		return nil
	})

	r := hooks.NewRegistry()
	hooks.NewHost(r).Load(NewNotifier(config.DefaultNotifierRules(), bus))

	r.Dispatch(protocol.PktText, &protocol.TextPacket{Text: "The Sphinx is here"}, newClient("a@b.com"))

	select {
	case p := <-got:
		if p.Level != events.LevelSuccess {
			t.Errorf("Level = %q, want success", p.Level)
		}
		if want := "USEast :: The Sphinx is here"; p.Message != want {
			t.Errorf("Message = %q, want %q", p.Message, want)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no notification emitted")
	}
}

func TestWalkerRotatesPerClient(t *testing.T) {
	w := NewWalker([]config.Waypoint{{X: 1, Y: 1}, {X: 2, Y: 2}})
	r := hooks.NewRegistry()
	w.Register(r)

	a := newClient("a@b.com")
	b := newClient("c@d.com")
	mapInfo := &protocol.MapInfoPacket{}

	r.Dispatch(protocol.PktMapInfo, mapInfo, a)
	if a.NextPos == nil || a.NextPos.X != 1 {
		t.Fatalf("a.NextPos = %v, want (1,1)", a.NextPos)
	}

	// A pending target is left alone.
	r.Dispatch(protocol.PktMapInfo, mapInfo, a)
	if a.NextPos.X != 1 {
		t.Errorf("a.NextPos.X = %v, want 1", a.NextPos.X)
	}

	a.NextPos = nil
	r.Dispatch(protocol.PktMapInfo, mapInfo, a)
	if a.NextPos.X != 2 {
		t.Errorf("a.NextPos.X = %v, want 2", a.NextPos.X)
	}

	a.NextPos = nil
	r.Dispatch(protocol.PktMapInfo, mapInfo, a)
	if a.NextPos.X != 1 {
		t.Errorf("a.NextPos.X after wrap = %v, want 1", a.NextPos.X)
	}

	r.Dispatch(protocol.PktMapInfo, mapInfo, b)
	if b.NextPos == nil || b.NextPos.X != 1 {
		t.Errorf("b.NextPos = %v, want (1,1)", b.NextPos)
	}
}

func TestWalkerEmptyPath(t *testing.T) {
	w := NewWalker(nil)
	c := newClient("a@b.com")
	if err := w.onMapInfo(c, &protocol.MapInfoPacket{}); err != nil {
		t.Fatal(err)
	}
	if c.NextPos != nil {
		t.Errorf("NextPos = %v, want nil", c.NextPos)
	}
}

func TestTap(t *testing.T) {
	if _, err := NewTap([]string{"TEXT", "NOPE"}, nil); err == nil {
		t.Error("unknown type should fail")
	}

	bus := events.NewEventBus()
	got := make(chan events.PacketPayload, 1)
	bus.Subscribe(events.EventPacketTapped, "test", func(ctx context.Context, e events.Event) error {
		got <- e.Payload.(events.PacketPayload)
		return nil
	})

	tap, err := NewTap([]string{"text"}, bus)
	if err != nil {
		t.Fatal(err)
	}
	r := hooks.NewRegistry()
	tap.Register(r)
	if n := r.HandlerCount(protocol.PktText); n != 1 {
		t.Fatalf("HandlerCount(TEXT) = %d, want 1", n)
	}

	r.Dispatch(protocol.PktText, &protocol.TextPacket{Text: "hi"}, newClient("someone@example.com"))
	select {
	case p := <-got:
		if p.Type != "TEXT" || p.GUID != "s***@e***.com" {
			t.Errorf("payload = %+v", p)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("no packet tapped")
	}
}

func TestFromConfig(t *testing.T) {
	cfg := config.DefaultConfig().Extensions
	cfg.Waypoints.Enabled = true
	cfg.PacketTap.Enabled = true

	exts, err := FromConfig(cfg, events.NewEventBus())
	if err != nil {
		t.Fatal(err)
	}
	want := []string{notifierName, walkerName, tapName}
	if len(exts) != len(want) {
		t.Fatalf("extensions = %d, want %d", len(exts), len(want))
	}
	for i, name := range want {
		if got := exts[i].Info().Name; got != name {
			t.Errorf("exts[%d] = %q, want %q", i, got, name)
		}
	}
}
