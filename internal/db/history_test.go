package db

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/nrelay-go/nrelay/internal/events"
)

func openHistory(t *testing.T) *HistoryDatabase {
	t.Helper()
	h, err := NewHistoryDatabase(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewHistoryDatabase: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func TestRecordAndRecent(t *testing.T) {
	h := openHistory(t)
	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	entries := []Entry{
		{At: base, GUID: "a***@b***.com", Server: "USEast", Kind: KindConnected},
		{At: base.Add(time.Second), GUID: "c***@d***.com", Server: "EUWest", Kind: KindConnected},
		{At: base.Add(2 * time.Second), GUID: "a***@b***.com", Server: "USEast", Kind: KindFailure, Detail: "4: Account in use"},
	}
	for _, e := range entries {
		if err := h.Record(e); err != nil {
			t.Fatalf("Record: %v", err)
		}
	}

	all, err := h.Recent("", 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("Recent = %d entries, want 3", len(all))
	}
	if all[0].Kind != KindFailure || all[0].Detail != "4: Account in use" {
		t.Errorf("newest = %+v, want the failure", all[0])
	}
	if !all[0].At.Equal(base.Add(2 * time.Second)) {
		t.Errorf("At = %v, want %v", all[0].At, base.Add(2*time.Second))
	}

	mine, err := h.Recent("a***@b***.com", 1)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(mine) != 1 || mine[0].Kind != KindFailure {
		t.Errorf("Recent(guid, 1) = %+v", mine)
	}

	counts, err := h.CountByKind("a***@b***.com")
	if err != nil {
		t.Fatalf("CountByKind: %v", err)
	}
	if counts[KindConnected] != 1 || counts[KindFailure] != 1 {
		t.Errorf("CountByKind = %v", counts)
	}
}

func TestPrune(t *testing.T) {
	h := openHistory(t)
	now := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	h.now = func() time.Time { return now }

	h.Record(Entry{At: now.Add(-48 * time.Hour), GUID: "g", Server: "s", Kind: KindConnected})
	h.Record(Entry{At: now.Add(-time.Hour), GUID: "g", Server: "s", Kind: KindConnected})

	n, err := h.Prune(24 * time.Hour)
	if err != nil {
		t.Fatalf("Prune: %v", err)
	}
	if n != 1 {
		t.Errorf("Prune removed %d rows, want 1", n)
	}
	left, _ := h.Recent("", 10)
	if len(left) != 1 {
		t.Errorf("remaining = %d, want 1", len(left))
	}
}

func TestAttachRecordsEvents(t *testing.T) {
	h := openHistory(t)
	bus := events.NewEventBus()
	h.Attach(bus)

	ctx := context.Background()
	session := events.SessionPayload{GUID: "a***@b***.com", Server: "USEast"}
	bus.EmitSync(ctx, events.Event{Type: events.EventConnected, Payload: session})
	bus.EmitSync(ctx, events.Event{Type: events.EventFailure, Payload: events.FailurePayload{
		SessionPayload: session, ErrorID: 4, Description: "Account in use",
	}})
	bus.EmitSync(ctx, events.Event{Type: events.EventCharacterCreated, Payload: events.CharacterPayload{
		SessionPayload: session, ObjectID: 7, CharID: 3,
	}})

	if err := bus.EmitSync(ctx, events.Event{Type: events.EventDisconnected, Payload: "bogus"}); err == nil {
		t.Error("unexpected payload should be reported")
	}

	entries, err := h.Recent(session.GUID, 10)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("entries = %+v, want 3", entries)
	}
	if entries[0].Kind != KindInGame || entries[0].Detail != "char 3" {
		t.Errorf("newest = %+v", entries[0])
	}
	if entries[1].Detail != "4: Account in use" {
		t.Errorf("failure detail = %q", entries[1].Detail)
	}
}

func TestAttachKeepsEmitOrder(t *testing.T) {
	h := openHistory(t)
	bus := events.NewEventBus()
	h.Attach(bus)

	ctx := context.Background()
	session := events.SessionPayload{GUID: "a***@b***.com", Server: "USEast"}
	const rounds = 50
	for i := 0; i < rounds; i++ {
		bus.Emit(ctx, events.Event{Type: events.EventFailure, Payload: events.FailurePayload{SessionPayload: session, ErrorID: 4}})
		bus.Emit(ctx, events.Event{Type: events.EventDisconnected, Payload: session})
		bus.Emit(ctx, events.Event{Type: events.EventReconnectScheduled, Payload: session})
	}
	bus.Stop()

	entries, err := h.Recent(session.GUID, rounds*3)
	if err != nil {
		t.Fatalf("Recent: %v", err)
	}
	if len(entries) != rounds*3 {
		t.Fatalf("entries = %d, want %d", len(entries), rounds*3)
	}

	// newest first
	want := []string{KindReconnect, KindDisconnected, KindFailure}
	for i, e := range entries {
		if e.Kind != want[i%3] {
			t.Fatalf("entries[%d].Kind = %q, want %q", i, e.Kind, want[i%3])
		}
	}
}
