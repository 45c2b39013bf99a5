package db

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/events"
)

// Entry kinds recorded in the journal.
const (
	KindConnected    = "connected"
	KindDisconnected = "disconnected"
	KindFailure      = "failure"
	KindInGame       = "in_game"
	KindReconnect    = "reconnect_scheduled"
)

// Entry is one journal row.
type Entry struct {
	ID     int64     `json:"id"`
	At     time.Time `json:"at"`
	GUID   string    `json:"guid"`
	Server string    `json:"server"`
	Kind   string    `json:"kind"`
	Detail string    `json:"detail,omitempty"`
}

// historySchema lists the journal migrations in order. Append only.
var historySchema = []string{
	`CREATE TABLE IF NOT EXISTS session_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at_ms INTEGER NOT NULL,
		guid TEXT NOT NULL,
		server TEXT NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_session_events_at ON session_events(at_ms);`,

	`CREATE INDEX IF NOT EXISTS idx_session_events_guid_at ON session_events(guid, at_ms);`,
}

// HistoryDatabase journals session lifecycle events. GUIDs are stored in
// censored form only.
type HistoryDatabase struct {
	db  *store
	now func() time.Time
}

// NewHistoryDatabase opens the journal at dbPath and migrates it.
func NewHistoryDatabase(dbPath string) (*HistoryDatabase, error) {
	st, err := openStore(dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := st.migrate(historySchema); err != nil {
		st.close()
		return nil, fmt.Errorf("failed to migrate history database: %w", err)
	}
	return &HistoryDatabase{db: st, now: time.Now}, nil
}

// Close closes the underlying database.
func (h *HistoryDatabase) Close() error {
	return h.db.close()
}

// Record appends an entry. A zero At is replaced with the current time.
func (h *HistoryDatabase) Record(e Entry) error {
	if e.At.IsZero() {
		e.At = h.now()
	}
	_, err := h.db.exec(
		"INSERT INTO session_events (at_ms, guid, server, kind, detail) VALUES (?, ?, ?, ?, ?)",
		e.At.UnixMilli(), e.GUID, e.Server, e.Kind, e.Detail,
	)
	if err != nil {
		return fmt.Errorf("failed to record %s for %s: %w", e.Kind, e.GUID, err)
	}
	return nil
}

// Recent returns up to limit entries, newest first by emit time. An empty guid returns
// entries of every session.
func (h *HistoryDatabase) Recent(guid string, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 50
	}

	query := "SELECT id, at_ms, guid, server, kind, detail FROM session_events"
	args := []interface{}{}
	if guid != "" {
		query += " WHERE guid = ?"
		args = append(args, guid)
	}
	query += " ORDER BY at_ms DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := h.db.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var atMs int64
		if err := rows.Scan(&e.ID, &atMs, &e.GUID, &e.Server, &e.Kind, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan history row: %w", err)
		}
		e.At = time.UnixMilli(atMs)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// CountByKind returns how many entries of each kind exist for guid.
func (h *HistoryDatabase) CountByKind(guid string) (map[string]int, error) {
	rows, err := h.db.query("SELECT kind, COUNT(*) FROM session_events WHERE guid = ? GROUP BY kind", guid)
	if err != nil {
		return nil, fmt.Errorf("failed to count history: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var n int
		if err := rows.Scan(&kind, &n); err != nil {
			return nil, err
		}
		counts[kind] = n
	}
	return counts, rows.Err()
}

// Prune deletes entries older than the retention period.
func (h *HistoryDatabase) Prune(retention time.Duration) (int64, error) {
	cutoff := h.now().Add(-retention).UnixMilli()
	res, err := h.db.exec("DELETE FROM session_events WHERE at_ms < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	n, _ := res.RowsAffected()
	if n > 0 {
		log.Info().Int64("rows", n).Msg("pruned session history")
	}
	return n, nil
}

// Attach subscribes the journal to client lifecycle events on bus.
func (h *HistoryDatabase) Attach(bus *events.EventBus) {
	record := func(kind string) events.HandlerFunc {
		return func(ctx context.Context, ev events.Event) error {
			entry, ok := entryFromEvent(kind, ev)
			if !ok {
				return fmt.Errorf("unexpected payload %T for %s", ev.Payload, ev.Type)
			}
			return h.Record(entry)
		}
	}

	bus.Subscribe(events.EventConnected, "history", record(KindConnected))
	bus.Subscribe(events.EventDisconnected, "history", record(KindDisconnected))
	bus.Subscribe(events.EventFailure, "history", record(KindFailure))
	bus.Subscribe(events.EventCharacterCreated, "history", record(KindInGame))
	bus.Subscribe(events.EventReconnectScheduled, "history", record(KindReconnect))
}

func entryFromEvent(kind string, ev events.Event) (Entry, bool) {
	switch p := ev.Payload.(type) {
	case events.SessionPayload:
		return Entry{At: ev.At, GUID: p.GUID, Server: p.Server, Kind: kind, Detail: p.Reason}, true
	case events.FailurePayload:
		return Entry{
			At:     ev.At,
			GUID:   p.GUID,
			Server: p.Server,
			Kind:   kind,
			Detail: strconv.Itoa(int(p.ErrorID)) + ": " + p.Description,
		}, true
	case events.CharacterPayload:
		return Entry{
			At:     ev.At,
			GUID:   p.GUID,
			Server: p.Server,
			Kind:   kind,
			Detail: "char " + strconv.Itoa(int(p.CharID)),
		}, true
	}
	return Entry{}, false
}
