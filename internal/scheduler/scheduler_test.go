package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
)

func TestNextRunAt(t *testing.T) {
	base := time.Date(2024, 5, 10, 3, 30, 0, 0, time.UTC)

	tests := []struct {
		at   string
		now  time.Time
		want time.Time
	}{
		{"04:00", base, time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC)},
		{"03:00", base, time.Date(2024, 5, 11, 3, 0, 0, 0, time.UTC)},
		{"03:30", base, time.Date(2024, 5, 11, 3, 30, 0, 0, time.UTC)},
		{"garbage", base, time.Date(2024, 5, 10, 4, 0, 0, 0, time.UTC)},
	}

	for _, tt := range tests {
		if got := nextRunAt(tt.at, tt.now); !got.Equal(tt.want) {
			t.Errorf("nextRunAt(%q) = %v, want %v", tt.at, got, tt.want)
		}
	}
}

func TestFormatStateCounts(t *testing.T) {
	got := FormatStateCounts(map[client.State]int{
		client.StateInGame:       2,
		client.StateDisconnected: 1,
	})
	if want := "in_game=2 disconnected=1"; got != want {
		t.Errorf("FormatStateCounts = %q, want %q", got, want)
	}
	if got := FormatStateCounts(nil); got != "none" {
		t.Errorf("FormatStateCounts(nil) = %q, want none", got)
	}
}

type fakePruner struct {
	retention time.Duration
	err       error
}

func (p *fakePruner) Prune(retention time.Duration) (int64, error) {
	p.retention = retention
	return 3, p.err
}

func TestPruneUsesRetention(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Database.RetentionDays = 7
	p := &fakePruner{}

	s := NewScheduler(cfg, p, nil)
	s.prune()
	if p.retention != 7*24*time.Hour {
		t.Errorf("retention = %v, want 168h", p.retention)
	}

	p.err = errors.New("disk full")
	s.prune() // logged, not fatal

	cfg.Database.RetentionDays = 0
	p.retention = 0
	s.prune()
	if p.retention != 0 {
		t.Error("retention 0 should disable pruning")
	}
}
