// Package scheduler implements background tasks: daily pruning of the
// session journal and periodic session statistics.
package scheduler

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/nrelay-go/nrelay/internal/client"
	"github.com/nrelay-go/nrelay/internal/config"
)

// Pruner deletes journal entries older than a retention period.
type Pruner interface {
	Prune(retention time.Duration) (int64, error)
}

// StateCounter reports how many sessions are in each state.
type StateCounter interface {
	CountByState() map[client.State]int
}

// Scheduler manages periodic background tasks.
type Scheduler struct {
	cfg      *config.Config
	pruner   Pruner
	sessions StateCounter
	now      func() time.Time
}

// NewScheduler creates a new task scheduler. pruner may be nil when the
// journal is disabled.
func NewScheduler(cfg *config.Config, pruner Pruner, sessions StateCounter) *Scheduler {
	return &Scheduler{
		cfg:      cfg,
		pruner:   pruner,
		sessions: sessions,
		now:      time.Now,
	}
}

// Start begins running all scheduled tasks.
func (s *Scheduler) Start(ctx context.Context) {
	log.Info().Msg("scheduler started")

	if s.pruner != nil {
		go s.runPruneLoop(ctx)
	}
	if s.sessions != nil {
		go s.runStatsLoop(ctx)
	}

	<-ctx.Done()
	log.Info().Msg("scheduler stopped")
}

func (s *Scheduler) runPruneLoop(ctx context.Context) {
	for {
		nextRun := nextRunAt(s.cfg.GetDatabase().PruneTime, s.now())
		sleepDuration := nextRun.Sub(s.now())
		if sleepDuration <= 0 {
			sleepDuration = 24 * time.Hour
		}

		log.Debug().
			Time("next_run", nextRun).
			Dur("sleep", sleepDuration).
			Msg("journal prune scheduled")

		select {
		case <-ctx.Done():
			return
		case <-time.After(sleepDuration):
			s.prune()
		}
	}
}

func (s *Scheduler) prune() {
	days := s.cfg.GetDatabase().RetentionDays
	if days < 1 {
		return
	}
	n, err := s.pruner.Prune(time.Duration(days) * 24 * time.Hour)
	if err != nil {
		log.Warn().Err(err).Msg("journal prune failed")
		return
	}
	log.Info().Int64("deleted", n).Int("retention_days", days).Msg("journal prune completed")
}

func (s *Scheduler) runStatsLoop(ctx context.Context) {
	interval := time.Duration(s.cfg.GetClient().StatsIntervalSec) * time.Second
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			log.Info().Str("sessions", FormatStateCounts(s.sessions.CountByState())).Msg("session stats")
		}
	}
}

// FormatStateCounts renders counts in state order, e.g.
// "in_game=2 disconnected=1". States with no sessions are omitted.
func FormatStateCounts(counts map[client.State]int) string {
	var parts []string
	for st := client.StateInGame; st >= client.StateDisconnected; st-- {
		if n := counts[st]; n > 0 {
			parts = append(parts, fmt.Sprintf("%s=%d", st, n))
		}
	}
	if len(parts) == 0 {
		return "none"
	}
	return strings.Join(parts, " ")
}

// nextRunAt returns the next occurrence of the HH:MM time of day after now.
func nextRunAt(timeOfDay string, now time.Time) time.Time {
	parts := strings.Split(timeOfDay, ":")

	hour, minute := 4, 0 // Default: 4:00 AM
	if len(parts) >= 2 {
		fmt.Sscanf(parts[0], "%d", &hour)
		fmt.Sscanf(parts[1], "%d", &minute)
	}

	next := time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, now.Location())
	if !next.After(now) {
		next = next.Add(24 * time.Hour)
	}
	return next
}
