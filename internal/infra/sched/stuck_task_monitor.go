package sched

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"jobsee-orchestrator/internal/domain"
	"jobsee-orchestrator/internal/domain/ports/adapter"
	"jobsee-orchestrator/internal/domain/ports/repository"
	"jobsee-orchestrator/internal/infra/metrics"
)

const (
	stuckLockKey        = "lock:stuck-task-monitor"
	stuckReportedPrefix = "stuck-task:reported:"
	stuckReportedTTL    = 24 * time.Hour
	stuckScanSize       = 200
)

// StuckTaskMonitor reports tasks that stayed in processing longer than
// stuckAfter. It never changes task state. With a marker, the set of
// reported tasks is shared so a replica taking over the lock does not alert
// again; without one it is kept per process.
type StuckTaskMonitor struct {
	tasks      repository.TaskRepository
	locker     adapter.Locker     // optional
	marker     adapter.OnceMarker // optional
	alerter    adapter.Alerter    // optional
	interval   time.Duration
	stuckAfter time.Duration
	log        *zerolog.Logger
	now        func() time.Time

	mu       sync.Mutex
	reported map[string]struct{}
}

func NewStuckTaskMonitor(tasks repository.TaskRepository, locker adapter.Locker, marker adapter.OnceMarker, alerter adapter.Alerter, interval, stuckAfter time.Duration, logger *zerolog.Logger) *StuckTaskMonitor {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if stuckAfter <= 0 {
		stuckAfter = time.Hour
	}
	l := logger.With().Str("component", "StuckTaskMonitor").Logger()
	return &StuckTaskMonitor{
		tasks:      tasks,
		locker:     locker,
		marker:     marker,
		alerter:    alerter,
		interval:   interval,
		stuckAfter: stuckAfter,
		log:        &l,
		now:        time.Now,
		reported:   map[string]struct{}{},
	}
}

// firstReport must be called with mu held.
func (m *StuckTaskMonitor) firstReport(ctx context.Context, taskID string) bool {
	if m.marker != nil {
		first, err := m.marker.MarkOnce(ctx, stuckReportedPrefix+taskID, stuckReportedTTL)
		if err == nil {
			return first
		}
		m.log.Warn().Err(err).Str("task_id", taskID).Msg("shared report set unavailable, using local one")
	}
	_, seen := m.reported[taskID]
	return !seen
}

func (m *StuckTaskMonitor) Run(ctx context.Context) error {
	m.log.Info().Dur("interval", m.interval).Dur("stuck_after", m.stuckAfter).Msg("Starting stuck task monitor")
	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.log.Info().Msg("Stopping stuck task monitor")
			return ctx.Err()
		case <-ticker.C:
			if _, err := m.Scan(ctx); err != nil {
				m.log.Error().Err(err).Msg("stuck task scan failed")
			}
		}
	}
}

// Scan lists stuck tasks once and reports the ones not seen before. When a
// locker is set, only the replica holding the lock scans; the others return
// zero without error.
func (m *StuckTaskMonitor) Scan(ctx context.Context) (int, error) {
	if m.locker != nil {
		token, err := m.locker.TryLock(ctx, stuckLockKey, m.interval/2)
		if errors.Is(err, domain.ErrLockNotAcquired) {
			m.log.Debug().Msg("another replica is scanning")
			return 0, nil
		}
		if err != nil {
			return 0, fmt.Errorf("acquire scan lock: %w", err)
		}
		defer func() {
			if err := m.locker.Unlock(context.WithoutCancel(ctx), stuckLockKey, token); err != nil {
				m.log.Debug().Err(err).Msg("scan lock release failed")
			}
		}()
	}

	cutoff := m.now().Add(-m.stuckAfter)
	stuck, err := m.tasks.ListProcessingOlderThan(ctx, repository.NoTX, cutoff, stuckScanSize)
	if err != nil {
		return 0, err
	}
	metrics.SetStuckTasks(len(stuck))

	current := make(map[string]struct{}, len(stuck))
	var fresh []string
	m.mu.Lock()
	for _, t := range stuck {
		current[t.ID] = struct{}{}
		if m.firstReport(ctx, t.ID) {
			since := "unknown"
			if t.StartedAt != nil {
				since = m.now().Sub(*t.StartedAt).Round(time.Second).String()
			}
			fresh = append(fresh, fmt.Sprintf("%s user=%s worker=%s for %s", t.ID, t.UserID, t.WorkerID, since))
			m.log.Warn().Str("task_id", t.ID).Str("user_id", t.UserID).Str("worker_id", t.WorkerID).Str("processing_for", since).Msg("task stuck in processing")
		}
	}
	m.reported = current
	m.mu.Unlock()

	if len(fresh) > 0 && m.alerter != nil {
		text := fmt.Sprintf("%d task(s) in processing longer than %s:\n%s", len(fresh), m.stuckAfter, strings.Join(fresh, "\n"))
		if err := m.alerter.Alert(ctx, "stuck tasks", text); err != nil {
			m.log.Warn().Err(err).Msg("stuck task alert not delivered")
		}
	}
	return len(stuck), nil
}
