package calls

import (
	"context"
	"time"

	"github.com/dialworks/outbound-call-service/internal/config"
	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	"go.uber.org/zap"
)

// Reconciler recovers calls whose monitoring loop was lost (process restart,
// crashed worker). It force-completes active calls older than a staleness
// threshold and cleans up their orphaned rooms. It is the only component that
// may terminate a call without going through the classifier.
type Reconciler struct {
	calls  repository.CallRepository
	leads  repository.LeadRepository
	rooms  RoomService
	timing config.TimingConfig
}

// NewReconciler creates a stale call reconciler.
func NewReconciler(calls repository.CallRepository, leads repository.LeadRepository, rooms RoomService, timing config.TimingConfig) *Reconciler {
	return &Reconciler{calls: calls, leads: leads, rooms: rooms, timing: timing}
}

// Sweep force-completes calls stuck in an active state beyond the standard
// staleness threshold and returns how many it completed.
func (r *Reconciler) Sweep(ctx context.Context) (int, error) {
	return r.SweepOlderThan(ctx, r.timing.StaleThreshold)
}

// SweepDashboard runs the longer-threshold sweep used by the dashboard stats
// path.
func (r *Reconciler) SweepDashboard(ctx context.Context) (int, error) {
	return r.SweepOlderThan(ctx, r.timing.DashboardStale)
}

// SweepOlderThan force-completes active calls that started more than
// threshold ago. Safe to run concurrently with live monitoring loops: each
// termination is a conditional update, so a call the orchestrator finishes
// first is left untouched. Running it twice in a row is a no-op the second
// time.
func (r *Reconciler) SweepOlderThan(ctx context.Context, threshold time.Duration) (int, error) {
	cutoff := time.Now().Add(-threshold)
	stale, err := r.calls.FindStale(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if len(stale) == 0 {
		return 0, nil
	}

	logger.Base().Info("Auto-completing stale calls", zap.Int("count", len(stale)))

	completed := 0
	for _, call := range stale {
		// Best effort: a room that is already gone or undeletable must not
		// block the sweep.
		if err := r.rooms.DeleteRoom(ctx, call.RoomName); err != nil {
			logger.Base().Warn("Failed to clean up room for stale call",
				zap.String("call_id", call.ID),
				zap.String("room_name", call.RoomName),
				zap.Error(err))
		}

		now := time.Now()
		duration := int(now.Sub(call.CallStartTime).Seconds())
		results := domain.CallResults{
			Outcome:          "auto_completed",
			Summary:          "Call automatically marked as completed due to inactivity",
			AutoCompleted:    true,
			CompletionReason: "stale_call_cleanup",
		}

		ok, err := r.calls.FinalizeIfActive(ctx, call.ID, domain.CallStatusCompleted, now, duration, results)
		if err != nil {
			logger.Base().Error("Failed to auto-complete stale call",
				zap.String("call_id", call.ID),
				zap.Error(err))
			continue
		}
		if !ok {
			// Already made terminal by its orchestrator in the meantime.
			continue
		}

		if err := r.leads.UpdateStatus(ctx, call.LeadID, domain.LeadStatusCompleted, ""); err != nil {
			logger.Base().Error("Failed to update lead for stale call",
				zap.String("call_id", call.ID),
				zap.String("lead_id", call.LeadID),
				zap.Error(err))
		}
		completed++
	}

	return completed, nil
}

// StartSweepLoop runs the standard sweep on a fixed interval until ctx is
// cancelled.
func (r *Reconciler) StartSweepLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	logger.Base().Info("Started stale call sweep loop", zap.Duration("interval", interval))

	for {
		select {
		case <-ctx.Done():
			logger.Base().Info("Stale call sweep loop stopped")
			return
		case <-ticker.C:
			if n, err := r.Sweep(ctx); err != nil {
				logger.Base().Error("Stale call sweep failed", zap.Error(err))
			} else if n > 0 {
				logger.Base().Info("Stale call sweep completed calls", zap.Int("count", n))
			}
		}
	}
}
