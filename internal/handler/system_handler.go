package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/internal/services/calls"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	redispkg "github.com/dialworks/outbound-call-service/pkg/redis"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// MediaStatus reports whether the media server is reachable.
type MediaStatus interface {
	Connected(ctx context.Context) bool
}

// SystemHandler serves dashboard statistics, maintenance operations, agent
// liveness, and health checks.
type SystemHandler struct {
	repos      repository.RepositoryManager
	reconciler *calls.Reconciler
	media      MediaStatus
	redis      redispkg.RedisServiceInterface
}

// NewSystemHandler creates a new system handler. redis may be nil when the
// service runs without a cache.
func NewSystemHandler(repos repository.RepositoryManager, reconciler *calls.Reconciler, media MediaStatus, redis redispkg.RedisServiceInterface) *SystemHandler {
	return &SystemHandler{
		repos:      repos,
		reconciler: reconciler,
		media:      media,
		redis:      redis,
	}
}

// CleanupStaleCalls force-completes calls that have been active past the
// stale threshold.
func (h *SystemHandler) CleanupStaleCalls(w http.ResponseWriter, r *http.Request) {
	cleaned, err := h.reconciler.Sweep(r.Context())
	if err != nil {
		logger.L().Error("Stale call cleanup failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to cleanup stale calls",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"message":      "Stale calls cleaned up",
		"cleanedCalls": cleaned,
	})
}

// GetOverviewStats returns aggregate call statistics for the dashboard.
// Long-stuck calls are reconciled first so the dashboard never shows
// phantom active calls.
func (h *SystemHandler) GetOverviewStats(w http.ResponseWriter, r *http.Request) {
	if _, err := h.reconciler.SweepDashboard(r.Context()); err != nil {
		logger.L().Warn("Dashboard stale sweep failed", zap.Error(err))
	}

	recent, err := h.repos.Calls().FindRecent(r.Context(), 50)
	if err != nil {
		logger.L().Error("Failed to load recent calls", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, map[string]interface{}{
			"error": "Failed to load call statistics",
		})
		return
	}

	var completed, failed int
	distribution := make(map[string]int)
	for _, c := range recent {
		distribution[string(c.Status)]++
		switch c.Status {
		case domain.CallStatusCompleted:
			completed++
		case domain.CallStatusFailed, domain.CallStatusNoAnswer, domain.CallStatusHungUp:
			failed++
		}
	}

	total := len(recent)
	successRate := 0.0
	if total > 0 {
		successRate = float64(completed) / float64(total) * 100
	}

	recentCalls := make([]map[string]interface{}, 0, len(recent))
	for _, c := range recent {
		entry := map[string]interface{}{
			"id":            c.ID,
			"campaignId":    c.CampaignID,
			"leadId":        c.LeadID,
			"status":        c.Status,
			"duration":      c.Duration,
			"callStartTime": c.CallStartTime,
		}
		if c.CallEndTime != nil {
			entry["callEndTime"] = c.CallEndTime
		}
		recentCalls = append(recentCalls, entry)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"totalCalls":         total,
		"completedCalls":     completed,
		"failedCalls":        failed,
		"successRate":        successRate,
		"statusDistribution": distribution,
		"recentCalls":        recentCalls,
	})
}

// GetAgentStatus reports whether the AI agent pipeline looks healthy. The
// media server must be reachable and the cached heartbeat, when present,
// is surfaced alongside recent call activity.
func (h *SystemHandler) GetAgentStatus(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	connected := h.media.Connected(ctx)

	recentCalls, err := h.repos.Calls().CountCreatedSince(ctx, time.Now().Add(-5*time.Minute))
	if err != nil {
		logger.L().Warn("Failed to count recent calls", zap.Error(err))
		recentCalls = 0
	}

	heartbeat := ""
	if h.redis != nil {
		key := h.redis.GenerateKey(redispkg.AGENT_HEARTBEAT, "outbound")
		if v, err := h.redis.GetValue(ctx, key); err == nil {
			heartbeat = v
		}
	}

	status := "offline"
	if connected {
		status = "online"
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":         status,
		"mediaConnected": connected,
		"recentCalls":    recentCalls,
		"lastHeartbeat":  heartbeat,
		"checkedAt":      time.Now().UTC().Format(time.RFC3339),
	})
}

// HealthCheck verifies database connectivity.
func (h *SystemHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := h.repos.Ping(r.Context()); err != nil {
		logger.L().Error("Health check failed", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]interface{}{
			"status": "unhealthy",
			"error":  "database unreachable",
		})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	})
}

// SetupSystemRoutes registers maintenance and dashboard routes.
func (h *SystemHandler) SetupSystemRoutes(router *mux.Router) {
	router.HandleFunc("/maintenance/stale-calls", h.CleanupStaleCalls).Methods("POST")
	router.HandleFunc("/stats/overview", h.GetOverviewStats).Methods("GET")
	router.HandleFunc("/agent/status", h.GetAgentStatus).Methods("GET")
}
