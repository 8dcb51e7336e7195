package calls

import (
	"context"
	"fmt"

	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Runner processes a campaign's pending leads, one call at a time. Sequential
// dialing bounds concurrent carrier usage; the limiter spaces dials out on
// top of that. A failure on one lead never aborts the rest of the campaign.
type Runner struct {
	campaigns    repository.CampaignRepository
	leads        repository.LeadRepository
	orchestrator *Orchestrator
	limiter      *rate.Limiter
}

// NewRunner creates a campaign runner. dialRate caps how many dials may start
// per second; zero or rate.Inf disables pacing.
func NewRunner(campaigns repository.CampaignRepository, leads repository.LeadRepository, orchestrator *Orchestrator, dialRate rate.Limit) *Runner {
	limiter := rate.NewLimiter(rate.Inf, 1)
	if dialRate > 0 && dialRate != rate.Inf {
		limiter = rate.NewLimiter(dialRate, 1)
	}
	return &Runner{
		campaigns:    campaigns,
		leads:        leads,
		orchestrator: orchestrator,
		limiter:      limiter,
	}
}

// Run marks the campaign active and dials every pending lead sequentially.
// Each lead's final status comes from the orchestrator's terminal status.
func (r *Runner) Run(ctx context.Context, campaignID string) error {
	campaign, err := r.campaigns.GetByID(ctx, campaignID)
	if err != nil {
		return err
	}
	if campaign == nil {
		return fmt.Errorf("campaign %s not found", campaignID)
	}
	if campaign.Script == "" {
		return fmt.Errorf("campaign %s has no script", campaignID)
	}

	pending, err := r.leads.FindPendingByCampaign(ctx, campaignID)
	if err != nil {
		return err
	}

	if err := r.campaigns.UpdateStatus(ctx, campaignID, domain.CampaignStatusActive); err != nil {
		return err
	}

	logger.Base().Info("Starting campaign",
		zap.String("campaign_id", campaignID),
		zap.Int("pending_leads", len(pending)))

	for _, lead := range pending {
		if err := r.limiter.Wait(ctx); err != nil {
			return err
		}

		status, err := r.orchestrator.PlaceCall(ctx, lead, campaign)
		if err != nil {
			// Unexpected failure (e.g. persistence unreachable) for this
			// lead only; record it and keep going.
			logger.Base().Error("Error processing lead",
				zap.String("campaign_id", campaignID),
				zap.String("lead_id", lead.ID),
				zap.Error(err))
			if uerr := r.leads.UpdateStatus(ctx, lead.ID, domain.LeadStatusFailed, err.Error()); uerr != nil {
				logger.Base().Error("Failed to mark lead failed",
					zap.String("lead_id", lead.ID),
					zap.Error(uerr))
			}
			continue
		}

		logger.Base().Info("Lead processed",
			zap.String("campaign_id", campaignID),
			zap.String("lead_id", lead.ID),
			zap.String("status", string(status)))
	}

	return nil
}
