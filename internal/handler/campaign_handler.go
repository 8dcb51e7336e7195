package handler

import (
	"context"
	"net/http"

	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/internal/services/calls"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// CampaignHandler triggers campaign execution.
type CampaignHandler struct {
	campaignRepo repository.CampaignRepository
	runner       *calls.Runner
}

// NewCampaignHandler creates a new campaign handler
func NewCampaignHandler(repos repository.RepositoryManager, runner *calls.Runner) *CampaignHandler {
	return &CampaignHandler{
		campaignRepo: repos.Campaigns(),
		runner:       runner,
	}
}

// StartCampaign kicks off sequential processing of the campaign's pending
// leads. Processing runs in the background; each lead's progress is visible
// through call and lead statuses.
func (h *CampaignHandler) StartCampaign(w http.ResponseWriter, r *http.Request) {
	campaignID := mux.Vars(r)["id"]

	campaign, err := h.campaignRepo.GetByID(r.Context(), campaignID)
	if err != nil {
		http.Error(w, "Failed to load campaign", http.StatusInternalServerError)
		return
	}
	if campaign == nil {
		http.Error(w, "Campaign not found", http.StatusNotFound)
		return
	}
	if campaign.Script == "" {
		http.Error(w, "Campaign script is required", http.StatusBadRequest)
		return
	}

	go func() {
		if err := h.runner.Run(context.Background(), campaignID); err != nil {
			logger.Base().Error("Campaign run failed",
				zap.String("campaign_id", campaignID),
				zap.Error(err))
		}
	}()

	writeJSON(w, http.StatusAccepted, map[string]interface{}{
		"success":     true,
		"campaign_id": campaignID,
	})
}

// SetupCampaignRoutes registers the campaign routes on the given router.
func (h *CampaignHandler) SetupCampaignRoutes(router *mux.Router) {
	router.HandleFunc("/campaigns/{id}/start", h.StartCampaign).Methods("POST")
}
