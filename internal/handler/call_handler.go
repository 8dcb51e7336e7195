package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/internal/services/calls"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// TokenService mints LiveKit access tokens for call monitoring.
type TokenService interface {
	GenerateListenToken(roomName string) (token, identity string, err error)
	ServerURL() string
}

// CallHandler handles HTTP requests around individual calls: test calls,
// manual completion, hangup reports, agent results, and listen tokens.
type CallHandler struct {
	callRepo     repository.CallRepository
	leadRepo     repository.LeadRepository
	campaignRepo repository.CampaignRepository
	orchestrator *calls.Orchestrator
	tokens       TokenService
}

// NewCallHandler creates a new call handler
func NewCallHandler(repos repository.RepositoryManager, orchestrator *calls.Orchestrator, tokens TokenService) *CallHandler {
	return &CallHandler{
		callRepo:     repos.Calls(),
		leadRepo:     repos.Leads(),
		campaignRepo: repos.Campaigns(),
		orchestrator: orchestrator,
		tokens:       tokens,
	}
}

// TestCallRequest represents the request to place an ad hoc test call
type TestCallRequest struct {
	PhoneNumber string `json:"phone_number"`
	Script      string `json:"script"`
}

// TestCall places an ad hoc test call: it creates a throwaway campaign and
// lead, then runs the orchestrator asynchronously.
func (h *CallHandler) TestCall(w http.ResponseWriter, r *http.Request) {
	var req TestCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.PhoneNumber == "" {
		http.Error(w, "phone_number is required", http.StatusBadRequest)
		return
	}
	if req.Script == "" {
		http.Error(w, "script is required", http.StatusBadRequest)
		return
	}

	campaign := &domain.Campaign{
		Name:   fmt.Sprintf("Test Call %s", time.Now().Format(time.RFC3339)),
		Status: domain.CampaignStatusCompleted,
		Script: req.Script,
	}
	if err := h.campaignRepo.Create(r.Context(), campaign); err != nil {
		http.Error(w, "Failed to create test campaign", http.StatusInternalServerError)
		return
	}

	lead := &domain.Lead{
		CampaignID:  campaign.ID,
		PhoneNumber: req.PhoneNumber,
		Status:      domain.LeadStatusPending,
	}
	if err := h.leadRepo.Create(r.Context(), lead); err != nil {
		http.Error(w, "Failed to create test lead", http.StatusInternalServerError)
		return
	}

	// The monitoring loop outlives this request by up to the call timeout.
	go func() {
		if _, err := h.orchestrator.PlaceTestCall(context.Background(), lead, campaign); err != nil {
			logger.Base().Error("Test call failed",
				zap.String("lead_id", lead.ID),
				zap.Error(err))
		}
	}()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusAccepted)
	json.NewEncoder(w).Encode(map[string]interface{}{
		"success":     true,
		"campaign_id": campaign.ID,
		"lead_id":     lead.ID,
		"message":     fmt.Sprintf("Call initiated to %s", req.PhoneNumber),
	})
}

// CompleteCallRequest represents the request to manually complete a call
type CompleteCallRequest struct {
	Outcome string `json:"outcome"`
	Summary string `json:"summary"`
}

// CompleteCall marks a call as completed manually.
func (h *CallHandler) CompleteCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["id"]

	var req CompleteCallRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	call, err := h.callRepo.GetByID(r.Context(), callID)
	if err != nil {
		http.Error(w, "Failed to load call", http.StatusInternalServerError)
		return
	}
	if call == nil {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}
	if call.Status.IsTerminal() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Call was already completed",
		})
		return
	}

	outcome := req.Outcome
	if outcome == "" {
		outcome = "manually_completed"
	}
	summary := req.Summary
	if summary == "" {
		summary = "Call manually marked as completed"
	}

	now := time.Now()
	duration := int(now.Sub(call.CallStartTime).Seconds())
	ok, err := h.callRepo.FinalizeIfActive(r.Context(), callID, domain.CallStatusCompleted, now, duration, domain.CallResults{
		Outcome:          outcome,
		Summary:          summary,
		ManualCompletion: true,
	})
	if err != nil {
		http.Error(w, "Failed to mark call as completed", http.StatusInternalServerError)
		return
	}
	if ok {
		if err := h.leadRepo.UpdateStatus(r.Context(), call.LeadID, domain.LeadStatusCompleted, ""); err != nil {
			logger.Base().Error("Failed to update lead status",
				zap.String("lead_id", call.LeadID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":  true,
		"message":  "Call marked as completed successfully",
		"duration": duration,
	})
}

// HangupRequest is the hangup report from the media layer
type HangupRequest struct {
	HangupReason        string `json:"hangup_reason"`
	ParticipantIdentity string `json:"participant_identity"`
	CallDuration        int    `json:"call_duration"`
}

// Hangup records a hang-up detected by the media layer.
func (h *CallHandler) Hangup(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["id"]

	var req HangupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	call, err := h.callRepo.GetByID(r.Context(), callID)
	if err != nil {
		http.Error(w, "Failed to load call", http.StatusInternalServerError)
		return
	}
	if call == nil {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}
	if call.Status.IsTerminal() {
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"success": true,
			"message": "Call was already completed",
		})
		return
	}

	duration := req.CallDuration
	if duration == 0 {
		duration = int(time.Since(call.CallStartTime).Seconds())
	}

	// Who hung up: a participant that is neither the agent nor a listener is
	// the customer.
	isCustomerHangup := req.ParticipantIdentity != "" &&
		!strings.Contains(req.ParticipantIdentity, "agent") &&
		!strings.Contains(req.ParticipantIdentity, "listener")

	summary := "Call was disconnected"
	hungUpBy := "unknown"
	if isCustomerHangup {
		summary = "Customer hung up the call"
		hungUpBy = "customer"
	}
	hangupReason := req.HangupReason
	if hangupReason == "" {
		hangupReason = "participant_disconnected"
	}

	ok, err := h.callRepo.FinalizeIfActive(r.Context(), callID, domain.CallStatusHungUp, time.Now(), duration, domain.CallResults{
		Outcome:             string(domain.CallStatusHungUp),
		Summary:             summary,
		HangupReason:        hangupReason,
		HungUpBy:            hungUpBy,
		ParticipantIdentity: req.ParticipantIdentity,
	})
	if err != nil {
		http.Error(w, "Failed to handle call hangup", http.StatusInternalServerError)
		return
	}
	if ok {
		reason := "Call disconnected"
		if isCustomerHangup {
			reason = "Customer hung up"
		}
		if err := h.leadRepo.UpdateStatus(r.Context(), call.LeadID, domain.LeadStatusHungUp, reason); err != nil {
			logger.Base().Error("Failed to update lead status",
				zap.String("lead_id", call.LeadID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success":    true,
		"message":    "Call marked as hung up",
		"duration":   duration,
		"hung_up_by": hungUpBy,
	})
}

// SaveResultsRequest is the outcome reported by the agent runtime once its
// conversation ends (voicemail detection, summaries, etc).
type SaveResultsRequest struct {
	Status  domain.CallStatus `json:"status"`
	Outcome string            `json:"outcome"`
	Summary string            `json:"summary"`
}

// SaveResults persists the agent runtime's reported outcome for a call.
func (h *CallHandler) SaveResults(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["id"]

	var req SaveResultsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if !req.Status.IsTerminal() {
		http.Error(w, "status must be terminal", http.StatusBadRequest)
		return
	}

	call, err := h.callRepo.GetByID(r.Context(), callID)
	if err != nil {
		http.Error(w, "Failed to load call", http.StatusInternalServerError)
		return
	}
	if call == nil {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	now := time.Now()
	duration := int(now.Sub(call.CallStartTime).Seconds())
	stored := req.Status.StorageStatus()
	ok, err := h.callRepo.FinalizeIfActive(r.Context(), callID, stored, now, duration, domain.CallResults{
		Outcome: req.Outcome,
		Summary: req.Summary,
	})
	if err != nil {
		http.Error(w, "Failed to save call results", http.StatusInternalServerError)
		return
	}
	if ok {
		leadStatus, reason := calls.MapCallStatusToLead(req.Status)
		if err := h.leadRepo.UpdateStatus(r.Context(), call.LeadID, leadStatus, reason); err != nil {
			logger.Base().Error("Failed to update lead status",
				zap.String("lead_id", call.LeadID),
				zap.Error(err))
		}
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"success": true,
		"updated": ok,
	})
}

// ListenToken returns a subscribe-only token for monitoring a live call.
func (h *CallHandler) ListenToken(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["id"]

	call, err := h.callRepo.GetByID(r.Context(), callID)
	if err != nil {
		http.Error(w, "Failed to load call", http.StatusInternalServerError)
		return
	}
	if call == nil {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	token, identity, err := h.tokens.GenerateListenToken(call.RoomName)
	if err != nil {
		logger.Base().Error("Failed to create listen token",
			zap.String("call_id", callID),
			zap.Error(err))
		http.Error(w, "Failed to create listen token", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"token":       token,
		"identity":    identity,
		"room_name":   call.RoomName,
		"livekit_url": h.tokens.ServerURL(),
		"call": map[string]interface{}{
			"id":              call.ID,
			"lead_id":         call.LeadID,
			"campaign_id":     call.CampaignID,
			"status":          call.Status,
			"call_start_time": call.CallStartTime,
		},
	})
}

// GetCall returns a single call record.
func (h *CallHandler) GetCall(w http.ResponseWriter, r *http.Request) {
	callID := mux.Vars(r)["id"]

	call, err := h.callRepo.GetByID(r.Context(), callID)
	if err != nil {
		http.Error(w, "Failed to load call", http.StatusInternalServerError)
		return
	}
	if call == nil {
		http.Error(w, "Call not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, call)
}

func writeJSON(w http.ResponseWriter, status int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}

// SetupCallRoutes registers the call routes on the given router.
func (h *CallHandler) SetupCallRoutes(router *mux.Router) {
	router.HandleFunc("/calls/test", h.TestCall).Methods("POST")
	router.HandleFunc("/calls/{id}", h.GetCall).Methods("GET")
	router.HandleFunc("/calls/{id}/complete", h.CompleteCall).Methods("POST")
	router.HandleFunc("/calls/{id}/hangup", h.Hangup).Methods("POST")
	router.HandleFunc("/calls/{id}/results", h.SaveResults).Methods("POST")
	router.HandleFunc("/calls/{id}/listen-token", h.ListenToken).Methods("GET")
}
