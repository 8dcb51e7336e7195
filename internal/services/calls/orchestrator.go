package calls

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/dialworks/outbound-call-service/internal/config"
	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/dialworks/outbound-call-service/internal/repository"
	"github.com/dialworks/outbound-call-service/pkg/logger"
	redispkg "github.com/dialworks/outbound-call-service/pkg/redis"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// roomMetadata is attached to the media room so the agent runtime knows which
// campaign and script it is serving.
type roomMetadata struct {
	CampaignID string `json:"campaignId"`
	LeadID     string `json:"leadId"`
	Script     string `json:"script"`
}

// Orchestrator drives one call end to end: it creates the call record and the
// media room, asks the carrier to dial, monitors room presence until the call
// classifies terminal, and persists the outcome. Every failure path resolves
// to a terminal status on the record; PlaceCall only returns an error for
// unexpected conditions such as unreachable persistence.
type Orchestrator struct {
	calls  repository.CallRepository
	leads  repository.LeadRepository
	rooms  RoomService
	dialer Dialer
	poller *Poller
	timing config.TimingConfig
	events EventPublisher // optional

	// testDialer, when set, handles ad hoc test calls (direct carrier dial
	// instead of the SIP trunk).
	testDialer Dialer
}

// NewOrchestrator creates a call orchestrator.
func NewOrchestrator(calls repository.CallRepository, leads repository.LeadRepository, rooms RoomService, dialer Dialer, timing config.TimingConfig, events EventPublisher) *Orchestrator {
	return &Orchestrator{
		calls:  calls,
		leads:  leads,
		rooms:  rooms,
		dialer: dialer,
		poller: NewPoller(rooms),
		timing: timing,
		events: events,
	}
}

// SetTestDialer installs the dialer used for ad hoc test calls.
func (o *Orchestrator) SetTestDialer(d Dialer) {
	o.testDialer = d
}

// PlaceCall dials a campaign lead and monitors the call to a terminal status.
func (o *Orchestrator) PlaceCall(ctx context.Context, lead *domain.Lead, campaign *domain.Campaign) (domain.CallStatus, error) {
	return o.placeCall(ctx, lead, campaign, o.dialer, func(callID string) string {
		return domain.CampaignRoomName(campaign.ID, lead.ID)
	})
}

// PlaceTestCall dials an ad hoc test lead, preferring the direct carrier
// dialer when one is configured.
func (o *Orchestrator) PlaceTestCall(ctx context.Context, lead *domain.Lead, campaign *domain.Campaign) (domain.CallStatus, error) {
	dialer := o.testDialer
	if dialer == nil {
		dialer = o.dialer
	}
	return o.placeCall(ctx, lead, campaign, dialer, domain.TestRoomName)
}

func (o *Orchestrator) placeCall(ctx context.Context, lead *domain.Lead, campaign *domain.Campaign, dialer Dialer, roomNameFor func(callID string) string) (domain.CallStatus, error) {
	callID := uuid.New().String()
	call := &domain.Call{
		ID:            callID,
		LeadID:        lead.ID,
		CampaignID:    campaign.ID,
		Status:        domain.CallStatusWaitingAgent,
		RoomName:      roomNameFor(callID),
		AgentIdentity: domain.AgentIdentityFor(callID),
		CallStartTime: time.Now(),
	}

	if err := o.calls.Create(ctx, call); err != nil {
		return "", fmt.Errorf("failed to create call record: %w", err)
	}
	o.updateLead(ctx, lead.ID, domain.CallStatusWaitingAgent)
	o.publish(ctx, call, domain.CallStatusWaitingAgent)

	logger.Base().Info("Placing call",
		zap.String("call_id", call.ID),
		zap.String("campaign_id", campaign.ID),
		zap.String("lead_id", lead.ID),
		zap.String("room_name", call.RoomName),
		zap.String("to", lead.PhoneNumber))

	metadata, err := json.Marshal(roomMetadata{
		CampaignID: campaign.ID,
		LeadID:     lead.ID,
		Script:     campaign.Script,
	})
	if err != nil {
		return o.finish(ctx, call, lead, domain.CallStatusFailed, domain.CallResults{
			Outcome: string(domain.CallStatusFailed),
			Summary: err.Error(),
		}), nil
	}

	if err := o.rooms.CreateRoom(ctx, call.RoomName, string(metadata), o.timing.RoomEmptyTimeout); err != nil {
		logger.Base().Error("Failed to create room",
			zap.String("call_id", call.ID),
			zap.String("room_name", call.RoomName),
			zap.Error(err))
		return o.finish(ctx, call, lead, domain.CallStatusFailed, domain.CallResults{
			Outcome: string(domain.CallStatusFailed),
			Summary: err.Error(),
		}), nil
	}

	handle, err := dialer.Dial(ctx, lead.PhoneNumber, "", call.RoomName)
	if err != nil {
		logger.Base().Error("Dial failed",
			zap.String("call_id", call.ID),
			zap.String("to", lead.PhoneNumber),
			zap.Error(err))
		// No polling begins: the dial failure is the terminal outcome.
		return o.finish(ctx, call, lead, domain.CallStatusFailed, domain.CallResults{
			Outcome: string(domain.CallStatusFailed),
			Summary: err.Error(),
		}), nil
	}

	status := o.monitor(ctx, call)
	results := domain.CallResults{
		Outcome:    string(status),
		Summary:    StatusSummary(status),
		DialHandle: handle,
	}
	return o.finish(ctx, call, lead, status, results), nil
}

// monitor polls room presence on a fixed interval and feeds the classifier
// until it produces a terminal status or the overall call timeout elapses.
// Status updates are applied in observation order, each one conditional on
// the record still being active.
func (o *Orchestrator) monitor(ctx context.Context, call *domain.Call) domain.CallStatus {
	session := NewClassifierSession(call.AgentIdentity, call.CallStartTime, o.timing)
	deadline := call.CallStartTime.Add(o.timing.CallTimeout)

	ticker := time.NewTicker(o.timing.PollInterval)
	defer ticker.Stop()

	persisted := domain.CallStatusWaitingAgent
	for {
		select {
		case <-ctx.Done():
			return session.TimeoutStatus()
		case <-ticker.C:
		}

		now := time.Now()
		if !now.Before(deadline) {
			return session.TimeoutStatus()
		}

		var status domain.CallStatus
		snap, err := o.poller.Snapshot(ctx, call.RoomName)
		if err != nil {
			logger.Base().Warn("Presence query failed, treating call as ended",
				zap.String("call_id", call.ID),
				zap.String("room_name", call.RoomName),
				zap.Error(err))
			status = session.ObserveFailure()
		} else {
			status = session.Observe(snap, now)
		}

		if status.IsTerminal() {
			return status
		}

		if status != persisted {
			ok, err := o.calls.UpdateStatusIfActive(ctx, call.ID, status)
			if err != nil {
				logger.Base().Error("Failed to persist status transition",
					zap.String("call_id", call.ID),
					zap.String("status", string(status)),
					zap.Error(err))
			} else if !ok {
				// Someone else (reconciler, manual completion) already made
				// the call terminal; stop monitoring and keep their outcome.
				if current, err := o.calls.GetByID(ctx, call.ID); err == nil && current != nil {
					return current.Status
				}
				return status
			}
			persisted = status
			o.updateLead(ctx, call.LeadID, status)
			o.publish(ctx, call, status)
		}
	}
}

// finish writes the terminal state exactly once and reflects it on the lead.
// If the record was already terminal the existing outcome wins.
func (o *Orchestrator) finish(ctx context.Context, call *domain.Call, lead *domain.Lead, status domain.CallStatus, results domain.CallResults) domain.CallStatus {
	endTime := time.Now()
	duration := int(endTime.Sub(call.CallStartTime).Seconds())

	stored := status.StorageStatus()
	ok, err := o.calls.FinalizeIfActive(ctx, call.ID, stored, endTime, duration, results)
	if err != nil {
		logger.Base().Error("Failed to finalize call",
			zap.String("call_id", call.ID),
			zap.String("status", string(stored)),
			zap.Error(err))
		return status
	}
	if !ok {
		logger.Base().Info("Call already terminal, keeping existing outcome",
			zap.String("call_id", call.ID))
		if current, gerr := o.calls.GetByID(ctx, call.ID); gerr == nil && current != nil {
			return current.Status
		}
		return status
	}

	o.updateLead(ctx, lead.ID, status)
	o.publish(ctx, call, stored)

	logger.Base().Info("Call finished",
		zap.String("call_id", call.ID),
		zap.String("status", string(stored)),
		zap.String("outcome", results.Outcome),
		zap.Int("duration", duration))
	return status
}

func (o *Orchestrator) updateLead(ctx context.Context, leadID string, status domain.CallStatus) {
	leadStatus, reason := MapCallStatusToLead(status)
	if err := o.leads.UpdateStatus(ctx, leadID, leadStatus, reason); err != nil {
		logger.Base().Error("Failed to update lead status",
			zap.String("lead_id", leadID),
			zap.String("status", string(leadStatus)),
			zap.Error(err))
	}
}

func (o *Orchestrator) publish(ctx context.Context, call *domain.Call, status domain.CallStatus) {
	if o.events == nil {
		return
	}
	event := StatusEvent{
		CallID:     call.ID,
		LeadID:     call.LeadID,
		CampaignID: call.CampaignID,
		Status:     status,
		Timestamp:  time.Now(),
	}
	if err := o.events.Publish(ctx, redispkg.CallStatusChannel, event); err != nil {
		logger.Base().Debug("Failed to publish status event",
			zap.String("call_id", call.ID),
			zap.Error(err))
	}
}
