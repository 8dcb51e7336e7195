package calls

import (
	"context"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
)

// RoomService is the media room collaborator. The LiveKit adapter implements
// it; tests use fakes.
type RoomService interface {
	CreateRoom(ctx context.Context, name, metadata string, emptyTimeoutSecs uint32) error
	ListParticipants(ctx context.Context, name string) ([]string, error)
	RoomExists(ctx context.Context, name string) (bool, error)
	DeleteRoom(ctx context.Context, name string) error
}

// Dialer is the telephony carrier collaborator. Dial bridges toNumber into
// roomName and returns an opaque handle for the placed call.
type Dialer interface {
	Dial(ctx context.Context, toNumber, fromNumber, roomName string) (string, error)
}

// StatusEvent is published on the live status channel for every call
// status transition, terminal or not.
type StatusEvent struct {
	CallID     string            `json:"call_id"`
	LeadID     string            `json:"lead_id"`
	CampaignID string            `json:"campaign_id"`
	Status     domain.CallStatus `json:"status"`
	Timestamp  time.Time         `json:"timestamp"`
}

// EventPublisher pushes status events to subscribers (dashboards). Optional;
// a nil publisher disables events.
type EventPublisher interface {
	Publish(ctx context.Context, channel string, message interface{}) error
}

// MapCallStatusToLead maps a call's status onto the lead's own status enum,
// with the human-readable reason shown in the dashboard.
func MapCallStatusToLead(status domain.CallStatus) (domain.LeadStatus, string) {
	switch status {
	case domain.CallStatusNoAnswer:
		return domain.LeadStatusNoAnswer, "Call was not answered"
	case domain.CallStatusVoicemail:
		return domain.LeadStatusVoicemail, "Call went to voicemail"
	case domain.CallStatusHungUp:
		return domain.LeadStatusHungUp, "Recipient hung up the call"
	case domain.CallStatusWaitingAgent:
		return domain.LeadStatusWaitingAgent, "Waiting for AI agent to connect"
	case domain.CallStatusInProgress:
		return domain.LeadStatusWaitingAgent, ""
	case domain.CallStatusCompleted:
		return domain.LeadStatusCompleted, ""
	default:
		return domain.LeadStatusFailed, "AI agent failed to connect"
	}
}

// StatusSummary is the human-readable outcome stored in a call's results.
func StatusSummary(status domain.CallStatus) string {
	switch status {
	case domain.CallStatusNoAnswer:
		return "Call was not answered"
	case domain.CallStatusVoicemail:
		return "Call went to voicemail"
	case domain.CallStatusHungUp:
		return "Recipient hung up the call"
	case domain.CallStatusAgentFailed:
		return "AI agent failed to connect"
	case domain.CallStatusCompleted:
		return "Call completed"
	default:
		return "Call failed"
	}
}
