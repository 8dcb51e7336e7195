package domain

import (
	"fmt"
	"time"
)

// CallStatus represents the lifecycle state of a single dialing attempt.
type CallStatus string

const (
	CallStatusWaitingAgent CallStatus = "waiting_agent"
	CallStatusInProgress   CallStatus = "in_progress"
	CallStatusCompleted    CallStatus = "completed"
	CallStatusFailed       CallStatus = "failed"
	CallStatusNoAnswer     CallStatus = "no_answer"
	CallStatusVoicemail    CallStatus = "voicemail"
	CallStatusHungUp       CallStatus = "hung_up"

	// CallStatusAgentFailed is a classification, not a stored status: the
	// record is persisted as failed with outcome "agent_failed".
	CallStatusAgentFailed CallStatus = "agent_failed"
)

// IsTerminal reports whether the status is final. Terminal calls are never
// mutated again by the orchestrator; only active calls may be swept by the
// reconciler.
func (s CallStatus) IsTerminal() bool {
	switch s {
	case CallStatusCompleted, CallStatusFailed, CallStatusNoAnswer, CallStatusVoicemail, CallStatusHungUp, CallStatusAgentFailed:
		return true
	}
	return false
}

// StorageStatus maps a classification onto the status actually persisted:
// agent_failed is recorded as failed, everything else is stored as-is.
func (s CallStatus) StorageStatus() CallStatus {
	if s == CallStatusAgentFailed {
		return CallStatusFailed
	}
	return s
}

// ActiveCallStatuses are the non-terminal states a call can be found in.
var ActiveCallStatuses = []CallStatus{CallStatusWaitingAgent, CallStatusInProgress}

// CallResults is the free-form outcome payload stored with a call.
type CallResults struct {
	Outcome             string `json:"outcome,omitempty"`
	Summary             string `json:"summary,omitempty"`
	AutoCompleted       bool   `json:"auto_completed,omitempty"`
	ManualCompletion    bool   `json:"manual_completion,omitempty"`
	CompletionReason    string `json:"completion_reason,omitempty"`
	HangupReason        string `json:"hangup_reason,omitempty"`
	HungUpBy            string `json:"hung_up_by,omitempty"`
	ParticipantIdentity string `json:"participant_identity,omitempty"`
	DialHandle          string `json:"dial_handle,omitempty"`
}

// Call ties a lead to one dialing attempt into a media room.
type Call struct {
	ID            string      `json:"id" gorm:"column:id;primaryKey"`
	LeadID        string      `json:"lead_id" gorm:"column:lead_id;index"`
	CampaignID    string      `json:"campaign_id" gorm:"column:campaign_id;index"`
	Status        CallStatus  `json:"status" gorm:"column:status;index"`
	RoomName      string      `json:"room_name" gorm:"column:room_name;uniqueIndex"`
	AgentIdentity string      `json:"agent_identity" gorm:"column:agent_identity"`
	CallStartTime time.Time   `json:"call_start_time" gorm:"column:call_start_time;index"`
	CallEndTime   *time.Time  `json:"call_end_time" gorm:"column:call_end_time"`
	Duration      int         `json:"duration" gorm:"column:duration"`
	Results       CallResults `json:"results" gorm:"column:results;serializer:json"`
	CreatedAt     time.Time   `json:"created_at" gorm:"column:created_at"`
	UpdatedAt     time.Time   `json:"updated_at" gorm:"column:updated_at"`
}

func (Call) TableName() string {
	return "calls"
}

// CampaignRoomName derives the media room name for a campaign call attempt.
func CampaignRoomName(campaignID, leadID string) string {
	return fmt.Sprintf("campaign-%s-%s", campaignID, leadID)
}

// TestRoomName derives the media room name for an ad hoc test call.
func TestRoomName(callID string) string {
	return fmt.Sprintf("test-%s", callID)
}

// AgentIdentityFor derives the participant identity the AI agent is expected
// to join the room with.
func AgentIdentityFor(callID string) string {
	return fmt.Sprintf("agent-%s", callID)
}
