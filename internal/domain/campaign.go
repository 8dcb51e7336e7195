package domain

import (
	"time"
)

// CampaignStatus represents a campaign's lifecycle state.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "DRAFT"
	CampaignStatusActive    CampaignStatus = "ACTIVE"
	CampaignStatusPaused    CampaignStatus = "PAUSED"
	CampaignStatusCompleted CampaignStatus = "COMPLETED"
)

// LeadStatus represents the processing state of a single lead.
type LeadStatus string

const (
	LeadStatusPending      LeadStatus = "PENDING"
	LeadStatusProcessed    LeadStatus = "PROCESSED"
	LeadStatusFailed       LeadStatus = "FAILED"
	LeadStatusNoAnswer     LeadStatus = "NO_ANSWER"
	LeadStatusVoicemail    LeadStatus = "VOICEMAIL"
	LeadStatusHungUp       LeadStatus = "HUNG_UP"
	LeadStatusCompleted    LeadStatus = "COMPLETED"
	LeadStatusWaitingAgent LeadStatus = "WAITING_AGENT"
)

// Campaign groups leads under one calling script.
type Campaign struct {
	ID        string         `json:"id" gorm:"column:id;primaryKey"`
	Name      string         `json:"name" gorm:"column:name"`
	Status    CampaignStatus `json:"status" gorm:"column:status;index"`
	Script    string         `json:"script" gorm:"column:script"`
	CreatedAt time.Time      `json:"created_at" gorm:"column:created_at"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"column:updated_at"`
}

func (Campaign) TableName() string {
	return "campaigns"
}

// Lead is a single phone contact belonging to a campaign.
type Lead struct {
	ID          string     `json:"id" gorm:"column:id;primaryKey"`
	CampaignID  string     `json:"campaign_id" gorm:"column:campaign_id;index"`
	PhoneNumber string     `json:"phone_number" gorm:"column:phone_number"`
	Name        string     `json:"name" gorm:"column:name"`
	Email       string     `json:"email" gorm:"column:email"`
	Status      LeadStatus `json:"status" gorm:"column:status;index"`
	ErrorReason string     `json:"error_reason" gorm:"column:error_reason"`
	CreatedAt   time.Time  `json:"created_at" gorm:"column:created_at"`
	UpdatedAt   time.Time  `json:"updated_at" gorm:"column:updated_at"`
}

func (Lead) TableName() string {
	return "leads"
}
