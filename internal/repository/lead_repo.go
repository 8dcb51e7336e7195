package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormLeadRepository handles database operations for campaign leads
type GormLeadRepository struct {
	db *gorm.DB
}

// NewGormLeadRepository creates a new lead repository
func NewGormLeadRepository(db *gorm.DB) *GormLeadRepository {
	return &GormLeadRepository{db: db}
}

// Create creates a new lead
func (r *GormLeadRepository) Create(ctx context.Context, lead *domain.Lead) error {
	if lead.ID == "" {
		lead.ID = uuid.New().String()
	}
	now := time.Now()
	if lead.CreatedAt.IsZero() {
		lead.CreatedAt = now
	}
	lead.UpdatedAt = now
	if lead.Status == "" {
		lead.Status = domain.LeadStatusPending
	}

	if err := r.db.WithContext(ctx).Create(lead).Error; err != nil {
		return fmt.Errorf("failed to create lead: %w", err)
	}
	return nil
}

// GetByID retrieves a lead by ID
func (r *GormLeadRepository) GetByID(ctx context.Context, id string) (*domain.Lead, error) {
	var lead domain.Lead
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&lead).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get lead: %w", err)
	}
	return &lead, nil
}

// UpdateStatus updates a lead's status and error reason
func (r *GormLeadRepository) UpdateStatus(ctx context.Context, id string, status domain.LeadStatus, errorReason string) error {
	result := r.db.WithContext(ctx).Model(&domain.Lead{}).
		Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":       status,
			"error_reason": errorReason,
			"updated_at":   time.Now(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to update lead status: %w", result.Error)
	}
	return nil
}

// FindPendingByCampaign returns a campaign's unprocessed leads, oldest first
func (r *GormLeadRepository) FindPendingByCampaign(ctx context.Context, campaignID string) ([]*domain.Lead, error) {
	var leads []*domain.Lead
	err := r.db.WithContext(ctx).
		Where("campaign_id = ? AND status = ?", campaignID, domain.LeadStatusPending).
		Order("created_at ASC").
		Find(&leads).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find pending leads: %w", err)
	}
	return leads, nil
}
