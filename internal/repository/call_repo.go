package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormCallRepository handles database operations for call attempts
type GormCallRepository struct {
	db *gorm.DB
}

// NewGormCallRepository creates a new call repository
func NewGormCallRepository(db *gorm.DB) *GormCallRepository {
	return &GormCallRepository{db: db}
}

// Create creates a new call record
func (r *GormCallRepository) Create(ctx context.Context, call *domain.Call) error {
	if call.ID == "" {
		call.ID = uuid.New().String()
	}
	now := time.Now()
	if call.CreatedAt.IsZero() {
		call.CreatedAt = now
	}
	call.UpdatedAt = now

	if err := r.db.WithContext(ctx).Create(call).Error; err != nil {
		return fmt.Errorf("failed to create call: %w", err)
	}
	return nil
}

// GetByID retrieves a call by ID
func (r *GormCallRepository) GetByID(ctx context.Context, id string) (*domain.Call, error) {
	var call domain.Call
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&call).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}
	return &call, nil
}

// UpdateStatusIfActive transitions the call's status only while it is still
// in an active state. The WHERE clause is the compare-and-swap that keeps the
// orchestrator and the reconciler from racing into conflicting terminal states.
func (r *GormCallRepository) UpdateStatusIfActive(ctx context.Context, id string, status domain.CallStatus) (bool, error) {
	result := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("id = ? AND status IN ?", id, domain.ActiveCallStatuses).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to update call status: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FinalizeIfActive writes the terminal status, end time, duration and results
// in a single conditional update.
func (r *GormCallRepository) FinalizeIfActive(ctx context.Context, id string, status domain.CallStatus, endTime time.Time, duration int, results domain.CallResults) (bool, error) {
	if !status.IsTerminal() {
		return false, fmt.Errorf("finalize requires a terminal status, got %q", status)
	}

	result := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("id = ? AND status IN ?", id, domain.ActiveCallStatuses).
		Updates(map[string]interface{}{
			"status":        status,
			"call_end_time": endTime,
			"duration":      duration,
			"results":       results,
			"updated_at":    time.Now(),
		})
	if result.Error != nil {
		return false, fmt.Errorf("failed to finalize call: %w", result.Error)
	}
	return result.RowsAffected > 0, nil
}

// FindStale returns active calls that started before cutoff
func (r *GormCallRepository) FindStale(ctx context.Context, cutoff time.Time) ([]*domain.Call, error) {
	var calls []*domain.Call
	err := r.db.WithContext(ctx).
		Where("status IN ? AND call_start_time < ?", domain.ActiveCallStatuses, cutoff).
		Order("call_start_time ASC").
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find stale calls: %w", err)
	}
	return calls, nil
}

// FindRecent returns the most recent calls, newest first
func (r *GormCallRepository) FindRecent(ctx context.Context, limit int) ([]*domain.Call, error) {
	var calls []*domain.Call
	err := r.db.WithContext(ctx).
		Order("call_start_time DESC").
		Limit(limit).
		Find(&calls).Error
	if err != nil {
		return nil, fmt.Errorf("failed to find recent calls: %w", err)
	}
	return calls, nil
}

// CountCreatedSince counts calls created after the given time
func (r *GormCallRepository) CountCreatedSince(ctx context.Context, since time.Time) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&domain.Call{}).
		Where("created_at >= ?", since).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count recent calls: %w", err)
	}
	return count, nil
}
