package repository

import (
	"context"
	"time"

	"github.com/dialworks/outbound-call-service/internal/domain"
)

// CallRepository defines the persistence operations the call lifecycle needs.
// Status-changing operations are conditional: they only apply while the call
// is still in an active (non-terminal) state, so the orchestrator and the
// reconciler can never clobber each other's terminal write.
type CallRepository interface {
	Create(ctx context.Context, call *domain.Call) error
	GetByID(ctx context.Context, id string) (*domain.Call, error)

	// UpdateStatusIfActive transitions the call to status if it is still
	// active. Returns false when the call was already terminal (or missing).
	UpdateStatusIfActive(ctx context.Context, id string, status domain.CallStatus) (bool, error)

	// FinalizeIfActive writes the terminal status, end time, duration and
	// results in one conditional update. Returns false when the call was
	// already terminal.
	FinalizeIfActive(ctx context.Context, id string, status domain.CallStatus, endTime time.Time, duration int, results domain.CallResults) (bool, error)

	// FindStale returns active calls whose start time is older than cutoff.
	FindStale(ctx context.Context, cutoff time.Time) ([]*domain.Call, error)

	FindRecent(ctx context.Context, limit int) ([]*domain.Call, error)
	CountCreatedSince(ctx context.Context, since time.Time) (int64, error)
}

// CampaignRepository defines the campaign operations the runner needs.
type CampaignRepository interface {
	Create(ctx context.Context, campaign *domain.Campaign) error
	GetByID(ctx context.Context, id string) (*domain.Campaign, error)
	UpdateStatus(ctx context.Context, id string, status domain.CampaignStatus) error
}

// LeadRepository defines the lead operations the runner needs.
type LeadRepository interface {
	Create(ctx context.Context, lead *domain.Lead) error
	GetByID(ctx context.Context, id string) (*domain.Lead, error)
	UpdateStatus(ctx context.Context, id string, status domain.LeadStatus, errorReason string) error
	FindPendingByCampaign(ctx context.Context, campaignID string) ([]*domain.Lead, error)
}

// RepositoryManager combines all repositories
type RepositoryManager interface {
	Calls() CallRepository
	Campaigns() CampaignRepository
	Leads() LeadRepository

	Ping(ctx context.Context) error
	Close() error
}
