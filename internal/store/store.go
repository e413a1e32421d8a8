package store

import (
	"context"
	"time"

	"github.com/harborview/claims-triage/internal/model"
)

// ClaimFilter specifies criteria for listing claims.
type ClaimFilter struct {
	Status model.ClaimStatus `json:"status,omitempty"`
	Source string            `json:"source,omitempty"`
	Limit  int               `json:"limit,omitempty"`
	Offset int               `json:"offset,omitempty"`
}

// RoutingRecord is one historical routing decision for a claim.
type RoutingRecord struct {
	ID         string                 `json:"id"`
	ClaimID    string                 `json:"claim_id"`
	AdjusterID string                 `json:"adjuster_id,omitempty"`
	Decision   *model.RoutingDecision `json:"decision"`
	CreatedAt  time.Time              `json:"created_at"`
}

// Metrics summarizes claim throughput for reporting.
type Metrics struct {
	TotalClaims              int     `json:"total_claims"`
	AssignedClaims           int     `json:"assigned_claims"`
	CompletedClaims          int     `json:"completed_claims"`
	AvgProcessingTimeSeconds float64 `json:"avg_processing_time_seconds"`
}

// Store defines the persistence interface for the triage pipeline.
type Store interface {
	// Claims
	SaveClaim(ctx context.Context, claim *model.Claim) error
	GetClaim(ctx context.Context, claimID string) (*model.Claim, error)
	GetClaimByFilename(ctx context.Context, sourceFilename string) (*model.Claim, error)
	ListClaims(ctx context.Context, filter ClaimFilter) ([]model.Claim, error)
	ListQueue(ctx context.Context) ([]model.Claim, error)
	ListFlagged(ctx context.Context) ([]model.Claim, error)
	UpdateClaimStatus(ctx context.Context, claimID string, status model.ClaimStatus) error
	DeleteClaim(ctx context.Context, claimID string) error

	// Adjusters
	SaveAdjuster(ctx context.Context, adjuster *model.Adjuster) error
	GetAdjuster(ctx context.Context, adjusterID string) (*model.Adjuster, error)
	ListAdjusters(ctx context.Context, availableOnly bool) ([]model.Adjuster, error)
	AdjustWorkload(ctx context.Context, adjusterID string, delta int) error

	// Routing history
	SaveRoutingRecord(ctx context.Context, claimID string, decision *model.RoutingDecision) error
	ListRoutingHistory(ctx context.Context, claimID string) ([]RoutingRecord, error)

	// Analytics
	Metrics(ctx context.Context) (*Metrics, error)

	// Lifecycle
	Migrate(ctx context.Context) error
	Close() error
}
