package tokenusage

import (
	"context"
	"time"
)

// Repository defines the interface for token usage data access
type Repository interface {
	// Create stores a new token usage record
	Create(ctx context.Context, usage *TokenUsage) error

	// GetOwnerUsage retrieves per-model usage for an owner within a date range
	GetOwnerUsage(ctx context.Context, ownerID string, startDate, endDate time.Time) ([]UsageSummary, error)

	// GetDailyAggregates retrieves daily aggregated usage based on filters
	GetDailyAggregates(ctx context.Context, filter UsageFilter) ([]DailyAggregate, error)

	// GetTotalUsage retrieves total usage within a date range
	GetTotalUsage(ctx context.Context, startDate, endDate time.Time) (*UsageSummary, error)
}
