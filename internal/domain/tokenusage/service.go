package tokenusage

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Service provides token usage business logic
type Service struct {
	repo Repository
}

// NewService creates a new token usage service
func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

// RecordUsage records a new token usage event
func (s *Service) RecordUsage(ctx context.Context, usage *TokenUsage) error {
	if usage.EstimatedCostUSD.IsZero() {
		usage.EstimatedCostUSD = CalculateCost(usage.Model, usage.PromptTokens, usage.CompletionTokens)
	}

	if usage.TotalTokens == 0 {
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens
	}

	return s.repo.Create(ctx, usage)
}

// GetMyUsage retrieves a usage summary for an owner within a date range
func (s *Service) GetMyUsage(ctx context.Context, ownerID string, startDate, endDate time.Time) (*UsageResponse, error) {
	summaries, err := s.repo.GetOwnerUsage(ctx, ownerID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	response := &UsageResponse{
		Period:  Period{StartDate: startDate, EndDate: endDate},
		ByModel: summaries,
	}

	totalCost := decimal.Zero
	for _, summary := range summaries {
		response.TotalUsage.PromptTokens += summary.PromptTokens
		response.TotalUsage.CompletionTokens += summary.CompletionTokens
		response.TotalUsage.TotalTokens += summary.TotalTokens
		response.TotalUsage.RequestCount += summary.RequestCount
		totalCost = totalCost.Add(summary.EstimatedCostUSD)
	}
	response.TotalUsage.EstimatedCostUSD = totalCost

	return response, nil
}

// GetMyDailyUsage retrieves daily aggregated usage for an owner
func (s *Service) GetMyDailyUsage(ctx context.Context, ownerID string, startDate, endDate time.Time) ([]DailyAggregate, error) {
	filter := UsageFilter{
		OwnerID:   ownerID,
		StartDate: startDate,
		EndDate:   endDate,
	}
	return s.repo.GetDailyAggregates(ctx, filter)
}

// UsageResponse represents the API response for usage queries
type UsageResponse struct {
	Period     Period         `json:"period"`
	TotalUsage UsageSummary   `json:"total_usage"`
	ByModel    []UsageSummary `json:"by_model"`
}

// Period represents a date range for usage queries
type Period struct {
	StartDate time.Time `json:"start_date"`
	EndDate   time.Time `json:"end_date"`
}
