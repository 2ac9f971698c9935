package tokenusagerepo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"studyhall/chat-api/internal/domain/tokenusage"
	"studyhall/chat-api/internal/utils/platformerrors"
)

// Repository handles token usage persistence.
type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

var _ tokenusage.Repository = (*Repository)(nil)

func (r *Repository) Create(ctx context.Context, usage *tokenusage.TokenUsage) error {
	err := r.db.WithContext(ctx).Create(usage).Error
	if err != nil {
		return platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to record token usage",
			err,
			"b6d9e2f5-8c1a-4b43-9f7e-2a5d8c0b6f31",
		)
	}
	return nil
}

func (r *Repository) GetOwnerUsage(ctx context.Context, ownerID string, startDate, endDate time.Time) ([]tokenusage.UsageSummary, error) {
	var summaries []tokenusage.UsageSummary
	err := r.db.WithContext(ctx).
		Model(&tokenusage.TokenUsage{}).
		Select(`model,
			SUM(prompt_tokens) AS prompt_tokens,
			SUM(completion_tokens) AS completion_tokens,
			SUM(total_tokens) AS total_tokens,
			COUNT(*) AS request_count,
			SUM(estimated_cost_usd) AS estimated_cost_usd`).
		Where("owner_id = ? AND created_at >= ? AND created_at < ?", ownerID, startDate, endDate).
		Group("model").
		Scan(&summaries).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to aggregate owner usage",
			err,
			"3c7f0a4d-6b9e-4c82-a1d5-8f2b6e9c4a07",
		)
	}
	return summaries, nil
}

func (r *Repository) GetDailyAggregates(ctx context.Context, filter tokenusage.UsageFilter) ([]tokenusage.DailyAggregate, error) {
	var aggregates []tokenusage.DailyAggregate
	tx := r.db.WithContext(ctx).
		Model(&tokenusage.TokenUsage{}).
		Select(`DATE_TRUNC('day', created_at) AS date,
			SUM(prompt_tokens) AS prompt_tokens,
			SUM(completion_tokens) AS completion_tokens,
			SUM(total_tokens) AS total_tokens,
			COUNT(*) AS request_count,
			SUM(estimated_cost_usd) AS estimated_cost_usd`)
	if filter.OwnerID != "" {
		tx = tx.Where("owner_id = ?", filter.OwnerID)
	}
	if filter.Model != "" {
		tx = tx.Where("model = ?", filter.Model)
	}
	if !filter.StartDate.IsZero() {
		tx = tx.Where("created_at >= ?", filter.StartDate)
	}
	if !filter.EndDate.IsZero() {
		tx = tx.Where("created_at < ?", filter.EndDate)
	}
	err := tx.Group("DATE_TRUNC('day', created_at)").
		Order("date ASC").
		Scan(&aggregates).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to aggregate daily usage",
			err,
			"9a2e5d8b-1f6c-4a37-b4e0-7d3f8c1a5e92",
		)
	}
	return aggregates, nil
}

func (r *Repository) GetTotalUsage(ctx context.Context, startDate, endDate time.Time) (*tokenusage.UsageSummary, error) {
	var summary tokenusage.UsageSummary
	err := r.db.WithContext(ctx).
		Model(&tokenusage.TokenUsage{}).
		Select(`COALESCE(SUM(prompt_tokens), 0) AS prompt_tokens,
			COALESCE(SUM(completion_tokens), 0) AS completion_tokens,
			COALESCE(SUM(total_tokens), 0) AS total_tokens,
			COUNT(*) AS request_count,
			COALESCE(SUM(estimated_cost_usd), 0) AS estimated_cost_usd`).
		Where("created_at >= ? AND created_at < ?", startDate, endDate).
		Scan(&summary).Error
	if err != nil {
		return nil, platformerrors.NewError(
			ctx,
			platformerrors.LayerRepository,
			platformerrors.ErrorTypeDatabaseError,
			"failed to aggregate total usage",
			err,
			"d5b8f1c4-7e2a-4d69-8a3f-0c6e9b2d5f81",
		)
	}
	return &summary, nil
}
