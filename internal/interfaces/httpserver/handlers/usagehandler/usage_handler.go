// Package usagehandler exposes token usage reporting.
package usagehandler

import (
	"context"
	"time"

	"studyhall/chat-api/internal/domain/tokenusage"
	"studyhall/chat-api/internal/utils/platformerrors"
)

const defaultUsageWindowDays = 30

type UsageHandler struct {
	usage *tokenusage.Service
}

func NewUsageHandler(usage *tokenusage.Service) *UsageHandler {
	return &UsageHandler{usage: usage}
}

// parseWindow resolves the reporting period, defaulting to the last 30 days.
func parseWindow(startDate, endDate string) (time.Time, time.Time, error) {
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -defaultUsageWindowDays)

	if startDate != "" {
		parsed, err := time.Parse("2006-01-02", startDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		start = parsed
	}
	if endDate != "" {
		parsed, err := time.Parse("2006-01-02", endDate)
		if err != nil {
			return time.Time{}, time.Time{}, err
		}
		// inclusive end day
		end = parsed.AddDate(0, 0, 1)
	}
	return start, end, nil
}

// GetUsage returns per-model and total usage for the owner in the window.
func (h *UsageHandler) GetUsage(ctx context.Context, ownerID, startDate, endDate string) (*tokenusage.UsageResponse, error) {
	start, end, err := parseWindow(startDate, endDate)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"dates must be YYYY-MM-DD", err, "9c4e7a1d-3f8b-4c26-a5d0-8e2f6b9c4a73")
	}

	response, err := h.usage.GetMyUsage(ctx, ownerID, start, end)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get usage")
	}
	return response, nil
}

// GetDailyUsage returns day-by-day aggregates for the owner in the window.
func (h *UsageHandler) GetDailyUsage(ctx context.Context, ownerID, startDate, endDate string) ([]tokenusage.DailyAggregate, error) {
	start, end, err := parseWindow(startDate, endDate)
	if err != nil {
		return nil, platformerrors.NewError(ctx, platformerrors.LayerHandler, platformerrors.ErrorTypeValidation,
			"dates must be YYYY-MM-DD", err, "2f7b4d9e-6a1c-4e83-b0f5-3d8a7c2e9b46")
	}

	aggregates, err := h.usage.GetMyDailyUsage(ctx, ownerID, start, end)
	if err != nil {
		return nil, platformerrors.AsError(ctx, platformerrors.LayerHandler, err, "failed to get daily usage")
	}
	return aggregates, nil
}
