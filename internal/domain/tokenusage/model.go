package tokenusage

import (
	"time"

	"github.com/shopspring/decimal"
)

// TokenUsage is one completion's token accounting record
type TokenUsage struct {
	ID               int64           `gorm:"primaryKey;autoIncrement"`
	OwnerID          string          `gorm:"column:owner_id;not null;index"`
	ConversationID   *string         `gorm:"column:conversation_id"`
	Model            string          `gorm:"column:model;not null;index"`
	PromptTokens     int             `gorm:"column:prompt_tokens;not null;default:0"`
	CompletionTokens int             `gorm:"column:completion_tokens;not null;default:0"`
	ReasoningTokens  int             `gorm:"column:reasoning_tokens;not null;default:0"`
	TotalTokens      int             `gorm:"column:total_tokens;not null;default:0"`
	EstimatedCostUSD decimal.Decimal `gorm:"column:estimated_cost_usd;type:decimal(10,6)"`
	RequestID        *string         `gorm:"column:request_id"`
	Stream           bool            `gorm:"column:stream;default:false"`
	CreatedAt        time.Time       `gorm:"column:created_at;autoCreateTime"`
}

// TableName returns the table name for TokenUsage
func (TokenUsage) TableName() string {
	return "token_usage"
}

// UsageSummary represents aggregated usage statistics
type UsageSummary struct {
	Model            string          `json:"model"`
	PromptTokens     int64           `json:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens"`
	TotalTokens      int64           `json:"total_tokens"`
	RequestCount     int64           `json:"request_count"`
	EstimatedCostUSD decimal.Decimal `json:"estimated_cost_usd"`
}

// DailyAggregate represents one day of aggregated usage
type DailyAggregate struct {
	Date             time.Time       `json:"date"`
	PromptTokens     int64           `json:"prompt_tokens"`
	CompletionTokens int64           `json:"completion_tokens"`
	TotalTokens      int64           `json:"total_tokens"`
	RequestCount     int64           `json:"request_count"`
	EstimatedCostUSD decimal.Decimal `json:"estimated_cost_usd"`
}

// UsageFilter represents filter options for querying usage
type UsageFilter struct {
	OwnerID   string
	Model     string
	StartDate time.Time
	EndDate   time.Time
}

// ModelPricing holds USD-per-token prices keyed by model name
var ModelPricing = map[string]struct {
	PromptPrice     decimal.Decimal
	CompletionPrice decimal.Decimal
}{
	"gpt-4o":        {decimal.NewFromFloat(0.000005), decimal.NewFromFloat(0.000015)},
	"gpt-4o-mini":   {decimal.NewFromFloat(0.00000015), decimal.NewFromFloat(0.0000006)},
	"gpt-4-turbo":   {decimal.NewFromFloat(0.00001), decimal.NewFromFloat(0.00003)},
	"gpt-3.5-turbo": {decimal.NewFromFloat(0.0000005), decimal.NewFromFloat(0.0000015)},
}

// CalculateCost estimates USD cost for a completion's token counts
func CalculateCost(model string, promptTokens, completionTokens int) decimal.Decimal {
	pricing, exists := ModelPricing[model]
	if !exists {
		// Default pricing for unknown models
		pricing = struct {
			PromptPrice     decimal.Decimal
			CompletionPrice decimal.Decimal
		}{
			PromptPrice:     decimal.NewFromFloat(0.000003),
			CompletionPrice: decimal.NewFromFloat(0.000006),
		}
	}

	promptCost := pricing.PromptPrice.Mul(decimal.NewFromInt(int64(promptTokens)))
	completionCost := pricing.CompletionPrice.Mul(decimal.NewFromInt(int64(completionTokens)))

	return promptCost.Add(completionCost)
}
