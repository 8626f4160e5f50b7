package domain

import (
	"time"

	"github.com/google/uuid"
)

// InsightsData is the structured output of the batch spending analysis.
type InsightsData struct {
	SpendingByCategory  map[string]int64       `json:"spending_by_category"` // cents per category
	OverallChangePct    float64                `json:"overall_change_pct"`   // vs. prior period
	TopCategoryDeltas   []CategoryDelta        `json:"top_category_deltas"`
	CashFlowForecast    string                 `json:"cash_flow_forecast"`
	SavingOpportunities []string               `json:"saving_opportunities"`
	Subscriptions       []DetectedSubscription `json:"subscriptions"`
}

// CategoryDelta is the period-over-period change for one spending category.
type CategoryDelta struct {
	Category  string  `json:"category"`
	ChangePct float64 `json:"change_pct"`
}

// DetectedSubscription is a recurring charge found in the transaction history.
type DetectedSubscription struct {
	Name          string `json:"name"`
	MonthlyAmount int64  `json:"monthly_amount"` // cents
}

// CachedInsight is the per-user singleton analytics document, keyed "latest".
// The data map is keyed by language code so a language switch does not force
// a regeneration. Absence of the row is a valid state meaning "not computed".
type CachedInsight struct {
	UserID    uuid.UUID               `json:"user_id"`
	Data      map[string]InsightsData `json:"data"` // language code -> insights
	UpdatedAt time.Time               `json:"updated_at"`
}
