package app

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/llm"
)

// LLMSpendingAnalyzer runs the batch spending analysis through the chat
// service's structured-output call.
type LLMSpendingAnalyzer struct {
	client *llm.Client
}

// NewLLMSpendingAnalyzer wraps a chat-service client as a SpendingAnalyzer.
func NewLLMSpendingAnalyzer(client *llm.Client) *LLMSpendingAnalyzer {
	return &LLMSpendingAnalyzer{client: client}
}

// insightsSchema is the strict output schema for the spending analysis.
var insightsSchema = map[string]interface{}{
	"type":     "object",
	"required": []string{"spending_by_category", "overall_change_pct", "top_category_deltas", "cash_flow_forecast", "saving_opportunities", "subscriptions"},
	"properties": map[string]interface{}{
		"spending_by_category": map[string]interface{}{
			"type":                 "object",
			"additionalProperties": map[string]interface{}{"type": "integer"},
			"description":          "total spend in cents per category",
		},
		"overall_change_pct": map[string]interface{}{
			"type":        "number",
			"description": "overall spending change versus the prior period, as a percentage",
		},
		"top_category_deltas": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"category", "change_pct"},
				"properties": map[string]interface{}{
					"category":   map[string]interface{}{"type": "string"},
					"change_pct": map[string]interface{}{"type": "number"},
				},
			},
		},
		"cash_flow_forecast": map[string]interface{}{"type": "string"},
		"saving_opportunities": map[string]interface{}{
			"type":  "array",
			"items": map[string]interface{}{"type": "string"},
		},
		"subscriptions": map[string]interface{}{
			"type": "array",
			"items": map[string]interface{}{
				"type":     "object",
				"required": []string{"name", "monthly_amount"},
				"properties": map[string]interface{}{
					"name":           map[string]interface{}{"type": "string"},
					"monthly_amount": map[string]interface{}{"type": "integer"},
				},
			},
		},
	},
}

// AnalyzeSpending asks the model for a structured breakdown of the trailing
// transaction window.
func (a *LLMSpendingAnalyzer) AnalyzeSpending(ctx context.Context, language string, transactions []domain.Transaction) (*domain.InsightsData, error) {
	var history strings.Builder
	for _, t := range transactions {
		fmt.Fprintf(&history, "%s %s %d cents %q category=%s counterparty=%s\n",
			t.CreatedAt.Format("2006-01-02"), t.Direction, t.Amount, t.Description, t.Category, t.Counterparty)
	}

	messages := []llm.Message{
		{
			Role: "system",
			Content: "You are a personal finance analyst. Analyze the customer's transaction " +
				"history and produce spending insights. All free-text fields must be written in the " +
				"language with code " + strconv.Quote(language) + ".",
		},
		{
			Role:    "user",
			Content: "Transaction history for the trailing 60 days:\n" + history.String(),
		},
	}

	var data domain.InsightsData
	if err := a.client.AnalyzeJSON(ctx, messages, "spending_insights", insightsSchema, &data); err != nil {
		return nil, fmt.Errorf("spending analysis: %w", err)
	}
	return &data, nil
}
