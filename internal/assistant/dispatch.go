/**
 * @description
 * The dispatch table between tool calls and the banking services. Every tool
 * resolves to a handler that converts schema-validated arguments into a
 * service call and folds the outcome, success or failure, into a uniform
 * ToolResult the model can read on the next pass. Domain errors become plain
 * customer-facing messages here; raw error text never reaches the model.
 */

package assistant

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/banking-service/internal/app"
	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/store"
)

const defaultTransactionLimit = 20

// ToolResult is the uniform outcome fed back to the model after a tool call.
type ToolResult struct {
	Name    string                 `json:"name"`
	Success bool                   `json:"success"`
	Message string                 `json:"message,omitempty"`
	Data    map[string]interface{} `json:"data,omitempty"`
}

// Handler executes one validated tool call for one user. The language is
// the session language, threaded into insights calls so cached entries
// match the conversation.
type Handler func(ctx context.Context, userID uuid.UUID, language string, args map[string]interface{}) ToolResult

// Dispatcher routes tool calls to the banking and insights services.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher wires the tool catalog to the given services.
func NewDispatcher(accounts *app.Service, insights *app.InsightsService) *Dispatcher {
	d := &Dispatcher{}
	d.handlers = map[string]Handler{
		"transfer_money":           d.transferMoney(accounts),
		"get_card_statement":       d.getCardStatement(accounts),
		"get_card_transactions":    d.getCardTransactions(accounts),
		"make_payment":             d.makePayment(accounts),
		"request_extension":        d.requestExtension(accounts),
		"apply_for_card":           d.applyForCard(accounts),
		"apply_for_loan":           d.applyForLoan(accounts),
		"get_account_transactions": d.getAccountTransactions(accounts),
		"get_account_balance":      d.getAccountBalance(accounts),
		"get_spending_analysis":    d.getSpendingAnalysis(insights),
		"get_existing_insights":    d.getExistingInsights(insights),
	}
	return d
}

// Execute runs the named tool. Unknown names produce a failed result rather
// than an error so the model can recover on its next pass.
func (d *Dispatcher) Execute(ctx context.Context, name string, userID uuid.UUID, language string, args map[string]interface{}) ToolResult {
	handler, ok := d.handlers[name]
	if !ok {
		return ToolResult{Name: name, Success: false, Message: "That operation is not available."}
	}
	return handler(ctx, userID, language, args)
}

func (d *Dispatcher) transferMoney(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "transfer_money"
		receipt, err := svc.TransferMoney(ctx, userID, argString(args, "recipient"), argInt64(args, "amount"))
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Message: receipt.Message,
			Data: map[string]interface{}{
				"amount":         receipt.Amount,
				"recipient_name": receipt.RecipientName,
				"timestamp":      receipt.Timestamp.Format(time.RFC3339),
			},
		}
	}
}

func (d *Dispatcher) getCardStatement(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "get_card_statement"
		card, err := svc.GetCardStatement(ctx, userID, argString(args, "card_last4"))
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Data: map[string]interface{}{
				"card":              card.MaskedNumber(),
				"network":           card.Network,
				"credit_balance":    card.CreditBalance,
				"credit_limit":      card.CreditLimit,
				"statement_balance": card.StatementBalance,
				"minimum_payment":   card.MinimumPayment,
				"payment_due_date":  card.PaymentDueDate.Format("2006-01-02"),
				"apr":               card.APR,
			},
		}
	}
}

func (d *Dispatcher) getCardTransactions(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "get_card_transactions"
		limit := argIntOr(args, "limit", defaultTransactionLimit)
		transactions, err := svc.ListCardTransactions(ctx, userID, argString(args, "card_last4"), limit)
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Data:    map[string]interface{}{"transactions": transactionRows(transactions)},
		}
	}
}

func (d *Dispatcher) makePayment(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "make_payment"
		req := domain.PaymentRequest{
			AccountID:    argString(args, "account_id"),
			AccountType:  domain.AccountType(argString(args, "account_type")),
			PaymentType:  domain.PaymentType(argString(args, "payment_type")),
			CustomAmount: argInt64(args, "custom_amount"),
		}
		receipt, err := svc.MakeAccountPayment(ctx, userID, req)
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Message: receipt.Message,
			Data: map[string]interface{}{
				"account_id":        receipt.AccountID,
				"account_type":      receipt.AccountType,
				"amount_paid":       receipt.AmountPaid,
				"remaining_balance": receipt.Remaining,
				"paid_off":          receipt.PaidOff,
			},
		}
	}
}

func (d *Dispatcher) requestExtension(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "request_extension"
		receipt, err := svc.RequestPaymentExtension(ctx, userID,
			argString(args, "account_id"), domain.AccountType(argString(args, "account_type")))
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Message: receipt.Message,
			Data: map[string]interface{}{
				"account_id":   receipt.AccountID,
				"account_type": receipt.AccountType,
				"new_due_date": receipt.NewDueDate.Format("2006-01-02"),
			},
		}
	}
}

func (d *Dispatcher) applyForCard(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "apply_for_card"
		card, err := svc.ApplyForCard(ctx, userID, domain.CardApplication{
			Network:      domain.CardNetwork(argString(args, "network")),
			AnnualIncome: argInt64(args, "annual_income"),
		})
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Message: fmt.Sprintf("Your new %s card ending in %s was approved.", card.Network, card.LastFour()),
			Data: map[string]interface{}{
				"card":             card.MaskedNumber(),
				"network":          card.Network,
				"credit_limit":     card.CreditLimit,
				"apr":              card.APR,
				"payment_due_date": card.PaymentDueDate.Format("2006-01-02"),
			},
		}
	}
}

func (d *Dispatcher) applyForLoan(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "apply_for_loan"
		loan, err := svc.ApplyForLoan(ctx, userID, domain.LoanApplication{
			Amount:     argInt64(args, "amount"),
			TermMonths: int(argInt64(args, "term_months")),
			Purpose:    argString(args, "purpose"),
		})
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Message: "Your loan was approved and the funds are in your account.",
			Data: map[string]interface{}{
				"loan_id":         loan.ID,
				"amount":          loan.Amount,
				"interest_rate":   loan.InterestRate,
				"term_months":     loan.TermMonths,
				"monthly_payment": loan.MonthlyPayment,
				"due_date":        loan.PaymentDueDate.Format("2006-01-02"),
			},
		}
	}
}

func (d *Dispatcher) getAccountTransactions(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, args map[string]interface{}) ToolResult {
		const name = "get_account_transactions"
		limit := argIntOr(args, "limit", defaultTransactionLimit)
		transactions, err := svc.ListAccountTransactions(ctx, userID, limit)
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Data:    map[string]interface{}{"transactions": transactionRows(transactions)},
		}
	}
}

func (d *Dispatcher) getAccountBalance(svc *app.Service) Handler {
	return func(ctx context.Context, userID uuid.UUID, _ string, _ map[string]interface{}) ToolResult {
		const name = "get_account_balance"
		balance, err := svc.GetAccountBalance(ctx, userID)
		if err != nil {
			return failure(name, err)
		}
		return ToolResult{
			Name:    name,
			Success: true,
			Data:    map[string]interface{}{"balance": balance},
		}
	}
}

func (d *Dispatcher) getSpendingAnalysis(insights *app.InsightsService) Handler {
	return func(ctx context.Context, userID uuid.UUID, language string, _ map[string]interface{}) ToolResult {
		const name = "get_spending_analysis"
		data, err := insights.Refresh(ctx, userID, language)
		if err != nil {
			return failure(name, err)
		}
		if data == nil {
			return ToolResult{
				Name:    name,
				Success: true,
				Message: "There is not enough recent activity to analyze yet.",
			}
		}
		return ToolResult{Name: name, Success: true, Data: insightRows(data)}
	}
}

func (d *Dispatcher) getExistingInsights(insights *app.InsightsService) Handler {
	return func(ctx context.Context, userID uuid.UUID, language string, _ map[string]interface{}) ToolResult {
		const name = "get_existing_insights"
		data, err := insights.Existing(ctx, userID, language)
		if err != nil {
			return failure(name, err)
		}
		if data == nil {
			return ToolResult{
				Name:    name,
				Success: true,
				Message: "No spending insights have been generated yet.",
			}
		}
		return ToolResult{Name: name, Success: true, Data: insightRows(data)}
	}
}

func transactionRows(transactions []domain.Transaction) []map[string]interface{} {
	rows := make([]map[string]interface{}, 0, len(transactions))
	for _, t := range transactions {
		rows = append(rows, map[string]interface{}{
			"date":         t.CreatedAt.Format("2006-01-02"),
			"direction":    t.Direction,
			"amount":       t.Amount,
			"description":  t.Description,
			"counterparty": t.Counterparty,
			"category":     t.Category,
		})
	}
	return rows
}

func insightRows(data *domain.InsightsData) map[string]interface{} {
	return map[string]interface{}{
		"spending_by_category": data.SpendingByCategory,
		"overall_change_pct":   data.OverallChangePct,
		"top_category_deltas":  data.TopCategoryDeltas,
		"cash_flow_forecast":   data.CashFlowForecast,
		"saving_opportunities": data.SavingOpportunities,
		"subscriptions":        data.Subscriptions,
	}
}

// failure maps a domain error onto the customer-facing message handed back
// to the model. Anything unrecognized collapses into a generic message.
func failure(name string, err error) ToolResult {
	return ToolResult{Name: name, Success: false, Message: customerMessage(err)}
}

func customerMessage(err error) string {
	switch {
	case errors.Is(err, app.ErrNotAuthenticated):
		return "You need to be signed in to do that."
	case errors.Is(err, app.ErrInvalidAmount):
		return "That amount doesn't look right. Please use a positive amount."
	case errors.Is(err, app.ErrRecipientNotFound):
		return "No one matching that recipient could be found."
	case errors.Is(err, app.ErrAmbiguousRecipient):
		return "More than one person matches that recipient. Please be more specific."
	case errors.Is(err, app.ErrSelfTransfer):
		return "You can't send money to yourself."
	case errors.Is(err, app.ErrApplicationRejected):
		return "Unfortunately the application was not approved at this time."
	case errors.Is(err, app.ErrExtensionDeclined):
		return "Unfortunately the extension request was not approved."
	case errors.Is(err, store.ErrInsufficientFunds):
		return "There aren't enough funds in the account for that."
	case errors.Is(err, store.ErrAccountNotFound):
		return "That account could not be found."
	case errors.Is(err, store.ErrUserNotFound):
		return "No one matching that recipient could be found."
	default:
		return "Something went wrong while handling that request. Please try again."
	}
}

func argString(args map[string]interface{}, key string) string {
	s, _ := args[key].(string)
	return s
}

func argInt64(args map[string]interface{}, key string) int64 {
	switch v := args[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	default:
		return 0
	}
}

func argIntOr(args map[string]interface{}, key string, fallback int) int {
	if _, ok := args[key]; !ok {
		return fallback
	}
	n := int(argInt64(args, key))
	if n <= 0 {
		return fallback
	}
	return n
}
