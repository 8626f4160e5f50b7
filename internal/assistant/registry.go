/**
 * @description
 * The tool registry: the fixed catalog of operations the assistant may call,
 * each with a name, description, and strict argument schema, plus the system
 * prompt that encodes usage policy. The registry performs no execution; the
 * orchestrator's dispatch table consumes it.
 */

package assistant

import (
	"fmt"
	"strings"

	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/llm"
)

// Tool couples a callable definition with its authorization class.
type Tool struct {
	llm.ToolDefinition
	Sensitive bool
}

// Registry is the catalog of tools exposed to the chat service.
type Registry struct {
	tools  []Tool
	byName map[string]*Tool
}

// NewRegistry builds the fixed tool catalog.
func NewRegistry() *Registry {
	tools := []Tool{
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "transfer_money",
				Description: "Send money from the customer's savings account to another person. The recipient can be identified by account number, email, phone, name, or username.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"recipient": {Type: "string", Description: "account number, email, phone, name, or username of the recipient"},
						"amount":    {Type: "integer", Description: "amount to send, in cents"},
					},
					Required: []string{"recipient", "amount"},
				},
			},
			Sensitive: true,
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "get_card_statement",
				Description: "Get a credit card's statement balance, minimum payment, and payment due date.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"card_last4": {Type: "string", Description: "last four digits of the card number"},
					},
					Required: []string{"card_last4"},
				},
			},
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "get_card_transactions",
				Description: "List recent transactions on one credit card.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"card_last4": {Type: "string", Description: "last four digits of the card number"},
						"limit":      {Type: "integer", Description: "maximum number of transactions to return"},
					},
					Required: []string{"card_last4"},
				},
			},
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "make_payment",
				Description: "Pay down a credit card or loan from the customer's savings balance.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"account_id":    {Type: "string", Description: "card last four digits, or the loan id"},
						"account_type":  {Type: "string", Enum: []string{"card", "loan"}},
						"payment_type":  {Type: "string", Enum: []string{"minimum", "statement", "full", "custom"}},
						"custom_amount": {Type: "integer", Description: "payment amount in cents, required when payment_type is custom"},
					},
					Required: []string{"account_id", "account_type", "payment_type"},
				},
			},
			Sensitive: true,
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "request_extension",
				Description: "Request a 14-day payment due date extension on a card or loan.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"account_id":   {Type: "string", Description: "card last four digits, or the loan id"},
						"account_type": {Type: "string", Enum: []string{"card", "loan"}},
					},
					Required: []string{"account_id", "account_type"},
				},
			},
			Sensitive: true,
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "apply_for_card",
				Description: "Apply for a new credit card with an instant decision.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"network":       {Type: "string", Enum: []string{"visa", "mastercard"}},
						"annual_income": {Type: "integer", Description: "stated annual income in cents"},
					},
					Required: []string{"network", "annual_income"},
				},
			},
			Sensitive: true,
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "apply_for_loan",
				Description: "Apply for a personal loan with an instant decision. Approved principal is credited to the savings balance.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"amount":      {Type: "integer", Description: "requested principal in cents"},
						"term_months": {Type: "integer", Description: "repayment term in months"},
						"purpose":     {Type: "string", Description: "what the loan is for"},
					},
					Required: []string{"amount", "term_months"},
				},
			},
			Sensitive: true,
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "get_account_transactions",
				Description: "List the customer's recent savings account transactions.",
				Parameters: llm.Schema{
					Type: "object",
					Properties: map[string]llm.Property{
						"limit": {Type: "integer", Description: "maximum number of transactions to return"},
					},
				},
			},
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "get_account_balance",
				Description: "Get the customer's current savings account balance.",
				Parameters:  llm.Schema{Type: "object"},
			},
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "get_spending_analysis",
				Description: "Run a fresh analysis of the customer's spending over the last 60 days.",
				Parameters:  llm.Schema{Type: "object"},
			},
		},
		{
			ToolDefinition: llm.ToolDefinition{
				Name:        "get_existing_insights",
				Description: "Fetch the customer's previously generated spending insights without recomputing them.",
				Parameters:  llm.Schema{Type: "object"},
			},
		},
	}

	byName := make(map[string]*Tool, len(tools))
	for i := range tools {
		byName[tools[i].Name] = &tools[i]
	}
	return &Registry{tools: tools, byName: byName}
}

// Definitions returns the tool declarations handed to the chat service.
func (r *Registry) Definitions() []llm.ToolDefinition {
	defs := make([]llm.ToolDefinition, 0, len(r.tools))
	for _, t := range r.tools {
		defs = append(defs, t.ToolDefinition)
	}
	return defs
}

// IsSensitive reports whether the named tool requires re-authentication
// before execution.
func (r *Registry) IsSensitive(name string) bool {
	tool, ok := r.byName[name]
	return ok && tool.Sensitive
}

// Known reports whether the named tool exists in the catalog.
func (r *Registry) Known(name string) bool {
	_, ok := r.byName[name]
	return ok
}

// Validate checks the arguments of one tool call against the declared
// schema: every required field present, every field of a declared primitive
// type, enum values in range, and no undeclared fields.
func (r *Registry) Validate(name string, args map[string]interface{}) error {
	tool, ok := r.byName[name]
	if !ok {
		return fmt.Errorf("unknown tool %q", name)
	}

	for _, required := range tool.Parameters.Required {
		if _, ok := args[required]; !ok {
			return fmt.Errorf("tool %q: missing required argument %q", name, required)
		}
	}

	for key, value := range args {
		prop, ok := tool.Parameters.Properties[key]
		if !ok {
			return fmt.Errorf("tool %q: undeclared argument %q", name, key)
		}
		if err := checkType(prop, value); err != nil {
			return fmt.Errorf("tool %q: argument %q: %w", name, key, err)
		}
	}
	return nil
}

func checkType(prop llm.Property, value interface{}) error {
	switch prop.Type {
	case "string":
		s, ok := value.(string)
		if !ok {
			return fmt.Errorf("expected string, got %T", value)
		}
		if len(prop.Enum) > 0 {
			for _, allowed := range prop.Enum {
				if s == allowed {
					return nil
				}
			}
			return fmt.Errorf("value %q not in %v", s, prop.Enum)
		}
	case "integer", "number":
		// JSON numbers arrive as float64.
		switch value.(type) {
		case float64, int, int64:
		default:
			return fmt.Errorf("expected number, got %T", value)
		}
	case "boolean":
		if _, ok := value.(bool); !ok {
			return fmt.Errorf("expected boolean, got %T", value)
		}
	}
	return nil
}

// SystemPrompt assembles the session instruction: the assistant's role, the
// tool usage policy, and the hard language constraint for the session.
func (r *Registry) SystemPrompt(user *domain.User, language string) string {
	var b strings.Builder
	b.WriteString("You are the Lumen Bank assistant. You help the customer manage their money ")
	b.WriteString("using the available tools.\n\n")
	fmt.Fprintf(&b, "The customer is %s (username %s).\n\n", user.DisplayName, user.Username)
	b.WriteString("Usage policy:\n")
	b.WriteString("- Use get_account_balance before promising any payment or transfer is affordable.\n")
	b.WriteString("- For questions about a card bill, prefer get_card_statement; for what was bought, get_card_transactions.\n")
	b.WriteString("- When the customer has more than one card or loan, ask which one they mean before calling make_payment or request_extension; never guess.\n")
	b.WriteString("- Use get_existing_insights for quick spending questions and get_spending_analysis only when the customer asks for a fresh look.\n")
	b.WriteString("- Amounts in tool arguments are integer cents.\n")
	b.WriteString("- Money movement, payments, applications, and extensions require the customer to re-authenticate; the app handles this, but tell the customer what you are about to do first.\n\n")
	fmt.Fprintf(&b, "All of your replies must be written in the language with code %q, without exception.\n", language)
	return b.String()
}
