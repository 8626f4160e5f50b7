// Package llm provides the chat-service client used by the assistant. It
// speaks the OpenAI-compatible chat completions wire format: streaming calls
// deliver incremental text and tool-call requests, and a separate
// non-streaming call accepts a strict output schema and returns parsed JSON
// for the batch analyses.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"
)

// maxErrorBody limits how much of an error response is echoed into errors.
const maxErrorBody = 2048

// Message is one chat turn. Role is "system", "user", "assistant", or
// "tool"; tool messages carry the ToolCallID they answer.
type Message struct {
	Role       string
	Content    string
	ImageData  []byte // optional; sent as an inline data URL part
	ToolCalls  []ToolCall
	ToolCallID string
	Name       string
}

// ToolCall is a structured function-call request emitted by the model.
type ToolCall struct {
	ID        string
	Name      string
	Arguments map[string]interface{}
}

// ToolDefinition declares one callable operation to the model.
type ToolDefinition struct {
	Name        string
	Description string
	Parameters  Schema
}

// Schema is the strict argument schema of a tool or structured output.
type Schema struct {
	Type       string              `json:"type"`
	Properties map[string]Property `json:"properties,omitempty"`
	Required   []string            `json:"required,omitempty"`
}

// Property describes one schema field.
type Property struct {
	Type        string   `json:"type"`
	Description string   `json:"description,omitempty"`
	Enum        []string `json:"enum,omitempty"`
}

// Completion is the final state of one model turn.
type Completion struct {
	Text         string
	ToolCalls    []ToolCall
	FinishReason string
}

// Client is the chat-service client.
type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewClient creates a chat-service client against an OpenAI-compatible endpoint.
func NewClient(baseURL, apiKey, model string) *Client {
	return &Client{
		baseURL: baseURL,
		apiKey:  apiKey,
		model:   model,
		httpClient: &http.Client{
			Timeout: 180 * time.Second, // allow time for model responses
		},
	}
}

// --- wire format ---

type wireToolCall struct {
	Index    *int   `json:"index,omitempty"`
	ID       string `json:"id,omitempty"`
	Type     string `json:"type,omitempty"`
	Function struct {
		Name      string `json:"name,omitempty"`
		Arguments string `json:"arguments,omitempty"`
	} `json:"function"`
}

type wireMessage struct {
	Role       string          `json:"role"`
	Content    interface{}     `json:"content"`
	ToolCalls  []wireToolCall  `json:"tool_calls,omitempty"`
	ToolCallID string          `json:"tool_call_id,omitempty"`
	Name       string          `json:"name,omitempty"`
}

type wireTool struct {
	Type     string `json:"type"`
	Function struct {
		Name        string `json:"name"`
		Description string `json:"description"`
		Parameters  Schema `json:"parameters"`
	} `json:"function"`
}

func encodeMessages(messages []Message) ([]wireMessage, error) {
	out := make([]wireMessage, 0, len(messages))
	for _, m := range messages {
		wm := wireMessage{Role: m.Role, ToolCallID: m.ToolCallID, Name: m.Name}

		if len(m.ImageData) > 0 {
			wm.Content = []map[string]interface{}{
				{"type": "text", "text": m.Content},
				{"type": "image_url", "image_url": map[string]string{
					"url": "data:image/jpeg;base64," + base64Encode(m.ImageData),
				}},
			}
		} else {
			wm.Content = m.Content
		}

		for _, tc := range m.ToolCalls {
			args, err := json.Marshal(tc.Arguments)
			if err != nil {
				return nil, fmt.Errorf("encode tool call arguments: %w", err)
			}
			wtc := wireToolCall{ID: tc.ID, Type: "function"}
			wtc.Function.Name = tc.Name
			wtc.Function.Arguments = string(args)
			wm.ToolCalls = append(wm.ToolCalls, wtc)
		}
		out = append(out, wm)
	}
	return out, nil
}

func encodeTools(tools []ToolDefinition) []wireTool {
	out := make([]wireTool, 0, len(tools))
	for _, t := range tools {
		wt := wireTool{Type: "function"}
		wt.Function.Name = t.Name
		wt.Function.Description = t.Description
		wt.Function.Parameters = t.Parameters
		out = append(out, wt)
	}
	return out
}

// StreamChat opens a streaming completion. Incremental text is delivered
// through onText as it arrives; tool-call requests accumulate and are
// returned in the Completion once the stream ends. Chunks of either kind
// may arrive interleaved and in any order.
func (c *Client) StreamChat(ctx context.Context, messages []Message, tools []ToolDefinition, onText func(delta string)) (*Completion, error) {
	wireMsgs, err := encodeMessages(messages)
	if err != nil {
		return nil, NewFatalError(err)
	}

	payload := map[string]interface{}{
		"model":    c.model,
		"messages": wireMsgs,
		"stream":   true,
	}
	if len(tools) > 0 {
		payload["tools"] = encodeTools(tools)
	}

	resp, err := c.post(ctx, payload)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return readStream(resp.Body, onText)
}

// AnalyzeJSON sends a non-streaming completion with a strict output schema
// and unmarshals the model's JSON into out. The schema is raw JSON-schema so
// callers can express nested shapes. Used for the batch insights and
// document analyses. Transient failures are retried once.
func (c *Client) AnalyzeJSON(ctx context.Context, messages []Message, schemaName string, schema map[string]interface{}, out interface{}) error {
	wireMsgs, err := encodeMessages(messages)
	if err != nil {
		return NewFatalError(err)
	}

	payload := map[string]interface{}{
		"model":    c.model,
		"messages": wireMsgs,
		"response_format": map[string]interface{}{
			"type": "json_schema",
			"json_schema": map[string]interface{}{
				"name":   schemaName,
				"strict": true,
				"schema": schema,
			},
		},
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(2 * time.Second):
			}
			log.Printf("level=warn component=llm msg=\"analysis retry\" attempt=%d err=%v", attempt, lastErr)
		}

		lastErr = c.analyzeOnce(ctx, payload, out)
		if lastErr == nil {
			return nil
		}
		if IsFatal(lastErr) {
			return lastErr
		}
	}
	return lastErr
}

func (c *Client) analyzeOnce(ctx context.Context, payload map[string]interface{}, out interface{}) error {
	resp, err := c.post(ctx, payload)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return NewTransientError(fmt.Errorf("decode completion: %w", err))
	}
	if len(parsed.Choices) == 0 {
		return NewTransientError(fmt.Errorf("completion has no choices"))
	}
	if err := json.Unmarshal([]byte(parsed.Choices[0].Message.Content), out); err != nil {
		return NewFatalError(fmt.Errorf("model output is not the requested schema: %w", err))
	}
	return nil
}

func (c *Client) post(ctx context.Context, payload map[string]interface{}) (*http.Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("encode request: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, NewFatalError(fmt.Errorf("create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, NewTransientError(fmt.Errorf("chat service request: %w", err))
	}
	if resp.StatusCode != http.StatusOK {
		defer resp.Body.Close()
		errBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, classifyHTTPError(resp.StatusCode, errBody)
	}
	return resp, nil
}

// classifyHTTPError sorts HTTP failures into transient and fatal.
func classifyHTTPError(statusCode int, body []byte) error {
	err := fmt.Errorf("chat service error (status %d): %s", statusCode, string(body))
	switch {
	case statusCode == http.StatusTooManyRequests:
		return NewTransientError(err)
	case statusCode >= 500:
		return NewTransientError(err)
	case statusCode == http.StatusUnauthorized, statusCode == http.StatusForbidden:
		return NewFatalError(err)
	default:
		return NewFatalError(err)
	}
}
