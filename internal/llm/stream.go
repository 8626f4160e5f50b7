package llm

import (
	"bufio"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

func base64Encode(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

type streamDelta struct {
	Content   string         `json:"content"`
	ToolCalls []wireToolCall `json:"tool_calls"`
}

type streamChunk struct {
	Choices []struct {
		Delta        streamDelta `json:"delta"`
		FinishReason *string     `json:"finish_reason"`
	} `json:"choices"`
}

// toolCallBuilder accumulates the fragments of one tool call across chunks.
// The wire format streams a call's id and name once, then its argument JSON
// in string pieces.
type toolCallBuilder struct {
	id   string
	name string
	args strings.Builder
}

// readStream consumes server-sent events from a streaming completion body.
// Text deltas are forwarded to onText immediately; tool-call fragments are
// assembled and returned with the completion once the stream ends.
func readStream(body io.Reader, onText func(delta string)) (*Completion, error) {
	completion := &Completion{}
	var text strings.Builder
	var order []int
	builders := make(map[int]*toolCallBuilder)

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || !strings.HasPrefix(line, "data:") {
			continue
		}
		data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if data == "[DONE]" {
			break
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			return nil, NewTransientError(fmt.Errorf("decode stream chunk: %w", err))
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		choice := chunk.Choices[0]

		if choice.Delta.Content != "" {
			text.WriteString(choice.Delta.Content)
			if onText != nil {
				onText(choice.Delta.Content)
			}
		}

		for _, fragment := range choice.Delta.ToolCalls {
			index := 0
			if fragment.Index != nil {
				index = *fragment.Index
			}
			builder, ok := builders[index]
			if !ok {
				builder = &toolCallBuilder{}
				builders[index] = builder
				order = append(order, index)
			}
			if fragment.ID != "" {
				builder.id = fragment.ID
			}
			if fragment.Function.Name != "" {
				builder.name = fragment.Function.Name
			}
			builder.args.WriteString(fragment.Function.Arguments)
		}

		if choice.FinishReason != nil && *choice.FinishReason != "" {
			completion.FinishReason = *choice.FinishReason
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, NewTransientError(fmt.Errorf("read stream: %w", err))
	}

	completion.Text = text.String()
	for _, index := range order {
		builder := builders[index]
		call := ToolCall{ID: builder.id, Name: builder.name}
		raw := strings.TrimSpace(builder.args.String())
		if raw != "" {
			if err := json.Unmarshal([]byte(raw), &call.Arguments); err != nil {
				return nil, NewFatalError(fmt.Errorf("tool call %q has malformed arguments: %w", builder.name, err))
			}
		}
		if call.Arguments == nil {
			call.Arguments = map[string]interface{}{}
		}
		completion.ToolCalls = append(completion.ToolCalls, call)
	}
	return completion, nil
}
