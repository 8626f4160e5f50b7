/**
 * @description
 * The conversation orchestrator. It owns the turn loop for one assistant
 * session: stream a model pass to the client, intercept any tool calls,
 * clear sensitive ones through the re-authentication gate, execute them in
 * the order the model issued them, then hand the results back for a closing
 * pass. Tool failures are folded into results the model can read; a failure
 * of the model stream itself ends the turn with one generic message.
 */

package assistant

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/banking-service/internal/domain"
	"github.com/lumenbank/banking-service/internal/llm"
)

// maxToolRounds bounds how many times a single turn may come back from tool
// execution into another model pass.
const maxToolRounds = 3

// ChatStreamer is the streaming side of the chat completion client.
type ChatStreamer interface {
	StreamChat(ctx context.Context, messages []llm.Message, tools []llm.ToolDefinition, onText func(string)) (*llm.Completion, error)
}

// TurnRateLimiter throttles how many turns a user may start per window.
type TurnRateLimiter interface {
	Allow(ctx context.Context, subject string, limit int, window time.Duration) (bool, time.Duration, error)
}

// EventSink receives the user-visible events of one turn as they happen.
// AssistantText carries streamed reply fragments; Status carries short
// progress notices around tool execution.
type EventSink interface {
	AssistantText(delta string)
	Status(message string)
}

// Session is one user's running conversation. A session serves one turn at a
// time; concurrent turns on the same session are serialized.
type Session struct {
	UserID   uuid.UUID
	Language string

	mu       sync.Mutex
	messages []llm.Message
}

// Orchestrator drives assistant turns against the chat service.
type Orchestrator struct {
	chat       ChatStreamer
	registry   *Registry
	dispatcher *Dispatcher
	gate       *Gate

	limiter    TurnRateLimiter
	turnLimit  int
	turnWindow time.Duration
}

// NewOrchestrator wires the turn loop. The limiter may be nil, in which case
// turns are not throttled.
func NewOrchestrator(chat ChatStreamer, registry *Registry, dispatcher *Dispatcher, gate *Gate, limiter TurnRateLimiter, turnLimit int, turnWindow time.Duration) *Orchestrator {
	return &Orchestrator{
		chat:       chat,
		registry:   registry,
		dispatcher: dispatcher,
		gate:       gate,
		limiter:    limiter,
		turnLimit:  turnLimit,
		turnWindow: turnWindow,
	}
}

// NewSession starts a conversation for the given user, seeding the history
// with the system prompt for the session language.
func (o *Orchestrator) NewSession(user *domain.User, language string) *Session {
	return &Session{
		UserID:   user.ID,
		Language: language,
		messages: []llm.Message{
			{Role: "system", Content: o.registry.SystemPrompt(user, language)},
		},
	}
}

// RunTurn processes one user message: it appends the message to the session,
// runs model passes and tool execution until the model produces a plain
// reply, and emits everything user-visible through the sink. The session
// history is extended with whatever the turn produced.
func (o *Orchestrator) RunTurn(ctx context.Context, session *Session, userText string, sink EventSink) error {
	session.mu.Lock()
	defer session.mu.Unlock()

	if o.limiter != nil && o.turnLimit > 0 {
		allowed, retryAfter, err := o.limiter.Allow(ctx, session.UserID.String(), o.turnLimit, o.turnWindow)
		if err != nil {
			log.Printf("level=warn component=orchestrator msg=\"rate limiter unavailable, allowing turn\" user_id=%s error=%v", session.UserID, err)
		} else if !allowed {
			sink.Status(rateLimitNotice(session.Language))
			log.Printf("level=info component=orchestrator msg=\"turn rate limited\" user_id=%s retry_after=%s", session.UserID, retryAfter)
			return nil
		}
	}

	session.messages = append(session.messages, llm.Message{Role: "user", Content: userText})

	for round := 0; ; round++ {
		completion, err := o.chat.StreamChat(ctx, session.messages, o.registry.Definitions(), sink.AssistantText)
		if err != nil {
			log.Printf("level=error component=orchestrator msg=\"model stream failed\" user_id=%s round=%d error=%v", session.UserID, round, err)
			sink.Status(genericTurnError(session.Language))
			return err
		}

		session.messages = append(session.messages, llm.Message{
			Role:      "assistant",
			Content:   completion.Text,
			ToolCalls: completion.ToolCalls,
		})

		if len(completion.ToolCalls) == 0 {
			return nil
		}
		if round >= maxToolRounds {
			// Close out the pending calls with failure results so the
			// history stays well formed for later turns: every assistant
			// tool_calls entry must be answered by tool messages.
			log.Printf("level=warn component=orchestrator msg=\"tool round limit reached\" user_id=%s", session.UserID)
			for _, call := range completion.ToolCalls {
				result := ToolResult{Name: call.Name, Success: false, Message: "The request could not be completed and was not executed."}
				appendToolReply(session, call, result)
			}
			sink.Status(genericTurnError(session.Language))
			return nil
		}

		for _, call := range completion.ToolCalls {
			result := o.executeCall(ctx, session, call, sink)
			appendToolReply(session, call, result)
		}
	}
}

// appendToolReply records one tool call's result in the session history as a
// role "tool" message the model can read on the next pass.
func appendToolReply(session *Session, call llm.ToolCall, result ToolResult) {
	body, err := json.Marshal(result)
	if err != nil {
		body = []byte(`{"success":false,"message":"internal error"}`)
	}
	session.messages = append(session.messages, llm.Message{
		Role:       "tool",
		ToolCallID: call.ID,
		Name:       call.Name,
		Content:    string(body),
	})
}

// executeCall runs one tool call, enforcing schema validation and the
// re-authentication gate. Every path yields a ToolResult for the model.
func (o *Orchestrator) executeCall(ctx context.Context, session *Session, call llm.ToolCall, sink EventSink) ToolResult {
	if err := o.registry.Validate(call.Name, call.Arguments); err != nil {
		log.Printf("level=warn component=orchestrator msg=\"tool call rejected\" user_id=%s tool=%s error=%v", session.UserID, call.Name, err)
		return ToolResult{Name: call.Name, Success: false, Message: "The request was malformed and was not executed."}
	}

	if o.registry.IsSensitive(call.Name) {
		sink.Status("Confirming it's you...")
		if !o.gate.Authorize(ctx, session.UserID) {
			log.Printf("level=info component=orchestrator msg=\"sensitive call denied\" user_id=%s tool=%s", session.UserID, call.Name)
			sink.Status(cancellationNotice(session.Language))
			return ToolResult{Name: call.Name, Success: false, Message: "The customer cancelled the confirmation, so nothing was done."}
		}
	}

	result := o.dispatcher.Execute(ctx, call.Name, session.UserID, session.Language, call.Arguments)
	if result.Message != "" {
		sink.Status(result.Message)
	}
	log.Printf("level=info component=orchestrator msg=\"tool executed\" user_id=%s tool=%s success=%t", session.UserID, call.Name, result.Success)
	return result
}

// genericTurnError is the one message shown when a turn dies mid-stream.
// Raw provider errors never reach the customer.
func genericTurnError(language string) string {
	return localized(language, map[string]string{
		"en": "Sorry, something went wrong on our side. Please try again in a moment.",
		"es": "Lo sentimos, algo salió mal de nuestro lado. Inténtalo de nuevo en un momento.",
		"fr": "Désolé, un problème est survenu de notre côté. Veuillez réessayer dans un instant.",
		"de": "Entschuldigung, bei uns ist etwas schiefgelaufen. Bitte versuchen Sie es gleich noch einmal.",
	})
}

// rateLimitNotice is shown when a turn is throttled.
func rateLimitNotice(language string) string {
	return localized(language, map[string]string{
		"en": "You're sending messages a little too quickly. Please wait a moment and try again.",
		"es": "Estás enviando mensajes demasiado rápido. Espera un momento e inténtalo de nuevo.",
		"fr": "Vous envoyez des messages un peu trop vite. Veuillez patienter un instant et réessayer.",
		"de": "Sie senden Nachrichten etwas zu schnell. Bitte warten Sie einen Moment und versuchen Sie es erneut.",
	})
}

// cancellationNotice is shown when a confirmation for a sensitive action does
// not complete, so the customer knows nothing happened.
func cancellationNotice(language string) string {
	return localized(language, map[string]string{
		"en": "The confirmation was cancelled, so nothing was done.",
		"es": "La confirmación fue cancelada, así que no se realizó ninguna acción.",
		"fr": "La confirmation a été annulée, donc aucune action n'a été effectuée.",
		"de": "Die Bestätigung wurde abgebrochen, es wurde nichts ausgeführt.",
	})
}

func localized(language string, messages map[string]string) string {
	if msg, ok := messages[language]; ok {
		return msg
	}
	return messages["en"]
}
