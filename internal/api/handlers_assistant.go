/**
 * @description
 * HTTP surface for the conversational assistant. A turn is submitted as a
 * POST and answered as a Server-Sent Events stream: text deltas as the model
 * produces them, short status notices around tool execution, and a final
 * done event. Sessions live in memory, one per authenticated user, and are
 * created on first use.
 *
 * @dependencies
 * - encoding/json, net/http, sync: Standard Go libraries.
 * - internal/assistant: The conversation orchestrator.
 * - internal/store: User lookup for session creation.
 */

package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"github.com/google/uuid"

	"github.com/lumenbank/banking-service/internal/assistant"
	"github.com/lumenbank/banking-service/internal/store"
)

// AssistantHandlers owns the orchestrator and the per-user session table.
type AssistantHandlers struct {
	orchestrator    *assistant.Orchestrator
	repo            store.Repository
	defaultLanguage string

	mu       sync.Mutex
	sessions map[uuid.UUID]*assistant.Session
}

// NewAssistantHandlers creates the assistant HTTP surface.
func NewAssistantHandlers(orchestrator *assistant.Orchestrator, repo store.Repository, defaultLanguage string) *AssistantHandlers {
	return &AssistantHandlers{
		orchestrator:    orchestrator,
		repo:            repo,
		defaultLanguage: defaultLanguage,
		sessions:        make(map[uuid.UUID]*assistant.Session),
	}
}

// sseSink writes turn events to a Server-Sent Events response.
type sseSink struct {
	w       http.ResponseWriter
	flusher http.Flusher
}

func (s *sseSink) AssistantText(delta string) { s.emit("message", delta) }
func (s *sseSink) Status(message string)      { s.emit("status", message) }

func (s *sseSink) emit(event, text string) {
	payload, err := json.Marshal(map[string]string{"text": text})
	if err != nil {
		return
	}
	_, _ = s.w.Write([]byte("event: " + event + "\ndata: " + string(payload) + "\n\n"))
	s.flusher.Flush()
}

// TurnHandler runs one assistant turn and streams the result.
// Request body: {"message": "...", "language": "en"}.
func (h *AssistantHandlers) TurnHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	var req struct {
		Message  string `json:"message"`
		Language string `json:"language"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Message == "" {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Language == "" {
		req.Language = h.defaultLanguage
	}

	session, err := h.sessionFor(r, userID, req.Language)
	if err != nil {
		log.Printf("level=error component=api endpoint=assistant_turn msg=\"session setup failed\" user_id=%s err=%v", userID, err)
		http.Error(w, "Could not start assistant session", http.StatusInternalServerError)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)

	sink := &sseSink{w: w, flusher: flusher}
	if err := h.orchestrator.RunTurn(r.Context(), session, req.Message, sink); err != nil {
		log.Printf("level=error component=api endpoint=assistant_turn msg=\"turn failed\" user_id=%s err=%v", userID, err)
	}
	sink.emit("done", "")
}

// ResetHandler discards the user's conversation, forcing a fresh session
// (and a fresh system prompt) on the next turn.
func (h *AssistantHandlers) ResetHandler(w http.ResponseWriter, r *http.Request) {
	userID, ok := GetAuthUserID(r.Context())
	if !ok {
		http.Error(w, "Could not get user ID from context", http.StatusInternalServerError)
		return
	}

	h.mu.Lock()
	delete(h.sessions, userID)
	h.mu.Unlock()
	w.WriteHeader(http.StatusNoContent)
}

// sessionFor returns the user's running session, creating one when absent or
// when the requested language differs from the session's.
func (h *AssistantHandlers) sessionFor(r *http.Request, userID uuid.UUID, language string) (*assistant.Session, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if session, ok := h.sessions[userID]; ok && session.Language == language {
		return session, nil
	}

	user, err := h.repo.FindUserByID(r.Context(), userID)
	if err != nil {
		return nil, err
	}
	session := h.orchestrator.NewSession(user, language)
	h.sessions[userID] = session
	return session, nil
}
