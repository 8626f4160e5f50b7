/**
 * @description
 * The re-authentication gate for sensitive tool calls. Before the
 * orchestrator executes a money-moving tool it asks the gate for a fresh
 * passkey confirmation. A confirmation unlocks exactly one tool call; any
 * failure of the challenge flow, including timeouts and transport errors,
 * counts as a denial.
 */

package assistant

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/lumenbank/banking-service/internal/store"
)

// Challenger performs one strong-authentication ceremony against the
// customer's registered passkeys and reports whether it succeeded.
type Challenger interface {
	Challenge(ctx context.Context, userID uuid.UUID, credentialIDs []string) (bool, error)
}

// Gate mediates sensitive tool execution.
type Gate struct {
	repo       store.Repository
	challenger Challenger
	timeout    time.Duration
}

// NewGate builds a gate with the given challenge timeout. A zero timeout
// falls back to 90 seconds, enough for a customer to reach for their phone.
func NewGate(repo store.Repository, challenger Challenger, timeout time.Duration) *Gate {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Gate{repo: repo, challenger: challenger, timeout: timeout}
}

// Authorize runs one passkey challenge for the user and reports whether the
// single pending tool call may proceed. It never returns an error to the
// caller; everything short of an explicit approval is a denial.
func (g *Gate) Authorize(ctx context.Context, userID uuid.UUID) bool {
	if g.challenger == nil {
		log.Printf("level=warn component=assistant_gate msg=\"no challenger configured, denying sensitive call\" user_id=%s", userID)
		return false
	}

	passkeys, err := g.repo.ListPasskeysByUserID(ctx, userID)
	if err != nil {
		log.Printf("level=error component=assistant_gate msg=\"failed to load passkeys\" user_id=%s error=%v", userID, err)
		return false
	}
	if len(passkeys) == 0 {
		log.Printf("level=warn component=assistant_gate msg=\"user has no registered passkeys\" user_id=%s", userID)
		return false
	}

	credentialIDs := make([]string, 0, len(passkeys))
	for _, pk := range passkeys {
		credentialIDs = append(credentialIDs, pk.CredentialID)
	}

	challengeCtx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	approved, err := g.challenger.Challenge(challengeCtx, userID, credentialIDs)
	if err != nil {
		log.Printf("level=warn component=assistant_gate msg=\"challenge failed, treating as denial\" user_id=%s error=%v", userID, err)
		return false
	}
	return approved
}
