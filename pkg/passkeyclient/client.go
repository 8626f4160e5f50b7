/**
 * @description
 * Client for the platform strong-authentication service. The service owns
 * the WebAuthn ceremony; this client only asks it to challenge the user
 * against their registered credential identifiers and reports the boolean
 * outcome. A challenge that errors or times out is treated as a denial by
 * the caller, never as an approval.
 *
 * @dependencies
 * - bytes, context, encoding/json, fmt, net/http: Standard Go libraries.
 */
package passkeyclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// Client communicates with the strong-authentication service.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient creates a new strong-authentication client. The client carries no
// timeout of its own; the caller's context deadline bounds each challenge, so
// a configured challenge window is never silently capped here.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{},
	}
}

type challengeRequest struct {
	UserID        string   `json:"user_id"`
	CredentialIDs []string `json:"credential_ids"`
}

type challengeResponse struct {
	Approved bool `json:"approved"`
}

// Challenge asks the authentication service for proof of possession of one
// of the user's registered credentials. Returns whether the user approved.
func (c *Client) Challenge(ctx context.Context, userID uuid.UUID, credentialIDs []string) (bool, error) {
	payload, err := json.Marshal(challengeRequest{
		UserID:        userID.String(),
		CredentialIDs: credentialIDs,
	})
	if err != nil {
		return false, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/challenges", bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("authentication challenge request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("authentication service returned status %d", resp.StatusCode)
	}

	var parsed challengeResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return false, fmt.Errorf("decode challenge response: %w", err)
	}
	return parsed.Approved, nil
}
