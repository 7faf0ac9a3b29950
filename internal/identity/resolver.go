// Package identity resolves opaque bearer credentials into stable actor
// identities via an external identity service. It is a pure I/O boundary:
// resolution happens before any board state is touched and has no side
// effects on the canvas.
package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Sentinel errors callers check with errors.Is.
var (
	// ErrAuthFailed indicates the credential is invalid or expired. The
	// caller must re-authenticate; retrying with the same credential is
	// pointless.
	ErrAuthFailed = errors.New("identity: credential rejected")

	// ErrUpstreamUnavailable indicates the identity service could not be
	// reached or answered with a server error. The caller may retry at its
	// own discretion.
	ErrUpstreamUnavailable = errors.New("identity: upstream unavailable")
)

// Identity is a resolved actor identity.
type Identity struct {
	ID          string
	DisplayName string
}

// Resolver resolves bearer credentials against a Discord-style identity
// endpoint (GET {base_url}/users/@me).
type Resolver struct {
	baseURL    string
	httpClient *http.Client
}

// NewResolver creates a resolver for the given identity service base URL.
// A zero timeout defaults to 10 seconds.
func NewResolver(baseURL string, timeout time.Duration) *Resolver {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Resolver{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

// userProfile is the wire shape of the identity endpoint response.
// GlobalName is the user-facing display name; Username is the stable
// account name used as a fallback.
type userProfile struct {
	ID         string `json:"id"`
	Username   string `json:"username"`
	GlobalName string `json:"global_name"`
}

// Resolve exchanges a bearer credential for the actor's identity.
// Returns ErrAuthFailed for rejected credentials and ErrUpstreamUnavailable
// when the identity service cannot answer.
func (r *Resolver) Resolve(ctx context.Context, credential string) (*Identity, error) {
	if credential == "" {
		return nil, fmt.Errorf("%w: empty credential", ErrAuthFailed)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.baseURL+"/users/@me", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build identity request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+credential)

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpstreamUnavailable, err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusOK:
		// Fall through to decode.
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode)
	default:
		return nil, fmt.Errorf("%w: status %d", ErrUpstreamUnavailable, resp.StatusCode)
	}

	var profile userProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return nil, fmt.Errorf("%w: malformed profile response: %v", ErrUpstreamUnavailable, err)
	}
	if profile.ID == "" {
		return nil, fmt.Errorf("%w: profile response missing id", ErrUpstreamUnavailable)
	}

	displayName := profile.GlobalName
	if displayName == "" {
		displayName = profile.Username
	}

	return &Identity{ID: profile.ID, DisplayName: displayName}, nil
}
