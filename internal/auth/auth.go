// Package auth provides optional external verification of wallet sessions.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

var (
	// ErrInvalidToken means the session token does not prove the wallet.
	ErrInvalidToken = errors.New("auth: invalid token")

	// ErrUnavailable means the verifier gave no answer. The server decides
	// whether that admits or rejects the player.
	ErrUnavailable = errors.New("auth: unavailable")
)

// DefaultTimeout bounds a single verification call.
const DefaultTimeout = 500 * time.Millisecond

// maxReplyBytes caps how much of a verifier reply is read.
const maxReplyBytes = 1 << 20

// Identity is the verified owner of a wallet session.
type Identity struct {
	Address string `json:"address"`
	Name    string `json:"name,omitempty"`
}

// Validator checks that a client controls the address it claims.
type Validator interface {
	// Validate returns the verified identity for address, ErrInvalidToken if
	// the token does not prove ownership, or ErrUnavailable when the check
	// could not be made.
	Validate(ctx context.Context, address, token string) (*Identity, error)
}

type validateRequest struct {
	Address string `json:"address"`
	Token   string `json:"token"`
}

type validateResponse struct {
	Valid   bool   `json:"valid"`
	Address string `json:"address,omitempty"`
	Name    string `json:"name,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HTTPValidator posts each session to a wallet verification endpoint.
type HTTPValidator struct {
	endpoint string
	secret   string
	wait     time.Duration
	http     *http.Client
}

// NewHTTPValidator returns a validator for endpoint. The secret, when set, is
// sent as X-Admin-Secret. A zero timeout falls back to DefaultTimeout.
func NewHTTPValidator(endpoint, adminSecret string, timeout time.Duration) *HTTPValidator {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &HTTPValidator{
		endpoint: endpoint,
		secret:   adminSecret,
		wait:     timeout,
		http:     &http.Client{Timeout: timeout},
	}
}

func (v *HTTPValidator) Validate(ctx context.Context, address, token string) (*Identity, error) {
	if token == "" {
		return nil, ErrInvalidToken
	}
	reply, err := v.call(ctx, validateRequest{Address: address, Token: token})
	if err != nil {
		return nil, err
	}
	return reply.verdict(address)
}

// call performs one round trip. Anything short of a decoded 200 reply is
// ErrUnavailable, except 401 and 403 which reject the token outright.
func (v *HTTPValidator) call(ctx context.Context, body validateRequest) (*validateResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, v.wait)
	defer cancel()

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("encode session: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build verify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if v.secret != "" {
		req.Header.Set("X-Admin-Secret", v.secret)
	}

	resp, err := v.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, ErrInvalidToken
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: verifier answered %s", ErrUnavailable, resp.Status)
	}

	var reply validateResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReplyBytes)).Decode(&reply); err != nil {
		return nil, fmt.Errorf("%w: unreadable reply: %v", ErrUnavailable, err)
	}
	return &reply, nil
}

// verdict accepts the reply only if it vouches for the claimed wallet. The
// verifier may change the address's letter case but not the address itself.
func (r *validateResponse) verdict(claimed string) (*Identity, error) {
	if !r.Valid {
		return nil, ErrInvalidToken
	}
	if r.Address != "" && !strings.EqualFold(r.Address, claimed) {
		return nil, ErrInvalidToken
	}
	return &Identity{Address: claimed, Name: r.Name}, nil
}

// NoopValidator trusts whatever address the client claims. Development only.
type NoopValidator struct{}

func NewNoopValidator() *NoopValidator {
	return &NoopValidator{}
}

func (NoopValidator) Validate(_ context.Context, address, _ string) (*Identity, error) {
	return &Identity{Address: address}, nil
}
