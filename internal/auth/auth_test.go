package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func respond(resp validateResponse) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func TestHTTPValidatorValidToken(t *testing.T) {
	var got validateRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&got)
		if got.Token == "signed" {
			_ = json.NewEncoder(w).Encode(validateResponse{Valid: true, Address: "0xABC", Name: "alice"})
			return
		}
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: false})
	}))
	defer server.Close()

	validator := NewHTTPValidator(server.URL, "", 0)
	identity, err := validator.Validate(context.Background(), "0xabc", "signed")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", identity.Address)
	assert.Equal(t, "alice", identity.Name)
	assert.Equal(t, validateRequest{Address: "0xabc", Token: "signed"}, got)

	_, err = validator.Validate(context.Background(), "0xabc", "forged")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorRejectsOtherWallet(t *testing.T) {
	server := respond(validateResponse{Valid: true, Address: "0xdef"})
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "", 0).Validate(context.Background(), "0xabc", "token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorEmptyToken(t *testing.T) {
	_, err := NewHTTPValidator("http://localhost:9999", "", 0).Validate(context.Background(), "0xabc", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestHTTPValidatorStatusCodes(t *testing.T) {
	tests := []struct {
		name       string
		statusCode int
		wantErr    error
	}{
		{"unauthorized", http.StatusUnauthorized, ErrInvalidToken},
		{"forbidden", http.StatusForbidden, ErrInvalidToken},
		{"rate limited", http.StatusTooManyRequests, ErrUnavailable},
		{"server error", http.StatusInternalServerError, ErrUnavailable},
		{"unexpected", http.StatusTeapot, ErrUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			}))
			defer server.Close()

			_, err := NewHTTPValidator(server.URL, "", 0).Validate(context.Background(), "0xabc", "token")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHTTPValidatorTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(500 * time.Millisecond)
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: true})
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "", 50*time.Millisecond).Validate(context.Background(), "0xabc", "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorAdminSecret(t *testing.T) {
	var receivedSecret string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedSecret = r.Header.Get("X-Admin-Secret")
		_ = json.NewEncoder(w).Encode(validateResponse{Valid: true})
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "my-secret", 0).Validate(context.Background(), "0xabc", "token")
	require.NoError(t, err)
	assert.Equal(t, "my-secret", receivedSecret)
}

func TestHTTPValidatorMalformedJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("not json"))
	}))
	defer server.Close()

	_, err := NewHTTPValidator(server.URL, "", 0).Validate(context.Background(), "0xabc", "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestHTTPValidatorNetworkError(t *testing.T) {
	_, err := NewHTTPValidator("http://localhost:1", "", 0).Validate(context.Background(), "0xabc", "token")
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestNoopValidator(t *testing.T) {
	identity, err := NewNoopValidator().Validate(context.Background(), "0xabc", "")
	require.NoError(t, err)
	assert.Equal(t, &Identity{Address: "0xabc"}, identity)
}
