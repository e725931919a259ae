package settlement

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/charmbracelet/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *log.Logger {
	return log.NewWithOptions(io.Discard, log.Options{})
}

func TestHTTPClientTransfer(t *testing.T) {
	var got transferRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/transfers", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(transferResponse{TxID: "0xabc"})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL+"/", 0, quietLogger())
	tx, err := c.Transfer(context.Background(), TreasuryAddress, 4, "USDC")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx)
	assert.Equal(t, transferRequest{To: TreasuryAddress, Amount: 4, Currency: "USDC"}, got)
}

func TestHTTPClientFailures(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{
			name: "server error",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusBadGateway)
				_ = json.NewEncoder(w).Encode(transferResponse{Error: "insufficient funds"})
			},
			want: "insufficient funds",
		},
		{
			name: "missing transaction id",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{}`))
			},
			want: "no transaction id",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(tt.handler)
			defer srv.Close()

			_, err := NewHTTPClient(srv.URL, 0, quietLogger()).Transfer(context.Background(), TreasuryAddress, 1, "USDC")
			require.ErrorIs(t, err, ErrPayoutFailed)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLedger(t *testing.T) {
	l := NewLedger()
	tx, err := l.Transfer(context.Background(), TreasuryAddress, 2, "USDC")
	require.NoError(t, err)
	assert.NotEmpty(t, tx)

	l.FailWith(errors.New("network down"))
	_, err = l.Transfer(context.Background(), TreasuryAddress, 2, "USDC")
	require.ErrorIs(t, err, ErrPayoutFailed)

	l.FailWith(nil)
	_, err = l.Transfer(context.Background(), TreasuryAddress, 0, "USDC")
	require.ErrorIs(t, err, ErrPayoutFailed)

	require.Len(t, l.Transfers(), 1)
	assert.Equal(t, Transfer{TxID: tx, To: TreasuryAddress, Amount: 2, Currency: "USDC"}, l.Transfers()[0])
}
