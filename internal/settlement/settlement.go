// Package settlement pays out wagered matches.
package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"
)

// TreasuryAddress receives the pot of every wagered match.
const TreasuryAddress = "0x7236A11cFB10f002f60823C12AC6f616A7Ccd4e9"

// ErrPayoutFailed wraps every transfer failure. A failed payout never
// changes the match result.
var ErrPayoutFailed = errors.New("payout failed")

// Client moves funds to an address and returns the transaction id.
type Client interface {
	Transfer(ctx context.Context, to string, amount float64, currency string) (string, error)
}

// HTTPClient calls a settlement service over JSON.
type HTTPClient struct {
	endpoint string
	client   *http.Client
	logger   *log.Logger
}

// NewHTTPClient creates a client for the service at endpoint.
func NewHTTPClient(endpoint string, timeout time.Duration, logger *log.Logger) *HTTPClient {
	if timeout == 0 {
		timeout = 10 * time.Second
	}
	return &HTTPClient{
		endpoint: strings.TrimRight(endpoint, "/"),
		client:   &http.Client{Timeout: timeout},
		logger:   logger.WithPrefix("settlement"),
	}
}

type transferRequest struct {
	To       string  `json:"to"`
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

type transferResponse struct {
	TxID  string `json:"txId"`
	Error string `json:"error,omitempty"`
}

func (c *HTTPClient) Transfer(ctx context.Context, to string, amount float64, currency string) (string, error) {
	body, err := json.Marshal(transferRequest{To: to, Amount: amount, Currency: currency})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint+"/transfers", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPayoutFailed, err)
	}
	defer resp.Body.Close()

	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	var out transferResponse
	_ = json.Unmarshal(data, &out)

	if resp.StatusCode/100 != 2 {
		reason := out.Error
		if reason == "" {
			reason = strings.TrimSpace(string(data))
		}
		return "", fmt.Errorf("%w: status %d: %s", ErrPayoutFailed, resp.StatusCode, reason)
	}
	if out.TxID == "" {
		return "", fmt.Errorf("%w: response carried no transaction id", ErrPayoutFailed)
	}
	c.logger.Info("Transfer sent", "to", to, "amount", amount, "currency", currency, "tx", out.TxID)
	return out.TxID, nil
}

// Transfer is one recorded ledger entry.
type Transfer struct {
	TxID     string
	To       string
	Amount   float64
	Currency string
}

// Ledger settles in memory. Local games and tests use it.
type Ledger struct {
	mu        sync.Mutex
	transfers []Transfer
	fail      error
}

// NewLedger creates an empty ledger.
func NewLedger() *Ledger {
	return &Ledger{}
}

// FailWith makes every later transfer fail with err; nil restores success.
func (l *Ledger) FailWith(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.fail = err
}

func (l *Ledger) Transfer(_ context.Context, to string, amount float64, currency string) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fail != nil {
		return "", fmt.Errorf("%w: %v", ErrPayoutFailed, l.fail)
	}
	if amount <= 0 {
		return "", fmt.Errorf("%w: amount must be positive, got %v", ErrPayoutFailed, amount)
	}
	tx := "0x" + strings.ReplaceAll(uuid.NewString(), "-", "")
	l.transfers = append(l.transfers, Transfer{TxID: tx, To: to, Amount: amount, Currency: currency})
	return tx, nil
}

// Transfers returns a copy of everything settled so far.
func (l *Ledger) Transfers() []Transfer {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Transfer(nil), l.transfers...)
}
