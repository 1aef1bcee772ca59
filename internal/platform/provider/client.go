// Package provider is the REST client of the banking provider that operates
// the segregated accounts.
package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/viban-reconciler/internal/config"
)

const maxErrorBody = 512

// Client calls the provider's payments, transactions and balance endpoints
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

// NewClient creates a provider client whose every call is bounded by cfg.Timeout
func NewClient(logger *slog.Logger, cfg *config.ProviderConfig) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: cfg.Timeout},
		logger:  logger.With("component", "provider_client"),
	}
}

// ListPayments returns the ids of payments created on the account since the given time
func (c *Client) ListPayments(ctx context.Context, accountID string, since time.Time) ([]string, error) {
	query := url.Values{"since": {since.UTC().Format(time.RFC3339)}}

	var resp paymentListResponse
	if err := c.get(ctx, "ListPayments", "/accounts/"+url.PathEscape(accountID)+"/payments", query, &resp); err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(resp.Payments))
	for _, p := range resp.Payments {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// GetPayment fetches one payment's detail
func (c *Client) GetPayment(ctx context.Context, accountID, paymentID string) (*PaymentDetail, error) {
	var detail PaymentDetail
	path := "/accounts/" + url.PathEscape(accountID) + "/payments/" + url.PathEscape(paymentID)
	if err := c.get(ctx, "GetPayment", path, nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

// ListTransactions returns bookings on the account since the given date
func (c *Client) ListTransactions(ctx context.Context, accountID string, sinceDate time.Time) ([]Transaction, error) {
	query := url.Values{"since": {sinceDate.UTC().Format(time.DateOnly)}}

	var resp transactionListResponse
	if err := c.get(ctx, "ListTransactions", "/accounts/"+url.PathEscape(accountID)+"/transactions", query, &resp); err != nil {
		return nil, err
	}
	return resp.Transactions, nil
}

// GetBalance returns the authoritative balance of a segregated account
func (c *Client) GetBalance(ctx context.Context, accountID string) (*Balance, error) {
	var balance Balance
	if err := c.get(ctx, "GetBalance", "/accounts/"+url.PathEscape(accountID)+"/balance", nil, &balance); err != nil {
		return nil, err
	}
	return &balance, nil
}

func (c *Client) get(ctx context.Context, op, path string, query url.Values, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to build %s request: %w", op, err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		c.logger.Warn("Provider call failed", "op", op, "error", err)
		return ErrProviderUnavailable{Op: op, Err: err}
	}
	defer resp.Body.Close()

	c.logger.Debug("Provider call completed",
		"op", op,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	if resp.StatusCode >= http.StatusInternalServerError {
		return ErrProviderUnavailable{Op: op, Err: fmt.Errorf("status %d", resp.StatusCode)}
	}
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return ErrUnexpectedStatus{Op: op, StatusCode: resp.StatusCode, Body: string(body)}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return ErrProviderUnavailable{Op: op, Err: fmt.Errorf("decode response: %w", err)}
	}
	return nil
}
