// Package billing is the HTTP client for the estate app's billing API. It
// creates wallet-crediting payments and expense records; the API applies
// the wallet credit atomically with payment creation.
package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/residio-ng/residio/internal/common"
	"github.com/residio-ng/residio/internal/service"
)

// Config holds billing API settings.
type Config struct {
	BaseURL string
	APIKey  string
}

// Client calls the billing API.
type Client struct {
	cfg    Config
	client *http.Client
	retry  service.RetryOptions
}

// NewClient creates a billing API client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("%w: billing.base_url is required", common.ErrMissingConfig)
	}
	return &Client{
		cfg:    cfg,
		client: &http.Client{Timeout: 30 * time.Second},
		retry: service.RetryOptions{
			MaxAttempts:  3,
			InitialDelay: time.Second,
			MaxDelay:     15 * time.Second,
			Multiplier:   2.0,
		},
	}, nil
}

// CreatePayment creates a wallet-crediting payment. The reference is the
// idempotency key: the API returns the existing payment for a repeated
// reference instead of creating a second one.
func (c *Client) CreatePayment(ctx context.Context, req service.PaymentRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/api/v1/payments", map[string]any{
		"resident_id":  req.ResidentID,
		"reference":    req.Reference,
		"source":       req.Source,
		"amount_minor": req.AmountMinor,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create payment %s: %w", req.Reference, err)
	}
	return resp.ID, nil
}

// CreateExpense records an expense against a category.
func (c *Client) CreateExpense(ctx context.Context, req service.ExpenseRequest) (string, error) {
	var resp struct {
		ID string `json:"id"`
	}
	err := c.post(ctx, "/api/v1/expenses", map[string]any{
		"category_id":  req.CategoryID,
		"reference":    req.Reference,
		"description":  req.Description,
		"amount_minor": req.AmountMinor,
	}, &resp)
	if err != nil {
		return "", fmt.Errorf("failed to create expense %s: %w", req.Reference, err)
	}
	return resp.ID, nil
}

func (c *Client) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}

	return common.WithRetry(ctx, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(body))
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: false}
		}
		req.Header.Set("Content-Type", "application/json")
		if c.cfg.APIKey != "" {
			req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			return &common.RetryableError{Err: err, Retryable: true}
		}
		defer func() { _ = resp.Body.Close() }()

		switch {
		case resp.StatusCode == http.StatusTooManyRequests:
			return common.ErrRateLimit
		case resp.StatusCode >= 500:
			return &common.RetryableError{Err: fmt.Errorf("billing API returned %d", resp.StatusCode), Retryable: true}
		case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
			return &common.RetryableError{Err: common.ErrUnauthorized, Retryable: false}
		case resp.StatusCode >= 400:
			return &common.RetryableError{Err: fmt.Errorf("billing API returned %d", resp.StatusCode), Retryable: false}
		}

		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return &common.RetryableError{Err: fmt.Errorf("failed to decode response: %w", err), Retryable: false}
		}
		return nil
	}, c.retry)
}
