// Package gateway is the HTTP client for the payment provider.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	ordersports "github.com/Apurer/go-commerce-api-server/internal/domains/orders/ports"
	"github.com/Apurer/go-commerce-api-server/internal/shared/money"
)

var _ ordersports.PaymentGateway = (*Client)(nil)

// Client calls the payment provider's REST API. All amounts cross the wire
// as integer cents.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// NewClient instantiates the gateway client with sane defaults.
func NewClient(baseURL, apiKey string, opts ...Option) (*Client, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, errors.New("gateway base URL is required")
	}
	c := &Client{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c, nil
}

type chargeRequest struct {
	AmountCents int64  `json:"amount_cents"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type intentResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

type refundRequest struct {
	IntentID    string `json:"intent_id"`
	AmountCents int64  `json:"amount_cents"`
}

type refundResponse struct {
	ID          string `json:"id"`
	Status      string `json:"status"`
	AmountCents int64  `json:"amount_cents"`
}

type transactionResponse struct {
	IntentID    string    `json:"intent_id"`
	AmountCents int64     `json:"amount_cents"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"created_at"`
}

type errorResponse struct {
	Message string `json:"message"`
}

// Charge authorizes and captures a payment. Declines map to
// ErrPaymentDeclined; everything else, timeouts included, is a plain error
// the caller treats as failure.
func (c *Client) Charge(ctx context.Context, amount decimal.Decimal, description string) (ordersports.Intent, error) {
	if c == nil || c.httpClient == nil {
		return ordersports.Intent{}, errors.New("gateway client not configured")
	}
	body := chargeRequest{
		AmountCents: money.Cents(amount),
		Currency:    "USD",
		Description: description,
	}
	var resp intentResponse
	status, err := c.post(ctx, "/v1/charges", body, &resp)
	if err != nil {
		return ordersports.Intent{}, err
	}
	if status == http.StatusPaymentRequired || !strings.EqualFold(resp.Status, "succeeded") {
		return ordersports.Intent{}, fmt.Errorf("%w: status %q", ordersports.ErrPaymentDeclined, resp.Status)
	}
	return ordersports.Intent{
		ID:     resp.ID,
		Status: resp.Status,
		Amount: money.FromCents(resp.AmountCents),
	}, nil
}

// Refund returns money against a prior charge.
func (c *Client) Refund(ctx context.Context, intentID string, amount decimal.Decimal) (ordersports.RefundReceipt, error) {
	if c == nil || c.httpClient == nil {
		return ordersports.RefundReceipt{}, errors.New("gateway client not configured")
	}
	if strings.TrimSpace(intentID) == "" {
		return ordersports.RefundReceipt{}, errors.New("payment intent ID is required")
	}
	body := refundRequest{IntentID: intentID, AmountCents: money.Cents(amount)}
	var resp refundResponse
	if _, err := c.post(ctx, "/v1/refunds", body, &resp); err != nil {
		return ordersports.RefundReceipt{}, err
	}
	return ordersports.RefundReceipt{
		ID:     resp.ID,
		Status: resp.Status,
		Amount: money.FromCents(resp.AmountCents),
	}, nil
}

// ListTransactions pages the provider ledger from since onward.
func (c *Client) ListTransactions(ctx context.Context, since time.Time) ([]ordersports.Transaction, error) {
	if c == nil || c.httpClient == nil {
		return nil, errors.New("gateway client not configured")
	}
	endpoint := fmt.Sprintf("%s/v1/transactions?since=%s", c.baseURL, url.QueryEscape(since.UTC().Format(time.RFC3339)))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway error: %s", readErrorMessage(resp))
	}
	var listed []transactionResponse
	if err := json.NewDecoder(resp.Body).Decode(&listed); err != nil {
		return nil, fmt.Errorf("decode gateway response: %w", err)
	}
	transactions := make([]ordersports.Transaction, 0, len(listed))
	for _, tx := range listed {
		transactions = append(transactions, ordersports.Transaction{
			IntentID:  tx.IntentID,
			Amount:    money.FromCents(tx.AmountCents),
			Status:    tx.Status,
			CreatedAt: tx.CreatedAt,
		})
	}
	return transactions, nil
}

func (c *Client) post(ctx context.Context, path string, body any, out any) (int, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return 0, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return 0, err
	}
	c.setHeaders(req)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("call payment gateway: %w", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusOK || resp.StatusCode == http.StatusCreated:
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode gateway response: %w", err)
		}
		return resp.StatusCode, nil
	case resp.StatusCode == http.StatusPaymentRequired:
		return resp.StatusCode, fmt.Errorf("%w: %s", ordersports.ErrPaymentDeclined, readErrorMessage(resp))
	default:
		return resp.StatusCode, fmt.Errorf("gateway error: %s", readErrorMessage(resp))
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func readErrorMessage(resp *http.Response) string {
	var body errorResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err == nil {
		if msg := strings.TrimSpace(body.Message); msg != "" {
			return msg
		}
	}
	return resp.Status
}
