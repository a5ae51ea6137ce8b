package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"innkeep/internal/app/policies"
	"innkeep/internal/domain/shared/money"
)

// Client talks to the external payment provider over HTTP. Link creation
// failures are fatal; status-poll failures come back retryable so the
// confirmation loop keeps polling through transient outages.
type Client struct {
	HTTP    *http.Client
	BaseURL string
	APIKey  string
	Logger  *slog.Logger
}

type createLinkRequest struct {
	Amount   int64        `json:"amount"`
	Currency string       `json:"currency"`
	Customer linkCustomer `json:"customer"`
}

type linkCustomer struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type createLinkResponse struct {
	LinkID string `json:"link_id"`
	URL    string `json:"url"`
}

type linkStatusResponse struct {
	LinkID string `json:"link_id"`
	Status string `json:"status"`
}

func (c *Client) CreatePaymentLink(ctx context.Context, amount money.Money, customer policies.Customer) (policies.PaymentLink, error) {
	var zero policies.PaymentLink
	if c == nil || c.HTTP == nil {
		return zero, &policies.GatewayError{Op: "create_link", Err: errors.New("http client not configured")}
	}
	if c.BaseURL == "" {
		return zero, &policies.GatewayError{Op: "create_link", Err: errors.New("base url not configured")}
	}

	payload := createLinkRequest{
		Amount:   amount.Amount,
		Currency: amount.Currency,
		Customer: linkCustomer{Name: customer.Name, Email: customer.Email, Phone: customer.Phone},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return zero, &policies.GatewayError{Op: "create_link", Err: err}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payment_links", bytes.NewReader(body))
	if err != nil {
		return zero, &policies.GatewayError{Op: "create_link", Err: err}
	}
	c.setHeaders(request)

	resp, err := c.HTTP.Do(request)
	if err != nil {
		c.logError("payment link creation failed", "", err)
		return zero, &policies.GatewayError{Op: "create_link", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		err := statusError(resp)
		c.logError("payment link creation rejected", "", err)
		return zero, &policies.GatewayError{Op: "create_link", Err: err}
	}

	var out createLinkResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return zero, &policies.GatewayError{Op: "create_link", Err: err}
	}
	if out.LinkID == "" {
		return zero, &policies.GatewayError{Op: "create_link", Err: errors.New("provider returned empty link id")}
	}
	return policies.PaymentLink{LinkID: out.LinkID, URL: out.URL}, nil
}

func (c *Client) GetPaymentLinkStatus(ctx context.Context, linkID string) (policies.LinkStatus, error) {
	if c == nil || c.HTTP == nil {
		return "", &policies.GatewayError{Op: "link_status", Err: errors.New("http client not configured")}
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"/v1/payment_links/"+linkID, nil)
	if err != nil {
		return "", &policies.GatewayError{Op: "link_status", Err: err}
	}
	c.setHeaders(request)

	resp, err := c.HTTP.Do(request)
	if err != nil {
		c.logError("payment link status poll failed", linkID, err)
		return "", &policies.GatewayError{Op: "link_status", Retryable: true, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusInternalServerError {
		err := statusError(resp)
		c.logError("payment link status poll failed", linkID, err)
		return "", &policies.GatewayError{Op: "link_status", Retryable: true, Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return "", &policies.GatewayError{Op: "link_status", Err: statusError(resp)}
	}

	var out linkStatusResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", &policies.GatewayError{Op: "link_status", Retryable: true, Err: err}
	}
	status, err := policies.ParseLinkStatus(out.Status)
	if err != nil {
		return "", &policies.GatewayError{Op: "link_status", Err: err}
	}
	return status, nil
}

func (c *Client) setHeaders(r *http.Request) {
	r.Header.Set("Content-Type", "application/json")
	if c.APIKey != "" {
		r.Header.Set("Authorization", "Bearer "+c.APIKey)
	}
}

func statusError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("provider returned status %d: %s", resp.StatusCode, string(snippet))
}

func (c *Client) logError(msg, linkID string, err error) {
	if c.Logger == nil {
		return
	}
	c.Logger.Error(msg, "link_id", linkID, "error", err)
}

var _ policies.PaymentGateway = (*Client)(nil)
