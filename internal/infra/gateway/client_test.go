package gateway_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/app/policies"
	"innkeep/internal/domain/shared/money"
	"innkeep/internal/infra/gateway"
)

func newClient(url string) *gateway.Client {
	return &gateway.Client{HTTP: http.DefaultClient, BaseURL: url, APIKey: "test-key"}
}

func TestCreatePaymentLink(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/payment_links", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"link_id":"pl_123","url":"https://pay.example/pl_123"}`))
	}))
	defer srv.Close()

	link, err := newClient(srv.URL).CreatePaymentLink(context.Background(), money.Must(50000, "INR"), policies.Customer{Name: "Asha"})
	require.NoError(t, err)
	assert.Equal(t, "pl_123", link.LinkID)
	assert.Equal(t, "https://pay.example/pl_123", link.URL)
}

func TestCreatePaymentLink_RejectionIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).CreatePaymentLink(context.Background(), money.Must(50000, "INR"), policies.Customer{})
	var gerr *policies.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Retryable)
}

func TestGetPaymentLinkStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_links/pl_123", r.URL.Path)
		w.Write([]byte(`{"link_id":"pl_123","status":"paid"}`))
	}))
	defer srv.Close()

	status, err := newClient(srv.URL).GetPaymentLinkStatus(context.Background(), "pl_123")
	require.NoError(t, err)
	assert.Equal(t, policies.LinkPaid, status)
}

func TestGetPaymentLinkStatus_ServerErrorIsRetryable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "oops", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).GetPaymentLinkStatus(context.Background(), "pl_123")
	var gerr *policies.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.True(t, gerr.Retryable)
}

func TestGetPaymentLinkStatus_UnknownStatusIsFatal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"link_id":"pl_123","status":"weird"}`))
	}))
	defer srv.Close()

	_, err := newClient(srv.URL).GetPaymentLinkStatus(context.Background(), "pl_123")
	var gerr *policies.GatewayError
	require.ErrorAs(t, err, &gerr)
	assert.False(t, gerr.Retryable)
}
