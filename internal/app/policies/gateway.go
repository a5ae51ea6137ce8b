package policies

import (
	"context"
	"fmt"

	"innkeep/internal/domain/shared/money"
)

// LinkStatus mirrors the gateway's view of a payment link. The gateway owns
// these transitions; the engine only observes them.
type LinkStatus string

const (
	LinkCreated   LinkStatus = "created"
	LinkPaid      LinkStatus = "paid"
	LinkCancelled LinkStatus = "cancelled"
	LinkExpired   LinkStatus = "expired"
	LinkFailed    LinkStatus = "failed"
)

func ParseLinkStatus(raw string) (LinkStatus, error) {
	switch LinkStatus(raw) {
	case LinkCreated, LinkPaid, LinkCancelled, LinkExpired, LinkFailed:
		return LinkStatus(raw), nil
	default:
		return "", fmt.Errorf("gateway: unknown link status %q", raw)
	}
}

// IsTerminal reports whether the gateway will never move the link again.
func (s LinkStatus) IsTerminal() bool {
	switch s {
	case LinkPaid, LinkCancelled, LinkExpired, LinkFailed:
		return true
	default:
		return false
	}
}

// PaymentLink is the gateway's handle for an externally hosted payment
// request. The URL is surfaced to the payer out-of-band.
type PaymentLink struct {
	LinkID string
	URL    string
}

type Customer struct {
	Name  string
	Email string
	Phone string
}

// GatewayError wraps gateway/network failures. Status polls set Retryable;
// link creation failures are fatal.
type GatewayError struct {
	Op        string
	Retryable bool
	Err       error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("gateway: %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	CreatePaymentLink(ctx context.Context, amount money.Money, customer Customer) (PaymentLink, error)
	GetPaymentLinkStatus(ctx context.Context, linkID string) (LinkStatus, error)
}
