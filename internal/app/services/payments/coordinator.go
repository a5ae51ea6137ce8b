package payments

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	appoutbox "innkeep/internal/app/outbox"
	"innkeep/internal/app/policies"
	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/events"
	"innkeep/internal/domain/shared/money"
)

// ErrUnknownLink is returned for notifications about links the coordinator
// never started or has already resolved.
var ErrUnknownLink = errors.New("payments: unknown payment link")

// Outcome is the coordinator's view of a finished confirmation. TimedOut is
// coordinator-local and distinct from the gateway's own terminal states.
type Outcome string

const (
	OutcomePending   Outcome = "pending"
	OutcomePaid      Outcome = "paid"
	OutcomeCancelled Outcome = "cancelled"
	OutcomeExpired   Outcome = "expired"
	OutcomeFailed    Outcome = "failed"
	OutcomeTimedOut  Outcome = "timed_out"
	OutcomeAborted   Outcome = "aborted"
)

// ConfirmationTimeoutError reports an exhausted polling budget. The link is
// not marked failed — the gateway may still resolve it out-of-band.
type ConfirmationTimeoutError struct {
	LinkID string
	Budget time.Duration
}

func (e *ConfirmationTimeoutError) Error() string {
	return fmt.Sprintf("payments: confirmation of link %s not resolved within %s", e.LinkID, e.Budget)
}

// PartialCommitError reports a payment that was recorded while the
// secondary bank-ledger entry failed. The payment record stands; only the
// bank entry awaits reconciliation.
type PartialCommitError struct {
	LinkID    string
	BookingID string
	PaymentID string
	Err       error
}

func (e *PartialCommitError) Error() string {
	return fmt.Sprintf("payments: payment for booking %s recorded but bank ledger entry failed: %v", e.BookingID, e.Err)
}

func (e *PartialCommitError) Unwrap() error { return e.Err }

// PendingConfirmation is the registry record of a link awaiting resolution.
// Entries survive timeouts and caller aborts so the sweep can finish them.
type PendingConfirmation struct {
	LinkID    string
	BookingID string
	Amount    money.Money
	StartedAt time.Time
}

type PendingRegistry interface {
	Add(ctx context.Context, entry PendingConfirmation) error
	Get(ctx context.Context, linkID string) (PendingConfirmation, bool, error)
	Remove(ctx context.Context, linkID string) error
	List(ctx context.Context) ([]PendingConfirmation, error)
}

type CoordinatorConfig struct {
	PollInterval time.Duration // default 5s
	PollBudget   time.Duration // default 300s
	CallTimeout  time.Duration // default 3s, bounds each gateway call
	BankAccount  string
}

// Coordinator drives payment-link confirmations: create link, poll the
// gateway, settle exactly once on paid. Each confirmation runs as an
// independent cancellable background task; settle idempotency comes from
// the ledger's external-ref guard, not from locking.
type Coordinator struct {
	Gateway  policies.PaymentGateway
	Ledger   *Service
	Bank     policies.BankLedger
	Registry PendingRegistry
	Outbox   appoutbox.Outbox
	Encoder  appoutbox.EventEncoder
	Logger   *slog.Logger
	Now      func() time.Time
	Config   CoordinatorConfig

	mu     sync.Mutex
	active map[string]*Confirmation
}

type StartParams struct {
	BookingID string
	Amount    money.Money
	Customer  policies.Customer
	// OnPaid runs once after a successful settle; the new-booking flow uses
	// it to create/transition the booking.
	OnPaid func(ctx context.Context) error
}

// Confirmation is the caller's handle on a running confirmation task.
type Confirmation struct {
	LinkID    string
	URL       string
	BookingID string

	abort context.CancelFunc
	done  chan struct{}

	mu      sync.Mutex
	outcome Outcome
	err     error
}

// Done is closed when the confirmation task has stopped for any reason.
func (c *Confirmation) Done() <-chan struct{} { return c.done }

// Cancel aborts polling promptly; the pending-registry entry is retained
// for the reconciliation sweep.
func (c *Confirmation) Cancel() { c.abort() }

// Result is valid once Done is closed.
func (c *Confirmation) Result() (Outcome, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.outcome, c.err
}

func (c *Confirmation) finish(outcome Outcome, err error) {
	c.mu.Lock()
	c.outcome = outcome
	c.err = err
	c.mu.Unlock()
}

// Start creates a payment link and launches the background polling task.
// Link creation failures are fatal; nothing is registered or polled.
func (c *Coordinator) Start(ctx context.Context, params StartParams) (*Confirmation, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout())
	link, err := c.Gateway.CreatePaymentLink(callCtx, params.Amount, params.Customer)
	cancel()
	if err != nil {
		return nil, err
	}

	entry := PendingConfirmation{
		LinkID:    link.LinkID,
		BookingID: params.BookingID,
		Amount:    params.Amount,
		StartedAt: c.now(),
	}
	if c.Registry != nil {
		if err := c.Registry.Add(ctx, entry); err != nil {
			c.log().Error("pending registry add failed", "link_id", link.LinkID, "error", err)
		}
	}

	// The task must outlive the originating request; only an explicit
	// Cancel or a terminal observation stops it.
	runCtx, abort := context.WithCancel(context.WithoutCancel(ctx))
	conf := &Confirmation{
		LinkID:    link.LinkID,
		URL:       link.URL,
		BookingID: params.BookingID,
		abort:     abort,
		done:      make(chan struct{}),
	}
	c.register(conf)
	go c.run(runCtx, conf, entry, params.OnPaid)
	return conf, nil
}

// Lookup returns the running confirmation for a link, if any.
func (c *Coordinator) Lookup(linkID string) (*Confirmation, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	conf, ok := c.active[linkID]
	return conf, ok
}

// Cancel aborts a running confirmation by link id.
func (c *Coordinator) Cancel(linkID string) bool {
	conf, ok := c.Lookup(linkID)
	if !ok {
		return false
	}
	conf.Cancel()
	return true
}

func (c *Coordinator) run(ctx context.Context, conf *Confirmation, entry PendingConfirmation, onPaid func(context.Context) error) {
	defer close(conf.done)
	defer c.unregister(conf.LinkID)

	deadline := c.now().Add(c.pollBudget())
	ticker := time.NewTicker(c.pollInterval())
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			conf.finish(OutcomeAborted, ctx.Err())
			return
		case <-ticker.C:
			if !c.now().Before(deadline) {
				c.emit(ctx, ConfirmationTimedOut{LinkID: entry.LinkID, BookingID: entry.BookingID, Budget: c.pollBudget(), At: c.now()})
				conf.finish(OutcomeTimedOut, &ConfirmationTimeoutError{LinkID: entry.LinkID, Budget: c.pollBudget()})
				return
			}
			status, err := c.pollOnce(ctx, entry.LinkID)
			if err != nil {
				if ctx.Err() != nil {
					conf.finish(OutcomeAborted, ctx.Err())
					return
				}
				// Status polls are retryable; the budget bounds them.
				c.log().Warn("link status poll failed", "link_id", entry.LinkID, "error", err)
				continue
			}
			switch status {
			case policies.LinkPaid:
				conf.finish(OutcomePaid, c.settle(ctx, entry, onPaid))
				return
			case policies.LinkCancelled, policies.LinkExpired, policies.LinkFailed:
				c.resolveWithoutPayment(ctx, entry, status)
				conf.finish(Outcome(status), nil)
				return
			default:
				// still pending at the gateway; keep polling
			}
		}
	}
}

func (c *Coordinator) pollOnce(ctx context.Context, linkID string) (policies.LinkStatus, error) {
	callCtx, cancel := context.WithTimeout(ctx, c.callTimeout())
	defer cancel()
	return c.Gateway.GetPaymentLinkStatus(callCtx, linkID)
}

// settle performs the single ledger commit and the single bank-ledger entry
// for a paid link. Replays are absorbed by the ledger's external-ref guard:
// only the appending call writes the bank entry.
func (c *Coordinator) settle(ctx context.Context, entry PendingConfirmation, onPaid func(context.Context) error) error {
	res, err := c.Ledger.RecordPayment(ctx, RecordParams{
		BookingID:   entry.BookingID,
		Amount:      entry.Amount,
		Method:      ledger.MethodPaymentLink,
		Date:        c.now(),
		ExternalRef: entry.LinkID,
	})
	if err != nil {
		// nothing committed; entry stays pending for the sweep
		return err
	}
	if !res.Applied {
		c.removePending(ctx, entry.LinkID)
		return nil
	}

	bankErr := c.Bank.AppendEntry(ctx, policies.BankEntry{
		Type:       policies.BankEntryReceipt,
		Account:    c.bankAccount(),
		Amount:     entry.Amount,
		Date:       c.now(),
		BookingRef: entry.BookingID,
	})

	if onPaid != nil {
		if hookErr := onPaid(ctx); hookErr != nil {
			c.log().Error("post-payment hook failed", "link_id", entry.LinkID, "booking_id", entry.BookingID, "error", hookErr)
		}
	}

	c.removePending(ctx, entry.LinkID)
	if bankErr != nil {
		c.emit(ctx, BankEntryPending{
			LinkID:    entry.LinkID,
			BookingID: entry.BookingID,
			PaymentID: res.Payment.ID,
			Amount:    entry.Amount,
			Reason:    bankErr.Error(),
			At:        c.now(),
		})
		return &PartialCommitError{LinkID: entry.LinkID, BookingID: entry.BookingID, PaymentID: res.Payment.ID, Err: bankErr}
	}
	return nil
}

// HandleNotification settles a link on an out-of-band gateway notification.
// The gateway is re-polled rather than trusted, and duplicate notifications
// cannot produce duplicate entries.
func (c *Coordinator) HandleNotification(ctx context.Context, linkID string) (Outcome, error) {
	if c.Registry == nil {
		return "", ErrUnknownLink
	}
	entry, ok, err := c.Registry.Get(ctx, linkID)
	if err != nil {
		return "", err
	}
	if !ok {
		return "", ErrUnknownLink
	}
	status, err := c.pollOnce(ctx, linkID)
	if err != nil {
		return "", err
	}
	switch status {
	case policies.LinkPaid:
		return OutcomePaid, c.settle(ctx, entry, nil)
	case policies.LinkCancelled, policies.LinkExpired, policies.LinkFailed:
		c.resolveWithoutPayment(ctx, entry, status)
		return Outcome(status), nil
	default:
		return OutcomePending, nil
	}
}

// Sweep re-polls every registered pending link once and settles those that
// have since been paid. It resolves confirmations left behind by timeouts,
// caller aborts and process restarts. Returns the number settled.
func (c *Coordinator) Sweep(ctx context.Context) (int, error) {
	if c.Registry == nil {
		return 0, nil
	}
	entries, err := c.Registry.List(ctx)
	if err != nil {
		return 0, err
	}
	settled := 0
	for _, entry := range entries {
		if ctx.Err() != nil {
			return settled, ctx.Err()
		}
		status, err := c.pollOnce(ctx, entry.LinkID)
		if err != nil {
			c.log().Warn("sweep poll failed", "link_id", entry.LinkID, "error", err)
			continue
		}
		switch status {
		case policies.LinkPaid:
			if err := c.settle(ctx, entry, nil); err != nil {
				c.log().Error("sweep settle failed", "link_id", entry.LinkID, "error", err)
				continue
			}
			settled++
		case policies.LinkCancelled, policies.LinkExpired, policies.LinkFailed:
			c.resolveWithoutPayment(ctx, entry, status)
		}
	}
	return settled, nil
}

func (c *Coordinator) resolveWithoutPayment(ctx context.Context, entry PendingConfirmation, status policies.LinkStatus) {
	c.removePending(ctx, entry.LinkID)
	c.emit(ctx, ConfirmationResolved{LinkID: entry.LinkID, BookingID: entry.BookingID, Status: string(status), At: c.now()})
}

func (c *Coordinator) removePending(ctx context.Context, linkID string) {
	if c.Registry == nil {
		return
	}
	if err := c.Registry.Remove(ctx, linkID); err != nil {
		c.log().Error("pending registry remove failed", "link_id", linkID, "error", err)
	}
}

func (c *Coordinator) emit(ctx context.Context, ev events.DomainEvent) {
	if err := appoutbox.RecordDomainEvents(ctx, c.Outbox, c.Encoder, []events.DomainEvent{ev}); err != nil {
		c.log().Error("outbox append failed", "event", ev.EventName(), "error", err)
	}
}

func (c *Coordinator) register(conf *Confirmation) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.active == nil {
		c.active = make(map[string]*Confirmation)
	}
	c.active[conf.LinkID] = conf
}

func (c *Coordinator) unregister(linkID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.active, linkID)
}

func (c *Coordinator) pollInterval() time.Duration {
	if c.Config.PollInterval > 0 {
		return c.Config.PollInterval
	}
	return 5 * time.Second
}

func (c *Coordinator) pollBudget() time.Duration {
	if c.Config.PollBudget > 0 {
		return c.Config.PollBudget
	}
	return 300 * time.Second
}

func (c *Coordinator) callTimeout() time.Duration {
	if c.Config.CallTimeout > 0 {
		return c.Config.CallTimeout
	}
	return 3 * time.Second
}

func (c *Coordinator) bankAccount() string {
	if c.Config.BankAccount != "" {
		return c.Config.BankAccount
	}
	return "guest_receipts"
}

func (c *Coordinator) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now().UTC()
}

func (c *Coordinator) log() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}
