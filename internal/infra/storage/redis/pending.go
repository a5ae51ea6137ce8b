package redis

import (
	"context"
	"encoding/json"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"innkeep/internal/app/services/payments"
	"innkeep/internal/domain/shared/money"
)

const pendingKey = "innkeep:pending_confirmations"

// PendingRegistry keeps confirmations in a Redis hash so timed-out links
// survive process restarts and stay visible to the reconciliation sweep.
type PendingRegistry struct {
	client *goredis.Client
}

func NewPendingRegistry(client *goredis.Client) *PendingRegistry {
	return &PendingRegistry{client: client}
}

type pendingDoc struct {
	LinkID    string `json:"link_id"`
	BookingID string `json:"booking_id"`
	Amount    int64  `json:"amount"`
	Currency  string `json:"currency"`
	StartedAt int64  `json:"started_at"`
}

func (r *PendingRegistry) Add(ctx context.Context, entry payments.PendingConfirmation) error {
	doc := pendingDoc{
		LinkID:    entry.LinkID,
		BookingID: entry.BookingID,
		Amount:    entry.Amount.Amount,
		Currency:  entry.Amount.Currency,
		StartedAt: entry.StartedAt.UnixMilli(),
	}
	payload, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	return r.client.HSet(ctx, pendingKey, entry.LinkID, payload).Err()
}

func (r *PendingRegistry) Get(ctx context.Context, linkID string) (payments.PendingConfirmation, bool, error) {
	raw, err := r.client.HGet(ctx, pendingKey, linkID).Result()
	if err == goredis.Nil {
		return payments.PendingConfirmation{}, false, nil
	}
	if err != nil {
		return payments.PendingConfirmation{}, false, err
	}
	entry, err := decodePending([]byte(raw))
	if err != nil {
		return payments.PendingConfirmation{}, false, err
	}
	return entry, true, nil
}

func (r *PendingRegistry) Remove(ctx context.Context, linkID string) error {
	return r.client.HDel(ctx, pendingKey, linkID).Err()
}

func (r *PendingRegistry) List(ctx context.Context) ([]payments.PendingConfirmation, error) {
	raw, err := r.client.HGetAll(ctx, pendingKey).Result()
	if err != nil {
		return nil, err
	}
	out := make([]payments.PendingConfirmation, 0, len(raw))
	for _, payload := range raw {
		entry, err := decodePending([]byte(payload))
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	return out, nil
}

func decodePending(payload []byte) (payments.PendingConfirmation, error) {
	var doc pendingDoc
	if err := json.Unmarshal(payload, &doc); err != nil {
		return payments.PendingConfirmation{}, err
	}
	return payments.PendingConfirmation{
		LinkID:    doc.LinkID,
		BookingID: doc.BookingID,
		Amount:    money.Money{Amount: doc.Amount, Currency: doc.Currency},
		StartedAt: time.UnixMilli(doc.StartedAt).UTC(),
	}, nil
}

var _ payments.PendingRegistry = (*PendingRegistry)(nil)
