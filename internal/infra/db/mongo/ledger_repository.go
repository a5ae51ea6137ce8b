package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/money"
)

const transactionsCollection = "transactions"

// LedgerRepository stores one transaction document per booking. Appends are
// idempotent on the external reference: the push filter excludes documents
// that already carry the ref, so a replay matches nothing and applies nothing.
type LedgerRepository struct {
	col *mongo.Collection
}

func NewLedgerRepository(client *Client) *LedgerRepository {
	return &LedgerRepository{col: client.DB.Collection(transactionsCollection)}
}

type transactionDoc struct {
	BookingID string       `bson:"_id"`
	Payable   moneyDoc     `bson:"payable"`
	Payments  []paymentDoc `bson:"payments"`
	Version   int64        `bson:"version"`
}

type paymentDoc struct {
	ID          string    `bson:"id"`
	Amount      moneyDoc  `bson:"amount"`
	Method      string    `bson:"method"`
	ExternalRef string    `bson:"external_ref,omitempty"`
	Date        time.Time `bson:"date"`
	Status      string    `bson:"status"`
}

func (r *LedgerRepository) ByBooking(ctx context.Context, bookingID string) (*ledger.Transaction, error) {
	var doc transactionDoc
	err := r.col.FindOne(ctx, bson.M{"_id": bookingID}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, ledger.ErrTransactionNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain(), nil
}

func (r *LedgerRepository) Ensure(ctx context.Context, bookingID string, payable money.Money) (*ledger.Transaction, error) {
	update := bson.M{"$setOnInsert": bson.M{
		"payable":  toMoneyDoc(payable),
		"payments": []paymentDoc{},
		"version":  int64(0),
	}}
	opts := options.Update().SetUpsert(true)
	if _, err := r.col.UpdateOne(ctx, bson.M{"_id": bookingID}, update, opts); err != nil {
		return nil, err
	}
	return r.ByBooking(ctx, bookingID)
}

func (r *LedgerRepository) AppendPayment(ctx context.Context, bookingID string, p ledger.Payment) (bool, error) {
	if !p.Amount.IsPositive() {
		return false, ledger.ErrInvalidAmount
	}
	if p.Status == "" {
		p.Status = ledger.PaymentCompleted
	}
	filter := bson.M{"_id": bookingID}
	if p.ExternalRef != "" {
		filter["payments.external_ref"] = bson.M{"$ne": p.ExternalRef}
	}
	update := bson.M{
		"$push": bson.M{"payments": toPaymentDoc(p)},
		"$inc":  bson.M{"version": int64(1)},
	}
	res, err := r.col.UpdateOne(ctx, filter, update)
	if err != nil {
		return false, err
	}
	if res.MatchedCount == 0 {
		// either the transaction is missing or the ref is already recorded
		if _, err := r.ByBooking(ctx, bookingID); err != nil {
			return false, err
		}
		return false, nil
	}
	return true, nil
}

func toPaymentDoc(p ledger.Payment) paymentDoc {
	return paymentDoc{
		ID:          p.ID,
		Amount:      toMoneyDoc(p.Amount),
		Method:      string(p.Method),
		ExternalRef: p.ExternalRef,
		Date:        p.Date,
		Status:      string(p.Status),
	}
}

func (d transactionDoc) toDomain() *ledger.Transaction {
	payments := make([]ledger.Payment, 0, len(d.Payments))
	for _, p := range d.Payments {
		payments = append(payments, ledger.Payment{
			ID:          p.ID,
			Amount:      toMoney(p.Amount),
			Method:      ledger.PaymentMethod(p.Method),
			ExternalRef: p.ExternalRef,
			Date:        p.Date.UTC(),
			Status:      ledger.PaymentStatus(p.Status),
		})
	}
	return &ledger.Transaction{
		BookingID: d.BookingID,
		Payable:   toMoney(d.Payable),
		Payments:  payments,
		Version:   d.Version,
	}
}
