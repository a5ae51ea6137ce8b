package mongo

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/mongo"

	"innkeep/internal/app/policies"
)

const bankLedgerCollection = "bank_ledger"

// BankLedger appends general-ledger entries to a collection. Entries are
// insert-only; corrections happen by appending, never by update.
type BankLedger struct {
	col *mongo.Collection
}

func NewBankLedger(client *Client) *BankLedger {
	return &BankLedger{col: client.DB.Collection(bankLedgerCollection)}
}

type bankEntryDoc struct {
	Type       string    `bson:"type"`
	Account    string    `bson:"account"`
	Amount     moneyDoc  `bson:"amount"`
	Date       time.Time `bson:"date"`
	BookingRef string    `bson:"booking_ref"`
}

func (b *BankLedger) AppendEntry(ctx context.Context, entry policies.BankEntry) error {
	doc := bankEntryDoc{
		Type:       string(entry.Type),
		Account:    entry.Account,
		Amount:     toMoneyDoc(entry.Amount),
		Date:       entry.Date,
		BookingRef: entry.BookingRef,
	}
	_, err := b.col.InsertOne(ctx, doc)
	return err
}

var _ policies.BankLedger = (*BankLedger)(nil)
