package mongo

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	domainbooking "innkeep/internal/domain/booking"
	"innkeep/internal/domain/rates"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

const bookingsCollection = "bookings"

// BookingRepository persists bookings with optimistic concurrency: every
// Save filters on the version the caller read, so a lost update surfaces
// as ErrConcurrentEdit instead of silently overwriting.
type BookingRepository struct {
	col *mongo.Collection
}

func NewBookingRepository(client *Client) *BookingRepository {
	return &BookingRepository{col: client.DB.Collection(bookingsCollection)}
}

type bookingDoc struct {
	ID           string     `bson:"_id"`
	GuestID      string     `bson:"guest_id"`
	CheckIn      time.Time  `bson:"check_in"`
	CheckOut     time.Time  `bson:"check_out"`
	Stays        []roomStay `bson:"stays"`
	InvoiceTotal moneyDoc   `bson:"invoice_total"`
	Status       string     `bson:"status"`
	CreatedAt    time.Time  `bson:"created_at"`
	UpdatedAt    time.Time  `bson:"updated_at"`
	Version      int64      `bson:"version"`
}

type roomStay struct {
	RoomID                string   `bson:"room_id"`
	PropertyType          string   `bson:"property_type"`
	BaseRate              moneyDoc `bson:"base_rate"`
	AdditionalGuestCharge moneyDoc `bson:"additional_guest_charge"`
	CGSTPercent           float64  `bson:"cgst_percent"`
	SGSTPercent           float64  `bson:"sgst_percent"`
	IGSTPercent           float64  `bson:"igst_percent"`
}

type moneyDoc struct {
	Amount   int64  `bson:"amount"`
	Currency string `bson:"currency"`
}

func (r *BookingRepository) ByID(ctx context.Context, id domainbooking.BookingID) (*domainbooking.Booking, error) {
	var doc bookingDoc
	err := r.col.FindOne(ctx, bson.M{"_id": string(id)}).Decode(&doc)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, domainbooking.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc.toDomain()
}

func (r *BookingRepository) Save(ctx context.Context, b *domainbooking.Booking) error {
	doc := toBookingDoc(b)
	doc.Version = b.Version + 1

	filter := bson.M{"_id": string(b.ID), "version": b.Version}
	opts := options.Replace()
	if b.Version == 0 {
		// first save may insert; the version filter still guards replays
		opts.SetUpsert(true)
	}
	res, err := r.col.ReplaceOne(ctx, filter, doc, opts)
	if mongo.IsDuplicateKeyError(err) {
		return domainbooking.ErrConcurrentEdit
	}
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 && res.UpsertedCount == 0 {
		return domainbooking.ErrConcurrentEdit
	}
	b.Version = doc.Version
	return nil
}

func toBookingDoc(b *domainbooking.Booking) bookingDoc {
	stays := make([]roomStay, 0, len(b.Stays))
	for _, s := range b.Stays {
		stays = append(stays, roomStay{
			RoomID:                s.RoomID,
			PropertyType:          string(s.PropertyType),
			BaseRate:              toMoneyDoc(s.BaseRate),
			AdditionalGuestCharge: toMoneyDoc(s.AdditionalGuestCharge),
			CGSTPercent:           s.CGSTPercent,
			SGSTPercent:           s.SGSTPercent,
			IGSTPercent:           s.IGSTPercent,
		})
	}
	return bookingDoc{
		ID:           string(b.ID),
		GuestID:      b.GuestID,
		CheckIn:      b.Range.CheckIn,
		CheckOut:     b.Range.CheckOut,
		Stays:        stays,
		InvoiceTotal: toMoneyDoc(b.InvoiceTotal),
		Status:       string(b.Status),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
		Version:      b.Version,
	}
}

func (d bookingDoc) toDomain() (*domainbooking.Booking, error) {
	status, err := domainbooking.ParseStatus(d.Status)
	if err != nil {
		return nil, err
	}
	stays := make([]rates.RoomStay, 0, len(d.Stays))
	for _, s := range d.Stays {
		stays = append(stays, rates.RoomStay{
			RoomID:                s.RoomID,
			PropertyType:          rates.PropertyType(s.PropertyType),
			BaseRate:              toMoney(s.BaseRate),
			AdditionalGuestCharge: toMoney(s.AdditionalGuestCharge),
			CGSTPercent:           s.CGSTPercent,
			SGSTPercent:           s.SGSTPercent,
			IGSTPercent:           s.IGSTPercent,
		})
	}
	return &domainbooking.Booking{
		ID:           domainbooking.BookingID(d.ID),
		GuestID:      d.GuestID,
		Range:        daterange.DateRange{CheckIn: d.CheckIn.UTC(), CheckOut: d.CheckOut.UTC()},
		Stays:        stays,
		InvoiceTotal: toMoney(d.InvoiceTotal),
		Status:       status,
		CreatedAt:    d.CreatedAt.UTC(),
		UpdatedAt:    d.UpdatedAt.UTC(),
		Version:      d.Version,
	}, nil
}

func toMoneyDoc(m money.Money) moneyDoc {
	return moneyDoc{Amount: m.Amount, Currency: m.Currency}
}

func toMoney(d moneyDoc) money.Money {
	return money.Money{Amount: d.Amount, Currency: d.Currency}
}
