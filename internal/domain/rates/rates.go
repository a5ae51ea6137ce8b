package rates

import (
	"errors"
	"sort"
	"time"

	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

var (
	ErrCurrencyUnset = errors.New("rates: base rate currency must be defined")
	ErrNegativeRate  = errors.New("rates: base rate cannot be negative")
	ErrNegativeTax   = errors.New("rates: tax percentages cannot be negative")
	ErrNoRooms       = errors.New("rates: at least one room stay required")
)

// PropertyType scopes offerings to a class of rooms (e.g. "deluxe", "suite").
type PropertyType string

// SpecialOffering is a time-bounded percentage discount for a property type.
// Owned externally; read-only to the engine. The window is inclusive on
// both ends.
type SpecialOffering struct {
	Name            string
	PropertyType    PropertyType
	DiscountPercent float64
	StartDate       time.Time
	EndDate         time.Time
}

// AppliesTo reports whether the offering covers the given property type on
// the given night.
func (o SpecialOffering) AppliesTo(pt PropertyType, night time.Time) bool {
	if o.PropertyType != pt {
		return false
	}
	night = night.UTC()
	start := dayStart(o.StartDate)
	end := dayStart(o.EndDate).AddDate(0, 0, 1)
	return !night.Before(start) && night.Before(end)
}

// RoomStay is one room's pricing terms for the duration of a stay.
type RoomStay struct {
	RoomID                string
	PropertyType          PropertyType
	BaseRate              money.Money
	AdditionalGuestCharge money.Money
	CGSTPercent           float64
	SGSTPercent           float64
	IGSTPercent           float64
}

func (rs RoomStay) validate() error {
	if rs.BaseRate.Currency == "" {
		return ErrCurrencyUnset
	}
	if rs.BaseRate.Amount < 0 {
		return ErrNegativeRate
	}
	if rs.CGSTPercent < 0 || rs.SGSTPercent < 0 || rs.IGSTPercent < 0 {
		return ErrNegativeTax
	}
	return nil
}

// RateEntry is the computed cost of one room for one calendar night.
// Ephemeral: derived on demand, never stored.
type RateEntry struct {
	Date           time.Time
	RoomID         string
	BaseRate       money.Money
	Offering       string
	DiscountedRate money.Money
	CGST           money.Money
	SGST           money.Money
	IGST           money.Money
	Taxes          money.Money
	NightTotal     money.Money
}

// Invoice aggregates rate entries across all nights and rooms of a stay.
type Invoice struct {
	Entries []RateEntry
	Total   money.Money
	Savings money.Money
}

// NightlyRates computes one RateEntry per night in [checkIn, checkOut) for a
// single room. An empty range yields zero entries. Pure: no side effects.
func NightlyRates(stay daterange.DateRange, room RoomStay, offerings []SpecialOffering) ([]RateEntry, error) {
	if err := room.validate(); err != nil {
		return nil, err
	}
	nights := stay.Dates()
	entries := make([]RateEntry, 0, len(nights))
	for _, night := range nights {
		entries = append(entries, nightlyRate(night, room, offerings))
	}
	return entries, nil
}

// Quote computes the full invoice for a stay across all rooms.
func Quote(stay daterange.DateRange, rooms []RoomStay, offerings []SpecialOffering) (Invoice, error) {
	if len(rooms) == 0 {
		return Invoice{}, ErrNoRooms
	}
	currency := rooms[0].BaseRate.Currency
	inv := Invoice{
		Total:   money.Zero(currency),
		Savings: money.Zero(currency),
	}
	for _, room := range rooms {
		entries, err := NightlyRates(stay, room, offerings)
		if err != nil {
			return Invoice{}, err
		}
		for _, e := range entries {
			total, err := inv.Total.Add(e.NightTotal)
			if err != nil {
				return Invoice{}, err
			}
			inv.Total = total
			if e.Offering != "" {
				saved, err := e.BaseRate.Sub(e.DiscountedRate)
				if err != nil {
					return Invoice{}, err
				}
				savings, err := inv.Savings.Add(saved)
				if err != nil {
					return Invoice{}, err
				}
				inv.Savings = savings
			}
		}
		inv.Entries = append(inv.Entries, entries...)
	}
	return inv, nil
}

func nightlyRate(night time.Time, room RoomStay, offerings []SpecialOffering) RateEntry {
	entry := RateEntry{
		Date:           night,
		RoomID:         room.RoomID,
		BaseRate:       room.BaseRate,
		DiscountedRate: room.BaseRate,
	}
	if offering, ok := selectOffering(room.PropertyType, night, offerings); ok {
		entry.Offering = offering.Name
		discount := clampPercent(offering.DiscountPercent)
		entry.DiscountedRate = room.BaseRate.Percent(100 - discount)
	}
	entry.CGST = entry.DiscountedRate.Percent(room.CGSTPercent)
	entry.SGST = entry.DiscountedRate.Percent(room.SGSTPercent)
	entry.IGST = entry.DiscountedRate.Percent(room.IGSTPercent)

	taxes := entry.CGST
	taxes, _ = taxes.Add(entry.SGST)
	taxes, _ = taxes.Add(entry.IGST)
	entry.Taxes = taxes

	total := entry.DiscountedRate
	total, _ = total.Add(room.AdditionalGuestCharge)
	total, _ = total.Add(taxes)
	entry.NightTotal = total
	return entry
}

// selectOffering picks the offering for one night. When several windows
// overlap the largest discount wins; ties break on earlier StartDate, then
// on the lexicographically smaller name, so the choice is deterministic.
func selectOffering(pt PropertyType, night time.Time, offerings []SpecialOffering) (SpecialOffering, bool) {
	matches := make([]SpecialOffering, 0, len(offerings))
	for _, o := range offerings {
		if o.AppliesTo(pt, night) {
			matches = append(matches, o)
		}
	}
	if len(matches) == 0 {
		return SpecialOffering{}, false
	}
	sort.Slice(matches, func(i, j int) bool {
		a, b := matches[i], matches[j]
		if a.DiscountPercent != b.DiscountPercent {
			return a.DiscountPercent > b.DiscountPercent
		}
		if !a.StartDate.Equal(b.StartDate) {
			return a.StartDate.Before(b.StartDate)
		}
		return a.Name < b.Name
	})
	return matches[0], true
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

func dayStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
