package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/policies"
	bookingapp "innkeep/internal/app/services/booking"
	domainbooking "innkeep/internal/domain/booking"
	"innkeep/internal/domain/rates"
	"innkeep/internal/domain/shared/daterange"
	"innkeep/internal/domain/shared/money"
)

type BookingHandler struct {
	Bookings *bookingapp.Service
}

type moneyPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type roomStayRequest struct {
	RoomID                string       `json:"room_id"`
	PropertyType          string       `json:"property_type"`
	BaseRate              moneyPayload `json:"base_rate"`
	AdditionalGuestCharge moneyPayload `json:"additional_guest_charge"`
	CGSTPercent           float64      `json:"cgst_percent"`
	SGSTPercent           float64      `json:"sgst_percent"`
	IGSTPercent           float64      `json:"igst_percent"`
}

type createBookingRequest struct {
	GuestID  string            `json:"guest_id"`
	CheckIn  time.Time         `json:"check_in"`
	CheckOut time.Time         `json:"check_out"`
	Stays    []roomStayRequest `json:"stays"`
}

type bookingResponse struct {
	ID           string       `json:"id"`
	GuestID      string       `json:"guest_id"`
	CheckIn      time.Time    `json:"check_in"`
	CheckOut     time.Time    `json:"check_out"`
	Status       string       `json:"status"`
	InvoiceTotal moneyPayload `json:"invoice_total"`
	RoomIDs      []string     `json:"room_ids"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}

func (h BookingHandler) Create(c *gin.Context) {
	var req createBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	stays := make([]rates.RoomStay, 0, len(req.Stays))
	for _, s := range req.Stays {
		stays = append(stays, rates.RoomStay{
			RoomID:                s.RoomID,
			PropertyType:          rates.PropertyType(s.PropertyType),
			BaseRate:              money.Money{Amount: s.BaseRate.Amount, Currency: s.BaseRate.Currency},
			AdditionalGuestCharge: money.Money{Amount: s.AdditionalGuestCharge.Amount, Currency: currencyOr(s.AdditionalGuestCharge.Currency, s.BaseRate.Currency)},
			CGSTPercent:           s.CGSTPercent,
			SGSTPercent:           s.SGSTPercent,
			IGSTPercent:           s.IGSTPercent,
		})
	}
	b, err := h.Bookings.Create(c.Request.Context(), bookingapp.CreateParams{
		GuestID:  req.GuestID,
		CheckIn:  req.CheckIn,
		CheckOut: req.CheckOut,
		Stays:    stays,
	})
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toBookingResponse(b))
}

func (h BookingHandler) Get(c *gin.Context) {
	b, err := h.Bookings.Get(c.Request.Context(), domainbooking.BookingID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

func (h BookingHandler) CheckIn(c *gin.Context) {
	h.transition(c, domainbooking.StatusCheckedIn)
}

func (h BookingHandler) CheckOut(c *gin.Context) {
	h.transition(c, domainbooking.StatusCheckedOut)
}

func (h BookingHandler) Cancel(c *gin.Context) {
	h.transition(c, domainbooking.StatusCancelled)
}

func (h BookingHandler) transition(c *gin.Context, target domainbooking.Status) {
	b, err := h.Bookings.Transition(c.Request.Context(), domainbooking.BookingID(c.Param("id")), target)
	if err != nil {
		writeBookingError(c, err)
		return
	}
	c.JSON(http.StatusOK, toBookingResponse(b))
}

type invoiceEntryResponse struct {
	Date           time.Time    `json:"date"`
	RoomID         string       `json:"room_id"`
	BaseRate       moneyPayload `json:"base_rate"`
	Offering       string       `json:"offering,omitempty"`
	DiscountedRate moneyPayload `json:"discounted_rate"`
	CGST           moneyPayload `json:"cgst"`
	SGST           moneyPayload `json:"sgst"`
	IGST           moneyPayload `json:"igst"`
	NightTotal     moneyPayload `json:"night_total"`
}

type invoiceResponse struct {
	Entries []invoiceEntryResponse `json:"entries"`
	Total   moneyPayload           `json:"total"`
	Savings moneyPayload           `json:"savings"`
}

func (h BookingHandler) Invoice(c *gin.Context) {
	inv, err := h.Bookings.Invoice(c.Request.Context(), domainbooking.BookingID(c.Param("id")))
	if err != nil {
		writeBookingError(c, err)
		return
	}
	out := invoiceResponse{
		Entries: make([]invoiceEntryResponse, 0, len(inv.Entries)),
		Total:   toMoneyPayload(inv.Total),
		Savings: toMoneyPayload(inv.Savings),
	}
	for _, e := range inv.Entries {
		out.Entries = append(out.Entries, invoiceEntryResponse{
			Date:           e.Date,
			RoomID:         e.RoomID,
			BaseRate:       toMoneyPayload(e.BaseRate),
			Offering:       e.Offering,
			DiscountedRate: toMoneyPayload(e.DiscountedRate),
			CGST:           toMoneyPayload(e.CGST),
			SGST:           toMoneyPayload(e.SGST),
			IGST:           toMoneyPayload(e.IGST),
			NightTotal:     toMoneyPayload(e.NightTotal),
		})
	}
	c.JSON(http.StatusOK, out)
}

func toBookingResponse(b *domainbooking.Booking) bookingResponse {
	return bookingResponse{
		ID:           string(b.ID),
		GuestID:      b.GuestID,
		CheckIn:      b.Range.CheckIn,
		CheckOut:     b.Range.CheckOut,
		Status:       string(b.Status),
		InvoiceTotal: toMoneyPayload(b.InvoiceTotal),
		RoomIDs:      b.RoomIDs(),
		CreatedAt:    b.CreatedAt,
		UpdatedAt:    b.UpdatedAt,
	}
}

func toMoneyPayload(m money.Money) moneyPayload {
	return moneyPayload{Amount: m.Amount, Currency: m.Currency}
}

func currencyOr(currency, fallback string) string {
	if currency != "" {
		return currency
	}
	return fallback
}

func writeBookingError(c *gin.Context, err error) {
	var transition domainbooking.InvalidTransitionError
	switch {
	case errors.Is(err, domainbooking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.As(err, &transition):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error(), "from": string(transition.From), "to": string(transition.To)})
	case errors.Is(err, domainbooking.ErrConcurrentEdit):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, policies.ErrRoomConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, daterange.ErrInvalidRange),
		errors.Is(err, domainbooking.ErrGuestRequired),
		errors.Is(err, domainbooking.ErrNoRoomStays),
		errors.Is(err, rates.ErrNoRooms),
		errors.Is(err, rates.ErrCurrencyUnset),
		errors.Is(err, rates.ErrNegativeRate),
		errors.Is(err, rates.ErrNegativeTax):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

var _ BookingHTTP = BookingHandler{}
