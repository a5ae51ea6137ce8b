package ginserver

import (
	"errors"
	"net/http"
	"time"

	gin "github.com/gin-gonic/gin"

	"innkeep/internal/app/policies"
	"innkeep/internal/app/services/payments"
	"innkeep/internal/domain/booking"
	"innkeep/internal/domain/ledger"
	"innkeep/internal/domain/shared/money"
)

type PaymentHandler struct {
	Payments    *payments.Service
	Coordinator *payments.Coordinator
}

type recordPaymentRequest struct {
	Amount      moneyPayload `json:"amount"`
	Method      string       `json:"method"`
	Date        time.Time    `json:"date"`
	ExternalRef string       `json:"external_ref"`
}

type recordPaymentResponse struct {
	PaymentID string          `json:"payment_id"`
	Applied   bool            `json:"applied"`
	Summary   summaryResponse `json:"summary"`
}

type summaryResponse struct {
	TotalPaid        moneyPayload `json:"total_paid"`
	RemainingBalance moneyPayload `json:"remaining_balance"`
	FullyPaid        bool         `json:"fully_paid"`
	Overpaid         bool         `json:"overpaid"`
	OverpaidBy       moneyPayload `json:"overpaid_by"`
}

func (h PaymentHandler) Record(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	method, err := ledger.ParseMethod(req.Method)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	externalRef := req.ExternalRef
	if externalRef == "" {
		externalRef = c.GetHeader("Idempotency-Key")
	}
	res, err := h.Payments.RecordPayment(c.Request.Context(), payments.RecordParams{
		BookingID:   c.Param("id"),
		Amount:      money.Money{Amount: req.Amount.Amount, Currency: req.Amount.Currency},
		Method:      method,
		Date:        req.Date,
		ExternalRef: externalRef,
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	status := http.StatusCreated
	if !res.Applied {
		status = http.StatusOK
	}
	c.JSON(status, recordPaymentResponse{
		PaymentID: res.Payment.ID,
		Applied:   res.Applied,
		Summary:   toSummaryResponse(res.Summary),
	})
}

func (h PaymentHandler) Summary(c *gin.Context) {
	summary, err := h.Payments.Summary(c.Request.Context(), c.Param("id"))
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSummaryResponse(summary))
}

type startLinkRequest struct {
	Amount moneyPayload `json:"amount"`
	Customer struct {
		Name  string `json:"name"`
		Email string `json:"email"`
		Phone string `json:"phone"`
	} `json:"customer"`
}

type startLinkResponse struct {
	LinkID    string `json:"link_id"`
	URL       string `json:"url"`
	BookingID string `json:"booking_id"`
}

func (h PaymentHandler) StartLink(c *gin.Context) {
	var req startLinkRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	conf, err := h.Coordinator.Start(c.Request.Context(), payments.StartParams{
		BookingID: c.Param("id"),
		Amount:    money.Money{Amount: req.Amount.Amount, Currency: req.Amount.Currency},
		Customer: policies.Customer{
			Name:  req.Customer.Name,
			Email: req.Customer.Email,
			Phone: req.Customer.Phone,
		},
	})
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, startLinkResponse{
		LinkID:    conf.LinkID,
		URL:       conf.URL,
		BookingID: conf.BookingID,
	})
}

func (h PaymentHandler) CancelLink(c *gin.Context) {
	if !h.Coordinator.Cancel(c.Param("link_id")) {
		c.JSON(http.StatusNotFound, gin.H{"error": payments.ErrUnknownLink.Error()})
		return
	}
	c.Status(http.StatusAccepted)
}

type notifyResponse struct {
	LinkID  string `json:"link_id"`
	Outcome string `json:"outcome"`
}

func (h PaymentHandler) Notify(c *gin.Context) {
	linkID := c.Param("link_id")
	outcome, err := h.Coordinator.HandleNotification(c.Request.Context(), linkID)
	if err != nil {
		writePaymentError(c, err)
		return
	}
	c.JSON(http.StatusOK, notifyResponse{LinkID: linkID, Outcome: string(outcome)})
}

func toSummaryResponse(s ledger.Summary) summaryResponse {
	return summaryResponse{
		TotalPaid:        toMoneyPayload(s.TotalPaid),
		RemainingBalance: toMoneyPayload(s.RemainingBalance),
		FullyPaid:        s.FullyPaid,
		Overpaid:         s.Overpaid,
		OverpaidBy:       toMoneyPayload(s.OverpaidBy),
	}
}

func writePaymentError(c *gin.Context, err error) {
	var gatewayErr *policies.GatewayError
	var partial *payments.PartialCommitError
	switch {
	case errors.Is(err, booking.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, payments.ErrUnknownLink):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, ledger.ErrInvalidAmount), errors.Is(err, ledger.ErrInvalidMethod):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.As(err, &partial):
		// payment recorded; only the bank-ledger entry is outstanding
		c.JSON(http.StatusAccepted, gin.H{"warning": err.Error(), "payment_id": partial.PaymentID})
	case errors.As(err, &gatewayErr):
		c.JSON(http.StatusBadGateway, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

var _ PaymentHTTP = PaymentHandler{}
