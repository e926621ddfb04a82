package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

type LedgerHandler struct {
	ledgers LedgerService
}

func NewLedgerHandler(ledgers LedgerService) *LedgerHandler {
	return &LedgerHandler{ledgers: ledgers}
}

type purchaseRequest struct {
	UserID          uint   `json:"user_id" validate:"required"`
	PlanID          string `json:"plan_id" validate:"plan_id"`
	CustomAmount    int64  `json:"custom_amount"`
	Upi             string `json:"upi" validate:"max=100"`
	UpiMobileNumber string `json:"upi_mobile_number" validate:"omitempty,mobile"`
}

type paymentRequest struct {
	Amount          int64  `json:"amount"`
	Upi             string `json:"upi" validate:"max=100"`
	UpiMobileNumber string `json:"upi_mobile_number" validate:"omitempty,mobile"`
}

type eligibilityRequest struct {
	Override *bool `json:"override"`
}

// Register mounts the ledger routes
func (h *LedgerHandler) Register(g *echo.Group) {
	g.POST("/purchases", h.InitializePurchase)
	g.GET("/ledgers/:id", h.GetLedger)
	g.POST("/ledgers/:id/approve-plot", h.transition(h.ledgers.ApprovePlot))
	g.POST("/ledgers/:id/decline-plot", h.transition(h.ledgers.DeclinePlot))
	g.POST("/ledgers/:id/emi-requests", h.RequestEmiPayment)
	g.POST("/ledgers/:id/emi-requests/approve", h.transition(h.ledgers.ApproveEmiPayment))
	g.POST("/ledgers/:id/emi-requests/decline", h.transition(h.ledgers.DeclineEmiPayment))
	g.POST("/ledgers/:id/full-payment/approve", h.transition(h.ledgers.ApproveFullPayment))
	g.POST("/ledgers/:id/eligibility", h.EvaluateEligibility)
}

// InitializePurchase opens a pending ledger for the chosen plan
func (h *LedgerHandler) InitializePurchase(c echo.Context) error {
	var req purchaseRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ledger, err := h.ledgers.InitializePurchase(c.Request().Context(), services.PurchaseRequest{
		UserID:          req.UserID,
		PlanID:          models.PlanID(req.PlanID),
		CustomAmount:    req.CustomAmount,
		Upi:             req.Upi,
		UpiMobileNumber: req.UpiMobileNumber,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, ledger)
}

// GetLedger returns one ledger
func (h *LedgerHandler) GetLedger(c echo.Context) error {
	id, err := parseID(c, "id", "ledger")
	if err != nil {
		return err
	}
	ledger, err := h.ledgers.GetLedger(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ledger)
}

// RequestEmiPayment records a user's claim that an EMI transfer was made
func (h *LedgerHandler) RequestEmiPayment(c echo.Context) error {
	id, err := parseID(c, "id", "ledger")
	if err != nil {
		return err
	}
	var req paymentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	result, err := h.ledgers.RequestEmiPayment(c.Request().Context(), id, req.Amount, req.Upi, req.UpiMobileNumber)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, result)
}

// EvaluateEligibility recomputes the lucky draw flag, optionally forcing it
func (h *LedgerHandler) EvaluateEligibility(c echo.Context) error {
	id, err := parseID(c, "id", "ledger")
	if err != nil {
		return err
	}
	var req eligibilityRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	ledger, err := h.ledgers.EvaluateEligibility(c.Request().Context(), id, req.Override)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, ledger)
}

// transition adapts a body-less ledger state change to a handler
func (h *LedgerHandler) transition(op func(ctx context.Context, ledgerID uint) (*services.LedgerResult, error)) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := parseID(c, "id", "ledger")
		if err != nil {
			return err
		}
		result, err := op(c.Request().Context(), id)
		if err != nil {
			return err
		}
		return c.JSON(http.StatusOK, result)
	}
}
