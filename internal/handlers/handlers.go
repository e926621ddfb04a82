package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

// LedgerService is the set of ledger use cases exposed over HTTP
type LedgerService interface {
	GetLedger(ctx context.Context, ledgerID uint) (*models.PurchaseLedger, error)
	InitializePurchase(ctx context.Context, req services.PurchaseRequest) (*models.PurchaseLedger, error)
	ApprovePlot(ctx context.Context, ledgerID uint) (*services.LedgerResult, error)
	DeclinePlot(ctx context.Context, ledgerID uint) (*services.LedgerResult, error)
	RequestEmiPayment(ctx context.Context, ledgerID uint, amount int64, upi, upiMobile string) (*services.LedgerResult, error)
	ApproveEmiPayment(ctx context.Context, ledgerID uint) (*services.LedgerResult, error)
	DeclineEmiPayment(ctx context.Context, ledgerID uint) (*services.LedgerResult, error)
	ApproveFullPayment(ctx context.Context, ledgerID uint) (*services.LedgerResult, error)
	EvaluateEligibility(ctx context.Context, ledgerID uint, override *bool) (*models.PurchaseLedger, error)
}

// WalletService is the set of wallet use cases exposed over HTTP
type WalletService interface {
	GetCommissionWallet(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*services.WalletSnapshot, error)
	RequestWithdrawal(ctx context.Context, ns models.WalletNamespace, ownerID uint, amount int64, upi, upiMobile string) (*models.CommissionWallet, error)
	ApproveWithdrawal(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error)
	DeclineWithdrawal(ctx context.Context, ns models.WalletNamespace, ownerID uint) (*models.CommissionWallet, error)
	GetCollaboratorWallet(ctx context.Context, userID uint) (*models.CollaboratorWallet, error)
	TransferCourseToService(ctx context.Context, userID uint, amount int64) (*models.CollaboratorWallet, error)
	SyncWalletFromLedger(ctx context.Context, userID uint) (*models.CollaboratorWallet, int64, error)
	GenerateCoupon(ctx context.Context, userID uint, serviceName string, value int64) (*models.Coupon, *models.CollaboratorWallet, error)
	UseCoupon(ctx context.Context, code string) (*models.Coupon, error)
}

// parseID reads a numeric path parameter
func parseID(c echo.Context, name, label string) (uint, error) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "Invalid "+label+" ID")
	}
	return uint(id), nil
}

// bind decodes the JSON body and runs the registered validator over it.
// An empty body leaves dest untouched.
func bind(c echo.Context, dest interface{}) error {
	if err := c.Bind(dest); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid JSON payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	return c.Validate(dest)
}
