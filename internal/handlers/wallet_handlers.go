package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"plotledger_app/internal/models"
)

type WalletHandler struct {
	wallets WalletService
}

func NewWalletHandler(wallets WalletService) *WalletHandler {
	return &WalletHandler{wallets: wallets}
}

type withdrawalRequest struct {
	Amount          int64  `json:"amount"`
	Upi             string `json:"upi" validate:"max=100"`
	UpiMobileNumber string `json:"upi_mobile_number" validate:"omitempty,mobile"`
}

type transferRequest struct {
	Amount int64 `json:"amount"`
}

type couponRequest struct {
	ServiceName string `json:"service_name" validate:"required,max=255"`
	Value       int64  `json:"value"`
}

type couponResponse struct {
	Coupon *models.Coupon             `json:"coupon"`
	Wallet *models.CollaboratorWallet `json:"wallet"`
}

type syncResponse struct {
	Wallet *models.CollaboratorWallet `json:"wallet"`
	Delta  int64                      `json:"delta"`
}

// Register mounts the wallet routes
func (h *WalletHandler) Register(g *echo.Group) {
	g.GET("/wallets/:ns/:owner", h.GetCommissionWallet)
	g.POST("/wallets/:ns/:owner/withdrawals", h.RequestWithdrawal)
	g.POST("/wallets/:ns/:owner/withdrawals/approve", h.ApproveWithdrawal)
	g.POST("/wallets/:ns/:owner/withdrawals/decline", h.DeclineWithdrawal)
	g.GET("/collaborator-wallets/:user", h.GetCollaboratorWallet)
	g.POST("/collaborator-wallets/:user/transfer", h.TransferCourseToService)
	g.POST("/collaborator-wallets/:user/sync", h.SyncWallet)
	g.POST("/collaborator-wallets/:user/coupons", h.GenerateCoupon)
	g.POST("/coupons/:code/use", h.UseCoupon)
}

func walletOwner(c echo.Context) (models.WalletNamespace, uint, error) {
	ns := models.WalletNamespace(c.Param("ns"))
	if !ns.Valid() {
		return "", 0, echo.NewHTTPError(http.StatusNotFound, "Unknown wallet namespace")
	}
	owner, err := parseID(c, "owner", "owner")
	if err != nil {
		return "", 0, err
	}
	return ns, owner, nil
}

// GetCommissionWallet returns the wallet with its withdrawal history
func (h *WalletHandler) GetCommissionWallet(c echo.Context) error {
	ns, owner, err := walletOwner(c)
	if err != nil {
		return err
	}
	snapshot, err := h.wallets.GetCommissionWallet(c.Request().Context(), ns, owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, snapshot)
}

func (h *WalletHandler) RequestWithdrawal(c echo.Context) error {
	ns, owner, err := walletOwner(c)
	if err != nil {
		return err
	}
	var req withdrawalRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	wallet, err := h.wallets.RequestWithdrawal(c.Request().Context(), ns, owner, req.Amount, req.Upi, req.UpiMobileNumber)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusAccepted, wallet)
}

func (h *WalletHandler) ApproveWithdrawal(c echo.Context) error {
	ns, owner, err := walletOwner(c)
	if err != nil {
		return err
	}
	wallet, err := h.wallets.ApproveWithdrawal(c.Request().Context(), ns, owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wallet)
}

func (h *WalletHandler) DeclineWithdrawal(c echo.Context) error {
	ns, owner, err := walletOwner(c)
	if err != nil {
		return err
	}
	wallet, err := h.wallets.DeclineWithdrawal(c.Request().Context(), ns, owner)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wallet)
}

func (h *WalletHandler) GetCollaboratorWallet(c echo.Context) error {
	userID, err := parseID(c, "user", "user")
	if err != nil {
		return err
	}
	wallet, err := h.wallets.GetCollaboratorWallet(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wallet)
}

// TransferCourseToService moves course balance into the capped service balance
func (h *WalletHandler) TransferCourseToService(c echo.Context) error {
	userID, err := parseID(c, "user", "user")
	if err != nil {
		return err
	}
	var req transferRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	wallet, err := h.wallets.TransferCourseToService(c.Request().Context(), userID, req.Amount)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, wallet)
}

// SyncWallet credits the course balance with ledger payments not yet reflected
func (h *WalletHandler) SyncWallet(c echo.Context) error {
	userID, err := parseID(c, "user", "user")
	if err != nil {
		return err
	}
	wallet, delta, err := h.wallets.SyncWalletFromLedger(c.Request().Context(), userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, syncResponse{Wallet: wallet, Delta: delta})
}

// GenerateCoupon pays for a service coupon out of the service balance
func (h *WalletHandler) GenerateCoupon(c echo.Context) error {
	userID, err := parseID(c, "user", "user")
	if err != nil {
		return err
	}
	var req couponRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	coupon, wallet, err := h.wallets.GenerateCoupon(c.Request().Context(), userID, req.ServiceName, req.Value)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, couponResponse{Coupon: coupon, Wallet: wallet})
}

func (h *WalletHandler) UseCoupon(c echo.Context) error {
	code := strings.ToUpper(strings.TrimSpace(c.Param("code")))
	if code == "" {
		return echo.NewHTTPError(http.StatusBadRequest, "Coupon code required")
	}
	coupon, err := h.wallets.UseCoupon(c.Request().Context(), code)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, coupon)
}
