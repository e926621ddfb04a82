package handlers

import (
	"context"
	"net/http"

	"github.com/labstack/echo/v4"

	"plotledger_app/internal/models"
	"plotledger_app/internal/services"
)

// UserService registers buyers and referrers
type UserService interface {
	RegisterUser(ctx context.Context, in services.NewUser) (*models.User, error)
	RegisterReferrer(ctx context.Context, userID uint, tier models.ReferrerTier) (*models.Referrer, error)
	GetUser(ctx context.Context, userID uint) (*models.User, error)
}

type UserHandler struct {
	users UserService
}

func NewUserHandler(users UserService) *UserHandler {
	return &UserHandler{users: users}
}

type registerUserRequest struct {
	Name         string `json:"name" validate:"required,max=255"`
	Email        string `json:"email" validate:"required,email"`
	Phone        string `json:"phone" validate:"omitempty,mobile"`
	ReferredBy   string `json:"referred_by" validate:"omitempty,oneof=partner dealer agent collaborator myself no-one"`
	ReferralCode string `json:"referred_by_id"`
}

type registerReferrerRequest struct {
	Tier string `json:"tier" validate:"required"`
}

// Register mounts the user routes
func (h *UserHandler) Register(g *echo.Group) {
	g.POST("/users", h.StoreUser)
	g.GET("/users/:id", h.GetUser)
	g.POST("/users/:id/referrer", h.StoreReferrer)
}

// StoreUser handles the creation of a new user
func (h *UserHandler) StoreUser(c echo.Context) error {
	var req registerUserRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.RegisterUser(c.Request().Context(), services.NewUser{
		Name:         req.Name,
		Email:        req.Email,
		Phone:        req.Phone,
		ReferredBy:   models.ReferralSource(req.ReferredBy),
		ReferralCode: req.ReferralCode,
	})
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, user)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	id, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	user, err := h.users.GetUser(c.Request().Context(), id)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, user)
}

// StoreReferrer issues a referral code to an existing user
func (h *UserHandler) StoreReferrer(c echo.Context) error {
	id, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}
	var req registerReferrerRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	referrer, err := h.users.RegisterReferrer(c.Request().Context(), id, models.ReferrerTier(req.Tier))
	if err != nil {
		return err
	}
	return c.JSON(http.StatusCreated, referrer)
}
