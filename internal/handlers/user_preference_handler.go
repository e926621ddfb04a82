package handlers

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"plotledger_app/internal/models"
)

type UserPreferenceHandler struct {
	DB *gorm.DB
}

func NewUserPreferenceHandler(db *gorm.DB) *UserPreferenceHandler {
	return &UserPreferenceHandler{DB: db}
}

type preferenceRequest struct {
	Channel            string `json:"channel" validate:"required,oneof=email whatsapp none"`
	WhatsappTargetType string `json:"whatsapp_target_type" validate:"omitempty,oneof=personal group"`
	WhatsappGroupID    string `json:"whatsapp_group_id" validate:"required_if=Channel whatsapp WhatsappTargetType group"`
}

// Register mounts the preference routes
func (h *UserPreferenceHandler) Register(g *echo.Group) {
	g.GET("/users/:id/notification-preference", h.GetUserPreference)
	g.PUT("/users/:id/notification-preference", h.UpdateUserPreference)
}

// GetUserPreference returns the stored preference or the e-mail default
func (h *UserPreferenceHandler) GetUserPreference(c echo.Context) error {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}

	pref, err := h.load(c, userID)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pref)
}

// UpdateUserPreference upserts the user's channel choice
func (h *UserPreferenceHandler) UpdateUserPreference(c echo.Context) error {
	userID, err := parseID(c, "id", "user")
	if err != nil {
		return err
	}

	var req preferenceRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	target := req.WhatsappTargetType
	if target == "" {
		target = models.WhatsappTargetTypePersonal
	}

	pref, err := h.load(c, userID)
	if err != nil {
		return err
	}

	pref.Channel = models.NotificationChannel(req.Channel)
	pref.WhatsappTargetType = target
	pref.WhatsappGroupID = req.WhatsappGroupID

	if err := h.DB.WithContext(c.Request().Context()).Save(&pref).Error; err != nil {
		return err
	}
	return c.JSON(http.StatusOK, pref)
}

func (h *UserPreferenceHandler) load(c echo.Context, userID uint) (models.UserNotifPreference, error) {
	var pref models.UserNotifPreference
	err := h.DB.WithContext(c.Request().Context()).Where("user_id = ?", userID).First(&pref).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.DefaultNotifPreference(userID), nil
	}
	return pref, err
}
