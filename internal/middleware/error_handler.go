package middleware

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
	"github.com/sirupsen/logrus"

	"plotledger_app/internal/services"
)

// ErrorResponse is the JSON body of every failed request
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type errorKind struct {
	target error
	code   int
	kind   string
}

var errorKinds = []errorKind{
	{services.ErrInvalidAmount, http.StatusBadRequest, "InvalidAmount"},
	{services.ErrWrongPlanType, http.StatusBadRequest, "WrongPlanType"},
	{services.ErrCollaboratorPlanRestricted, http.StatusBadRequest, "CollaboratorPlanRestricted"},
	{services.ErrMissingDueDate, http.StatusBadRequest, "MissingDueDate"},
	{services.ErrInvalidInput, http.StatusBadRequest, "InvalidInput"},
	{services.ErrInvalidReferral, http.StatusBadRequest, "InvalidReferral"},
	{services.ErrNotFound, http.StatusNotFound, "NotFound"},
	{services.ErrAlreadyRequested, http.StatusConflict, "AlreadyRequested"},
	{services.ErrNoPendingRequest, http.StatusConflict, "NoPendingRequest"},
	{services.ErrRequestAlreadyResolved, http.StatusConflict, "RequestAlreadyResolved"},
	{services.ErrRequestAlreadyPending, http.StatusConflict, "RequestAlreadyPending"},
	{services.ErrAlreadyCompleted, http.StatusConflict, "AlreadyCompleted"},
	{services.ErrInvalidState, http.StatusConflict, "InvalidState"},
	{services.ErrAlreadyRegistered, http.StatusConflict, "AlreadyRegistered"},
	{services.ErrInsufficientBalance, http.StatusUnprocessableEntity, "InsufficientBalance"},
	{services.ErrServiceCapExceeded, http.StatusUnprocessableEntity, "ServiceCapExceeded"},
	{services.ErrLockBusy, http.StatusServiceUnavailable, "LockBusy"},
}

// Classify maps an error to its HTTP status and response body.
// Storage failures and unknown errors never expose their details.
func Classify(err error) (int, ErrorResponse) {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg, ok := he.Message.(string)
		if !ok || msg == "" {
			msg = http.StatusText(he.Code)
		}
		return he.Code, ErrorResponse{Error: http.StatusText(he.Code), Message: msg}
	}

	for _, k := range errorKinds {
		if errors.Is(err, k.target) {
			return k.code, ErrorResponse{Error: k.kind, Message: k.target.Error()}
		}
	}

	return http.StatusInternalServerError, ErrorResponse{Error: "Storage", Message: "internal error"}
}

// JSONErrorHandler creates the echo error handler that renders typed failures as JSON
func JSONErrorHandler(log *logrus.Entry) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}

		code, body := Classify(err)

		entry := log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request().Method,
			"path":   c.Path(),
			"status": code,
		})
		if code >= http.StatusInternalServerError {
			entry.Error("Request failed")
		} else {
			entry.Debug("Request rejected")
		}

		if c.Request().Method == http.MethodHead {
			err = c.NoContent(code)
		} else {
			err = c.JSON(code, body)
		}
		if err != nil {
			log.WithError(err).Error("Failed to write error response")
		}
	}
}
