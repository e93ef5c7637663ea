package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gemmy/internal/auth"
	"gemmy/internal/budget"
	"gemmy/internal/middleware"
	"gemmy/internal/orders"
	"gemmy/internal/workflow"
)

func handlePanic(c *gin.Context, log *zap.Logger, route string) {
	if r := recover(); r != nil {
		log.Error("panic recovered", zap.String("route", route), zap.Any("panic", r))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error"})
	}
}

func respondWithError(c *gin.Context, log *zap.Logger, status int, route string, message string) {
	log.Debug("returning error",
		zap.String("route", route), zap.Int("status", status), zap.String("message", message))
	c.AbortWithStatusJSON(status, gin.H{"error": message})
}

func respondValidationError(c *gin.Context, err error) {
	var validationErrors validator.ValidationErrors
	if errors.As(err, &validationErrors) {
		details := make([]string, 0, len(validationErrors))
		for _, fieldError := range validationErrors {
			field := lowerCamel(fieldError.Field())
			switch fieldError.Tag() {
			case "required":
				details = append(details, fmt.Sprintf("%s is required", field))
			case "max":
				details = append(details, fmt.Sprintf("%s is too long", field))
			default:
				details = append(details, fmt.Sprintf("%s is invalid", field))
			}
		}
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error":   "validation failed",
			"details": details,
		})
		return
	}

	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid body", "details": err.Error()})
}

func lowerCamel(field string) string {
	if field == "" {
		return field
	}
	return strings.ToLower(field[:1]) + field[1:]
}

// statusFor maps service errors onto HTTP statuses.
func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, orders.ErrAdminOnly):
		return http.StatusForbidden, orders.ErrAdminOnly.Error()
	case errors.Is(err, orders.ErrNoOrderBound):
		return http.StatusConflict, orders.ErrNoOrderBound.Error()
	case errors.Is(err, orders.ErrNotFound):
		return http.StatusNotFound, orders.ErrNotFound.Error()
	case errors.Is(err, orders.ErrPhotoNotFound):
		return http.StatusNotFound, orders.ErrPhotoNotFound.Error()
	case errors.Is(err, orders.ErrInvalid),
		errors.Is(err, workflow.ErrUnknownStatus),
		errors.Is(err, workflow.ErrBackwards):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, budget.ErrExhausted):
		return http.StatusTooManyRequests, budget.ErrExhausted.Error()
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrInvalidRefresh),
		errors.Is(err, auth.ErrRefreshExpired):
		return http.StatusUnauthorized, err.Error()
	case errors.Is(err, auth.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized"
	default:
		return http.StatusInternalServerError, "internal server error"
	}
}

func respondServiceError(c *gin.Context, log *zap.Logger, route string, err error) {
	status, message := statusFor(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.String("route", route), zap.Error(err))
	}
	respondWithError(c, log, status, route, message)
}

// actorFrom turns the session on c into the caller of an order operation.
func actorFrom(c *gin.Context) orders.Actor {
	id, _ := middleware.IdentityFrom(c)
	return orders.Actor{UID: id.UID, Admin: id.Admin}
}
