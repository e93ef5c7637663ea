package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemmy/internal/auth"
	"gemmy/internal/middleware"
)

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type RefreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type LoginResponseAccount struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Anonymous starts a customer session.
func Anonymous(svc *auth.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "Anonymous")

		tokens, id, err := svc.Anonymous()
		if err != nil {
			respondServiceError(c, log, "Anonymous", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"accessToken": tokens.AccessToken,
			"expiresIn":   tokens.ExpiresIn,
			"identity":    id,
		})
	}
}

func Login(svc *auth.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "Login")

		var req LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		tokens, account, err := svc.Login(c.Request.Context(), req.Email, req.Password)
		if err != nil {
			respondServiceError(c, log, "Login", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"accessToken":  tokens.AccessToken,
			"refreshToken": tokens.RefreshToken,
			"expiresIn":    tokens.ExpiresIn,
			"account": LoginResponseAccount{
				ID:    account.ID.Hex(),
				Email: account.Email,
				Name:  account.Name,
			},
		})
	}
}

func Refresh(svc *auth.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "Refresh")

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		tokens, err := svc.Refresh(c.Request.Context(), req.RefreshToken)
		if err != nil {
			respondServiceError(c, log, "Refresh", err)
			return
		}
		c.JSON(http.StatusOK, tokens)
	}
}

func Logout(svc *auth.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "Logout")

		var req RefreshRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := svc.Logout(c.Request.Context(), req.RefreshToken); err != nil {
			respondServiceError(c, log, "Logout", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "logged out"})
	}
}

// Me echoes the session identity.
func Me() gin.HandlerFunc {
	return func(c *gin.Context) {
		id, _ := middleware.IdentityFrom(c)
		c.JSON(http.StatusOK, id)
	}
}
