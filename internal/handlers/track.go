package handlers

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemmy/internal/budget"
	"gemmy/internal/metrics"
	"gemmy/internal/models"
	"gemmy/internal/notify"
	"gemmy/internal/orders"
)

type trackResponse struct {
	orders.Detail
	Refresh budget.Status `json:"refresh"`
}

type addressRequest struct {
	Line1   string `json:"line1" binding:"required,max=200"`
	Line2   string `json:"line2" binding:"max=200"`
	City    string `json:"city" binding:"required,max=100"`
	State   string `json:"state" binding:"max=100"`
	Zip     string `json:"zip" binding:"max=20"`
	Country string `json:"country" binding:"max=60"`
}

type statusRequest struct {
	Status string `json:"status" binding:"required"`
}

type trackingRequest struct {
	KitOutbound     string `json:"kitOutbound" binding:"max=64"`
	KitReturn       string `json:"kitReturn" binding:"max=64"`
	ProductOutbound string `json:"productOutbound" binding:"max=64"`
}

type paidRequest struct {
	Paid *bool `json:"paid" binding:"required"`
}

type archivedRequest struct {
	Archived *bool `json:"archived" binding:"required"`
}

type messageRequest struct {
	Text string `json:"text" binding:"required"`
}

// TrackOrder serves the tracking view. Each call spends one check from the
// session's refresh budget; a spent budget answers 429 without reading.
func TrackOrder(svc *orders.Service, b *budget.Budget, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "TrackOrder")

		actor := actorFrom(c)
		st, err := b.Consume(c.Request.Context(), actor.UID, actor.Admin)
		if errors.Is(err, budget.ErrExhausted) {
			metrics.RefreshDeniedTotal.WithLabelValues(actor.Role()).Inc()
			c.AbortWithStatusJSON(http.StatusTooManyRequests, gin.H{
				"error":   budget.ErrExhausted.Error(),
				"refresh": st,
			})
			return
		}
		if err != nil {
			respondServiceError(c, log, "TrackOrder", err)
			return
		}

		v, err := svc.FetchByToken(c.Request.Context(), actor, c.Param("token"))
		if err != nil {
			respondServiceError(c, log, "TrackOrder", err)
			return
		}
		c.JSON(http.StatusOK, trackResponse{Detail: svc.Describe(v), Refresh: st})
	}
}

func SaveAddress(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "SaveAddress")

		var req addressRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}
		addr := models.Address(req)
		if addr.Country == "" {
			addr.Country = "US"
		}

		if err := svc.SaveAddress(c.Request.Context(), actorFrom(c), c.Param("token"), addr); err != nil {
			respondServiceError(c, log, "SaveAddress", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"address": addr})
	}
}

func UpdateStatus(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "UpdateStatus")

		var req statusRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		status, err := svc.UpdateStatus(c.Request.Context(), actorFrom(c), c.Param("token"), req.Status)
		if err != nil {
			respondServiceError(c, log, "UpdateStatus", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": status})
	}
}

func SaveTracking(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "SaveTracking")

		var req trackingRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		tracking, err := svc.SaveTracking(c.Request.Context(), actorFrom(c), c.Param("token"), models.TrackingNumbers(req))
		if err != nil {
			respondServiceError(c, log, "SaveTracking", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"tracking":  tracking,
			"shipments": orders.Shipments(tracking),
		})
	}
}

func SetPaid(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "SetPaid")

		var req paidRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		status, err := svc.SetPaid(c.Request.Context(), actorFrom(c), c.Param("token"), *req.Paid)
		if err != nil {
			respondServiceError(c, log, "SetPaid", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"paid": *req.Paid, "status": status})
	}
}

func SetArchived(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "SetArchived")

		var req archivedRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		if err := svc.SetArchived(c.Request.Context(), actorFrom(c), c.Param("token"), *req.Archived); err != nil {
			respondServiceError(c, log, "SetArchived", err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"archived": *req.Archived})
	}
}

func PostMessage(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "PostMessage")

		var req messageRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		msg, err := svc.AppendMessage(c.Request.Context(), actorFrom(c), c.Param("token"), req.Text)
		if err != nil {
			respondServiceError(c, log, "PostMessage", err)
			return
		}
		c.JSON(http.StatusCreated, msg)
	}
}

func ListMessages(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "ListMessages")

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, log, http.StatusBadRequest, "ListMessages", err.Error())
			return
		}

		result, err := svc.Messages(c.Request.Context(), c.Param("token"), page, limit)
		if err != nil {
			respondServiceError(c, log, "ListMessages", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

func MarkSeen(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "MarkSeen")

		if err := svc.MarkSeen(c.Request.Context(), actorFrom(c), c.Param("token")); err != nil {
			respondServiceError(c, log, "MarkSeen", err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

const eventKeepAlive = 25 * time.Second

// OrderEvents streams change events for one token as server-sent events until
// the client goes away.
func OrderEvents(svc *orders.Service, n notify.Notifier, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "OrderEvents")

		ctx := c.Request.Context()
		token := c.Param("token")
		v, err := svc.FetchByToken(ctx, orders.Actor{}, token)
		if err != nil {
			respondServiceError(c, log, "OrderEvents", err)
			return
		}
		if !v.Found {
			respondWithError(c, log, http.StatusNotFound, "OrderEvents", orders.ErrNotFound.Error())
			return
		}

		events, err := n.Subscribe(ctx, token)
		if err != nil {
			respondServiceError(c, log, "OrderEvents", err)
			return
		}

		keepAlive := time.NewTicker(eventKeepAlive)
		defer keepAlive.Stop()

		c.SSEvent("ready", gin.H{"token": token, "status": v.Projection.Status})
		c.Writer.Flush()
		c.Stream(func(w io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case e, ok := <-events:
				if !ok {
					return false
				}
				c.SSEvent("update", e)
				return true
			case <-keepAlive.C:
				c.SSEvent("ping", strconv.FormatInt(time.Now().Unix(), 10))
				return true
			}
		})
	}
}
