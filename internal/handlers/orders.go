package handlers

import (
	"net/http"
	"os"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemmy/internal/export"
	"gemmy/internal/orders"
)

type createOrderRequest struct {
	CustomerName  string `json:"customerName" binding:"required,max=200"`
	CustomerEmail string `json:"customerEmail" binding:"omitempty,email"`
}

func CreateOrder(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "CreateOrder")

		var req createOrderRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			respondValidationError(c, err)
			return
		}

		created, err := svc.CreateOrder(c.Request.Context(), actorFrom(c), req.CustomerName, req.CustomerEmail)
		if err != nil {
			respondServiceError(c, log, "CreateOrder", err)
			return
		}
		c.JSON(http.StatusCreated, created)
	}
}

// ListOrders serves the vendor order index.
func ListOrders(svc *orders.Service, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "ListOrders")

		page, limit, err := parsePaginationParams(c.Query("page"), c.Query("limit"))
		if err != nil {
			respondWithError(c, log, http.StatusBadRequest, "ListOrders", err.Error())
			return
		}

		result, err := svc.List(c.Request.Context(), actorFrom(c), orders.ListQuery{
			Search: c.Query("q"),
			Status: c.DefaultQuery("status", orders.FilterAll),
			Sort:   c.DefaultQuery("sort", orders.SortUpdatedDesc),
			Page:   page,
			Limit:  limit,
		})
		if err != nil {
			respondServiceError(c, log, "ListOrders", err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}

// ExportOrders builds the archive in a temp file so a failure can still be
// reported with a proper status, then sends it as an attachment.
func ExportOrders(exp *export.Exporter, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer handlePanic(c, log, "ExportOrders")

		tmp, err := os.CreateTemp("", "gemmy-export-*.zip")
		if err != nil {
			respondServiceError(c, log, "ExportOrders", err)
			return
		}
		defer os.Remove(tmp.Name())

		sum, err := exp.Write(c.Request.Context(), tmp, nil)
		if cerr := tmp.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			respondServiceError(c, log, "ExportOrders", err)
			return
		}

		log.Info("export served", zap.Int("orders", sum.Orders), zap.Int("failedImages", sum.Failed))
		c.FileAttachment(tmp.Name(), export.Filename(time.Now()))
	}
}
