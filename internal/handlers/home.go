package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemmy/internal/orders"
	"gemmy/internal/store"
	"gemmy/internal/workflow"
)

// Home reports which view a link opens. The URL fragment never reaches the
// server, so only ?t matters.
func Home() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("t")
		c.JSON(http.StatusOK, gin.H{
			"mode":  orders.ModeFor(token),
			"token": token,
		})
	}
}

func Workflow(catalog *workflow.Catalog) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"policy": catalog.Policy().String(),
			"phases": orders.PhaseViews(catalog),
		})
	}
}

// Health pings the document store.
func Health(st store.OrderStore, log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := st.Ping(c.Request.Context()); err != nil {
			log.Warn("health check failed", zap.Error(err))
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}
