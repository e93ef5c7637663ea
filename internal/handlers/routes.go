package handlers

import (
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"gemmy/internal/auth"
	"gemmy/internal/budget"
	"gemmy/internal/export"
	"gemmy/internal/middleware"
	"gemmy/internal/notify"
	"gemmy/internal/orders"
	"gemmy/internal/photos"
	"gemmy/internal/store"
)

// Deps are the services the HTTP surface is built on.
type Deps struct {
	Orders   *orders.Service
	Auth     *auth.Service
	Budget   *budget.Budget
	Notifier notify.Notifier
	Blobs    photos.BlobStore
	Exporter *export.Exporter
	Store    store.OrderStore
	Logger   *zap.Logger
}

// Register mounts every route on r.
func Register(r *gin.Engine, d Deps) {
	log := d.Logger

	r.GET("/", Home())
	r.GET("/healthz", Health(d.Store, log))
	r.GET(strings.TrimSuffix(photos.UploadsRoute, "/")+"/*path", ServeBlob(d.Blobs, log))
	r.GET(strings.TrimSuffix(photos.FilesRoute, "/")+"/*path", ServeBlob(d.Blobs, log))

	r.POST("/auth/anonymous", Anonymous(d.Auth, log))
	r.POST("/auth/login", Login(d.Auth, log))
	r.POST("/auth/refresh", Refresh(d.Auth, log))
	r.POST("/auth/logout", Logout(d.Auth, log))
	r.GET("/auth/me", middleware.AuthGuard(d.Auth, log), Me())

	api := r.Group("/api")
	api.GET("/workflow", Workflow(d.Orders.Catalog()))

	authed := api.Group("")
	authed.Use(middleware.AuthGuard(d.Auth, log))
	{
		track := authed.Group("/track/:token")
		track.GET("", TrackOrder(d.Orders, d.Budget, log))
		track.GET("/events", OrderEvents(d.Orders, d.Notifier, log))
		track.GET("/messages", ListMessages(d.Orders, log))
		track.POST("/messages", PostMessage(d.Orders, log))
		track.PUT("/address", SaveAddress(d.Orders, log))
		track.POST("/photos", UploadPhoto(d.Orders, log))

		track.PUT("/status", UpdateStatus(d.Orders, log))
		track.PUT("/tracking", SaveTracking(d.Orders, log))
		track.PUT("/paid", SetPaid(d.Orders, log))
		track.PUT("/archived", SetArchived(d.Orders, log))
		track.PUT("/photos/:index/review", ReviewPhoto(d.Orders, log))
		track.POST("/seen", MarkSeen(d.Orders, log))
	}

	vendor := authed.Group("")
	vendor.Use(middleware.RequireVendor())
	{
		vendor.POST("/orders", CreateOrder(d.Orders, log))
		vendor.GET("/orders", ListOrders(d.Orders, log))
		vendor.GET("/export", ExportOrders(d.Exporter, log))
	}
}
