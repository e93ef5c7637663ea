package metrics

import "github.com/prometheus/client_golang/prometheus"

// Prometheus collectors for order activity.
var (
	OrdersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "gemmy_orders_created_total",
			Help: "Total number of orders created",
		},
	)

	OrderMutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmy_order_mutations_total",
			Help: "Total number of order mutations by kind and actor",
		},
		[]string{"kind", "actor"},
	)

	PhotoUploadsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmy_photo_uploads_total",
			Help: "Total number of photo uploads by result",
		},
		[]string{"result"},
	)

	RefreshDeniedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmy_refresh_denied_total",
			Help: "Tracking view fetches refused because the session budget ran out",
		},
		[]string{"role"},
	)

	ExportImagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gemmy_export_images_total",
			Help: "Images written to export archives by result",
		},
		[]string{"result"},
	)

	ExportDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "gemmy_export_duration_seconds",
			Help:    "Duration of export archive generation",
			Buckets: prometheus.DefBuckets,
		},
	)
)

// Register registers all collectors with reg.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(OrdersCreatedTotal)
	reg.MustRegister(OrderMutationsTotal)
	reg.MustRegister(PhotoUploadsTotal)
	reg.MustRegister(RefreshDeniedTotal)
	reg.MustRegister(ExportImagesTotal)
	reg.MustRegister(ExportDuration)
}
