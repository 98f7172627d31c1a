package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrdersCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_created_total",
		Help: "Total number of orders created",
	})

	OrdersAcceptedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_accepted_total",
		Help: "Total number of orders accepted by sellers",
	})

	OrdersRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_rejected_total",
		Help: "Total number of orders rejected by sellers",
	})

	OrdersCancelledTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_cancelled_total",
		Help: "Total number of orders cancelled by customers",
	})

	OrdersFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "orders_failed_total",
		Help: "Total number of failed order operations",
	}, []string{"reason"})

	StockConflictsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "stock_conflicts_total",
		Help: "Total number of acceptances aborted by insufficient stock",
	})

	CartItemsAddedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_items_added_total",
		Help: "Total number of items added to carts",
	})

	PaymentProofsUploadedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_proofs_uploaded_total",
		Help: "Total number of manual payment proofs uploaded",
	})

	PaymentProofsApprovedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_proofs_approved_total",
		Help: "Total number of manual payment proofs approved",
	})

	PaymentProofsRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "payment_proofs_rejected_total",
		Help: "Total number of manual payment proofs rejected",
	})

	NotificationsSentTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "notifications_sent_total",
		Help: "Total number of best-effort notifications dispatched",
	}, []string{"event_type"})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
