// Package metrics holds the Prometheus collectors for settlement outcomes.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	OrderTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_order_transitions_total",
		Help: "Total number of committed order status transitions",
	}, []string{"to_status"})

	UnrecognizedStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_unrecognized_status_total",
		Help: "Status values received from callers that did not map onto a known status",
	}, []string{"entity"})

	PointsEarnedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_points_earned_total",
		Help: "Total loyalty points credited",
	})

	PointsRedeemedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_points_redeemed_total",
		Help: "Total loyalty points debited",
	})

	RedemptionFailuresTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_redemption_failures_total",
		Help: "Point redemptions that failed during order confirmation",
	}, []string{"reason"})

	StockShortagesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_stock_shortages_total",
		Help: "Stock deductions rejected because of insufficient stock",
	})

	ReturnSettlementsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "settlement_return_settlements_total",
		Help: "Return condition confirmations by outcome",
	}, []string{"outcome"})

	POSOrdersTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_pos_orders_total",
		Help: "Total number of point-of-sale orders recorded",
	})

	EventPublishFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_event_publish_failures_total",
		Help: "Order events that could not be published",
	})

	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "settlement_operation_duration_seconds",
		Help:    "Latency of settlement operations",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "route", "status"})
)

// Return settlement outcomes.
const (
	OutcomeApplied        = "applied"
	OutcomeAlreadyApplied = "already_applied"
)
