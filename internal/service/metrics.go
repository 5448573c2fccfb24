package service

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/utafrali/pos-register/internal/checkout"
)

var (
	checkoutsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_register_checkouts_total",
			Help: "Checkout attempts by payment method and outcome (completed, rejected, failed)",
		},
		[]string{"payment_method", "outcome"},
	)

	voidsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_register_voids_total",
			Help: "Voided items and orders",
		},
		[]string{"action"},
	)

	discountAuthorizationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_register_discount_authorizations_total",
			Help: "Discount authorization decisions (not_required, granted, denied)",
		},
		[]string{"outcome"},
	)

	auditFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "pos_register_audit_failures_total",
			Help: "Audit entries that could not be written to a sink",
		},
		[]string{"sink"},
	)

	activeSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "pos_register_sessions",
			Help: "Terminals with a loaded register session",
		},
	)
)

// methodLabel keeps arbitrary client input out of metric labels.
func methodLabel(method string) string {
	if checkout.IsSupportedMethod(method) {
		return method
	}
	return "unsupported"
}
