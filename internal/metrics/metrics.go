// Package metrics defines the Prometheus instruments for the quick-pay
// service. Counters are registered on the default registry and served by the
// promhttp handler in cmd/server.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SearchesTotal counts pending-transaction queries issued, by company.
	SearchesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickpay_searches_total",
		Help: "Pending-transaction queries issued.",
	}, []string{"company"})

	// StaleResponsesDropped counts search responses discarded for arriving
	// after a newer query was already applied.
	StaleResponsesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickpay_stale_responses_dropped_total",
		Help: "Out-of-order search responses discarded.",
	})

	// CommitsTotal counts apply calls by result: ok, partial, error.
	CommitsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "quickpay_commits_total",
		Help: "Apply-transactions calls by outcome.",
	}, []string{"result"})

	// PaymentsApplied counts individual transactions consumed by invoices.
	PaymentsApplied = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickpay_payments_applied_total",
		Help: "Transactions successfully applied to invoices.",
	})

	// PaymentRequestsTotal counts out-of-band payment requests created.
	PaymentRequestsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "quickpay_payment_requests_total",
		Help: "Payment requests created.",
	})
)
