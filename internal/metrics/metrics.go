package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "market_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	PaymentsReconciledTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_payments_reconciled_total",
			Help: "Invoice events processed by the reconciler",
		},
		[]string{"status", "purpose"},
	)

	DuplicateWebhooksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_duplicate_webhooks_total",
			Help: "Invoice events skipped because the payment was already settled",
		},
	)

	PurchasesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_purchases_total",
			Help: "Package and promotion purchases",
		},
		[]string{"kind", "payment_method", "status"},
	)

	ListingsModeratedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "market_listings_moderated_total",
			Help: "Moderation verdicts",
		},
		[]string{"verdict"},
	)

	ListingsExpiredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_listings_expired_total",
			Help: "Listings expired by the sweep worker",
		},
	)

	ReferralRewardsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "market_referral_rewards_total",
			Help: "Referral rewards paid out",
		},
	)
)
