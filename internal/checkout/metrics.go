package checkout

import "github.com/prometheus/client_golang/prometheus"

var (
	sessionsCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_sessions_created_total",
			Help: "Checkout session creation attempts by result",
		},
		[]string{"result"},
	)

	reconciliationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_reconciliations_total",
			Help: "Reconciliation attempts by channel and result",
		},
		[]string{"channel", "result"},
	)

	stockDiscrepanciesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_stock_discrepancies_total",
			Help: "Paid orders whose stock decrement did not apply",
		},
		[]string{"reason"},
	)

	amountMismatchesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "checkout_amount_mismatches_total",
			Help: "Paid sessions whose provider amount differs from the recorded amount",
		},
	)

	webhooksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_webhooks_total",
			Help: "Webhook deliveries by result",
		},
		[]string{"result"},
	)
)

func init() {
	prometheus.MustRegister(sessionsCreatedTotal, reconciliationsTotal, stockDiscrepanciesTotal, amountMismatchesTotal, webhooksTotal)
}
