package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() { register(creditsMovedTotal) }

var creditsMovedTotal = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "photobridge_credits_moved_total",
		Help: "Credit units moved through the ledger, labeled by reason.",
	},
	[]string{"reason"}, // debit, refund, topup
)

func AddCredits(reason string, n int64) {
	if n > 0 {
		creditsMovedTotal.WithLabelValues(norm(reason)).Add(float64(n))
	}
}
