package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(jobsSubmittedTotal, callbacksTotal, deliveriesTotal, jobsExpiredTotal, jobsPending, dispatchLatency)
}

var (
	jobsSubmittedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photobridge_jobs_submitted_total",
			Help: "Submission attempts by result.",
		},
		[]string{"result"}, // accepted, insufficient_credit, dispatch_failed, error
	)

	callbacksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photobridge_callbacks_total",
			Help: "Inbound processor callbacks by outcome.",
		},
		[]string{"outcome"},
	)

	deliveriesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "photobridge_deliveries_total",
			Help: "Result deliveries to chats by kind and success.",
		},
		[]string{"kind", "success"}, // url, bytes, notice
	)

	jobsExpiredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "photobridge_jobs_expired_total",
			Help: "Pending jobs evicted by the expiry sweep.",
		},
	)

	jobsPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "photobridge_jobs_pending",
			Help: "Jobs registered and waiting for a callback (sampled by the sweep).",
		},
	)

	dispatchLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "photobridge_dispatch_latency_ms",
			Help:    "Processor submission latency in milliseconds.",
			Buckets: []float64{50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		},
		[]string{"success"},
	)
)

func IncSubmission(result string) {
	jobsSubmittedTotal.WithLabelValues(norm(result)).Inc()
}

func IncCallback(outcome string) {
	callbacksTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncDelivery(kind string, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	deliveriesTotal.WithLabelValues(norm(kind), s).Inc()
}

func AddExpired(n int) {
	if n > 0 {
		jobsExpiredTotal.Add(float64(n))
	}
}

func SetPending(n int) { jobsPending.Set(float64(n)) }

func ObserveDispatch(d time.Duration, success bool) {
	s := "false"
	if success {
		s = "true"
	}
	dispatchLatency.WithLabelValues(s).Observe(float64(d / time.Millisecond))
}
