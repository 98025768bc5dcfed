package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SoulfulBloom/deeptravelcollection-sub001/internal/queue"
)

var (
	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fulfillment_jobs_total",
			Help: "Fulfillment jobs finished, by kind and final state.",
		},
		[]string{"kind", "state"},
	)

	jobDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "fulfillment_job_duration_seconds",
			Help:    "Wall time of fulfillment jobs from start to finish.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600},
		},
		[]string{"kind"},
	)

	queueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fulfillment_queue_depth",
			Help: "Jobs waiting for the worker.",
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_cache_lookups_total",
			Help: "Content cache lookups by result.",
		},
		[]string{"result"},
	)

	purchaseTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "purchase_transitions_total",
			Help: "Purchase status changes, by target status.",
		},
		[]string{"status"},
	)

	emailsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "confirmation_emails_total",
			Help: "Confirmation emails by outcome.",
		},
		[]string{"outcome"},
	)
)

func init() {
	prometheus.MustRegister(jobsTotal, jobDuration, queueDepth, cacheLookups, purchaseTransitions, emailsTotal)
}

// Pipeline records fulfillment metrics. It satisfies queue.Metrics and
// cache.Observer; the zero value is ready to use.
type Pipeline struct{}

func (Pipeline) JobFinished(kind string, state queue.State, d time.Duration) {
	jobsTotal.WithLabelValues(kind, string(state)).Inc()
	jobDuration.WithLabelValues(kind).Observe(d.Seconds())
}

func (Pipeline) QueueDepth(n int) { queueDepth.Set(float64(n)) }

func (Pipeline) CacheHit()  { cacheLookups.WithLabelValues("hit").Inc() }
func (Pipeline) CacheMiss() { cacheLookups.WithLabelValues("miss").Inc() }

// PurchaseTransition counts a purchase moving to status.
func (Pipeline) PurchaseTransition(status string) {
	purchaseTransitions.WithLabelValues(status).Inc()
}

// EmailSent counts a confirmation email attempt.
func (Pipeline) EmailSent(ok bool) {
	outcome := "sent"
	if !ok {
		outcome = "failed"
	}
	emailsTotal.WithLabelValues(outcome).Inc()
}
