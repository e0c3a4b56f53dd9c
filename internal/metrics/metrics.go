package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "spacegrid"

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status code.",
		},
		[]string{"endpoint", "code"},
	)

	httpDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	slotsGenerated = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "slots_generated_total",
			Help:      "Slots produced by the generator, by state.",
		},
		[]string{"state"},
	)

	gridCache = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_cache_lookups_total",
			Help:      "Day grid cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	warmerJobs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grid_warmer_jobs_total",
			Help:      "Grid warm-up jobs by outcome.",
		},
		[]string{"outcome"},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, httpDuration, slotsGenerated, gridCache, warmerJobs)
	})
}

// ObserveHTTP records one served request.
func ObserveHTTP(endpoint string, code int, dur time.Duration) {
	httpRequests.WithLabelValues(endpoint, strconv.Itoa(code)).Inc()
	httpDuration.WithLabelValues(endpoint).Observe(dur.Seconds())
}

func AddSlots(state string, n int) {
	if n <= 0 {
		return
	}
	slotsGenerated.WithLabelValues(state).Add(float64(n))
}

func CacheHit()   { gridCache.WithLabelValues("hit").Inc() }
func CacheMiss()  { gridCache.WithLabelValues("miss").Inc() }
func CacheError() { gridCache.WithLabelValues("error").Inc() }

func WarmerJob(outcome string) {
	warmerJobs.WithLabelValues(outcome).Inc()
}
