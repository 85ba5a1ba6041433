package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service. It also
// satisfies phi.Observer so the sanitizer can report redaction activity
// without depending on this package.
type Metrics struct {
	PatternMatches   *prometheus.CounterVec
	ValuesRedacted   *prometheus.CounterVec
	RequestsBlocked  prometheus.Counter
	ResponsesMasked  prometheus.Counter
	AccessDenied     prometheus.Counter
	SanitizeDuration prometheus.Histogram
}

func New(namespace string) *Metrics {
	return &Metrics{
		PatternMatches: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_pattern_matches_total",
			Help:      "PHI pattern matches by pattern and redaction strategy.",
		}, []string{"pattern", "strategy"}),
		ValuesRedacted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_values_redacted_total",
			Help:      "Values redacted by trigger kind.",
		}, []string{"kind"}),
		RequestsBlocked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_requests_blocked_total",
			Help:      "Requests rejected because PHI was detected.",
		}),
		ResponsesMasked: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_responses_masked_total",
			Help:      "Responses altered by PHI masking.",
		}),
		AccessDenied: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "phi_access_denied_total",
			Help:      "Requests denied for a missing or invalid PHI access reason.",
		}),
		SanitizeDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phi_sanitize_duration_ms",
			Help:      "Time spent sanitizing response payloads in milliseconds.",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 5, 10, 50, 100},
		}),
	}
}

// PatternMatched implements phi.Observer.
func (m *Metrics) PatternMatched(pattern, strategy string) {
	m.PatternMatches.WithLabelValues(pattern, strategy).Inc()
}

// ValueRedacted implements phi.Observer.
func (m *Metrics) ValueRedacted(kind string) {
	m.ValuesRedacted.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveSanitizeDuration(d time.Duration) {
	m.SanitizeDuration.Observe(float64(d.Microseconds()) / 1000.0)
}

func Handler() http.Handler {
	return promhttp.Handler()
}
