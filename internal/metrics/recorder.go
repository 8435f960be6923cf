package metrics

import (
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/serroba/rate-gate/internal/ratelimit"
)

const namespace = "rategate"

// Recorder exports limiter verdicts as Prometheus metrics.
type Recorder struct {
	registry   *prometheus.Registry
	verdicts   *prometheus.CounterVec
	evaluation *prometheus.HistogramVec
}

// NewRecorder registers the limiter metrics on registry.
func NewRecorder(registry *prometheus.Registry) (*Recorder, error) {
	if registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}

	r := &Recorder{
		registry: registry,
		verdicts: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "limiter",
				Name:      "verdicts_total",
				Help:      "Admission decisions by outcome and reason.",
			},
			[]string{"decision", "reason"},
		),
		evaluation: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "limiter",
				Name:      "evaluation_seconds",
				Help:      "Time spent deciding a request, store round trips included.",
				Buckets:   []float64{0.0005, 0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25},
			},
			[]string{"reason"},
		),
	}

	for _, c := range []prometheus.Collector{r.verdicts, r.evaluation} {
		if err := registry.Register(c); err != nil {
			return nil, fmt.Errorf("register limiter metrics: %w", err)
		}
	}

	return r, nil
}

// ObserveVerdict implements ratelimit.Observer.
func (r *Recorder) ObserveVerdict(v ratelimit.Verdict, elapsed time.Duration) {
	reason := v.Reason.String()

	r.verdicts.WithLabelValues(v.Decision.String(), reason).Inc()
	r.evaluation.WithLabelValues(reason).Observe(elapsed.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Compile-time check.
var _ ratelimit.Observer = (*Recorder)(nil)
