package service

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const metricsNamespace = "jalert"

// metrics live in their own registry so the endpoint only reports the
// watch loop, not the Go runtime.
type metrics struct {
	registry    *prometheus.Registry
	records     prometheus.Counter
	alerts      prometheus.Counter
	fetchErrors prometheus.Counter
	dropped     *prometheus.CounterVec
	evaluation  prometheus.Histogram
}

func newMetrics() *metrics {
	m := &metrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "records_total",
			Help:      "Journal entries evaluated against the rule set.",
		}),
		alerts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "alerts_total",
			Help:      "Journal entries that matched the rule set and raised an alert.",
		}),
		fetchErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "fetch_errors_total",
			Help:      "Journal entries skipped because a field could not be read.",
		}),
		dropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Name:      "dropped_alerts_total",
			Help:      "Alerts not queued because the exporter was busy.",
		}, []string{"exporter"}),
		evaluation: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Name:      "evaluation_seconds",
			Help:      "Time spent evaluating one journal entry.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}),
	}
	m.registry.MustRegister(m.records, m.alerts, m.fetchErrors, m.dropped, m.evaluation)
	return m
}

func (m *metrics) handler() http.Handler {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}))
	return mux
}
