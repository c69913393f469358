package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Prometheus implements ports.Metrics on a private registry.
type Prometheus struct {
	registry      *prometheus.Registry
	clicks        *prometheus.CounterVec
	conversions   *prometheus.CounterVec
	settlements   *prometheus.CounterVec
	payouts       *prometheus.CounterVec
	terminations  *prometheus.CounterVec
	httpRequests  *prometheus.CounterVec
	httpDurations *prometheus.HistogramVec
}

func NewPrometheus(namespace string) *Prometheus {
	if namespace == "" {
		namespace = "referral"
	}
	registry := prometheus.NewRegistry()
	p := &Prometheus{
		registry: registry,
		clicks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "clicks_total",
			Help:      "Referral link clicks by outcome.",
		}, []string{"outcome"}),
		conversions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "conversions_total",
			Help:      "Ingested conversions by outcome.",
		}, []string{"outcome"}),
		settlements: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "settlements_total",
			Help:      "Settlement computations by outcome.",
		}, []string{"outcome"}),
		payouts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "payouts_total",
			Help:      "Payout dispatch attempts by outcome.",
		}, []string{"outcome"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "termination_transitions_total",
			Help:      "Termination request transitions by resulting status.",
		}, []string{"status"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route, method and status code.",
		}, []string{"route", "method", "code"}),
		httpDurations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}
	registry.MustRegister(
		p.clicks, p.conversions, p.settlements, p.payouts, p.terminations,
		p.httpRequests, p.httpDurations,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return p
}

func (p *Prometheus) ClickRecorded(outcome string)      { p.clicks.WithLabelValues(outcome).Inc() }
func (p *Prometheus) ConversionIngested(outcome string) { p.conversions.WithLabelValues(outcome).Inc() }
func (p *Prometheus) SettlementComputed(outcome string) { p.settlements.WithLabelValues(outcome).Inc() }
func (p *Prometheus) PayoutDispatched(outcome string)   { p.payouts.WithLabelValues(outcome).Inc() }
func (p *Prometheus) TerminationTransitioned(status string) {
	p.terminations.WithLabelValues(status).Inc()
}

func (p *Prometheus) ObserveHTTP(route, method, code string, elapsed time.Duration) {
	p.httpRequests.WithLabelValues(route, method, code).Inc()
	p.httpDurations.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{Registry: p.registry})
}

func (p *Prometheus) Registry() *prometheus.Registry { return p.registry }
