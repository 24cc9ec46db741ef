// Package metrics exposes the Prometheus counters and histograms the core
// emits for gate decisions, ledger activity, and rate-limiter rejections.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Registry holds every metric the core records. It is constructed once per
// process and registered against the default Prometheus registerer.
type Registry struct {
	GateDecisions   *prometheus.CounterVec
	GateStageLatency *prometheus.HistogramVec
	LedgerEntries   *prometheus.CounterVec
	RateLimitRejections *prometheus.CounterVec
	IssuerSupply    prometheus.Gauge
}

var (
	once    sync.Once
	current *Registry
)

// Get returns the process-wide metrics registry, constructing and
// registering it on first use.
func Get() *Registry {
	once.Do(func() {
		current = &Registry{
			GateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "openibank",
				Subsystem: "gate",
				Name:      "decisions_total",
				Help:      "Total commitment gate decisions segmented by stage and outcome.",
			}, []string{"stage", "outcome"}),
			GateStageLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "openibank",
				Subsystem: "gate",
				Name:      "stage_duration_seconds",
				Help:      "Latency distribution for individual commitment gate stages.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"stage"}),
			LedgerEntries: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "openibank",
				Subsystem: "ledger",
				Name:      "entries_total",
				Help:      "Total ledger entries segmented by direction and reason kind.",
			}, []string{"direction", "reason"}),
			RateLimitRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "openibank",
				Subsystem: "ratelimit",
				Name:      "rejections_total",
				Help:      "Total requests rejected by the rate limiter, segmented by reason.",
			}, []string{"reason"}),
			IssuerSupply: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "openibank",
				Subsystem: "issuer",
				Name:      "total_supply",
				Help:      "Current outstanding supply of the issued asset, in smallest units.",
			}),
		}
		prometheus.MustRegister(
			current.GateDecisions,
			current.GateStageLatency,
			current.LedgerEntries,
			current.RateLimitRejections,
			current.IssuerSupply,
		)
	})
	return current
}
