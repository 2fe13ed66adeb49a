package metrics

import (
	"math/big"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics records vault engine activity.
type VaultMetrics struct {
	operations         *prometheus.CounterVec
	latency            *prometheus.HistogramVec
	vaultValue         prometheus.Gauge
	negativeValuations prometheus.Counter
	retentionExtended  prometheus.Counter
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the lazily registered vault metrics.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			operations: prometheus.NewCounterVec(prometheus.CounterOpts{
				Namespace: "rwavault",
				Subsystem: "engine",
				Name:      "operations_total",
				Help:      "Vault operations segmented by operation and result code.",
			}, []string{"operation", "code"}),
			latency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Namespace: "rwavault",
				Subsystem: "engine",
				Name:      "operation_duration_seconds",
				Help:      "Latency distribution of vault operations.",
				Buckets:   prometheus.DefBuckets,
			}, []string{"operation"}),
			vaultValue: prometheus.NewGauge(prometheus.GaugeOpts{
				Namespace: "rwavault",
				Subsystem: "engine",
				Name:      "vault_value",
				Help:      "Last computed vault value in stable-asset base units.",
			}),
			negativeValuations: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rwavault",
				Subsystem: "oracle",
				Name:      "negative_valuations_total",
				Help:      "Oracle reports carrying a negative RWA value.",
			}),
			retentionExtended: prometheus.NewCounter(prometheus.CounterOpts{
				Namespace: "rwavault",
				Subsystem: "retention",
				Name:      "entries_extended_total",
				Help:      "Persistent entries extended by the maintenance job.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.operations,
			vaultRegistry.latency,
			vaultRegistry.vaultValue,
			vaultRegistry.negativeValuations,
			vaultRegistry.retentionExtended,
		)
	})
	return vaultRegistry
}

// ObserveOperation counts an operation outcome.
func (m *VaultMetrics) ObserveOperation(op string, code string, elapsed time.Duration) {
	if m == nil {
		return
	}
	if code == "" {
		code = "unknown"
	}
	m.operations.WithLabelValues(op, code).Inc()
	m.latency.WithLabelValues(op).Observe(elapsed.Seconds())
}

// SetVaultValue publishes the vault value. The gauge is approximate for
// values beyond float64 precision.
func (m *VaultMetrics) SetVaultValue(value *big.Int) {
	if m == nil || value == nil {
		return
	}
	f, _ := new(big.Float).SetInt(value).Float64()
	m.vaultValue.Set(f)
}

// IncNegativeValuation flags a negative oracle report.
func (m *VaultMetrics) IncNegativeValuation() {
	if m == nil {
		return
	}
	m.negativeValuations.Inc()
}

// AddRetentionExtended counts extended entries.
func (m *VaultMetrics) AddRetentionExtended(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.retentionExtended.Add(float64(n))
}
