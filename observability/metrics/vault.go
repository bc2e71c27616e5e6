package metrics

import (
	"math"
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// VaultMetrics tracks vault operation outcomes for the /metrics endpoint.
type VaultMetrics struct {
	deposits           *prometheus.CounterVec
	withdrawals        *prometheus.CounterVec
	rejections         *prometheus.CounterVec
	settlementFailures prometheus.Counter
	oraclePrice        prometheus.Gauge
	lifetimeDeposits   prometheus.Gauge
}

var (
	vaultOnce     sync.Once
	vaultRegistry *VaultMetrics
)

// Vault returns the process-wide vault metrics registry.
func Vault() *VaultMetrics {
	vaultOnce.Do(func() {
		vaultRegistry = &VaultMetrics{
			deposits: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_deposits_total",
				Help: "Count of settled deposits by asset.",
			}, []string{"asset"}),
			withdrawals: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_withdrawals_total",
				Help: "Count of settled withdrawals by asset.",
			}, []string{"asset"}),
			rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "vault_rejections_total",
				Help: "Count of rejected operations by reason.",
			}, []string{"reason"}),
			settlementFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "vault_settlement_failures_total",
				Help: "Count of external settlements that failed and rolled back.",
			}),
			oraclePrice: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_oracle_price",
				Help: "Last accepted oracle answer in feed units.",
			}),
			lifetimeDeposits: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "vault_lifetime_deposits",
				Help: "Lifetime deposited value in whole stable units.",
			}),
		}
		prometheus.MustRegister(
			vaultRegistry.deposits,
			vaultRegistry.withdrawals,
			vaultRegistry.rejections,
			vaultRegistry.settlementFailures,
			vaultRegistry.oraclePrice,
			vaultRegistry.lifetimeDeposits,
		)
	})
	return vaultRegistry
}

// ObserveDeposit increments the deposit counter for the asset ticker.
func (m *VaultMetrics) ObserveDeposit(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.deposits.WithLabelValues(asset).Inc()
}

// ObserveWithdrawal increments the withdrawal counter for the asset ticker.
func (m *VaultMetrics) ObserveWithdrawal(asset string) {
	if m == nil {
		return
	}
	if asset == "" {
		asset = "unknown"
	}
	m.withdrawals.WithLabelValues(asset).Inc()
}

// ObserveRejection increments the rejection counter for the supplied reason.
func (m *VaultMetrics) ObserveRejection(reason string) {
	if m == nil {
		return
	}
	if reason == "" {
		reason = "unknown"
	}
	m.rejections.WithLabelValues(reason).Inc()
}

// ObserveSettlementFailure counts a settlement rollback.
func (m *VaultMetrics) ObserveSettlementFailure() {
	if m == nil {
		return
	}
	m.settlementFailures.Inc()
}

// SetOraclePrice records the most recent accepted feed answer.
func (m *VaultMetrics) SetOraclePrice(price *big.Int) {
	if m == nil || price == nil {
		return
	}
	m.oraclePrice.Set(bigToFloat(price))
}

// SetLifetimeDeposits records the current lifetime deposit total.
func (m *VaultMetrics) SetLifetimeDeposits(total *big.Int) {
	if m == nil || total == nil {
		return
	}
	m.lifetimeDeposits.Set(bigToFloat(total))
}

func bigToFloat(value *big.Int) float64 {
	f, _ := new(big.Float).SetInt(value).Float64()
	if math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return f
}
