package metrics

import (
	"math/big"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// IssuanceMetrics aggregates the prometheus series recorded by the issuance
// engine.
type IssuanceMetrics struct {
	mints          prometheus.Counter
	burns          prometheus.Counter
	payoutFailures prometheus.Counter
	roundingDust   prometheus.Counter
	reserveBalance prometheus.Gauge
}

var (
	issuanceOnce     sync.Once
	issuanceRegistry *IssuanceMetrics
)

// Issuance returns the process-wide issuance metrics, registering them on
// first use.
func Issuance() *IssuanceMetrics {
	issuanceOnce.Do(func() {
		issuanceRegistry = &IssuanceMetrics{
			mints: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "issuance_mints_total",
				Help: "Count of settled buy operations.",
			}),
			burns: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "issuance_burns_total",
				Help: "Count of settled sell operations.",
			}),
			payoutFailures: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "issuance_payout_failures_total",
				Help: "Count of sell operations aborted because the reserve payout failed.",
			}),
			roundingDust: prometheus.NewCounter(prometheus.CounterOpts{
				Name: "issuance_rounding_dust_total",
				Help: "Cumulative token units discarded by the founder/buyer split.",
			}),
			reserveBalance: prometheus.NewGauge(prometheus.GaugeOpts{
				Name: "issuance_reserve_balance",
				Help: "Tracked reserve balance backing the token.",
			}),
		}
		prometheus.MustRegister(
			issuanceRegistry.mints,
			issuanceRegistry.burns,
			issuanceRegistry.payoutFailures,
			issuanceRegistry.roundingDust,
			issuanceRegistry.reserveBalance,
		)
	})
	return issuanceRegistry
}

// RecordMint increments the mint counter and accounts the dust discarded by
// the split.
func (m *IssuanceMetrics) RecordMint(dust *big.Int) {
	if m == nil {
		return
	}
	m.mints.Inc()
	if dust != nil && dust.Sign() > 0 {
		dustF, _ := new(big.Float).SetInt(dust).Float64()
		m.roundingDust.Add(dustF)
	}
}

// RecordBurn increments the burn counter.
func (m *IssuanceMetrics) RecordBurn() {
	if m == nil {
		return
	}
	m.burns.Inc()
}

// RecordPayoutFailure increments the payout failure counter.
func (m *IssuanceMetrics) RecordPayoutFailure() {
	if m == nil {
		return
	}
	m.payoutFailures.Inc()
}

// SetReserveBalance publishes the tracked reserve balance.
func (m *IssuanceMetrics) SetReserveBalance(balance *big.Int) {
	if m == nil || balance == nil {
		return
	}
	balanceF, _ := new(big.Float).SetInt(balance).Float64()
	m.reserveBalance.Set(balanceF)
}
