package metrics

import (
	"context"
	"math/big"
	"time"
)

// GaugeSampler keeps the oracle price and lifetime deposit gauges fresh by
// polling live reads. A failed read leaves the previous sample in place.
type GaugeSampler struct {
	price    func(context.Context) (*big.Int, error)
	deposits func() (*big.Int, error)
	interval time.Duration
}

// NewGaugeSampler binds the sampler to its two read sources. A non-positive
// interval falls back to thirty seconds.
func NewGaugeSampler(price func(context.Context) (*big.Int, error), deposits func() (*big.Int, error), interval time.Duration) *GaugeSampler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &GaugeSampler{price: price, deposits: deposits, interval: interval}
}

// Run samples once immediately and then on every tick until ctx is cancelled.
func (s *GaugeSampler) Run(ctx context.Context) {
	s.sample(ctx)
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.sample(ctx)
		}
	}
}

func (s *GaugeSampler) sample(ctx context.Context) {
	registry := Vault()
	if s.price != nil {
		if price, err := s.price(ctx); err == nil {
			registry.SetOraclePrice(price)
		}
	}
	if s.deposits != nil {
		if total, err := s.deposits(); err == nil {
			registry.SetLifetimeDeposits(total)
		}
	}
}
