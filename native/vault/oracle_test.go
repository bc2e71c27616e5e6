package vault

import (
	"context"
	"errors"
	"math/big"
	"testing"
	"time"
)

func TestCurrentPriceRejectsZeroAnswer(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	oracle := &stubOracle{round: healthyRound(now, big.NewInt(0))}
	adapter := NewOracleAdapter(oracle, time.Hour)
	adapter.SetClock(func() time.Time { return now })
	if _, err := adapter.CurrentPrice(context.Background()); !errors.Is(err, ErrOracleCompromised) {
		t.Fatalf("expected compromised oracle, got %v", err)
	}
}

func TestCurrentPriceRejectsStaleRound(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	round := healthyRound(now, feedPrice(2000))
	round.UpdatedAt = now.Add(-2 * time.Hour)
	adapter := NewOracleAdapter(&stubOracle{round: round}, time.Hour)
	adapter.SetClock(func() time.Time { return now })
	if _, err := adapter.CurrentPrice(context.Background()); !errors.Is(err, ErrOracleStale) {
		t.Fatalf("expected stale oracle, got %v", err)
	}
}

func TestCurrentPriceAcceptsFreshRound(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	adapter := NewOracleAdapter(&stubOracle{round: healthyRound(now, feedPrice(2000))}, time.Hour)
	adapter.SetClock(func() time.Time { return now })
	price, err := adapter.CurrentPrice(context.Background())
	if err != nil {
		t.Fatalf("current price: %v", err)
	}
	if price.Cmp(feedPrice(2000)) != 0 {
		t.Fatalf("unexpected price %s", price)
	}
}

func TestConvertToStableScenario(t *testing.T) {
	// 1 native unit (10^18 smallest units) at a 2000e8 feed price converts
	// to 2000 whole stable units.
	now := time.Unix(1_700_000_000, 0)
	adapter := NewOracleAdapter(&stubOracle{round: healthyRound(now, feedPrice(2000))}, time.Hour)
	adapter.SetClock(func() time.Time { return now })
	converted, err := adapter.ConvertToStable(context.Background(), nativeUnits(1))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("expected 2000 stable units, got %s", converted)
	}
}

func TestConvertToStableFloorsTruncation(t *testing.T) {
	now := time.Unix(1_700_000_000, 0)
	// Price 1.5e8 against a 1-wei amount floors to zero.
	round := healthyRound(now, big.NewInt(150_000_000))
	adapter := NewOracleAdapter(&stubOracle{round: round}, time.Hour)
	adapter.SetClock(func() time.Time { return now })
	converted, err := adapter.ConvertToStable(context.Background(), big.NewInt(1))
	if err != nil {
		t.Fatalf("convert: %v", err)
	}
	if converted.Sign() != 0 {
		t.Fatalf("expected floor to zero, got %s", converted)
	}
}

func TestConvertToStablePropagatesFeedError(t *testing.T) {
	adapter := NewOracleAdapter(&stubOracle{err: errors.New("rpc down")}, time.Hour)
	if _, err := adapter.ConvertToStable(context.Background(), nativeUnits(1)); !errors.Is(err, ErrOracleCompromised) {
		t.Fatalf("expected compromised oracle wrap, got %v", err)
	}
}
