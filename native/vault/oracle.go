package vault

import (
	"context"
	"fmt"
	"math/big"
	"time"
)

// RoundData mirrors the read surface of an aggregator-style price feed. Only
// Answer and UpdatedAt participate in validation; the remaining fields are
// carried for audit logging.
type RoundData struct {
	RoundID         *big.Int
	Answer          *big.Int
	StartedAt       time.Time
	UpdatedAt       time.Time
	AnsweredInRound *big.Int
}

// PriceOracle is the external price source consumed by the vault. It is a pure
// query and must never be cached across operations.
type PriceOracle interface {
	LatestRoundData(ctx context.Context) (RoundData, error)
}

// OracleAdapter validates feed reads and converts native-asset amounts into
// the vault's stable accounting unit.
type OracleAdapter struct {
	oracle    PriceOracle
	heartbeat time.Duration
	clock     func() time.Time
}

// NewOracleAdapter wraps the supplied feed with the given heartbeat. A zero or
// negative heartbeat falls back to the default.
func NewOracleAdapter(oracle PriceOracle, heartbeat time.Duration) *OracleAdapter {
	if heartbeat <= 0 {
		heartbeat = OracleHeartbeat * time.Second
	}
	return &OracleAdapter{oracle: oracle, heartbeat: heartbeat, clock: time.Now}
}

// SetClock overrides the time source (primarily for deterministic testing).
func (a *OracleAdapter) SetClock(clock func() time.Time) {
	if a == nil || clock == nil {
		return
	}
	a.clock = clock
}

// SetOracle replaces the trusted price source. Authorisation is enforced by
// the engine before this is reached.
func (a *OracleAdapter) SetOracle(oracle PriceOracle) {
	if a == nil || oracle == nil {
		return
	}
	a.oracle = oracle
}

// CurrentPrice reads the feed and enforces validity and freshness. The price
// is returned in feed units (8 decimals).
func (a *OracleAdapter) CurrentPrice(ctx context.Context) (*big.Int, error) {
	if a == nil || a.oracle == nil {
		return nil, fmt.Errorf("vault: oracle not configured")
	}
	round, err := a.oracle.LatestRoundData(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrOracleCompromised, err)
	}
	if round.Answer == nil || round.Answer.Sign() <= 0 {
		return nil, ErrOracleCompromised
	}
	now := a.clock().UTC()
	if round.UpdatedAt.IsZero() || now.Sub(round.UpdatedAt.UTC()) > a.heartbeat {
		return nil, ErrOracleStale
	}
	return new(big.Int).Set(round.Answer), nil
}

// ConvertToStable values the supplied native-asset amount in stable units at
// the live feed price. Floor division; the truncated remainder is dropped.
func (a *OracleAdapter) ConvertToStable(ctx context.Context, amount *big.Int) (*big.Int, error) {
	if amount == nil || amount.Sign() < 0 {
		return nil, fmt.Errorf("vault: conversion amount must not be negative")
	}
	price, err := a.CurrentPrice(ctx)
	if err != nil {
		return nil, err
	}
	converted := new(big.Int).Mul(amount, price)
	return converted.Quo(converted, conversionScale), nil
}
