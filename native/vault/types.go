package vault

import (
	"fmt"
	"math/big"
	"strings"
)

// Asset enumerates the two ledger keys the vault accepts. The chain-native
// volatile asset is identified by the zero-address sentinel on the wire; the
// stable token by its contract address.
type Asset string

const (
	// AssetNative is the chain-native volatile asset priced through the oracle.
	AssetNative Asset = "NATIVE"
	// AssetStable is the designated stable token, already denominated in the
	// vault's accounting unit.
	AssetStable Asset = "STABLE"
)

const (
	// NativeDecimals is the precision of the volatile asset's smallest unit.
	NativeDecimals = 18
	// FeedDecimals is the precision reported by the price feed.
	FeedDecimals = 8
	// OracleHeartbeat is the maximum tolerated age of a feed update.
	OracleHeartbeat = 3600
)

// conversionScale reconciles the native asset's 18-decimal smallest unit with
// the feed's 8-decimal price so conversions land in whole stable units:
// stable = native * price / 10^(18+8).
var conversionScale = new(big.Int).Exp(big.NewInt(10), big.NewInt(NativeDecimals+FeedDecimals), nil)

// NormalizeAsset canonicalises the supplied identifier and rejects anything
// outside the two supported ledger keys.
func NormalizeAsset(asset Asset) (Asset, error) {
	switch Asset(strings.ToUpper(strings.TrimSpace(string(asset)))) {
	case AssetNative:
		return AssetNative, nil
	case AssetStable:
		return AssetStable, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedAsset, string(asset))
	}
}

// Aggregates captures the vault's lifetime counters. TotalDeposits is
// denominated in stable units, converted at deposit time, and is never
// decremented by withdrawals.
type Aggregates struct {
	TotalDeposits   *big.Int
	DepositCount    uint64
	WithdrawalCount uint64
}

// Copy returns a deep copy so callers cannot mutate shared pointers.
func (a *Aggregates) Copy() *Aggregates {
	if a == nil {
		return nil
	}
	clone := &Aggregates{DepositCount: a.DepositCount, WithdrawalCount: a.WithdrawalCount}
	if a.TotalDeposits != nil {
		clone.TotalDeposits = new(big.Int).Set(a.TotalDeposits)
	} else {
		clone.TotalDeposits = big.NewInt(0)
	}
	return clone
}

// Limits bundles the tunable capital ceilings alongside the fixed
// per-withdrawal ceiling. The ceilings are stable-unit amounts; the
// per-withdrawal cap is native units and not administrator-tunable.
type Limits struct {
	GlobalDepositCeiling *big.Int
	BankCapitalCeiling   *big.Int
	PerWithdrawalCeiling *big.Int
}

// Copy returns a deep copy of the limit set.
func (l Limits) Copy() Limits {
	clone := Limits{}
	if l.GlobalDepositCeiling != nil {
		clone.GlobalDepositCeiling = new(big.Int).Set(l.GlobalDepositCeiling)
	}
	if l.BankCapitalCeiling != nil {
		clone.BankCapitalCeiling = new(big.Int).Set(l.BankCapitalCeiling)
	}
	if l.PerWithdrawalCeiling != nil {
		clone.PerWithdrawalCeiling = new(big.Int).Set(l.PerWithdrawalCeiling)
	}
	return clone
}
