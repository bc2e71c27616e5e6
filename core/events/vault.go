package events

import (
	"encoding/hex"
	"math/big"
	"strconv"
	"strings"

	"stablevault/core/types"
)

const (
	// TypeVaultDeposit is emitted once per successful deposit, after the
	// ledger mutation and inbound settlement both complete.
	TypeVaultDeposit = "vault.deposit"
	// TypeVaultWithdrawal is emitted once per successful withdrawal.
	TypeVaultWithdrawal = "vault.withdrawal"
	// TypeVaultOracleChanged is emitted when the administrator replaces the
	// trusted price source.
	TypeVaultOracleChanged = "vault.oracle_changed"
	// TypeVaultCeilingUpdated is emitted when the administrator retunes a
	// capital ceiling.
	TypeVaultCeilingUpdated = "vault.ceiling_updated"
)

// DepositRecorded captures a settled deposit. Converted carries the
// stable-unit value credited to lifetime deposits.
type DepositRecorded struct {
	User      [20]byte
	Asset     string
	Amount    *big.Int
	Converted *big.Int
	Timestamp int64
}

func (DepositRecorded) EventType() string { return TypeVaultDeposit }

func (e DepositRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultDeposit,
		Attributes: map[string]string{
			"user":      formatAddress(e.User),
			"asset":     strings.TrimSpace(e.Asset),
			"amount":    formatAmount(e.Amount),
			"converted": formatAmount(e.Converted),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// WithdrawalRecorded captures a settled withdrawal.
type WithdrawalRecorded struct {
	User      [20]byte
	Asset     string
	Amount    *big.Int
	Timestamp int64
}

func (WithdrawalRecorded) EventType() string { return TypeVaultWithdrawal }

func (e WithdrawalRecorded) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultWithdrawal,
		Attributes: map[string]string{
			"user":      formatAddress(e.User),
			"asset":     strings.TrimSpace(e.Asset),
			"amount":    formatAmount(e.Amount),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// OracleReferenceChanged captures an administrator oracle swap.
type OracleReferenceChanged struct {
	Reference string
	Timestamp int64
}

func (OracleReferenceChanged) EventType() string { return TypeVaultOracleChanged }

func (e OracleReferenceChanged) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultOracleChanged,
		Attributes: map[string]string{
			"reference": strings.TrimSpace(e.Reference),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

// CeilingUpdated captures an administrator retune of a capital ceiling.
type CeilingUpdated struct {
	Name      string
	Value     *big.Int
	Timestamp int64
}

func (CeilingUpdated) EventType() string { return TypeVaultCeilingUpdated }

func (e CeilingUpdated) Event() *types.Event {
	return &types.Event{
		Type: TypeVaultCeilingUpdated,
		Attributes: map[string]string{
			"ceiling":   strings.TrimSpace(e.Name),
			"value":     formatAmount(e.Value),
			"timestamp": strconv.FormatInt(e.Timestamp, 10),
		},
	}
}

func formatAddress(addr [20]byte) string {
	if addr == ([20]byte{}) {
		return ""
	}
	return "0x" + hex.EncodeToString(addr[:])
}

func formatAmount(amount *big.Int) string {
	if amount == nil {
		return "0"
	}
	return amount.String()
}
