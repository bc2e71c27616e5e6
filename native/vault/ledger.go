package vault

import (
	"encoding/hex"
	"fmt"
	"math/big"
	"strings"
)

// Storage abstracts the subset of key-value functionality the ledger needs.
type Storage interface {
	KVGet(key []byte, out interface{}) (bool, error)
	KVPut(key []byte, value interface{}) error
}

var (
	balancePrefix = []byte("vault/balance/")
	aggregatesKey = []byte("vault/aggregates")
)

type balanceRecord struct {
	Amount string
}

type aggregatesRecord struct {
	TotalDeposits   string
	DepositCount    uint64
	WithdrawalCount uint64
}

// Ledger is the authoritative (user, asset) balance table plus the lifetime
// aggregates. It is the only component that mutates either.
type Ledger struct {
	store Storage
}

// NewLedger constructs a ledger bound to the provided storage backend.
func NewLedger(store Storage) *Ledger {
	return &Ledger{store: store}
}

// BalanceOf reports the recorded balance for the supplied user and asset.
// Pure read; a missing entry is zero.
func (l *Ledger) BalanceOf(user [20]byte, asset Asset) (*big.Int, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("vault: ledger not initialised")
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return nil, err
	}
	var record balanceRecord
	ok, err := l.store.KVGet(balanceKey(user, normalized), &record)
	if err != nil {
		return nil, err
	}
	if !ok || strings.TrimSpace(record.Amount) == "" {
		return big.NewInt(0), nil
	}
	return parseAmount(record.Amount)
}

// Aggregates returns the lifetime counters.
func (l *Ledger) Aggregates() (*Aggregates, error) {
	if l == nil || l.store == nil {
		return nil, fmt.Errorf("vault: ledger not initialised")
	}
	var record aggregatesRecord
	ok, err := l.store.KVGet(aggregatesKey, &record)
	if err != nil {
		return nil, err
	}
	agg := &Aggregates{TotalDeposits: big.NewInt(0)}
	if !ok {
		return agg, nil
	}
	if strings.TrimSpace(record.TotalDeposits) != "" {
		total, err := parseAmount(record.TotalDeposits)
		if err != nil {
			return nil, err
		}
		agg.TotalDeposits = total
	}
	agg.DepositCount = record.DepositCount
	agg.WithdrawalCount = record.WithdrawalCount
	return agg, nil
}

// RecordDeposit credits the user's balance by amount, increments the deposit
// count, and adds the stable-unit converted value to lifetime deposits. The
// policy engine must have admitted the same amounts beforehand.
func (l *Ledger) RecordDeposit(user [20]byte, asset Asset, amount, converted *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	if converted == nil || converted.Sign() < 0 {
		return fmt.Errorf("vault: converted amount must not be negative")
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := l.adjustBalance(user, normalized, amount); err != nil {
		return err
	}
	return l.updateAggregates(user, normalized, amount, func(agg *Aggregates) {
		agg.TotalDeposits = new(big.Int).Add(agg.TotalDeposits, converted)
		agg.DepositCount++
	})
}

// RecordWithdrawal debits the user's balance by amount and increments the
// withdrawal count. Lifetime deposits are untouched; they track inflow only.
func (l *Ledger) RecordWithdrawal(user [20]byte, asset Asset, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	debit := new(big.Int).Neg(amount)
	if err := l.adjustBalance(user, normalized, debit); err != nil {
		return err
	}
	return l.updateAggregates(user, normalized, debit, func(agg *Aggregates) {
		agg.WithdrawalCount++
	})
}

// RevertDeposit undoes a RecordDeposit after a failed inbound settlement so
// the operation has no net effect. Only the engine's rollback path calls it.
func (l *Ledger) RevertDeposit(user [20]byte, asset Asset, amount, converted *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	debit := new(big.Int).Neg(amount)
	if err := l.adjustBalance(user, normalized, debit); err != nil {
		return err
	}
	return l.updateAggregates(user, normalized, debit, func(agg *Aggregates) {
		agg.TotalDeposits = new(big.Int).Sub(agg.TotalDeposits, converted)
		if agg.TotalDeposits.Sign() < 0 {
			agg.TotalDeposits = big.NewInt(0)
		}
		if agg.DepositCount > 0 {
			agg.DepositCount--
		}
	})
}

// RevertWithdrawal undoes a RecordWithdrawal after a failed outbound
// settlement. Only the engine's rollback path calls it.
func (l *Ledger) RevertWithdrawal(user [20]byte, asset Asset, amount *big.Int) error {
	if err := requirePositive(amount); err != nil {
		return err
	}
	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := l.adjustBalance(user, normalized, amount); err != nil {
		return err
	}
	return l.updateAggregates(user, normalized, amount, func(agg *Aggregates) {
		if agg.WithdrawalCount > 0 {
			agg.WithdrawalCount--
		}
	})
}

// adjustBalance applies a signed delta, rejecting any result below zero
// before mutation.
func (l *Ledger) adjustBalance(user [20]byte, asset Asset, delta *big.Int) error {
	if l == nil || l.store == nil {
		return fmt.Errorf("vault: ledger not initialised")
	}
	current, err := l.BalanceOf(user, asset)
	if err != nil {
		return err
	}
	updated := new(big.Int).Add(current, delta)
	if updated.Sign() < 0 {
		return ErrInsufficientBalance
	}
	return l.store.KVPut(balanceKey(user, asset), balanceRecord{Amount: updated.String()})
}

// updateAggregates applies mutate to the stored aggregates after a balance
// delta of `applied` has already landed. If the aggregates read or write
// fails, the balance delta is undone so the two records never diverge; a
// failed undo surfaces both errors.
func (l *Ledger) updateAggregates(user [20]byte, asset Asset, applied *big.Int, mutate func(*Aggregates)) error {
	agg, err := l.Aggregates()
	if err == nil {
		mutate(agg)
		err = l.putAggregates(agg)
	}
	if err == nil {
		return nil
	}
	if undoErr := l.adjustBalance(user, asset, new(big.Int).Neg(applied)); undoErr != nil {
		return fmt.Errorf("vault: aggregates update failed: %v (balance compensation failed: %v)", err, undoErr)
	}
	return err
}

func (l *Ledger) putAggregates(agg *Aggregates) error {
	record := aggregatesRecord{
		TotalDeposits:   agg.TotalDeposits.String(),
		DepositCount:    agg.DepositCount,
		WithdrawalCount: agg.WithdrawalCount,
	}
	return l.store.KVPut(aggregatesKey, record)
}

func balanceKey(user [20]byte, asset Asset) []byte {
	suffix := hex.EncodeToString(user[:])
	key := make([]byte, 0, len(balancePrefix)+len(asset)+1+len(suffix))
	key = append(key, balancePrefix...)
	key = append(key, asset...)
	key = append(key, '/')
	key = append(key, suffix...)
	return key
}

func requirePositive(amount *big.Int) error {
	if amount == nil || amount.Sign() <= 0 {
		return ErrZeroAmount
	}
	return nil
}

func parseAmount(value string) (*big.Int, error) {
	amount, ok := new(big.Int).SetString(strings.TrimSpace(value), 10)
	if !ok {
		return nil, fmt.Errorf("vault: invalid stored amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("vault: negative stored amount %q", value)
	}
	return amount, nil
}
