package vault

import (
	"errors"
	"fmt"
	"math/big"
	"testing"
)

// flakyStore fails aggregate writes on demand so the compensation path can be
// driven deterministically.
type flakyStore struct {
	*memoryStore
	failAggregatesPut bool
}

func (f *flakyStore) KVPut(key []byte, value interface{}) error {
	if f.failAggregatesPut && string(key) == string(aggregatesKey) {
		return fmt.Errorf("disk full")
	}
	return f.memoryStore.KVPut(key, value)
}

func TestLedgerBalancesStartAtZero(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := [20]byte{1}
	for _, asset := range []Asset{AssetNative, AssetStable} {
		balance, err := ledger.BalanceOf(user, asset)
		if err != nil {
			t.Fatalf("balance of %s: %v", asset, err)
		}
		if balance.Sign() != 0 {
			t.Fatalf("expected zero balance for %s, got %s", asset, balance)
		}
	}
}

func TestLedgerRejectsUnknownAsset(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	if _, err := ledger.BalanceOf([20]byte{1}, Asset("DOGE")); !errors.Is(err, ErrUnsupportedAsset) {
		t.Fatalf("expected unsupported asset, got %v", err)
	}
}

func TestLedgerRecordDepositUpdatesAggregates(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := [20]byte{2}
	if err := ledger.RecordDeposit(user, AssetNative, nativeUnits(1), big.NewInt(2000)); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	balance, err := ledger.BalanceOf(user, AssetNative)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(nativeUnits(1)) != 0 {
		t.Fatalf("unexpected balance %s", balance)
	}
	agg, err := ledger.Aggregates()
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.TotalDeposits.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("expected total deposits 2000, got %s", agg.TotalDeposits)
	}
	if agg.DepositCount != 1 || agg.WithdrawalCount != 0 {
		t.Fatalf("unexpected counters %+v", agg)
	}
}

func TestLedgerWithdrawalNeverGoesNegative(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := [20]byte{3}
	if err := ledger.RecordDeposit(user, AssetStable, big.NewInt(500), big.NewInt(500)); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	err := ledger.RecordWithdrawal(user, AssetStable, big.NewInt(600))
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("expected insufficient balance, got %v", err)
	}
	balance, _ := ledger.BalanceOf(user, AssetStable)
	if balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance mutated on rejected withdrawal: %s", balance)
	}
	agg, _ := ledger.Aggregates()
	if agg.WithdrawalCount != 0 {
		t.Fatalf("withdrawal counter mutated on rejection")
	}
}

func TestLedgerWithdrawalDoesNotReduceTotalDeposits(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := [20]byte{4}
	if err := ledger.RecordDeposit(user, AssetStable, big.NewInt(800), big.NewInt(800)); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	if err := ledger.RecordWithdrawal(user, AssetStable, big.NewInt(800)); err != nil {
		t.Fatalf("record withdrawal: %v", err)
	}
	agg, err := ledger.Aggregates()
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.TotalDeposits.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("total deposits must track lifetime inflow, got %s", agg.TotalDeposits)
	}
	if agg.DepositCount != 1 || agg.WithdrawalCount != 1 {
		t.Fatalf("unexpected counters %+v", agg)
	}
}

func TestLedgerBalancesAreAssetScoped(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := [20]byte{5}
	if err := ledger.RecordDeposit(user, AssetNative, nativeUnits(2), big.NewInt(4000)); err != nil {
		t.Fatalf("record native deposit: %v", err)
	}
	stable, err := ledger.BalanceOf(user, AssetStable)
	if err != nil {
		t.Fatalf("stable balance: %v", err)
	}
	if stable.Sign() != 0 {
		t.Fatalf("native deposit leaked into stable balance: %s", stable)
	}
}

func TestLedgerDepositCompensatesWhenAggregatesWriteFails(t *testing.T) {
	store := &flakyStore{memoryStore: newMemoryStore(), failAggregatesPut: true}
	ledger := NewLedger(store)
	user := [20]byte{7}

	if err := ledger.RecordDeposit(user, AssetStable, big.NewInt(250), big.NewInt(250)); err == nil {
		t.Fatalf("expected aggregates write failure to surface")
	}
	balance, err := ledger.BalanceOf(user, AssetStable)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Sign() != 0 {
		t.Fatalf("balance credit survived failed aggregates write: %s", balance)
	}
	agg, err := ledger.Aggregates()
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.TotalDeposits.Sign() != 0 || agg.DepositCount != 0 {
		t.Fatalf("aggregates mutated on failed deposit: %+v", agg)
	}
}

func TestLedgerWithdrawalCompensatesWhenAggregatesWriteFails(t *testing.T) {
	store := &flakyStore{memoryStore: newMemoryStore()}
	ledger := NewLedger(store)
	user := [20]byte{8}

	if err := ledger.RecordDeposit(user, AssetStable, big.NewInt(500), big.NewInt(500)); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	store.failAggregatesPut = true
	if err := ledger.RecordWithdrawal(user, AssetStable, big.NewInt(200)); err == nil {
		t.Fatalf("expected aggregates write failure to surface")
	}
	balance, err := ledger.BalanceOf(user, AssetStable)
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Cmp(big.NewInt(500)) != 0 {
		t.Fatalf("balance debit survived failed aggregates write: %s", balance)
	}
	agg, err := ledger.Aggregates()
	if err != nil {
		t.Fatalf("aggregates: %v", err)
	}
	if agg.WithdrawalCount != 0 {
		t.Fatalf("withdrawal counter mutated on failed withdrawal: %+v", agg)
	}
}

func TestLedgerRevertHelpersRestoreState(t *testing.T) {
	ledger := NewLedger(newMemoryStore())
	user := [20]byte{6}
	if err := ledger.RecordDeposit(user, AssetStable, big.NewInt(300), big.NewInt(300)); err != nil {
		t.Fatalf("record deposit: %v", err)
	}
	if err := ledger.RevertDeposit(user, AssetStable, big.NewInt(300), big.NewInt(300)); err != nil {
		t.Fatalf("revert deposit: %v", err)
	}
	balance, _ := ledger.BalanceOf(user, AssetStable)
	agg, _ := ledger.Aggregates()
	if balance.Sign() != 0 || agg.TotalDeposits.Sign() != 0 || agg.DepositCount != 0 {
		t.Fatalf("revert left residue: balance=%s agg=%+v", balance, agg)
	}
}
