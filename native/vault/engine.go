package vault

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"sync/atomic"
	"time"

	"stablevault/core/events"
	"stablevault/core/types"
)

type vaultEvent struct {
	evt *types.Event
}

func (e vaultEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e vaultEvent) Event() *types.Event { return e.evt }

// Engine ties the ledger, policy engine, oracle adapter, and settlement shim
// together behind the vault's user-facing operations. Every value-moving call
// runs under the re-entrancy guard: limit checks first, ledger mutation next,
// external settlement last, with a full rollback when settlement fails.
type Engine struct {
	ledger  *Ledger
	policy  *Policy
	oracle  *OracleAdapter
	settler Settler
	emitter events.Emitter

	admin [20]byte

	limitsMu sync.RWMutex
	limits   Limits

	// busy is the process-wide re-entrancy guard. Entering a guarded
	// operation while it is held fails with ErrReentrantCall; it never
	// blocks or queues.
	busy atomic.Bool

	nowFn func() int64
}

// NewEngine constructs the vault engine. The administrator identity and the
// per-withdrawal ceiling are fixed here; only the two capital ceilings remain
// tunable afterwards, and only by the administrator.
func NewEngine(ledger *Ledger, policy *Policy, oracle *OracleAdapter, settler Settler, admin [20]byte, limits Limits) *Engine {
	return &Engine{
		ledger:  ledger,
		policy:  policy,
		oracle:  oracle,
		settler: settler,
		emitter: events.NoopEmitter{},
		admin:   admin,
		limits:  limits.Copy(),
		nowFn:   func() int64 { return time.Now().Unix() },
	}
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the timestamp source, primarily for deterministic tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) emit(event *types.Event) {
	if e == nil || e.emitter == nil || event == nil {
		return
	}
	e.emitter.Emit(vaultEvent{evt: event})
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

// acquire claims the re-entrancy guard. The release function is safe on every
// exit path and must run exactly once.
func (e *Engine) acquire() (func(), error) {
	if !e.busy.CompareAndSwap(false, true) {
		return nil, ErrReentrantCall
	}
	return func() { e.busy.Store(false) }, nil
}

// Limits returns a copy of the currently effective limits.
func (e *Engine) Limits() Limits {
	e.limitsMu.RLock()
	defer e.limitsMu.RUnlock()
	return e.limits.Copy()
}

// Deposit credits the caller's vault balance after admission checks pass and
// the inbound value transfer settles. Native-asset amounts are valued through
// the oracle at deposit time; the stable token is taken at face value.
func (e *Engine) Deposit(ctx context.Context, caller [20]byte, asset Asset, amount *big.Int) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)

	converted := amt
	if normalized == AssetNative {
		converted, err = e.oracle.ConvertToStable(ctx, amt)
		if err != nil {
			return err
		}
	}

	agg, err := e.ledger.Aggregates()
	if err != nil {
		return err
	}
	if err := e.policy.CheckDeposit(converted, agg.TotalDeposits, e.Limits()); err != nil {
		return err
	}

	if err := e.ledger.RecordDeposit(caller, normalized, amt, converted); err != nil {
		return err
	}
	if err := e.collect(ctx, caller, normalized, amt); err != nil {
		if revertErr := e.ledger.RevertDeposit(caller, normalized, amt, converted); revertErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrSettlementFailed, err, revertErr)
		}
		return fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	e.emit(events.DepositRecorded{
		User:      caller,
		Asset:     string(normalized),
		Amount:    amt,
		Converted: converted,
		Timestamp: e.now(),
	}.Event())
	return nil
}

// Withdraw debits the caller's vault balance and pays the value out. The
// ledger is decremented before the external transfer so a re-entrant call
// observes the reduced balance; a failed transfer rolls the debit back.
func (e *Engine) Withdraw(ctx context.Context, caller [20]byte, asset Asset, amount *big.Int) error {
	release, err := e.acquire()
	if err != nil {
		return err
	}
	defer release()

	normalized, err := NormalizeAsset(asset)
	if err != nil {
		return err
	}
	if err := requirePositive(amount); err != nil {
		return err
	}
	amt := new(big.Int).Set(amount)

	balance, err := e.ledger.BalanceOf(caller, normalized)
	if err != nil {
		return err
	}
	if err := e.policy.CheckWithdrawal(amt, balance, e.Limits()); err != nil {
		return err
	}

	if err := e.ledger.RecordWithdrawal(caller, normalized, amt); err != nil {
		return err
	}
	if err := e.pay(ctx, caller, normalized, amt); err != nil {
		if revertErr := e.ledger.RevertWithdrawal(caller, normalized, amt); revertErr != nil {
			return fmt.Errorf("%w: %v (rollback failed: %v)", ErrSettlementFailed, err, revertErr)
		}
		return fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}

	e.emit(events.WithdrawalRecorded{
		User:      caller,
		Asset:     string(normalized),
		Amount:    amt,
		Timestamp: e.now(),
	}.Event())
	return nil
}

// BalanceOf reports the caller-visible ledger balance. Pure read.
func (e *Engine) BalanceOf(user [20]byte, asset Asset) (*big.Int, error) {
	return e.ledger.BalanceOf(user, asset)
}

// OraclePrice reports the current validated feed price. Pure read.
func (e *Engine) OraclePrice(ctx context.Context) (*big.Int, error) {
	return e.oracle.CurrentPrice(ctx)
}

// Aggregates reports the lifetime deposit total and operation counters.
func (e *Engine) Aggregates() (*Aggregates, error) {
	return e.ledger.Aggregates()
}

// TotalHeldValue reports the live solvency snapshot: the vault's on-hand
// native balance converted through the oracle plus its on-hand stable
// balance. Diverges from lifetime deposits once any withdrawal settles.
func (e *Engine) TotalHeldValue(ctx context.Context) (*big.Int, error) {
	if e == nil || e.settler == nil {
		return nil, fmt.Errorf("vault: settler not configured")
	}
	native, err := e.settler.NativeBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	nativeValue, err := e.oracle.ConvertToStable(ctx, native)
	if err != nil {
		return nil, err
	}
	stable, err := e.settler.TokenBalance(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSettlementFailed, err)
	}
	return new(big.Int).Add(nativeValue, stable), nil
}

// SetOracle replaces the trusted price source. Administrator only; takes
// effect immediately.
func (e *Engine) SetOracle(caller [20]byte, oracle PriceOracle, reference string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if oracle == nil {
		return fmt.Errorf("vault: oracle required")
	}
	e.oracle.SetOracle(oracle)
	e.emit(events.OracleReferenceChanged{Reference: reference, Timestamp: e.now()}.Event())
	return nil
}

// SetGlobalDepositCeiling retunes the lifetime deposit ceiling. No bounds
// check against current aggregates: a ceiling below the recorded total simply
// blocks further deposits until raised.
func (e *Engine) SetGlobalDepositCeiling(caller [20]byte, value *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("vault: ceiling must not be negative")
	}
	e.limitsMu.Lock()
	e.limits.GlobalDepositCeiling = new(big.Int).Set(value)
	e.limitsMu.Unlock()
	e.emit(events.CeilingUpdated{Name: "globalDeposit", Value: value, Timestamp: e.now()}.Event())
	return nil
}

// SetBankCapitalCeiling retunes the bank capital ceiling under the same rules.
func (e *Engine) SetBankCapitalCeiling(caller [20]byte, value *big.Int) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if value == nil || value.Sign() < 0 {
		return fmt.Errorf("vault: ceiling must not be negative")
	}
	e.limitsMu.Lock()
	e.limits.BankCapitalCeiling = new(big.Int).Set(value)
	e.limitsMu.Unlock()
	e.emit(events.CeilingUpdated{Name: "bankCapital", Value: value, Timestamp: e.now()}.Event())
	return nil
}

func (e *Engine) requireAdmin(caller [20]byte) error {
	if caller != e.admin {
		return ErrUnauthorized
	}
	return nil
}

func (e *Engine) collect(ctx context.Context, from [20]byte, asset Asset, amount *big.Int) error {
	switch asset {
	case AssetNative:
		return e.settler.CollectNative(ctx, from, amount)
	case AssetStable:
		return e.settler.CollectToken(ctx, from, amount)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAsset, string(asset))
	}
}

func (e *Engine) pay(ctx context.Context, to [20]byte, asset Asset, amount *big.Int) error {
	switch asset {
	case AssetNative:
		return e.settler.PayNative(ctx, to, amount)
	case AssetStable:
		return e.settler.PayToken(ctx, to, amount)
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedAsset, string(asset))
	}
}
