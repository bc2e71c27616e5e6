package vault

import (
	"fmt"
	"math/big"
)

// ViolationCode enumerates the limit categories the policy engine enforces.
type ViolationCode string

const (
	// ViolationGlobalDeposit indicates the lifetime deposit ceiling would be breached.
	ViolationGlobalDeposit ViolationCode = "global_deposit"
	// ViolationBankCapital indicates the bank capital ceiling would be breached.
	ViolationBankCapital ViolationCode = "bank_capital"
	// ViolationPerTransaction indicates the fixed per-withdrawal ceiling was exceeded.
	ViolationPerTransaction ViolationCode = "per_transaction"
	// ViolationInsufficientBalance indicates the caller's balance cannot cover the request.
	ViolationInsufficientBalance ViolationCode = "insufficient_balance"
)

// Violation conveys the violated limit alongside the amounts involved so
// callers always learn which condition failed and by how much.
type Violation struct {
	Code      ViolationCode
	Limit     *big.Int
	Requested *big.Int
}

// Error satisfies the error interface.
func (v *Violation) Error() string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%v: requested %s, limit %s", v.sentinel(), v.Requested, v.Limit)
}

// Unwrap maps the violation onto its sentinel so errors.Is works at call sites.
func (v *Violation) Unwrap() error {
	if v == nil {
		return nil
	}
	return v.sentinel()
}

func (v *Violation) sentinel() error {
	switch v.Code {
	case ViolationGlobalDeposit:
		return ErrGlobalLimitExceeded
	case ViolationBankCapital:
		return ErrBankCapitalExceeded
	case ViolationPerTransaction:
		return ErrPerTxLimitExceeded
	case ViolationInsufficientBalance:
		return ErrInsufficientBalance
	default:
		return fmt.Errorf("vault: limit violation %s", v.Code)
	}
}

// Policy evaluates admission checks against the configured limits. It holds no
// mutable state of its own; limits are supplied per call so administrator
// retunes take effect immediately.
type Policy struct{}

// NewPolicy constructs the limit policy engine.
func NewPolicy() *Policy { return &Policy{} }

// CheckDeposit admits a prospective deposit already converted to stable units.
// Both ceilings use strict comparison: landing exactly on a ceiling is
// accepted. Runs strictly before any ledger mutation.
func (p *Policy) CheckDeposit(converted, totalDeposits *big.Int, limits Limits) error {
	if converted == nil || totalDeposits == nil {
		return fmt.Errorf("vault: policy amounts required")
	}
	projected := new(big.Int).Add(totalDeposits, converted)
	if limits.GlobalDepositCeiling != nil && projected.Cmp(limits.GlobalDepositCeiling) > 0 {
		return &Violation{
			Code:      ViolationGlobalDeposit,
			Limit:     new(big.Int).Set(limits.GlobalDepositCeiling),
			Requested: projected,
		}
	}
	if limits.BankCapitalCeiling != nil && projected.Cmp(limits.BankCapitalCeiling) > 0 {
		return &Violation{
			Code:      ViolationBankCapital,
			Limit:     new(big.Int).Set(limits.BankCapitalCeiling),
			Requested: projected,
		}
	}
	return nil
}

// CheckWithdrawal admits a prospective withdrawal in the asset's native unit.
// The per-transaction ceiling is evaluated before balance sufficiency; the
// order is fixed for determinism. Runs strictly before any ledger mutation.
func (p *Policy) CheckWithdrawal(amount, balance *big.Int, limits Limits) error {
	if amount == nil || balance == nil {
		return fmt.Errorf("vault: policy amounts required")
	}
	if limits.PerWithdrawalCeiling != nil && amount.Cmp(limits.PerWithdrawalCeiling) > 0 {
		return &Violation{
			Code:      ViolationPerTransaction,
			Limit:     new(big.Int).Set(limits.PerWithdrawalCeiling),
			Requested: new(big.Int).Set(amount),
		}
	}
	if balance.Cmp(amount) < 0 {
		return &Violation{
			Code:      ViolationInsufficientBalance,
			Limit:     new(big.Int).Set(balance),
			Requested: new(big.Int).Set(amount),
		}
	}
	return nil
}
