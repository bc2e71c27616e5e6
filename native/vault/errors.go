package vault

import "errors"

var (
	// ErrOracleCompromised indicates the feed reported a zero or negative price.
	ErrOracleCompromised = errors.New("vault: oracle compromised")
	// ErrOracleStale indicates the feed's last update exceeded the heartbeat.
	ErrOracleStale = errors.New("vault: oracle stale")
	// ErrPerTxLimitExceeded indicates a withdrawal above the fixed per-transaction ceiling.
	ErrPerTxLimitExceeded = errors.New("vault: per-transaction limit exceeded")
	// ErrInsufficientBalance indicates the caller's recorded balance cannot cover the withdrawal.
	ErrInsufficientBalance = errors.New("vault: insufficient balance")
	// ErrGlobalLimitExceeded indicates the deposit would push lifetime inflow past the global ceiling.
	ErrGlobalLimitExceeded = errors.New("vault: global deposit limit exceeded")
	// ErrBankCapitalExceeded indicates the deposit would push lifetime inflow past the bank capital ceiling.
	ErrBankCapitalExceeded = errors.New("vault: bank capital limit exceeded")
	// ErrSettlementFailed indicates the external value transfer did not complete; the ledger was rolled back.
	ErrSettlementFailed = errors.New("vault: settlement failed")
	// ErrReentrantCall indicates a guarded operation was entered while the guard was held.
	ErrReentrantCall = errors.New("vault: reentrant call")
	// ErrUnauthorized indicates the caller is not the vault administrator.
	ErrUnauthorized = errors.New("vault: unauthorized")
	// ErrZeroAmount indicates a deposit or withdrawal of zero.
	ErrZeroAmount = errors.New("vault: amount must be positive")
	// ErrUnsupportedAsset indicates an identifier outside the two ledger keys.
	ErrUnsupportedAsset = errors.New("vault: unsupported asset")
)
