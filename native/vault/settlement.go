package vault

import (
	"context"
	"math/big"
)

// Settler moves actual value between the vault and its users. Implementations
// must report failure rather than swallow it; the engine translates any error
// into ErrSettlementFailed and rolls the ledger back.
//
// Collect* run on deposits (user → vault), Pay* on withdrawals (vault → user).
// The balance reads back TotalHeldValue's live solvency snapshot.
type Settler interface {
	CollectNative(ctx context.Context, from [20]byte, amount *big.Int) error
	CollectToken(ctx context.Context, from [20]byte, amount *big.Int) error
	PayNative(ctx context.Context, to [20]byte, amount *big.Int) error
	PayToken(ctx context.Context, to [20]byte, amount *big.Int) error
	NativeBalance(ctx context.Context) (*big.Int, error)
	TokenBalance(ctx context.Context) (*big.Int, error)
}
