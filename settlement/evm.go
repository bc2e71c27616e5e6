package settlement

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
)

// erc20ABI covers the fungible-token surface the settler uses: transfer,
// transferFrom, and balanceOf. Transfer success is judged by receipt status.
const erc20ABI = `[{"inputs":[{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transfer","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},{"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"amount","type":"uint256"}],"name":"transferFrom","outputs":[{"name":"","type":"bool"}],"stateMutability":"nonpayable","type":"function"},{"inputs":[{"name":"account","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"stateMutability":"view","type":"function"}]`

const (
	nativeTransferGas = 21_000
	tokenTransferGas  = 90_000

	defaultReceiptTimeout = 90 * time.Second
	receiptPollInterval   = 2 * time.Second
)

// EVMClient is the subset of the Ethereum RPC used by the settler.
type EVMClient interface {
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SuggestGasPrice(ctx context.Context) (*big.Int, error)
	SendTransaction(ctx context.Context, tx *gethtypes.Transaction) error
	TransactionReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error)
	BalanceAt(ctx context.Context, account common.Address, blockNumber *big.Int) (*big.Int, error)
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// EVMSettler moves value between the vault's hot wallet and its users on an
// EVM chain. Token deposits are pulled via transferFrom (the user must have
// approved the vault); native deposits must already be funded to the vault
// address before the deposit call, and the settler verifies coverage against
// its reserved total.
type EVMSettler struct {
	client  EVMClient
	key     *ecdsa.PrivateKey
	account common.Address
	token   common.Address
	chainID *big.Int
	erc20   abi.ABI

	receiptTimeout time.Duration

	mu       sync.Mutex
	reserved *big.Int
}

// NewEVMSettler constructs a settler signing with the supplied hot-wallet key.
func NewEVMSettler(client EVMClient, key *ecdsa.PrivateKey, token common.Address, chainID *big.Int) (*EVMSettler, error) {
	if client == nil {
		return nil, fmt.Errorf("settlement: client required")
	}
	if key == nil {
		return nil, fmt.Errorf("settlement: signing key required")
	}
	if (token == common.Address{}) {
		return nil, fmt.Errorf("settlement: token address required")
	}
	if chainID == nil || chainID.Sign() <= 0 {
		return nil, fmt.Errorf("settlement: chain id required")
	}
	parsed, err := abi.JSON(strings.NewReader(erc20ABI))
	if err != nil {
		return nil, fmt.Errorf("settlement: parse erc20 abi: %w", err)
	}
	return &EVMSettler{
		client:         client,
		key:            key,
		account:        gethcrypto.PubkeyToAddress(key.PublicKey),
		token:          token,
		chainID:        new(big.Int).Set(chainID),
		erc20:          parsed,
		receiptTimeout: defaultReceiptTimeout,
		reserved:       big.NewInt(0),
	}, nil
}

// Account reports the vault's hot-wallet address.
func (s *EVMSettler) Account() common.Address {
	if s == nil {
		return common.Address{}
	}
	return s.account
}

// SetReceiptTimeout overrides how long the settler waits for inclusion.
func (s *EVMSettler) SetReceiptTimeout(timeout time.Duration) {
	if s == nil || timeout <= 0 {
		return
	}
	s.receiptTimeout = timeout
}

// CollectNative confirms an inbound native deposit is covered by the hot
// wallet's live balance beyond what earlier deposits already reserved.
func (s *EVMSettler) CollectNative(ctx context.Context, from [20]byte, amount *big.Int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return fmt.Errorf("settlement: amount must be positive")
	}
	balance, err := s.client.BalanceAt(ctx, s.account, nil)
	if err != nil {
		return fmt.Errorf("settlement: read native balance: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	required := new(big.Int).Add(s.reserved, amount)
	if balance.Cmp(required) < 0 {
		return fmt.Errorf("settlement: inbound native transfer from %s not observed", common.BytesToAddress(from[:]).Hex())
	}
	s.reserved = required
	return nil
}

// CollectToken pulls the stable-token deposit from the user via transferFrom.
func (s *EVMSettler) CollectToken(ctx context.Context, from [20]byte, amount *big.Int) error {
	if err := s.ready(); err != nil {
		return err
	}
	input, err := s.erc20.Pack("transferFrom", common.BytesToAddress(from[:]), s.account, amount)
	if err != nil {
		return fmt.Errorf("settlement: pack transferFrom: %w", err)
	}
	return s.submit(ctx, s.token, big.NewInt(0), tokenTransferGas, input)
}

// PayNative sends the withdrawal value as a plain native transfer.
func (s *EVMSettler) PayNative(ctx context.Context, to [20]byte, amount *big.Int) error {
	if err := s.ready(); err != nil {
		return err
	}
	if err := s.submit(ctx, common.BytesToAddress(to[:]), amount, nativeTransferGas, nil); err != nil {
		return err
	}
	s.mu.Lock()
	s.reserved = new(big.Int).Sub(s.reserved, amount)
	if s.reserved.Sign() < 0 {
		s.reserved = big.NewInt(0)
	}
	s.mu.Unlock()
	return nil
}

// PayToken sends the withdrawal value through the token's transfer call.
func (s *EVMSettler) PayToken(ctx context.Context, to [20]byte, amount *big.Int) error {
	if err := s.ready(); err != nil {
		return err
	}
	input, err := s.erc20.Pack("transfer", common.BytesToAddress(to[:]), amount)
	if err != nil {
		return fmt.Errorf("settlement: pack transfer: %w", err)
	}
	return s.submit(ctx, s.token, big.NewInt(0), tokenTransferGas, input)
}

// NativeBalance reads the hot wallet's live native balance.
func (s *EVMSettler) NativeBalance(ctx context.Context) (*big.Int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.client.BalanceAt(ctx, s.account, nil)
}

// TokenBalance reads the hot wallet's live stable-token balance.
func (s *EVMSettler) TokenBalance(ctx context.Context) (*big.Int, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	input, err := s.erc20.Pack("balanceOf", s.account)
	if err != nil {
		return nil, fmt.Errorf("settlement: pack balanceOf: %w", err)
	}
	output, err := s.client.CallContract(ctx, ethereum.CallMsg{To: &s.token, Data: input}, nil)
	if err != nil {
		return nil, fmt.Errorf("settlement: call balanceOf: %w", err)
	}
	values, err := s.erc20.Unpack("balanceOf", output)
	if err != nil {
		return nil, fmt.Errorf("settlement: unpack balanceOf: %w", err)
	}
	balance, ok := values[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("settlement: invalid balanceOf response")
	}
	return balance, nil
}

func (s *EVMSettler) ready() error {
	if s == nil || s.client == nil || s.key == nil {
		return fmt.Errorf("settlement: settler not initialised")
	}
	return nil
}

// submit signs, sends, and waits for the transaction, treating any receipt
// status other than success as failure.
func (s *EVMSettler) submit(ctx context.Context, to common.Address, value *big.Int, gasLimit uint64, data []byte) error {
	nonce, err := s.client.PendingNonceAt(ctx, s.account)
	if err != nil {
		return fmt.Errorf("settlement: fetch nonce: %w", err)
	}
	gasPrice, err := s.client.SuggestGasPrice(ctx)
	if err != nil {
		return fmt.Errorf("settlement: suggest gas price: %w", err)
	}
	tx := gethtypes.NewTransaction(nonce, to, value, gasLimit, gasPrice, data)
	signed, err := gethtypes.SignTx(tx, gethtypes.LatestSignerForChainID(s.chainID), s.key)
	if err != nil {
		return fmt.Errorf("settlement: sign transaction: %w", err)
	}
	if err := s.client.SendTransaction(ctx, signed); err != nil {
		return fmt.Errorf("settlement: send transaction: %w", err)
	}
	receipt, err := s.waitReceipt(ctx, signed.Hash())
	if err != nil {
		return err
	}
	if receipt.Status != gethtypes.ReceiptStatusSuccessful {
		return fmt.Errorf("settlement: transaction %s reverted", signed.Hash().Hex())
	}
	return nil
}

func (s *EVMSettler) waitReceipt(ctx context.Context, txHash common.Hash) (*gethtypes.Receipt, error) {
	deadline, cancel := context.WithTimeout(ctx, s.receiptTimeout)
	defer cancel()
	ticker := time.NewTicker(receiptPollInterval)
	defer ticker.Stop()
	for {
		receipt, err := s.client.TransactionReceipt(deadline, txHash)
		if err == nil && receipt != nil {
			return receipt, nil
		}
		if err != nil && !errors.Is(err, ethereum.NotFound) {
			return nil, fmt.Errorf("settlement: fetch receipt: %w", err)
		}
		select {
		case <-deadline.Done():
			return nil, fmt.Errorf("settlement: transaction %s not confirmed: %w", txHash.Hex(), deadline.Err())
		case <-ticker.C:
		}
	}
}
