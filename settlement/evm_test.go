package settlement

import (
	"context"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	gethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	nativeBalance *big.Int
	tokenBalance  *big.Int
	receiptStatus uint64

	sent []*gethtypes.Transaction
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		nativeBalance: big.NewInt(0),
		tokenBalance:  big.NewInt(0),
		receiptStatus: gethtypes.ReceiptStatusSuccessful,
	}
}

func (c *fakeClient) PendingNonceAt(context.Context, common.Address) (uint64, error) {
	return uint64(len(c.sent)), nil
}

func (c *fakeClient) SuggestGasPrice(context.Context) (*big.Int, error) {
	return big.NewInt(1_000_000_000), nil
}

func (c *fakeClient) SendTransaction(_ context.Context, tx *gethtypes.Transaction) error {
	c.sent = append(c.sent, tx)
	return nil
}

func (c *fakeClient) TransactionReceipt(context.Context, common.Hash) (*gethtypes.Receipt, error) {
	return &gethtypes.Receipt{Status: c.receiptStatus}, nil
}

func (c *fakeClient) BalanceAt(context.Context, common.Address, *big.Int) (*big.Int, error) {
	return new(big.Int).Set(c.nativeBalance), nil
}

func (c *fakeClient) CallContract(context.Context, ethereum.CallMsg, *big.Int) ([]byte, error) {
	return common.LeftPadBytes(c.tokenBalance.Bytes(), 32), nil
}

func newTestSettler(t *testing.T) (*EVMSettler, *fakeClient) {
	t.Helper()
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	client := newFakeClient()
	settler, err := NewEVMSettler(client, key, common.HexToAddress("0x00000000000000000000000000000000000000ee"), big.NewInt(1337))
	require.NoError(t, err)
	return settler, client
}

func TestNewEVMSettlerValidatesInputs(t *testing.T) {
	key, err := gethcrypto.GenerateKey()
	require.NoError(t, err)
	token := common.HexToAddress("0x00000000000000000000000000000000000000ee")

	_, err = NewEVMSettler(nil, key, token, big.NewInt(1))
	require.Error(t, err)
	_, err = NewEVMSettler(newFakeClient(), nil, token, big.NewInt(1))
	require.Error(t, err)
	_, err = NewEVMSettler(newFakeClient(), key, common.Address{}, big.NewInt(1))
	require.Error(t, err)
	_, err = NewEVMSettler(newFakeClient(), key, token, nil)
	require.Error(t, err)
}

func TestCollectNativeRequiresCoverage(t *testing.T) {
	settler, client := newTestSettler(t)
	from := [20]byte{1}

	err := settler.CollectNative(context.Background(), from, big.NewInt(100))
	require.ErrorContains(t, err, "not observed")

	client.nativeBalance = big.NewInt(150)
	require.NoError(t, settler.CollectNative(context.Background(), from, big.NewInt(100)))

	// The second deposit must be covered beyond what is already reserved.
	err = settler.CollectNative(context.Background(), from, big.NewInt(100))
	require.ErrorContains(t, err, "not observed")

	client.nativeBalance = big.NewInt(250)
	require.NoError(t, settler.CollectNative(context.Background(), from, big.NewInt(100)))
}

func TestPayTokenSubmitsTransferToToken(t *testing.T) {
	settler, client := newTestSettler(t)
	to := [20]byte{9}

	require.NoError(t, settler.PayToken(context.Background(), to, big.NewInt(42)))
	require.Len(t, client.sent, 1)

	tx := client.sent[0]
	require.Equal(t, settler.token.Hex(), tx.To().Hex())
	require.Zero(t, tx.Value().Sign())
	require.NotEmpty(t, tx.Data())
}

func TestPayNativeSendsValueAndReleasesReserve(t *testing.T) {
	settler, client := newTestSettler(t)
	from := [20]byte{1}
	to := [20]byte{2}

	client.nativeBalance = big.NewInt(500)
	require.NoError(t, settler.CollectNative(context.Background(), from, big.NewInt(500)))

	require.NoError(t, settler.PayNative(context.Background(), to, big.NewInt(200)))
	require.Len(t, client.sent, 1)
	tx := client.sent[0]
	require.Equal(t, common.BytesToAddress(to[:]).Hex(), tx.To().Hex())
	require.Zero(t, tx.Value().Cmp(big.NewInt(200)))

	settler.mu.Lock()
	reserved := new(big.Int).Set(settler.reserved)
	settler.mu.Unlock()
	require.Zero(t, reserved.Cmp(big.NewInt(300)))
}

func TestSubmitTreatsRevertedReceiptAsFailure(t *testing.T) {
	settler, client := newTestSettler(t)
	client.receiptStatus = gethtypes.ReceiptStatusFailed

	err := settler.PayToken(context.Background(), [20]byte{3}, big.NewInt(10))
	require.ErrorContains(t, err, "reverted")
}

func TestTokenBalanceDecodesCallResult(t *testing.T) {
	settler, client := newTestSettler(t)
	client.tokenBalance = big.NewInt(12345)

	balance, err := settler.TokenBalance(context.Background())
	require.NoError(t, err)
	require.Zero(t, balance.Cmp(big.NewInt(12345)))
}
