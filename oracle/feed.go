package oracle

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"stablevault/native/vault"
)

// aggregatorABI is the read surface of an aggregator-style feed. Only
// latestRoundData is consumed; the call is pure and never mutates.
const aggregatorABI = `[{"inputs":[],"name":"latestRoundData","outputs":[{"internalType":"uint80","name":"roundId","type":"uint80"},{"internalType":"int256","name":"answer","type":"int256"},{"internalType":"uint256","name":"startedAt","type":"uint256"},{"internalType":"uint256","name":"updatedAt","type":"uint256"},{"internalType":"uint80","name":"answeredInRound","type":"uint80"}],"stateMutability":"view","type":"function"}]`

// ContractCaller is the subset of the Ethereum RPC the feed reader uses.
type ContractCaller interface {
	CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error)
}

// Dial initialises an EVM RPC client for the provided endpoint.
func Dial(endpoint string) (*ethclient.Client, error) {
	trimmed := strings.TrimSpace(endpoint)
	if trimmed == "" {
		return nil, fmt.Errorf("oracle: evm endpoint required")
	}
	return ethclient.Dial(trimmed)
}

// Feed reads an on-chain aggregator contract and satisfies vault.PriceOracle.
type Feed struct {
	client   ContractCaller
	contract common.Address
	abi      abi.ABI
}

// NewFeed binds a feed reader to the aggregator at the supplied address.
func NewFeed(client ContractCaller, contract common.Address) (*Feed, error) {
	if client == nil {
		return nil, fmt.Errorf("oracle: client required")
	}
	if (contract == common.Address{}) {
		return nil, fmt.Errorf("oracle: contract address required")
	}
	parsed, err := abi.JSON(strings.NewReader(aggregatorABI))
	if err != nil {
		return nil, fmt.Errorf("oracle: parse aggregator abi: %w", err)
	}
	return &Feed{client: client, contract: contract, abi: parsed}, nil
}

// Address reports the bound aggregator contract.
func (f *Feed) Address() common.Address {
	if f == nil {
		return common.Address{}
	}
	return f.contract
}

// LatestRoundData performs the aggregator query and maps it onto the vault's
// round representation. Validation (zero answer, staleness) belongs to the
// vault's oracle adapter, not here.
func (f *Feed) LatestRoundData(ctx context.Context) (vault.RoundData, error) {
	if f == nil || f.client == nil {
		return vault.RoundData{}, fmt.Errorf("oracle: feed not initialised")
	}
	input, err := f.abi.Pack("latestRoundData")
	if err != nil {
		return vault.RoundData{}, fmt.Errorf("oracle: pack call: %w", err)
	}
	output, err := f.client.CallContract(ctx, ethereum.CallMsg{To: &f.contract, Data: input}, nil)
	if err != nil {
		return vault.RoundData{}, fmt.Errorf("oracle: call %s: %w", f.contract.Hex(), err)
	}
	values, err := f.abi.Unpack("latestRoundData", output)
	if err != nil {
		return vault.RoundData{}, fmt.Errorf("oracle: unpack response: %w", err)
	}
	if len(values) != 5 {
		return vault.RoundData{}, fmt.Errorf("oracle: unexpected response arity %d", len(values))
	}
	roundID, ok := values[0].(*big.Int)
	if !ok {
		return vault.RoundData{}, fmt.Errorf("oracle: invalid roundId")
	}
	answer, ok := values[1].(*big.Int)
	if !ok {
		return vault.RoundData{}, fmt.Errorf("oracle: invalid answer")
	}
	startedAt, ok := values[2].(*big.Int)
	if !ok {
		return vault.RoundData{}, fmt.Errorf("oracle: invalid startedAt")
	}
	updatedAt, ok := values[3].(*big.Int)
	if !ok {
		return vault.RoundData{}, fmt.Errorf("oracle: invalid updatedAt")
	}
	answeredIn, ok := values[4].(*big.Int)
	if !ok {
		return vault.RoundData{}, fmt.Errorf("oracle: invalid answeredInRound")
	}
	return vault.RoundData{
		RoundID:         roundID,
		Answer:          answer,
		StartedAt:       unixTime(startedAt),
		UpdatedAt:       unixTime(updatedAt),
		AnsweredInRound: answeredIn,
	}, nil
}

func unixTime(value *big.Int) time.Time {
	if value == nil || value.Sign() <= 0 || !value.IsInt64() {
		return time.Time{}
	}
	return time.Unix(value.Int64(), 0).UTC()
}
