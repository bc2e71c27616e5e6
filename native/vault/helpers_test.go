package vault

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"stablevault/core/events"
)

type memoryStore struct {
	data map[string]interface{}
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: make(map[string]interface{})}
}

func (m *memoryStore) KVGet(key []byte, out interface{}) (bool, error) {
	value, ok := m.data[string(key)]
	if !ok {
		return false, nil
	}
	switch dst := out.(type) {
	case *balanceRecord:
		if src, ok := value.(balanceRecord); ok {
			*dst = src
			return true, nil
		}
	case *aggregatesRecord:
		if src, ok := value.(aggregatesRecord); ok {
			*dst = src
			return true, nil
		}
	}
	return false, nil
}

func (m *memoryStore) KVPut(key []byte, value interface{}) error {
	m.data[string(key)] = value
	return nil
}

type stubOracle struct {
	round RoundData
	err   error
}

func (s *stubOracle) LatestRoundData(context.Context) (RoundData, error) {
	if s.err != nil {
		return RoundData{}, s.err
	}
	return s.round, nil
}

// mockSettler records calls and optionally fails or re-enters the engine
// from within the settlement step.
type mockSettler struct {
	failCollect bool
	failPay     bool
	onPay       func(ctx context.Context) error

	collectNative int
	collectToken  int
	payNative     int
	payToken      int

	nativeHeld *big.Int
	tokenHeld  *big.Int
}

func newMockSettler() *mockSettler {
	return &mockSettler{nativeHeld: big.NewInt(0), tokenHeld: big.NewInt(0)}
}

func (m *mockSettler) CollectNative(ctx context.Context, from [20]byte, amount *big.Int) error {
	m.collectNative++
	if m.failCollect {
		return fmt.Errorf("collect rejected")
	}
	m.nativeHeld = new(big.Int).Add(m.nativeHeld, amount)
	return nil
}

func (m *mockSettler) CollectToken(ctx context.Context, from [20]byte, amount *big.Int) error {
	m.collectToken++
	if m.failCollect {
		return fmt.Errorf("collect rejected")
	}
	m.tokenHeld = new(big.Int).Add(m.tokenHeld, amount)
	return nil
}

func (m *mockSettler) PayNative(ctx context.Context, to [20]byte, amount *big.Int) error {
	m.payNative++
	if m.onPay != nil {
		return m.onPay(ctx)
	}
	if m.failPay {
		return fmt.Errorf("pay rejected")
	}
	m.nativeHeld = new(big.Int).Sub(m.nativeHeld, amount)
	return nil
}

func (m *mockSettler) PayToken(ctx context.Context, to [20]byte, amount *big.Int) error {
	m.payToken++
	if m.onPay != nil {
		return m.onPay(ctx)
	}
	if m.failPay {
		return fmt.Errorf("pay rejected")
	}
	m.tokenHeld = new(big.Int).Sub(m.tokenHeld, amount)
	return nil
}

func (m *mockSettler) NativeBalance(context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.nativeHeld), nil
}

func (m *mockSettler) TokenBalance(context.Context) (*big.Int, error) {
	return new(big.Int).Set(m.tokenHeld), nil
}

type recordingEmitter struct {
	types []string
}

func (r *recordingEmitter) Emit(event events.Event) {
	r.types = append(r.types, event.EventType())
}

func healthyRound(now time.Time, price *big.Int) RoundData {
	return RoundData{
		RoundID:         big.NewInt(42),
		Answer:          price,
		StartedAt:       now.Add(-time.Minute),
		UpdatedAt:       now.Add(-time.Minute),
		AnsweredInRound: big.NewInt(42),
	}
}

func nativeUnits(whole int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(NativeDecimals), nil)
	return unit.Mul(unit, big.NewInt(whole))
}

func feedPrice(whole int64) *big.Int {
	unit := new(big.Int).Exp(big.NewInt(10), big.NewInt(FeedDecimals), nil)
	return unit.Mul(unit, big.NewInt(whole))
}
