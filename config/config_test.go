package config

import (
	"math/big"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vaultd.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadValidConfig(t *testing.T) {
	path := writeConfig(t, `
ListenAddress = ":9000"
EVMEndpoint = "https://rpc.example.org"
ChainID = 11155111
PriceFeedAddress = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
StableTokenAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
AdminAddress = "0x00000000000000000000000000000000000000ad"
GlobalDepositCeiling = "1000000"
PerWithdrawalCeiling = "50000"
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":9000", cfg.ListenAddress)
	require.Equal(t, int64(11155111), cfg.ChainID)
	require.Equal(t, int64(3600), cfg.OracleHeartbeatSeconds)
	require.Equal(t, 60, cfg.RateLimitPerMinute)

	ceiling, err := cfg.Ceiling(cfg.GlobalDepositCeiling)
	require.NoError(t, err)
	require.Zero(t, ceiling.Cmp(big.NewInt(1_000_000)))

	unlimited, err := cfg.Ceiling(cfg.BankCapitalCeiling)
	require.NoError(t, err)
	require.Nil(t, unlimited)
}

func TestLoadRejectsMissingEndpoint(t *testing.T) {
	path := writeConfig(t, `
ChainID = 1
PriceFeedAddress = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
StableTokenAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
AdminAddress = "0x00000000000000000000000000000000000000ad"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "EVMEndpoint")
}

func TestLoadRejectsMalformedAddress(t *testing.T) {
	path := writeConfig(t, `
EVMEndpoint = "https://rpc.example.org"
ChainID = 1
PriceFeedAddress = "feed.example"
StableTokenAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
AdminAddress = "0x00000000000000000000000000000000000000ad"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "PriceFeedAddress")
}

func TestLoadRejectsNegativeCeiling(t *testing.T) {
	path := writeConfig(t, `
EVMEndpoint = "https://rpc.example.org"
ChainID = 1
PriceFeedAddress = "0x5f4eC3Df9cbd43714FE2740f5E3616155c5b8419"
StableTokenAddress = "0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"
AdminAddress = "0x00000000000000000000000000000000000000ad"
GlobalDepositCeiling = "-5"
`)
	_, err := Load(path)
	require.ErrorContains(t, err, "GlobalDepositCeiling")
}

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fresh", "vaultd.toml")
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, ":8545", cfg.ListenAddress)
	require.FileExists(t, path)

	// The generated skeleton has no endpoint or addresses yet, so it must
	// not validate until the operator fills it in.
	require.Error(t, cfg.Validate())
}
