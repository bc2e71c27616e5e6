package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config carries the full vaultd runtime configuration.
type Config struct {
	ListenAddress string `toml:"ListenAddress"`
	DataDir       string `toml:"DataDir"`
	Environment   string `toml:"Environment"`

	// EVMEndpoint is the JSON-RPC URL of the chain carrying the price feed,
	// the stable token contract, and the vault's hot wallet.
	EVMEndpoint        string `toml:"EVMEndpoint"`
	ChainID            int64  `toml:"ChainID"`
	PriceFeedAddress   string `toml:"PriceFeedAddress"`
	StableTokenAddress string `toml:"StableTokenAddress"`

	// AdminAddress is the only identity allowed to call the administrative
	// methods. HotWalletKeyEnv names the environment variable holding the
	// hex-encoded settlement key; keys never live in the config file.
	AdminAddress    string `toml:"AdminAddress"`
	HotWalletKeyEnv string `toml:"HotWalletKeyEnv"`
	RPCAuthTokenEnv string `toml:"RPCAuthTokenEnv"`

	OracleHeartbeatSeconds int64 `toml:"OracleHeartbeatSeconds"`

	// Ceilings are decimal strings in whole stable units. An empty string
	// leaves the corresponding ceiling unlimited.
	GlobalDepositCeiling string `toml:"GlobalDepositCeiling"`
	BankCapitalCeiling   string `toml:"BankCapitalCeiling"`
	PerWithdrawalCeiling string `toml:"PerWithdrawalCeiling"`

	RateLimitPerMinute int `toml:"RateLimitPerMinute"`

	OTLPEndpoint string `toml:"OTLPEndpoint"`
	OTLPInsecure bool   `toml:"OTLPInsecure"`
	OTLPHeaders  string `toml:"OTLPHeaders"`
}

// Load reads the configuration at path, creating a default file when none
// exists yet.
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	cfg := &Config{}
	if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, err
	}
	applyDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if strings.TrimSpace(cfg.ListenAddress) == "" {
		cfg.ListenAddress = ":8545"
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		cfg.DataDir = "./vault-data"
	}
	if strings.TrimSpace(cfg.Environment) == "" {
		cfg.Environment = "local"
	}
	if strings.TrimSpace(cfg.HotWalletKeyEnv) == "" {
		cfg.HotWalletKeyEnv = "VAULTD_HOT_WALLET_KEY"
	}
	if strings.TrimSpace(cfg.RPCAuthTokenEnv) == "" {
		cfg.RPCAuthTokenEnv = "VAULTD_RPC_TOKEN"
	}
	if cfg.OracleHeartbeatSeconds <= 0 {
		cfg.OracleHeartbeatSeconds = 3600
	}
	if cfg.RateLimitPerMinute <= 0 {
		cfg.RateLimitPerMinute = 60
	}
}

// Validate rejects configurations that cannot produce a working daemon.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.EVMEndpoint) == "" {
		return fmt.Errorf("config: EVMEndpoint is required")
	}
	if c.ChainID <= 0 {
		return fmt.Errorf("config: ChainID must be positive")
	}
	if err := requireHexAddress("PriceFeedAddress", c.PriceFeedAddress); err != nil {
		return err
	}
	if err := requireHexAddress("StableTokenAddress", c.StableTokenAddress); err != nil {
		return err
	}
	if err := requireHexAddress("AdminAddress", c.AdminAddress); err != nil {
		return err
	}
	for _, ceiling := range []struct {
		name  string
		value string
	}{
		{"GlobalDepositCeiling", c.GlobalDepositCeiling},
		{"BankCapitalCeiling", c.BankCapitalCeiling},
		{"PerWithdrawalCeiling", c.PerWithdrawalCeiling},
	} {
		if _, err := parseCeiling(ceiling.value); err != nil {
			return fmt.Errorf("config: %s: %w", ceiling.name, err)
		}
	}
	return nil
}

// Ceiling parses the named ceiling field into a big integer, with nil meaning
// unlimited.
func (c *Config) Ceiling(value string) (*big.Int, error) {
	return parseCeiling(value)
}

func parseCeiling(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return nil, nil
	}
	amount, ok := new(big.Int).SetString(trimmed, 10)
	if !ok {
		return nil, fmt.Errorf("invalid decimal amount %q", value)
	}
	if amount.Sign() < 0 {
		return nil, fmt.Errorf("amount %q must not be negative", value)
	}
	return amount, nil
}

func requireHexAddress(field, value string) error {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fmt.Errorf("config: %s is required", field)
	}
	if !strings.HasPrefix(trimmed, "0x") || len(trimmed) != 42 {
		return fmt.Errorf("config: %s must be a 0x-prefixed 20-byte hex address", field)
	}
	for _, r := range trimmed[2:] {
		switch {
		case r >= '0' && r <= '9':
		case r >= 'a' && r <= 'f':
		case r >= 'A' && r <= 'F':
		default:
			return fmt.Errorf("config: %s must be a 0x-prefixed 20-byte hex address", field)
		}
	}
	return nil
}

// createDefault writes a commented-out skeleton the operator must fill in.
// The skeleton intentionally fails Validate so the daemon cannot start on
// placeholder values.
func createDefault(path string) (*Config, error) {
	cfg := &Config{}
	applyDefaults(cfg)
	if err := persist(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}
