package config

import (
	"fmt"
	"math/big"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/shopspring/decimal"

	"riskpool/native/etoken"
)

// Config holds the pool-wide parameters loaded at startup. Rates and
// fractions are decimal strings ("0.05" = 5%) converted to wad fixed point
// on demand so the file stays human-editable.
type Config struct {
	PoolName                 string `toml:"PoolName"`
	AssetDecimals            int    `toml:"AssetDecimals"`
	LiquidityRequirement     string `toml:"LiquidityRequirement"`
	InternalLoanInterestRate string `toml:"InternalLoanInterestRate"`
	MaxUtilization           string `toml:"MaxUtilization"`
	CooldownPeriod           int64  `toml:"CooldownPeriod"`
	JournalPath              string `toml:"JournalPath"`
}

// Load loads the configuration from the given path, creating a commented
// default file when none exists.
func Load(path string) (*Config, error) {
	cfg := &Config{}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return createDefault(path)
	}

	meta, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	for _, undecoded := range meta.Undecoded() {
		return nil, fmt.Errorf("config: unknown key %q in %s", undecoded.String(), path)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func createDefault(path string) (*Config, error) {
	cfg := Default()
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the baseline configuration: a USDC-style 6-decimal asset,
// a 5% liquidity floor, 10% internal loan rate and a one week cooldown.
func Default() *Config {
	return &Config{
		PoolName:                 "riskpool",
		AssetDecimals:            6,
		LiquidityRequirement:     "0.05",
		InternalLoanInterestRate: "0.10",
		MaxUtilization:           "1.00",
		CooldownPeriod:           7 * 24 * 3600,
		JournalPath:              "riskpool.db",
	}
}

// Validate checks ranges and decimal syntax.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil config")
	}
	if strings.TrimSpace(c.PoolName) == "" {
		return fmt.Errorf("config: PoolName must not be empty")
	}
	if c.AssetDecimals != 6 && c.AssetDecimals != 18 {
		return fmt.Errorf("config: AssetDecimals must be 6 or 18, got %d", c.AssetDecimals)
	}
	if c.CooldownPeriod < 0 {
		return fmt.Errorf("config: CooldownPeriod must not be negative")
	}
	one := decimal.NewFromInt(1)
	for _, field := range []struct {
		name, value string
		max         *decimal.Decimal
	}{
		{"LiquidityRequirement", c.LiquidityRequirement, &one},
		{"InternalLoanInterestRate", c.InternalLoanInterestRate, nil},
		{"MaxUtilization", c.MaxUtilization, nil},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}
		d, err := decimal.NewFromString(field.value)
		if err != nil {
			return fmt.Errorf("config: %s: %w", field.name, err)
		}
		if d.IsNegative() {
			return fmt.Errorf("config: %s must not be negative", field.name)
		}
		if field.max != nil && d.GreaterThan(*field.max) {
			return fmt.Errorf("config: %s must not exceed %s", field.name, field.max)
		}
	}
	return nil
}

// ETokenParams converts the configured fractions into wad ledger parameters.
func (c *Config) ETokenParams() (etoken.Params, error) {
	liquidity, err := parseWad(c.LiquidityRequirement)
	if err != nil {
		return etoken.Params{}, fmt.Errorf("config: LiquidityRequirement: %w", err)
	}
	loanRate, err := parseWad(c.InternalLoanInterestRate)
	if err != nil {
		return etoken.Params{}, fmt.Errorf("config: InternalLoanInterestRate: %w", err)
	}
	maxUtil, err := parseWad(c.MaxUtilization)
	if err != nil {
		return etoken.Params{}, fmt.Errorf("config: MaxUtilization: %w", err)
	}
	return etoken.Params{
		LiquidityRequirement:     liquidity,
		InternalLoanInterestRate: loanRate,
		MaxUtilization:           maxUtil,
	}, nil
}

// parseWad converts a decimal string into 1e18 fixed point, truncating any
// precision beyond 18 places.
func parseWad(value string) (*big.Int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return big.NewInt(0), nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return nil, err
	}
	if d.IsNegative() {
		return nil, fmt.Errorf("value must not be negative")
	}
	return d.Mul(decimal.New(1, 18)).BigInt(), nil
}
