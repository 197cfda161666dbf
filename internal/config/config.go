// =================================
// File: internal/config/config.go
// =================================
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/units"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// SaleConfig параметры продаваемого токена и кривой.
type SaleConfig struct {
	Name     string `mapstructure:"name"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
	// целые числа в десятичной записи, пусто = значения по умолчанию
	PricePrecision string `mapstructure:"price_precision"`
	Slope          string `mapstructure:"slope"`
	// pull | callback | hook, пусто = по возможностям токена
	Flow string `mapstructure:"flow"`
}

// PayTokenConfig платёжный токен.
type PayTokenConfig struct {
	Name          string `mapstructure:"name"`
	Symbol        string `mapstructure:"symbol"`
	Decimals      uint8  `mapstructure:"decimals"`
	Kind          string `mapstructure:"kind"`
	Sanctions     bool   `mapstructure:"sanctions"`
	GodMode       bool   `mapstructure:"god_mode"`
	InitialSupply string `mapstructure:"initial_supply"`
}

// AccountConfig участник сценария и его стартовый баланс платёжного токена.
type AccountConfig struct {
	Name    string `mapstructure:"name"`
	Balance string `mapstructure:"balance"`
}

// AlertsConfig пороги алертов. Ноль отключает проверку.
type AlertsConfig struct {
	PriceMovePercent float64 `mapstructure:"price_move_percent"`
	// LargeTrade в единицах платёжного токена
	LargeTrade string `mapstructure:"large_trade"`
	Cooldown   int    `mapstructure:"cooldown"` // ms
}

type Config struct {
	Sale         SaleConfig      `mapstructure:"sale"`
	PayToken     PayTokenConfig  `mapstructure:"pay_token"`
	Accounts     []AccountConfig `mapstructure:"accounts"`
	WalletsFile  string          `mapstructure:"wallets_file"`
	ScenarioFile string          `mapstructure:"scenario_file"`
	Workers      int             `mapstructure:"workers"`
	Retries      int             `mapstructure:"retries"`
	RetryDelay   int             `mapstructure:"retry_delay"`
	EventBuffer  int             `mapstructure:"event_buffer"`
	DebugLogging bool            `mapstructure:"debug_logging"`
	PrettyLogs   bool            `mapstructure:"pretty_logs"`
	LogFile      string          `mapstructure:"log_file"`
	MetricsAddr  string          `mapstructure:"metrics_addr"`
	StateFile    string          `mapstructure:"state_file"`
	Alerts       AlertsConfig    `mapstructure:"alerts"`
}

const (
	DefaultWorkers     = 4
	DefaultRetries     = 3
	DefaultRetryDelay  = 50 // ms
	DefaultEventBuffer = 256
	DefaultLogFile     = "tokensale.log"
	EnvPrefix          = "TOKENSALE"

	maxDecimals = 36
)

var validKinds = map[string]bool{"erc20": true, "callback": true, "hook": true}
var validFlows = map[string]bool{"": true, "pull": true, "callback": true, "hook": true}

func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	defaults := map[string]interface{}{
		"sale.name":                 "Curve Token",
		"sale.symbol":               "CURVE",
		"sale.decimals":             units.DefaultDecimals,
		"pay_token.name":            "Payment Token",
		"pay_token.symbol":          "PAY",
		"pay_token.decimals":        units.DefaultDecimals,
		"pay_token.kind":            "erc20",
		"pay_token.initial_supply":  "1000000",
		"workers":                   DefaultWorkers,
		"retries":                   DefaultRetries,
		"retry_delay":               DefaultRetryDelay,
		"event_buffer":              DefaultEventBuffer,
		"log_file":                  DefaultLogFile,
		"wallets_file":              "",
		"scenario_file":             "",
		"metrics_addr":              "",
		"state_file":                "",
		"debug_logging":             false,
		"pretty_logs":               true,
		"alerts.price_move_percent": 25.0,
		"alerts.large_trade":        "",
		"alerts.cooldown":           0,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	loadEnvironmentVariables(v, &cfg)

	return &cfg, validateConfig(&cfg)
}

func validateConfig(cfg *Config) error {
	if cfg.Sale.Symbol == "" {
		return errors.New("sale.symbol is required")
	}
	if cfg.Sale.Decimals > maxDecimals || cfg.PayToken.Decimals > maxDecimals {
		return fmt.Errorf("decimals must not exceed %d", maxDecimals)
	}
	if _, err := cfg.PricePrecision(); err != nil {
		return err
	}
	if _, err := cfg.Slope(); err != nil {
		return err
	}
	if !validFlows[cfg.Sale.Flow] {
		return fmt.Errorf("invalid sale.flow %q", cfg.Sale.Flow)
	}
	if !validKinds[cfg.PayToken.Kind] {
		return fmt.Errorf("invalid pay_token.kind %q", cfg.PayToken.Kind)
	}
	if _, err := units.ToWei(cfg.PayToken.InitialSupply, cfg.PayToken.Decimals); err != nil {
		return fmt.Errorf("invalid pay_token.initial_supply: %w", err)
	}
	if err := validateAccounts(cfg); err != nil {
		return err
	}
	if err := validateAlerts(cfg); err != nil {
		return err
	}
	return validateNumericParams(cfg)
}

func validateAccounts(cfg *Config) error {
	seen := make(map[string]bool, len(cfg.Accounts))
	for i, acc := range cfg.Accounts {
		if acc.Name == "" {
			return fmt.Errorf("accounts[%d]: name is required", i)
		}
		if seen[acc.Name] {
			return fmt.Errorf("accounts[%d]: duplicate name %q", i, acc.Name)
		}
		seen[acc.Name] = true
		if acc.Balance == "" {
			continue
		}
		if _, err := units.ToWei(acc.Balance, cfg.PayToken.Decimals); err != nil {
			return fmt.Errorf("accounts[%d]: invalid balance: %w", i, err)
		}
	}
	return nil
}

func validateAlerts(cfg *Config) error {
	if cfg.Alerts.PriceMovePercent < 0 {
		return errors.New("alerts.price_move_percent must not be negative")
	}
	if cfg.Alerts.Cooldown < 0 {
		return errors.New("alerts.cooldown must not be negative")
	}
	_, err := cfg.LargeTrade()
	return err
}

func validateNumericParams(cfg *Config) error {
	if cfg.Workers <= 0 {
		return errors.New("invalid workers count")
	}
	if cfg.Retries < 0 {
		return errors.New("invalid retries count")
	}
	if cfg.RetryDelay < 0 {
		return errors.New("invalid retry_delay")
	}
	if cfg.EventBuffer <= 0 {
		return errors.New("invalid event_buffer")
	}
	return nil
}

// PricePrecision знаменатель цены или nil для значения по умолчанию.
func (c *Config) PricePrecision() (*uint256.Int, error) {
	return parseInteger("sale.price_precision", c.Sale.PricePrecision)
}

// Slope числитель цены или nil для значения по умолчанию.
func (c *Config) Slope() (*uint256.Int, error) {
	return parseInteger("sale.slope", c.Sale.Slope)
}

// LargeTrade порог крупной сделки, ноль если не задан.
func (c *Config) LargeTrade() (decimal.Decimal, error) {
	if c.Alerts.LargeTrade == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(c.Alerts.LargeTrade)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid alerts.large_trade %q: %w", c.Alerts.LargeTrade, err)
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("alerts.large_trade must not be negative")
	}
	return d, nil
}

func parseInteger(key, raw string) (*uint256.Int, error) {
	if raw == "" {
		return nil, nil
	}
	v, err := uint256.FromDecimal(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid %s %q: %w", key, raw, err)
	}
	if v.IsZero() {
		return nil, fmt.Errorf("%s must be positive", key)
	}
	return v, nil
}

// loadEnvironmentVariables переменные, которые AutomaticEnv не покрывает:
// список аккаунтов через запятую ("alice=100,bob").
func loadEnvironmentVariables(v *viper.Viper, cfg *Config) {
	envAccounts := v.GetString("ACCOUNTS_LIST")
	if envAccounts == "" {
		return
	}
	var accounts []AccountConfig
	for _, item := range strings.Split(envAccounts, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, balance, _ := strings.Cut(item, "=")
		accounts = append(accounts, AccountConfig{
			Name:    strings.TrimSpace(name),
			Balance: strings.TrimSpace(balance),
		})
	}
	if len(accounts) > 0 {
		cfg.Accounts = accounts
	}
}
