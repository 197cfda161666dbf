package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "sale:\n  symbol: DEMO\n"))
	require.NoError(t, err)

	assert.Equal(t, "DEMO", cfg.Sale.Symbol)
	assert.Equal(t, uint8(18), cfg.Sale.Decimals)
	assert.Equal(t, "erc20", cfg.PayToken.Kind)
	assert.Equal(t, "1000000", cfg.PayToken.InitialSupply)
	assert.Equal(t, DefaultWorkers, cfg.Workers)
	assert.Equal(t, DefaultRetries, cfg.Retries)
	assert.Equal(t, DefaultLogFile, cfg.LogFile)
	assert.True(t, cfg.PrettyLogs)
	assert.Equal(t, 25.0, cfg.Alerts.PriceMovePercent)
	large, err := cfg.LargeTrade()
	require.NoError(t, err)
	assert.True(t, large.IsZero())

	precision, err := cfg.PricePrecision()
	require.NoError(t, err)
	assert.Nil(t, precision)
}

func TestLoadConfigFull(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `
sale:
  name: Demo
  symbol: DEMO
  decimals: 0
  price_precision: "1"
  slope: "1"
  flow: hook
pay_token:
  kind: hook
  decimals: 0
  sanctions: true
  god_mode: true
  initial_supply: "5000"
accounts:
  - name: alice
    balance: "100"
  - name: bob
workers: 2
metrics_addr: ":9100"
alerts:
  price_move_percent: 10
  large_trade: "250.5"
  cooldown: 1000
`))
	require.NoError(t, err)

	assert.Equal(t, "hook", cfg.Sale.Flow)
	assert.True(t, cfg.PayToken.Sanctions)
	assert.True(t, cfg.PayToken.GodMode)
	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, "alice", cfg.Accounts[0].Name)
	assert.Equal(t, "", cfg.Accounts[1].Balance)
	assert.Equal(t, ":9100", cfg.MetricsAddr)

	slope, err := cfg.Slope()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), slope.Uint64())

	assert.Equal(t, 10.0, cfg.Alerts.PriceMovePercent)
	assert.Equal(t, 1000, cfg.Alerts.Cooldown)
	large, err := cfg.LargeTrade()
	require.NoError(t, err)
	assert.Equal(t, "250.5", large.String())
}

func TestLoadConfigEnvOverride(t *testing.T) {
	t.Setenv("TOKENSALE_WORKERS", "7")
	t.Setenv("TOKENSALE_PAY_TOKEN_KIND", "callback")
	t.Setenv("TOKENSALE_ACCOUNTS_LIST", "carol=10, dave")

	cfg, err := LoadConfig(writeConfig(t, "sale:\n  symbol: DEMO\naccounts:\n  - name: alice\n"))
	require.NoError(t, err)

	assert.Equal(t, 7, cfg.Workers)
	assert.Equal(t, "callback", cfg.PayToken.Kind)
	require.Len(t, cfg.Accounts, 2)
	assert.Equal(t, AccountConfig{Name: "carol", Balance: "10"}, cfg.Accounts[0])
	assert.Equal(t, AccountConfig{Name: "dave"}, cfg.Accounts[1])
}

func TestValidateConfig(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"unknown kind", "sale:\n  symbol: X\npay_token:\n  kind: erc777\n"},
		{"unknown flow", "sale:\n  symbol: X\n  flow: magic\n"},
		{"zero precision", "sale:\n  symbol: X\n  price_precision: \"0\"\n"},
		{"bad slope", "sale:\n  symbol: X\n  slope: abc\n"},
		{"too many decimals", "sale:\n  symbol: X\n  decimals: 40\n"},
		{"duplicate account", "sale:\n  symbol: X\naccounts:\n  - name: a\n  - name: a\n"},
		{"bad balance", "sale:\n  symbol: X\naccounts:\n  - name: a\n    balance: \"-1\"\n"},
		{"no workers", "sale:\n  symbol: X\nworkers: 0\n"},
		{"empty symbol", "sale:\n  symbol: \"\"\n"},
		{"negative alert percent", "sale:\n  symbol: X\nalerts:\n  price_move_percent: -1\n"},
		{"bad large trade", "sale:\n  symbol: X\nalerts:\n  large_trade: lots\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.body))
			assert.Error(t, err)
		})
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
