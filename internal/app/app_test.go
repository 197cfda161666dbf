package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rovshanmuradov/tokensale/internal/config"
	"github.com/rovshanmuradov/tokensale/internal/logger"
	"github.com/rovshanmuradov/tokensale/internal/report"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

const testScenario = `
name: smoke
steps:
  - {action: approve, account: alice, amount: "10"}
  - {action: buy, account: alice, amount: "2"}
`

func writeConfig(t *testing.T, dir, name string, withScenario bool) string {
	t.Helper()
	scenarioLine := ""
	if withScenario {
		path := filepath.Join(dir, "scenario.yaml")
		require.NoError(t, os.WriteFile(path, []byte(testScenario), 0o600))
		scenarioLine = fmt.Sprintf("scenario_file: %s\n", path)
	}
	body := fmt.Sprintf(`
sale: {symbol: SALE}
pay_token: {symbol: PAY, initial_supply: "1000"}
accounts:
  - {name: alice, balance: "100"}
wallets_file: %s
state_file: %s
log_file: ""
%s`, filepath.Join(dir, "wallets.csv"), filepath.Join(dir, "state.json"), scenarioLine)

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func newRunner(t *testing.T, path string, out *bytes.Buffer) *Runner {
	t.Helper()
	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)
	r := NewRunner(cfg, logger.Wrap(zaptest.NewLogger(t)), out)
	require.NoError(t, r.Initialize(context.Background()))
	return r
}

func TestRunnerRunsScenarioAndPersistsState(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	var out bytes.Buffer
	r := newRunner(t, writeConfig(t, dir, "run.yaml", true), &out)
	results, err := r.Run(ctx)
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		assert.True(t, res.OK(), res.Err)
	}
	require.NoError(t, r.Shutdown(ctx))

	assert.Contains(t, out.String(), "alice")
	assert.FileExists(t, filepath.Join(dir, "wallets.csv"))
	assert.FileExists(t, filepath.Join(dir, "state.json"))

	// второй запуск восстанавливает состояние и не выдаёт балансы повторно
	out.Reset()
	restored := newRunner(t, writeConfig(t, dir, "report.yaml", false), &out)
	assert.Equal(t, r.Env().Sale.Address(), restored.Env().Sale.Address())
	results, err = restored.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, results)

	snap, err := report.Collect(ctx, restored.Env())
	require.NoError(t, err)
	assert.Equal(t, "2", snap.Supply)
	assert.Equal(t, "2", snap.Reserve)
	require.Len(t, snap.Holders, 2)
	assert.Equal(t, "alice", snap.Holders[1].Name)
	assert.Equal(t, "98", snap.Holders[1].Pay)
	require.NoError(t, restored.Shutdown(ctx))
}

func TestShutdownHandlerOrder(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), time.Second)

	var order []string
	sh.AddFunc("first", func() error { order = append(order, "first"); return nil })
	sh.AddFunc("second", func() error { order = append(order, "second"); return errors.New("boom") })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "second: boom")
	assert.Equal(t, []string{"second", "first"}, order)

	// повторный вызов ничего не закрывает
	assert.NoError(t, sh.Shutdown(context.Background()))
}

func TestShutdownHandlerTimeout(t *testing.T) {
	sh := NewShutdownHandler(zaptest.NewLogger(t), 20*time.Millisecond)
	release := make(chan struct{})
	defer close(release)
	sh.AddFunc("stuck", func() error { <-release; return nil })

	err := sh.Shutdown(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "shutdown timeout")
}
