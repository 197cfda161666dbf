package logger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNewWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sale.log")
	l, err := New(&Config{LogFile: path, MaxSize: 1, Development: true})
	require.NoError(t, err)

	l.WithComponent("sale").Info("Sale deployed", zap.String("symbol", "SALE"))
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"component":"sale"`)
	assert.Contains(t, string(data), `"symbol":"SALE"`)
}

func TestHelpersAddFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := Wrap(zap.New(core))

	l.WithAccount("alice", "addr").Info("hello")
	l.LogError("failed", errors.New("boom"), zap.Int("step", 3))
	end := l.TrackPerformance("buy")
	end()

	entries := logs.All()
	require.Len(t, entries, 4)
	assert.Equal(t, "alice", entries[0].ContextMap()["account"])
	assert.Equal(t, "boom", entries[1].ContextMap()["error"])
	assert.Equal(t, "buy", entries[3].ContextMap()["operation"])
	assert.NotEmpty(t, entries[3].ContextMap()["correlation_id"])
	assert.Contains(t, entries[3].ContextMap(), "duration")
}

func TestPrettyLevelEncoder(t *testing.T) {
	enc := prettyEncoder()
	buf, err := enc.EncodeEntry(zapcore.Entry{
		Level:   zapcore.WarnLevel,
		Time:    time.Date(2024, 1, 2, 13, 4, 5, 0, time.UTC),
		Message: "Retrying step",
	}, []zapcore.Field{zap.Int("attempt", 2)})
	require.NoError(t, err)

	line := buf.String()
	assert.Contains(t, line, colorYellow+"[WARN]"+colorReset)
	assert.Contains(t, line, "13:04:05")
	assert.Contains(t, line, "Retrying step")
	assert.Contains(t, line, `"attempt": 2`)
}
