package scenario

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Manager loads scenario definitions.
type Manager struct {
	logger *zap.Logger
}

// NewManager constructs a Manager with the given logger.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{logger: logger}
}

func clamp(val, min, max, def float64) float64 {
	if val < min || val > max {
		return def
	}
	return val
}

// LoadYAML reads a scenario from a YAML file.
func (m *Manager) LoadYAML(path string) (*Scenario, error) {
	if filepath.IsAbs(path) {
		m.logger.Debug("Using absolute path for scenario file", zap.String("path", path))
	}

	data, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read file: %w", err)
	}
	sc, err := m.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse разбирает и проверяет сценарий. Ошибочный шаг отклоняет весь
// сценарий: пропуск шага изменил бы смысл последующих.
func (m *Manager) Parse(data []byte) (*Scenario, error) {
	var sc Scenario
	if err := yaml.Unmarshal(data, &sc); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}
	if len(sc.Steps) == 0 {
		return nil, fmt.Errorf("no steps found in scenario")
	}

	sc.Slippage = normalizeSlippage(sc.Slippage)
	for i := range sc.Steps {
		if err := sc.Steps[i].validate(); err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
		normalizeStep(&sc.Steps[i])
		for j := range sc.Steps[i].Parallel {
			normalizeStep(&sc.Steps[i].Parallel[j])
		}
	}

	m.logger.Info("Loaded scenario",
		zap.String("name", sc.Name),
		zap.Int("steps", len(sc.Steps)),
		zap.String("slippage", string(sc.Slippage.Type)))
	return &sc, nil
}

func normalizeStep(s *Step) {
	if s.Slippage != nil {
		norm := normalizeSlippage(*s.Slippage)
		s.Slippage = &norm
	}
}

// normalizeSlippage пустой тип = без ограничения, процент в [0, 100].
func normalizeSlippage(c types.SlippageConfig) types.SlippageConfig {
	switch c.Type {
	case "":
		c.Type = types.SlippageNone
	case types.SlippagePercent:
		c.Value = clamp(c.Value, 0, 100, 1.0)
	}
	return c
}
