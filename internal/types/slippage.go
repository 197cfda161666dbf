// internal/types/slippage.go
package types

import (
	"math"

	"github.com/holiman/uint256"
)

// SlippageType определяет тип политики проскальзывания
type SlippageType string

const (
	// SlippageFixed использует фиксированный допуск в единицах цены
	SlippageFixed SlippageType = "fixed"
	// SlippagePercent использует процент от котировки
	SlippagePercent SlippageType = "percent"
	// SlippageNone снимает ограничение цены
	SlippageNone SlippageType = "none"
)

// bpsDenominator 100% в базисных пунктах
const bpsDenominator = 10_000

// SlippageConfig конфигурирует политику проскальзывания
type SlippageConfig struct {
	Type SlippageType `json:"type" yaml:"type"`
	// Value:
	// - для SlippageFixed: допуск в единицах цены (price numerator)
	// - для SlippagePercent: процент от котировки (например, 2.0 = 2%)
	// - для SlippageNone: игнорируется
	Value float64 `json:"value" yaml:"value"`
}

// PercentSlippage удобный конструктор для процентной политики.
func PercentSlippage(percent float64) SlippageConfig {
	return SlippageConfig{Type: SlippagePercent, Value: percent}
}

// Bounded сообщает, ограничивает ли политика цену исполнения.
func (c SlippageConfig) Bounded() bool {
	switch c.Type {
	case SlippageFixed, SlippagePercent:
		return true
	default:
		return false
	}
}

// CalculateTolerance вычисляет допуск для котировки quoted.
// Для SlippageNone возвращает nil: цена исполнения не ограничена.
func CalculateTolerance(quoted *uint256.Int, config SlippageConfig) *uint256.Int {
	switch config.Type {
	case SlippageFixed:
		if config.Value <= 0 {
			return new(uint256.Int)
		}
		return uint256.NewInt(uint64(math.Floor(config.Value)))
	case SlippagePercent:
		if config.Value <= 0 || quoted == nil {
			return new(uint256.Int)
		}
		// 2% от цены: price * 200 / 10000
		bps := uint256.NewInt(uint64(math.Round(config.Value * 100)))
		tol, overflow := new(uint256.Int).MulDivOverflow(quoted, bps, uint256.NewInt(bpsDenominator))
		if overflow {
			return new(uint256.Int).SetAllOne()
		}
		return tol
	default:
		return nil
	}
}
