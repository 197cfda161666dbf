// internal/units/units.go
package units

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"
)

// DefaultDecimals стандартная точность токенов (как у wei).
const DefaultDecimals = 18

var (
	ErrNegativeAmount = errors.New("amount must not be negative")
	ErrTooPrecise     = errors.New("amount has more decimals than the token supports")
	ErrAmountOverflow = errors.New("amount does not fit into 256 bits")
)

// ToWei переводит человекочитаемое значение ("0.1") в базовые единицы.
func ToWei(amount string, decimals uint8) (*uint256.Int, error) {
	d, err := decimal.NewFromString(amount)
	if err != nil {
		return nil, fmt.Errorf("failed to parse amount %q: %w", amount, err)
	}
	return FromDecimal(d, decimals)
}

// FromDecimal переводит decimal в базовые единицы без округления.
func FromDecimal(d decimal.Decimal, decimals uint8) (*uint256.Int, error) {
	if d.IsNegative() {
		return nil, ErrNegativeAmount
	}
	scaled := d.Shift(int32(decimals))
	if !scaled.Equal(scaled.Truncate(0)) {
		return nil, fmt.Errorf("%w: %s (max %d)", ErrTooPrecise, d.String(), decimals)
	}
	v, overflow := uint256.FromBig(scaled.BigInt())
	if overflow {
		return nil, ErrAmountOverflow
	}
	return v, nil
}

// MustWei как ToWei, но паникует. Только для констант и тестов.
func MustWei(amount string, decimals uint8) *uint256.Int {
	v, err := ToWei(amount, decimals)
	if err != nil {
		panic(err)
	}
	return v
}

// ToUnits переводит базовые единицы обратно в decimal.
func ToUnits(v *uint256.Int, decimals uint8) decimal.Decimal {
	if v == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(v.ToBig(), -int32(decimals))
}

// FormatUnits строковое представление для логов и отчётов.
func FormatUnits(v *uint256.Int, decimals uint8) string {
	return ToUnits(v, decimals).String()
}

// Ratio делит числитель на знаменатель (например price / PricePrecision).
func Ratio(numerator, denominator *uint256.Int) decimal.Decimal {
	if numerator == nil || denominator == nil || denominator.IsZero() {
		return decimal.Zero
	}
	n := decimal.NewFromBigInt(numerator.ToBig(), 0)
	d := decimal.NewFromBigInt(denominator.ToBig(), 0)
	return n.DivRound(d, DefaultDecimals)
}

// Float удобно для метрик (prometheus работает с float64).
func Float(v *uint256.Int, decimals uint8) float64 {
	f, _ := ToUnits(v, decimals).Float64()
	return f
}
