// internal/curve/curve.go
package curve

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

var (
	ErrArithmeticOverflow = errors.New("arithmetic overflow")
	ErrInsufficientSupply = errors.New("insufficient supply")
	ErrZeroAmount         = errors.New("amount must be greater than zero")
	ErrPaymentTooSmall    = errors.New("payment too small to buy any tokens")
	ErrInvalidParams      = errors.New("invalid curve parameters")
)

// Значения по умолчанию: 18 знаков у обоих токенов, цена с точностью 1e9,
// наклон 1 (цена в платёжных токенах равна supply в целых единицах).
var (
	DefaultUnit           = uint256.NewInt(1_000_000_000_000_000_000)
	DefaultPayUnit        = uint256.NewInt(1_000_000_000_000_000_000)
	DefaultPricePrecision = uint256.NewInt(1_000_000_000)
)

// Params неизменяемые параметры кривой.
type Params struct {
	// Unit 10^decimals продаваемого токена.
	Unit *uint256.Int
	// PayUnit 10^decimals платёжного токена.
	PayUnit *uint256.Int
	// PricePrecision знаменатель цены.
	PricePrecision *uint256.Int
	// Slope числитель цены на одну целую единицу supply.
	Slope *uint256.Int
}

// DefaultParams возвращает параметры кривой price = supply.
func DefaultParams() Params {
	return Params{
		Unit:           DefaultUnit.Clone(),
		PayUnit:        DefaultPayUnit.Clone(),
		PricePrecision: DefaultPricePrecision.Clone(),
		Slope:          DefaultPricePrecision.Clone(),
	}
}

// Curve линейная кривая price(S) = Slope*S/Unit.
//
// Резерв R(S) = Slope*PayUnit*S^2 / (2*Unit^2*PricePrecision) (округление вниз)
// это интеграл цены от 0 до S в базовых единицах платёжного токена.
// Любая сделка оплачивается разностью двух значений R, поэтому сумма всех
// сделок всегда равна R(текущего supply).
type Curve struct {
	unit      *uint256.Int
	payUnit   *uint256.Int
	precision *uint256.Int
	slope     *uint256.Int

	// numerator = Slope*PayUnit, denominator = 2*Unit^2*PricePrecision
	numerator   *uint256.Int
	denominator *uint256.Int
}

// New проверяет параметры и предвычисляет коэффициенты резерва.
func New(p Params) (*Curve, error) {
	for name, v := range map[string]*uint256.Int{
		"unit":            p.Unit,
		"pay_unit":        p.PayUnit,
		"price_precision": p.PricePrecision,
		"slope":           p.Slope,
	} {
		if v == nil || v.IsZero() {
			return nil, fmt.Errorf("%w: %s must be positive", ErrInvalidParams, name)
		}
	}

	num, overflow := new(uint256.Int).MulOverflow(p.Slope, p.PayUnit)
	if overflow {
		return nil, fmt.Errorf("%w: slope*pay_unit", ErrArithmeticOverflow)
	}
	den, overflow := new(uint256.Int).MulOverflow(p.Unit, p.Unit)
	if overflow {
		return nil, fmt.Errorf("%w: unit^2", ErrArithmeticOverflow)
	}
	if _, overflow = den.MulOverflow(den, p.PricePrecision); overflow {
		return nil, fmt.Errorf("%w: unit^2*precision", ErrArithmeticOverflow)
	}
	if _, overflow = den.MulOverflow(den, uint256.NewInt(2)); overflow {
		return nil, fmt.Errorf("%w: 2*unit^2*precision", ErrArithmeticOverflow)
	}

	return &Curve{
		unit:        p.Unit.Clone(),
		payUnit:     p.PayUnit.Clone(),
		precision:   p.PricePrecision.Clone(),
		slope:       p.Slope.Clone(),
		numerator:   num,
		denominator: den,
	}, nil
}

// MustNew паникует при неверных параметрах.
func MustNew(p Params) *Curve {
	c, err := New(p)
	if err != nil {
		panic(err)
	}
	return c
}

// Params возвращает копию параметров.
func (c *Curve) Params() Params {
	return Params{
		Unit:           c.unit.Clone(),
		PayUnit:        c.payUnit.Clone(),
		PricePrecision: c.precision.Clone(),
		Slope:          c.slope.Clone(),
	}
}

// PricePrecision знаменатель цены.
func (c *Curve) PricePrecision() *uint256.Int {
	return c.precision.Clone()
}

// Price возвращает маржинальную цену при данном supply.
func (c *Curve) Price(supply *uint256.Int) (*uint256.Int, error) {
	price, overflow := new(uint256.Int).MulDivOverflow(c.slope, supply, c.unit)
	if overflow {
		return nil, fmt.Errorf("%w: price at supply %s", ErrArithmeticOverflow, supply.Dec())
	}
	return price, nil
}

// Reserve возвращает R(supply): сколько платёжных токенов должно лежать
// в резерве при данном supply.
func (c *Curve) Reserve(supply *uint256.Int) (*uint256.Int, error) {
	scaled, overflow := new(uint256.Int).MulOverflow(supply, c.numerator)
	if overflow {
		return nil, fmt.Errorf("%w: reserve at supply %s", ErrArithmeticOverflow, supply.Dec())
	}
	reserve, overflow := new(uint256.Int).MulDivOverflow(scaled, supply, c.denominator)
	if overflow {
		return nil, fmt.Errorf("%w: reserve at supply %s", ErrArithmeticOverflow, supply.Dec())
	}
	return reserve, nil
}
