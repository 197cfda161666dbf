// internal/curve/quote.go
package curve

import (
	"fmt"
	"math/big"

	"github.com/holiman/uint256"
)

// Quote цена после сделки и сумма к оплате (или к выплате при продаже).
type Quote struct {
	Price     *uint256.Int
	PayAmount *uint256.Int
}

// Fill результат обратного расчёта: сколько токенов даёт платёж.
type Fill struct {
	Amount *uint256.Int
	Cost   *uint256.Int
	Refund *uint256.Int
}

// QuoteBuy котировка покупки amount токенов при текущем supply.
func (c *Curve) QuoteBuy(supply, amount *uint256.Int) (Quote, error) {
	if amount.IsZero() {
		return Quote{}, ErrZeroAmount
	}
	end, overflow := new(uint256.Int).AddOverflow(supply, amount)
	if overflow {
		return Quote{}, fmt.Errorf("%w: supply + amount", ErrArithmeticOverflow)
	}

	before, err := c.Reserve(supply)
	if err != nil {
		return Quote{}, err
	}
	after, err := c.Reserve(end)
	if err != nil {
		return Quote{}, err
	}
	price, err := c.Price(end)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Price:     price,
		PayAmount: new(uint256.Int).Sub(after, before),
	}, nil
}

// QuoteSell котировка продажи amount токенов при текущем supply.
func (c *Curve) QuoteSell(supply, amount *uint256.Int) (Quote, error) {
	if amount.IsZero() {
		return Quote{}, ErrZeroAmount
	}
	if amount.Gt(supply) {
		return Quote{}, fmt.Errorf("%w: selling %s of %s", ErrInsufficientSupply, amount.Dec(), supply.Dec())
	}
	end := new(uint256.Int).Sub(supply, amount)

	before, err := c.Reserve(supply)
	if err != nil {
		return Quote{}, err
	}
	after, err := c.Reserve(end)
	if err != nil {
		return Quote{}, err
	}
	price, err := c.Price(end)
	if err != nil {
		return Quote{}, err
	}

	return Quote{
		Price:     price,
		PayAmount: new(uint256.Int).Sub(before, after),
	}, nil
}

// AmountForPayment обратный расчёт для push-платежей: сколько токенов
// можно выпустить за payment при текущем supply.
//
// x = максимальный supply с R(x) <= R(supply)+payment. Платёж ровно на
// QuoteBuy(supply, n).PayAmount даёт не меньше n токенов. Остаток сверх
// R(x)-R(supply) возвращается.
func (c *Curve) AmountForPayment(supply, payment *uint256.Int) (Fill, error) {
	if payment.IsZero() {
		return Fill{}, ErrZeroAmount
	}
	before, err := c.Reserve(supply)
	if err != nil {
		return Fill{}, err
	}
	target, overflow := new(uint256.Int).AddOverflow(before, payment)
	if overflow {
		return Fill{}, fmt.Errorf("%w: reserve + payment", ErrArithmeticOverflow)
	}

	num := c.numerator.ToBig()
	den := c.denominator.ToBig()

	// R(x) <= T  <=>  num*x^2 <= (T+1)*den - 1
	bound := new(big.Int).Add(target.ToBig(), big.NewInt(1))
	bound.Mul(bound, den)
	bound.Sub(bound, big.NewInt(1))
	bound.Quo(bound, num)
	xMax := new(big.Int).Sqrt(bound)

	xMaxU, overflow := uint256.FromBig(xMax)
	if overflow {
		return Fill{}, fmt.Errorf("%w: supply for payment", ErrArithmeticOverflow)
	}
	if !xMaxU.Gt(supply) {
		return Fill{}, fmt.Errorf("%w: %s", ErrPaymentTooSmall, payment.Dec())
	}
	reached, err := c.Reserve(xMaxU)
	if err != nil {
		return Fill{}, err
	}

	cost := new(uint256.Int).Sub(reached, before)
	return Fill{
		Amount: new(uint256.Int).Sub(xMaxU, supply),
		Cost:   cost,
		Refund: new(uint256.Int).Sub(payment, cost),
	}, nil
}
