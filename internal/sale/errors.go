// internal/sale/errors.go
package sale

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/curve"
	"github.com/rovshanmuradov/tokensale/internal/token"
)

var (
	ErrSlippageExceeded      = errors.New("slippage exceeded")
	ErrInsufficientBalance   = errors.New("insufficient sale token balance")
	ErrInsufficientLiquidity = errors.New("insufficient payment token liquidity")
	ErrUnsupportedFlow       = errors.New("payment flow not supported by this sale")
	ErrUnknownPaymentSource  = errors.New("payment notification from unknown token")
	ErrReentrantCall         = errors.New("reentrant call")
	ErrInvalidBounds         = errors.New("invalid price bounds payload")
	ErrInvalidConfig         = errors.New("invalid sale configuration")

	// ошибки кривой и платёжного токена пробрасываются без изменений
	ErrInsufficientSupply = curve.ErrInsufficientSupply
	ErrArithmeticOverflow = curve.ErrArithmeticOverflow
	ErrZeroAmount         = curve.ErrZeroAmount
	ErrPaymentTooSmall    = curve.ErrPaymentTooSmall
	ErrAllowanceExceeded  = token.ErrAllowanceExceeded
	ErrBannedAddress      = token.ErrBannedAddress
)

// SlippageExceededError цена исполнения вышла за границу, заданную покупателем
// или продавцом.
type SlippageExceededError struct {
	Kind   TradeKind
	Quoted *uint256.Int
	Limit  *uint256.Int
}

func (e *SlippageExceededError) Error() string {
	op := "above max"
	if e.Kind == TradeSell {
		op = "below min"
	}
	return fmt.Sprintf("slippage exceeded: %s price %s is %s %s", e.Kind, e.Quoted.Dec(), op, e.Limit.Dec())
}

func (e *SlippageExceededError) Unwrap() error {
	return ErrSlippageExceeded
}
