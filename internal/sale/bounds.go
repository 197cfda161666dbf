// internal/sale/bounds.go
package sale

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Bounds граница цены исполнения. nil означает "без ограничения".
type Bounds struct {
	Price     *uint256.Int
	Tolerance *uint256.Int
}

// NewBounds граница с допуском. nil tolerance = 0.
func NewBounds(price, tolerance *uint256.Int) *Bounds {
	if tolerance == nil {
		tolerance = new(uint256.Int)
	}
	return &Bounds{Price: price.Clone(), Tolerance: tolerance.Clone()}
}

// buyLimit maxPrice + tolerance с насыщением.
func (b *Bounds) buyLimit() *uint256.Int {
	limit, overflow := new(uint256.Int).AddOverflow(b.Price, b.Tolerance)
	if overflow {
		return new(uint256.Int).SetAllOne()
	}
	return limit
}

// sellLimit minPrice - tolerance с насыщением в ноль.
func (b *Bounds) sellLimit() *uint256.Int {
	if b.Tolerance.Gt(b.Price) {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(b.Price, b.Tolerance)
}

func (b *Bounds) checkBuy(quoted *uint256.Int) error {
	if b == nil {
		return nil
	}
	if limit := b.buyLimit(); quoted.Gt(limit) {
		return &SlippageExceededError{Kind: TradeBuy, Quoted: quoted.Clone(), Limit: limit}
	}
	return nil
}

func (b *Bounds) checkSell(quoted *uint256.Int) error {
	if b == nil {
		return nil
	}
	if limit := b.sellLimit(); quoted.Lt(limit) {
		return &SlippageExceededError{Kind: TradeSell, Quoted: quoted.Clone(), Limit: limit}
	}
	return nil
}

const boundsPayloadLen = 64

// EncodeBuyBounds упаковывает maxPrice и tolerance для data/userData
// push-платежа: два 32-байтных big-endian слова.
func EncodeBuyBounds(maxPrice, tolerance *uint256.Int) []byte {
	if tolerance == nil {
		tolerance = new(uint256.Int)
	}
	out := make([]byte, 0, boundsPayloadLen)
	p := maxPrice.Bytes32()
	t := tolerance.Bytes32()
	out = append(out, p[:]...)
	return append(out, t[:]...)
}

// DecodeBuyBounds обратная операция. Пустой payload = без ограничения.
func DecodeBuyBounds(data []byte) (*Bounds, error) {
	switch len(data) {
	case 0:
		return nil, nil
	case boundsPayloadLen:
		return &Bounds{
			Price:     new(uint256.Int).SetBytes32(data[:32]),
			Tolerance: new(uint256.Int).SetBytes32(data[32:]),
		}, nil
	default:
		return nil, fmt.Errorf("%w: got %d bytes, want 0 or %d", ErrInvalidBounds, len(data), boundsPayloadLen)
	}
}
