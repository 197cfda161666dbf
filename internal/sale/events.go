// internal/sale/events.go
package sale

import (
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// TradeKind направление сделки.
type TradeKind string

const (
	TradeBuy  TradeKind = "buy"
	TradeSell TradeKind = "sell"
)

// TradeEvent запись о сделке. Не хранится, только выпускается.
type TradeEvent struct {
	Kind    TradeKind
	Flow    Flow
	Account types.Address
	Amount  *uint256.Int
	// PayAmount фактически списано (buy) или выплачено (sell)
	PayAmount *uint256.Int
	// Refund возвращённый остаток push-платежа
	Refund *uint256.Int
	// Price цена после сделки
	Price *uint256.Int
	// Supply и Reserve после сделки
	Supply  *uint256.Int
	Reserve *uint256.Int
}
