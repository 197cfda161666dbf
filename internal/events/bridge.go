// internal/events/bridge.go
package events

import (
	"context"
	"time"

	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/sale"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"go.uber.org/zap"
)

// Bridge переводит логи зафиксированных транзакций в события шины.
type Bridge struct {
	bus    *Bus
	logger *zap.Logger
	sync   bool
}

// Attach подписывает мост на квитанции рантайма. При sync=true события
// доставляются до возврата из Execute.
func Attach(rt *chain.Runtime, bus *Bus, logger *zap.Logger, sync bool) *Bridge {
	b := &Bridge{bus: bus, logger: logger.Named("bridge"), sync: sync}
	rt.Subscribe(b.onReceipt)
	return b
}

func (b *Bridge) onReceipt(r *chain.Receipt) {
	now := time.Now()
	for _, l := range r.Logs {
		for _, ev := range Translate(r, l, now) {
			var err error
			if b.sync {
				err = b.bus.PublishSync(context.Background(), ev)
			} else {
				err = b.bus.Publish(ev)
			}
			if err != nil {
				b.logger.Warn("Failed to publish event",
					zap.String("tx_id", r.TxID),
					zap.String("event_type", string(ev.Type())),
					zap.Error(err))
			}
		}
	}
}

// Translate события шины для одного лога. Неизвестные логи пропускаются.
func Translate(r *chain.Receipt, l chain.Log, at time.Time) []Event {
	switch ev := l.Event.(type) {
	case sale.TradeEvent:
		trade := TradeExecutedEvent{
			BaseEvent: base(TradeExecuted, at),
			TxID:      r.TxID,
			Height:    r.Height,
			Sale:      l.Contract,
			Kind:      string(ev.Kind),
			Flow:      string(ev.Flow),
			Account:   ev.Account,
			Amount:    ev.Amount,
			PayAmount: ev.PayAmount,
			Refund:    ev.Refund,
			Price:     ev.Price,
			Supply:    ev.Supply,
			Reserve:   ev.Reserve,
			Duration:  r.Duration,
		}
		price := PriceUpdatedEvent{
			BaseEvent: base(PriceUpdated, at),
			Sale:      l.Contract,
			Price:     ev.Price,
			Supply:    ev.Supply,
			Reserve:   ev.Reserve,
		}
		balance := BalanceChangedEvent{
			BaseEvent: base(BalanceChanged, at),
			Sale:      l.Contract,
			Account:   ev.Account,
			Credit:    ev.Kind == sale.TradeBuy,
			Amount:    ev.Amount,
		}
		return []Event{trade, price, balance}
	case token.TransferEvent:
		return []Event{TransferExecutedEvent{
			BaseEvent: base(TransferExecuted, at),
			TxID:      r.TxID,
			Token:     l.Contract,
			From:      ev.From,
			To:        ev.To,
			Amount:    ev.Amount,
			Forced:    ev.Forced,
		}}
	default:
		return nil
	}
}
