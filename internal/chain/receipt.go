// internal/chain/receipt.go
package chain

import (
	"time"

	"github.com/rovshanmuradov/tokensale/internal/types"
)

// Log событие, выпущенное контрактом. Доставляется подписчикам только
// после фиксации транзакции.
type Log struct {
	Contract types.Address
	Event    any
}

// Receipt результат транзакции.
type Receipt struct {
	TxID     string
	Height   uint64
	From     types.Address
	To       types.Address
	Method   string
	Logs     []Log
	Duration time.Duration
	Err      error
}

// Success true, если транзакция зафиксирована.
func (r *Receipt) Success() bool {
	return r.Err == nil
}

// Events возвращает payload логов заданного типа.
func Events[T any](r *Receipt) []T {
	if r == nil {
		return nil
	}
	out := make([]T, 0, len(r.Logs))
	for _, l := range r.Logs {
		if ev, ok := l.Event.(T); ok {
			out = append(out, ev)
		}
	}
	return out
}
