// internal/events/types.go
package events

import (
	"time"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// EventType represents the type of event.
type EventType string

const (
	// Sale events
	TradeExecuted EventType = "trade.executed"
	PriceUpdated  EventType = "price.updated"

	// Balance events
	BalanceChanged   EventType = "balance.changed"
	TransferExecuted EventType = "transfer.executed"

	// Scenario events
	StepCompleted EventType = "step.completed"
	StepFailed    EventType = "step.failed"
)

// Event is the base interface for all events.
type Event interface {
	Type() EventType
	Timestamp() time.Time
}

// BaseEvent provides common fields for all events.
type BaseEvent struct {
	EventType EventType
	EventTime time.Time
}

// Type returns the event type.
func (e BaseEvent) Type() EventType {
	return e.EventType
}

// Timestamp returns when the event occurred.
func (e BaseEvent) Timestamp() time.Time {
	return e.EventTime
}

func base(t EventType, at time.Time) BaseEvent {
	return BaseEvent{EventType: t, EventTime: at}
}

// TradeExecutedEvent is emitted for every committed buy or sell.
type TradeExecutedEvent struct {
	BaseEvent
	TxID      string
	Height    uint64
	Sale      types.Address
	Kind      string
	Flow      string
	Account   types.Address
	Amount    *uint256.Int
	PayAmount *uint256.Int
	Refund    *uint256.Int
	Price     *uint256.Int
	Supply    *uint256.Int
	Reserve   *uint256.Int
	Duration  time.Duration
}

// PriceUpdatedEvent is emitted when the curve position moves.
type PriceUpdatedEvent struct {
	BaseEvent
	Sale    types.Address
	Price   *uint256.Int
	Supply  *uint256.Int
	Reserve *uint256.Int
}

// BalanceChangedEvent is emitted when a sale token balance changes.
type BalanceChangedEvent struct {
	BaseEvent
	Sale    types.Address
	Account types.Address
	// Credit true for mint on buy, false for burn on sell
	Credit bool
	Amount *uint256.Int
}

// TransferExecutedEvent mirrors a payment token transfer.
type TransferExecutedEvent struct {
	BaseEvent
	TxID   string
	Token  types.Address
	From   types.Address
	To     types.Address
	Amount *uint256.Int
	Forced bool
}

// StepCompletedEvent is emitted by the scenario runner after a successful step.
type StepCompletedEvent struct {
	BaseEvent
	Index    int
	Name     string
	Action   string
	Account  string
	Attempts int
	TxID     string
}

// StepFailedEvent is emitted when a step fails after all retries.
type StepFailedEvent struct {
	BaseEvent
	Index    int
	Name     string
	Action   string
	Account  string
	Attempts int
	Error    error
}

// NewStepCompleted builds a StepCompletedEvent stamped with the current time.
func NewStepCompleted(index int, name, action, account string, attempts int, txID string) StepCompletedEvent {
	return StepCompletedEvent{
		BaseEvent: base(StepCompleted, time.Now()),
		Index:     index,
		Name:      name,
		Action:    action,
		Account:   account,
		Attempts:  attempts,
		TxID:      txID,
	}
}

// NewStepFailed builds a StepFailedEvent stamped with the current time.
func NewStepFailed(index int, name, action, account string, attempts int, err error) StepFailedEvent {
	return StepFailedEvent{
		BaseEvent: base(StepFailed, time.Now()),
		Index:     index,
		Name:      name,
		Action:    action,
		Account:   account,
		Attempts:  attempts,
		Error:     err,
	}
}
