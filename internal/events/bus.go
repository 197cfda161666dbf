// internal/events/bus.go
package events

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

var (
	ErrBusClosed  = errors.New("event bus is shutting down")
	ErrBufferFull = errors.New("event channel full")
)

// All подписка на события любого типа.
const All EventType = "*"

type entry struct {
	id      string
	handler Handler
}

// Bus шина событий в памяти. Асинхронные события доставляет один
// воркер в порядке публикации, обработчики вызываются в порядке подписки.
type Bus struct {
	mu       sync.RWMutex
	handlers map[EventType][]entry
	closed   bool

	queue  chan Event
	quit   chan struct{}
	done   chan struct{}
	logger *zap.Logger

	delivered atomic.Uint64
	failed    atomic.Uint64
	dropped   atomic.Uint64
}

// Stats снимок счётчиков шины.
type Stats struct {
	BufferSize      int
	PendingEvents   int
	EventTypes      int
	HandlersPerType map[EventType]int
	Delivered       uint64
	Failed          uint64
	Dropped         uint64
}

func NewBus(logger *zap.Logger, bufferSize int) *Bus {
	if bufferSize <= 0 {
		bufferSize = 1
	}
	b := &Bus{
		handlers: make(map[EventType][]entry),
		queue:    make(chan Event, bufferSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
		logger:   logger.Named("event_bus"),
	}
	go b.worker()
	return b
}

// Subscribe регистрирует обработчик для eventType (или All).
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	id := uuid.New().String()

	b.mu.Lock()
	b.handlers[eventType] = append(b.handlers[eventType], entry{id: id, handler: handler})
	b.mu.Unlock()

	b.logger.Debug("Handler subscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
	return &subscription{id: id, eventBus: b, typ: eventType}
}

func (b *Bus) SubscribeFunc(eventType EventType, fn func(context.Context, Event) error) Subscription {
	return b.Subscribe(eventType, HandlerFunc(fn))
}

// SubscribeAll обработчик для всех событий, вызывается после типовых.
func (b *Bus) SubscribeAll(handler Handler) Subscription {
	return b.Subscribe(All, handler)
}

// Publish ставит событие в очередь и не блокирует: при полном буфере
// событие отбрасывается с ErrBufferFull.
func (b *Bus) Publish(event Event) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrBusClosed
	}

	select {
	case b.queue <- event:
		return nil
	default:
		b.dropped.Add(1)
		b.logger.Warn("Event channel full, dropping event",
			zap.String("event_type", string(event.Type())))
		return ErrBufferFull
	}
}

// PublishSync доставляет событие в горутине вызывающего. Ошибки всех
// обработчиков объединяются.
func (b *Bus) PublishSync(ctx context.Context, event Event) error {
	targets := b.targets(event.Type())
	if len(targets) == 0 {
		return nil
	}

	var errs []error
	for _, e := range targets {
		if err := e.handler.Handle(ctx, event); err != nil {
			b.logger.Error("Handler error",
				zap.String("event_type", string(event.Type())),
				zap.String("handler_id", e.id),
				zap.Error(err))
			errs = append(errs, err)
		}
	}

	b.delivered.Add(1)
	if len(errs) > 0 {
		b.failed.Add(1)
		return fmt.Errorf("%d handlers failed: %w", len(errs), errors.Join(errs...))
	}
	return nil
}

// targets копия списка, блокировка не держится во время обработки
func (b *Bus) targets(t EventType) []entry {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]entry, 0, len(b.handlers[t])+len(b.handlers[All]))
	out = append(out, b.handlers[t]...)
	return append(out, b.handlers[All]...)
}

func (b *Bus) worker() {
	defer close(b.done)

	deliver := func(ctx context.Context, event Event) {
		if err := b.PublishSync(ctx, event); err != nil {
			b.logger.Error("Failed to process event",
				zap.String("event_type", string(event.Type())),
				zap.Error(err))
		}
	}

	for {
		select {
		case event := <-b.queue:
			deliver(context.Background(), event)
		case <-b.quit:
			// очередь больше не пополняется, дочитываем остаток
			for {
				select {
				case event := <-b.queue:
					deliver(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) unsubscribe(id string, eventType EventType) {
	b.mu.Lock()
	defer b.mu.Unlock()

	list := b.handlers[eventType]
	for i, e := range list {
		if e.id == id {
			list = append(list[:i:i], list[i+1:]...)
			break
		}
	}
	if len(list) == 0 {
		delete(b.handlers, eventType)
	} else {
		b.handlers[eventType] = list
	}

	b.logger.Debug("Handler unsubscribed",
		zap.String("event_type", string(eventType)),
		zap.String("subscription_id", id))
}

// Shutdown перестаёт принимать события, дожидается доставки очереди.
// Повторный вызов только ждёт воркер.
func (b *Bus) Shutdown(ctx context.Context) error {
	b.mu.Lock()
	if !b.closed {
		b.closed = true
		close(b.quit)
		b.logger.Debug("Shutting down event bus", zap.Int("pending", len(b.queue)))
	}
	b.mu.Unlock()

	select {
	case <-b.done:
		return nil
	case <-ctx.Done():
		b.logger.Warn("Event bus shutdown timeout", zap.Int("pending", len(b.queue)))
		return ctx.Err()
	}
}

func (b *Bus) Stats() Stats {
	b.mu.RLock()
	defer b.mu.RUnlock()

	counts := make(map[EventType]int, len(b.handlers))
	for t, list := range b.handlers {
		counts[t] = len(list)
	}
	return Stats{
		BufferSize:      cap(b.queue),
		PendingEvents:   len(b.queue),
		EventTypes:      len(b.handlers),
		HandlersPerType: counts,
		Delivered:       b.delivered.Load(),
		Failed:          b.failed.Load(),
		Dropped:         b.dropped.Load(),
	}
}
