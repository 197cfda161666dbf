// internal/events/handler.go
package events

import (
	"context"
	"fmt"
)

// Handler обрабатывает события одного типа. Не должен блокировать.
type Handler interface {
	Handle(ctx context.Context, event Event) error
}

// HandlerFunc функция как Handler.
type HandlerFunc func(ctx context.Context, event Event) error

func (f HandlerFunc) Handle(ctx context.Context, event Event) error {
	return f(ctx, event)
}

// Typed оборачивает обработчик конкретного типа события. Событие другого
// типа под тем же EventType считается ошибкой публикации.
func Typed[T Event](fn func(context.Context, T) error) Handler {
	return HandlerFunc(func(ctx context.Context, event Event) error {
		ev, ok := event.(T)
		if !ok {
			return fmt.Errorf("unexpected payload %T for %s", event, event.Type())
		}
		return fn(ctx, ev)
	})
}

// Subscription отписка от шины.
type Subscription interface {
	Unsubscribe()
}

type subscription struct {
	id       string
	eventBus *Bus
	typ      EventType
}

func (s *subscription) Unsubscribe() {
	s.eventBus.unsubscribe(s.id, s.typ)
}
