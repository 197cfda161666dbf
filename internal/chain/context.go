// internal/chain/context.go
package chain

import (
	"context"
	"fmt"

	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
)

// MaxCallDepth ограничение вложенности межконтрактных вызовов.
const MaxCallDepth = 64

type txn struct {
	id   string
	logs []Log
}

// Context кадр вызова: кто вызывает (Sender), кто подписал транзакцию
// (Origin) и чей код исполняется (Self). Хранилище адресуется от Self.
type Context struct {
	ctx      context.Context
	rt       *Runtime
	tx       *txn
	sender   types.Address
	origin   types.Address
	self     types.Address
	depth    int
	readOnly bool
}

func (c *Context) Context() context.Context { return c.ctx }
func (c *Context) Sender() types.Address    { return c.sender }
func (c *Context) Origin() types.Address    { return c.origin }
func (c *Context) Self() types.Address      { return c.self }
func (c *Context) Depth() int               { return c.depth }
func (c *Context) ReadOnly() bool           { return c.readOnly }

// TxID идентификатор текущей транзакции (пустой для view).
func (c *Context) TxID() string {
	if c.tx == nil {
		return ""
	}
	return c.tx.id
}

// Logger логгер рантайма с контекстом вызова.
func (c *Context) Logger() *zap.Logger {
	return c.rt.logger.With(
		zap.String("tx_id", c.TxID()),
		zap.String("contract", types.ShortAddress(c.self)),
		zap.String("sender", types.ShortAddress(c.sender)),
	)
}

func (c *Context) key(k string) string {
	return c.self.String() + "/" + k
}

func (c *Context) Get(key string) *string {
	return c.rt.store.Get(c.key(key))
}

func (c *Context) Set(key, value string) {
	if c.readOnly {
		panic(ErrWriteProtection)
	}
	c.rt.store.Set(c.key(key), value)
}

func (c *Context) Delete(key string) {
	if c.readOnly {
		panic(ErrWriteProtection)
	}
	c.rt.store.Delete(c.key(key))
}

// Emit добавляет событие к транзакции.
func (c *Context) Emit(event any) {
	if c.readOnly {
		panic(ErrWriteProtection)
	}
	c.tx.logs = append(c.tx.logs, Log{Contract: c.self, Event: event})
}

// Contract ищет зарегистрированный контракт по адресу.
func (c *Context) Contract(addr types.Address) (Contract, bool) {
	ct, ok := c.rt.contracts[addr]
	return ct, ok
}

// IsContract true, если по адресу зарегистрирован контракт.
func (c *Context) IsContract(addr types.Address) bool {
	_, ok := c.rt.contracts[addr]
	return ok
}

// Call синхронно вызывает код контракта to от имени Self.
// При ошибке все записи и события вызова откатываются.
func (c *Context) Call(to types.Address, fn func(*Context) error) error {
	return c.call(to, false, fn)
}

// StaticCall как Call, но любые записи запрещены.
func (c *Context) StaticCall(to types.Address, fn func(*Context) error) error {
	return c.call(to, true, fn)
}

func (c *Context) call(to types.Address, readOnly bool, fn func(*Context) error) error {
	if c.depth+1 > MaxCallDepth {
		return ErrCallDepth
	}
	if !c.IsContract(to) {
		return fmt.Errorf("%w: %s", ErrUnknownContract, to)
	}
	if err := c.ctx.Err(); err != nil {
		return err
	}

	snapshot := c.rt.store.Snapshot()
	logs := 0
	if c.tx != nil {
		logs = len(c.tx.logs)
	}

	child := &Context{
		ctx:      c.ctx,
		rt:       c.rt,
		tx:       c.tx,
		sender:   c.self,
		origin:   c.origin,
		self:     to,
		depth:    c.depth + 1,
		readOnly: c.readOnly || readOnly,
	}
	if err := fn(child); err != nil {
		if !child.readOnly {
			c.rt.store.RevertTo(snapshot)
			c.tx.logs = c.tx.logs[:logs]
		}
		return err
	}
	return nil
}
