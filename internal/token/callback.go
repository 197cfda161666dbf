// internal/token/callback.go
package token

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
)

// Идентификаторы интерфейсов для SupportsInterface.
const (
	InterfaceERC20         = "0x36372b07"
	InterfaceTransferCall  = "0xb0202a11"
	InterfaceIntrospection = "0x01ffc9a7"
)

// TransferReceiver контракт, принимающий transferAndCall.
type TransferReceiver interface {
	OnTransferReceived(c *chain.Context, operator, from types.Address, amount *uint256.Int, data []byte) error
}

// CallbackToken токен с transferAndCall: перевод и синхронный колбэк
// получателю в одной транзакции. Ошибка колбэка откатывает перевод.
type CallbackToken struct {
	*Token
}

// NewCallback создаёт callback-токен.
func NewCallback(addr types.Address, cfg Config, logger *zap.Logger) *CallbackToken {
	return &CallbackToken{Token: New(addr, cfg, logger)}
}

// TransferAndCall переводит amount и вызывает OnTransferReceived у to.
func (t *CallbackToken) TransferAndCall(c *chain.Context, to types.Address, amount *uint256.Int, data []byte) error {
	if err := t.Transfer(c, to, amount); err != nil {
		return err
	}
	return t.checkOnTransferReceived(c, c.Sender(), c.Sender(), to, amount, data)
}

// TransferFromAndCall как TransferFrom, затем колбэк получателю.
func (t *CallbackToken) TransferFromAndCall(c *chain.Context, from, to types.Address, amount *uint256.Int, data []byte) error {
	if err := t.TransferFrom(c, from, to, amount); err != nil {
		return err
	}
	return t.checkOnTransferReceived(c, c.Sender(), from, to, amount, data)
}

// SupportsInterface сообщает поддерживаемые интерфейсы.
func (t *CallbackToken) SupportsInterface(id string) bool {
	switch id {
	case InterfaceERC20, InterfaceTransferCall, InterfaceIntrospection:
		return true
	default:
		return false
	}
}

func (t *CallbackToken) checkOnTransferReceived(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, data []byte) error {
	ct, ok := c.Contract(to)
	if !ok {
		return fmt.Errorf("%w: %s is not a contract", ErrNotReceiver, to)
	}
	receiver, ok := ct.(TransferReceiver)
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotReceiver, to)
	}
	return c.Call(to, func(rc *chain.Context) error {
		return receiver.OnTransferReceived(rc, operator, from, amount, data)
	})
}
