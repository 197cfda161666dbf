// internal/token/hook.go
package token

import (
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
)

// TokensRecipient контракт, получающий уведомление о каждом входящем переводе.
type TokensRecipient interface {
	TokensReceived(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error
}

// HookToken токен, который после каждого перевода вызывает TokensReceived
// у получателя-контракта. Ошибка хука откатывает перевод.
type HookToken struct {
	*Token
}

// NewHook создаёт hook-токен.
func NewHook(addr types.Address, cfg Config, logger *zap.Logger) *HookToken {
	h := &HookToken{Token: New(addr, cfg, logger)}
	h.afterTransfer = h.callRecipient
	return h
}

// Send перевод с произвольными данными для получателя.
func (h *HookToken) Send(c *chain.Context, to types.Address, amount *uint256.Int, userData []byte) error {
	return h.send(c, c.Sender(), c.Sender(), to, amount, userData, nil)
}

// OperatorSend перевод from -> to оператором с allowance.
func (h *HookToken) OperatorSend(c *chain.Context, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error {
	operator := c.Sender()
	if err := h.spendAllowance(c, from, operator, amount); err != nil {
		return err
	}
	return h.send(c, operator, from, to, amount, userData, operatorData)
}

func (h *HookToken) callRecipient(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error {
	ct, ok := c.Contract(to)
	if !ok {
		return nil
	}
	recipient, ok := ct.(TokensRecipient)
	if !ok {
		return nil
	}
	return c.Call(to, func(rc *chain.Context) error {
		return recipient.TokensReceived(rc, operator, from, to, amount, userData, operatorData)
	})
}
