// internal/sale/gateway.go
package sale

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/curve"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// Flow протокол приёма платежей. Для одной продажи ровно один.
type Flow string

const (
	// FlowPull approve + buy, продажа сама списывает платёж
	FlowPull Flow = "pull"
	// FlowCallback transferAndCall -> OnTransferReceived
	FlowCallback Flow = "callback"
	// FlowHook перевод -> TokensReceived
	FlowHook Flow = "hook"
)

// PayToken минимальный интерфейс платёжного токена.
type PayToken interface {
	chain.Contract
	Decimals() uint8
	BalanceOf(c *chain.Context, account types.Address) *uint256.Int
	Transfer(c *chain.Context, to types.Address, amount *uint256.Int) error
	TransferFrom(c *chain.Context, from, to types.Address, amount *uint256.Int) error
}

type callbackPayToken interface {
	PayToken
	TransferAndCall(c *chain.Context, to types.Address, amount *uint256.Int, data []byte) error
}

type hookPayToken interface {
	PayToken
	Send(c *chain.Context, to types.Address, amount *uint256.Int, userData []byte) error
}

// DetectFlow выбирает протокол по возможностям токена.
func DetectFlow(tok PayToken) Flow {
	switch tok.(type) {
	case hookPayToken:
		return FlowHook
	case callbackPayToken:
		return FlowCallback
	default:
		return FlowPull
	}
}

func validateFlow(tok PayToken, flow Flow) error {
	switch flow {
	case FlowPull:
		// hook-токен уведомит продажу о transferFrom, что нельзя отличить от push-платежа
		if _, ok := tok.(hookPayToken); ok {
			return fmt.Errorf("%w: pull with a hook token", ErrUnsupportedFlow)
		}
	case FlowCallback:
		if _, ok := tok.(callbackPayToken); !ok {
			return fmt.Errorf("%w: token has no transferAndCall", ErrUnsupportedFlow)
		}
	case FlowHook:
		if _, ok := tok.(hookPayToken); !ok {
			return fmt.Errorf("%w: token has no receive hook", ErrUnsupportedFlow)
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnsupportedFlow, flow)
	}
	return nil
}

// Gateway перемещение платёжного токена между продажей и участниками.
type Gateway struct {
	token PayToken
	self  types.Address
	flow  Flow
}

// authenticate проверяет, что уведомление пришло от платёжного токена
// и этот протокол включён для продажи.
func (g *Gateway) authenticate(c *chain.Context, flow Flow) error {
	if c.Sender() != g.token.Address() {
		return fmt.Errorf("%w: %s", ErrUnknownPaymentSource, c.Sender())
	}
	if g.flow != flow {
		return fmt.Errorf("%w: %s (sale accepts %s)", ErrUnsupportedFlow, flow, g.flow)
	}
	return nil
}

// Liquidity баланс платёжного токена на счёте продажи.
func (g *Gateway) Liquidity(c *chain.Context) (*uint256.Int, error) {
	var bal *uint256.Int
	err := c.StaticCall(g.token.Address(), func(tc *chain.Context) error {
		bal = g.token.BalanceOf(tc, g.self)
		return nil
	})
	return bal, err
}

func (g *Gateway) pull(c *chain.Context, from types.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return c.Call(g.token.Address(), func(tc *chain.Context) error {
		return g.token.TransferFrom(tc, from, g.self, amount)
	})
}

func (g *Gateway) push(c *chain.Context, to types.Address, amount *uint256.Int) error {
	if amount.IsZero() {
		return nil
	}
	return c.Call(g.token.Address(), func(tc *chain.Context) error {
		return g.token.Transfer(tc, to, amount)
	})
}

// payout единая выплата при продаже для всех протоколов.
func (g *Gateway) payout(c *chain.Context, to types.Address, amount *uint256.Int) error {
	liquidity, err := g.Liquidity(c)
	if err != nil {
		return err
	}
	if liquidity.Lt(amount) {
		return fmt.Errorf("%w: have %s, need %s", ErrInsufficientLiquidity, liquidity.Dec(), amount.Dec())
	}
	return g.push(c, to, amount)
}

type order struct {
	buyer types.Address
	// amount запрошенные токены (pull)
	amount *uint256.Int
	// payment уже полученный платёж (push)
	payment *uint256.Int
	bounds  *Bounds
}

type fill struct {
	amount *uint256.Int
	price  *uint256.Int
	cost   *uint256.Int
	refund *uint256.Int
}

// inboundAdapter один из протоколов приёма платежа. Все сходятся в executeBuy.
type inboundAdapter interface {
	Flow() Flow
	// resolve превращает заявку в исполнение при текущем supply
	resolve(supply *uint256.Int, o order) (fill, error)
	// settle проводит платёж после зачисления токенов
	settle(c *chain.Context, o order, f fill) error
}

// pullAdapter списывает ровно cost через transferFrom.
type pullAdapter struct {
	gw    *Gateway
	curve *curve.Curve
}

func (a *pullAdapter) Flow() Flow { return FlowPull }

func (a *pullAdapter) resolve(supply *uint256.Int, o order) (fill, error) {
	q, err := a.curve.QuoteBuy(supply, o.amount)
	if err != nil {
		return fill{}, err
	}
	return fill{amount: o.amount, price: q.Price, cost: q.PayAmount, refund: new(uint256.Int)}, nil
}

func (a *pullAdapter) settle(c *chain.Context, o order, f fill) error {
	return a.gw.pull(c, o.buyer, f.cost)
}

// pushAdapter платёж уже пришёл (callback или hook): количество считается
// обратной котировкой, остаток возвращается плательщику.
type pushAdapter struct {
	gw    *Gateway
	curve *curve.Curve
	flow  Flow
}

func (a *pushAdapter) Flow() Flow { return a.flow }

func (a *pushAdapter) resolve(supply *uint256.Int, o order) (fill, error) {
	f, err := a.curve.AmountForPayment(supply, o.payment)
	if err != nil {
		return fill{}, err
	}
	end := new(uint256.Int).Add(supply, f.Amount)
	price, err := a.curve.Price(end)
	if err != nil {
		return fill{}, err
	}
	return fill{amount: f.Amount, price: price, cost: f.Cost, refund: f.Refund}, nil
}

func (a *pushAdapter) settle(c *chain.Context, o order, f fill) error {
	return a.gw.push(c, o.buyer, f.refund)
}

func newAdapter(gw *Gateway, cv *curve.Curve) inboundAdapter {
	if gw.flow == FlowPull {
		return &pullAdapter{gw: gw, curve: cv}
	}
	return &pushAdapter{gw: gw, curve: cv, flow: gw.flow}
}
