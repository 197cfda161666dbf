package sale

import (
	"context"
	"testing"

	"github.com/gagliardetto/solana-go"
	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func wei(s string) *uint256.Int {
	return units.MustWei(s, units.DefaultDecimals)
}

func newAccount() types.Address {
	return solana.NewWallet().PublicKey()
}

type env struct {
	t     *testing.T
	rt    *chain.Runtime
	owner types.Address
	alice types.Address
	bob   types.Address
	pay   token.ERC20
	sale  *Sale
}

type envOption func(*token.Config, *Config)

func withPayConfig(fn func(*token.Config)) envOption {
	return func(tc *token.Config, _ *Config) { fn(tc) }
}

func withSaleConfig(fn func(*Config)) envOption {
	return func(_ *token.Config, sc *Config) { fn(sc) }
}

// newEnv разворачивает платёжный токен (1 000 000 владельцу, по 100 каждому
// пользователю) и продажу над ним.
func newEnv(t *testing.T, kind token.Kind, opts ...envOption) *env {
	t.Helper()
	logger := zaptest.NewLogger(t)
	e := &env{
		t:     t,
		rt:    chain.NewRuntime(logger),
		owner: newAccount(),
		alice: newAccount(),
		bob:   newAccount(),
	}

	tc := token.Config{
		Name:          "Payment Token",
		Symbol:        "PAY",
		Decimals:      18,
		InitialSupply: wei("1000000"),
		Kind:          kind,
	}
	sc := Config{Name: "Sale Token", Symbol: "SALE", Decimals: 18}
	for _, opt := range opts {
		opt(&tc, &sc)
	}

	pay, err := token.Deploy(context.Background(), e.rt, e.owner, tc, logger)
	require.NoError(t, err)
	e.pay = pay

	sc.PayToken = pay
	s, err := Deploy(context.Background(), e.rt, e.owner, sc, logger)
	require.NoError(t, err)
	e.sale = s

	perUser := new(uint256.Int).Mul(uint256.NewInt(100), pow10(tc.Decimals))
	for _, u := range []types.Address{e.alice, e.bob} {
		e.fund(u, perUser)
	}
	return e
}

func (e *env) fund(to types.Address, amount *uint256.Int) {
	e.t.Helper()
	_, err := e.rt.Execute(context.Background(), e.owner, e.pay.Address(), "transfer", func(c *chain.Context) error {
		return e.pay.Transfer(c, to, amount)
	})
	require.NoError(e.t, err)
}

func (e *env) approve(from types.Address, amount *uint256.Int) {
	e.t.Helper()
	_, err := e.rt.Execute(context.Background(), from, e.pay.Address(), "approve", func(c *chain.Context) error {
		return e.pay.Approve(c, e.sale.Address(), amount)
	})
	require.NoError(e.t, err)
}

func (e *env) onSale(from types.Address, fn func(c *chain.Context) error) (*chain.Receipt, error) {
	return e.rt.Execute(context.Background(), from, e.sale.Address(), "sale", fn)
}

func (e *env) buy(from types.Address, amount, maxPrice, tolerance *uint256.Int) error {
	_, err := e.onSale(from, func(c *chain.Context) error {
		return e.sale.Buy(c, amount, maxPrice, tolerance)
	})
	return err
}

func (e *env) buyUnbounded(from types.Address, amount *uint256.Int) error {
	_, err := e.onSale(from, func(c *chain.Context) error {
		return e.sale.BuyUnbounded(c, amount)
	})
	return err
}

func (e *env) sell(from types.Address, amount, minPrice, tolerance *uint256.Int) error {
	_, err := e.onSale(from, func(c *chain.Context) error {
		return e.sale.Sell(c, amount, minPrice, tolerance)
	})
	return err
}

func (e *env) sellUnbounded(from types.Address, amount *uint256.Int) error {
	_, err := e.onSale(from, func(c *chain.Context) error {
		return e.sale.SellUnbounded(c, amount)
	})
	return err
}

// pay отправляет push-платёж протоколом платёжного токена.
func (e *env) payPush(from types.Address, amount *uint256.Int, data []byte) (*chain.Receipt, error) {
	return e.rt.Execute(context.Background(), from, e.pay.Address(), "pay", func(c *chain.Context) error {
		switch tok := e.pay.(type) {
		case *token.CallbackToken:
			return tok.TransferAndCall(c, e.sale.Address(), amount, data)
		case *token.HookToken:
			return tok.Send(c, e.sale.Address(), amount, data)
		default:
			return tok.Transfer(c, e.sale.Address(), amount)
		}
	})
}

func (e *env) view(fn func(c *chain.Context)) {
	e.t.Helper()
	require.NoError(e.t, e.rt.View(context.Background(), e.sale.Address(), func(c *chain.Context) error {
		fn(c)
		return nil
	}))
}

func (e *env) price() *uint256.Int {
	var p *uint256.Int
	e.view(func(c *chain.Context) {
		var err error
		p, err = e.sale.Price(c)
		require.NoError(e.t, err)
	})
	return p
}

func (e *env) supply() *uint256.Int {
	var s *uint256.Int
	e.view(func(c *chain.Context) { s = e.sale.TotalSupply(c) })
	return s
}

func (e *env) balance(a types.Address) *uint256.Int {
	var b *uint256.Int
	e.view(func(c *chain.Context) { b = e.sale.BalanceOf(c, a) })
	return b
}

func (e *env) payBalance(a types.Address) *uint256.Int {
	var b *uint256.Int
	require.NoError(e.t, e.rt.View(context.Background(), e.pay.Address(), func(c *chain.Context) error {
		b = e.pay.BalanceOf(c, a)
		return nil
	}))
	return b
}

func (e *env) quoteBuy(amount *uint256.Int) (price, pay *uint256.Int) {
	e.view(func(c *chain.Context) {
		q, err := e.sale.QuoteBuyPriceAmount(c, amount)
		require.NoError(e.t, err)
		price, pay = q.Price, q.PayAmount
	})
	return price, pay
}

func (e *env) quoteSell(amount *uint256.Int) (price, pay *uint256.Int) {
	e.view(func(c *chain.Context) {
		q, err := e.sale.QuoteSellPriceAmount(c, amount)
		require.NoError(e.t, err)
		price, pay = q.Price, q.PayAmount
	})
	return price, pay
}

// snapshot балансы для проверки "ничего не изменилось"
type snapshot struct {
	supply, price string
	sale, pay     map[types.Address]string
}

func (e *env) snapshot() snapshot {
	s := snapshot{
		supply: e.supply().Dec(),
		price:  e.price().Dec(),
		sale:   map[types.Address]string{},
		pay:    map[types.Address]string{},
	}
	for _, a := range []types.Address{e.owner, e.alice, e.bob, e.sale.Address()} {
		s.sale[a] = e.balance(a).Dec()
		s.pay[a] = e.payBalance(a).Dec()
	}
	return s
}

// slippage 2% от цены, как в типичном клиенте
func slippage(price *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(new(uint256.Int).Mul(price, uint256.NewInt(2)), uint256.NewInt(100))
}
