package events

import (
	"context"
	"testing"
	"time"

	"github.com/gagliardetto/solana-go"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/sale"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestBridgePublishesTrades(t *testing.T) {
	logger := zaptest.NewLogger(t)
	ctx := context.Background()
	rt := chain.NewRuntime(logger)

	owner := solana.NewWallet().PublicKey()
	pay, err := token.Deploy(ctx, rt, owner, token.Config{
		Symbol:        "PAY",
		Decimals:      18,
		InitialSupply: units.MustWei("1000", 18),
	}, logger)
	require.NoError(t, err)
	s, err := sale.Deploy(ctx, rt, owner, sale.Config{Symbol: "SALE", Decimals: 18, PayToken: pay}, logger)
	require.NoError(t, err)

	bus := newTestBus(t, 16)
	Attach(rt, bus, logger, true)

	var trades []TradeExecutedEvent
	var prices []PriceUpdatedEvent
	var transfers []TransferExecutedEvent
	bus.Subscribe(TradeExecuted, Typed(func(_ context.Context, ev TradeExecutedEvent) error {
		trades = append(trades, ev)
		return nil
	}))
	bus.Subscribe(PriceUpdated, Typed(func(_ context.Context, ev PriceUpdatedEvent) error {
		prices = append(prices, ev)
		return nil
	}))
	bus.Subscribe(TransferExecuted, Typed(func(_ context.Context, ev TransferExecutedEvent) error {
		transfers = append(transfers, ev)
		return nil
	}))

	exec := func(to types.Address, fn func(c *chain.Context) error) *chain.Receipt {
		r, err := rt.Execute(ctx, owner, to, "test", fn)
		require.NoError(t, err)
		return r
	}
	exec(pay.Address(), func(c *chain.Context) error {
		return pay.Approve(c, s.Address(), units.MustWei("10", 18))
	})
	receipt := exec(s.Address(), func(c *chain.Context) error {
		return s.BuyUnbounded(c, units.MustWei("2", 18))
	})

	require.Len(t, trades, 1)
	assert.Equal(t, "buy", trades[0].Kind)
	assert.Equal(t, "pull", trades[0].Flow)
	assert.Equal(t, s.Address(), trades[0].Sale)
	assert.Equal(t, receipt.TxID, trades[0].TxID)
	assert.Equal(t, units.MustWei("2", 18).Dec(), trades[0].PayAmount.Dec())

	require.Len(t, prices, 1)
	assert.Equal(t, "2000000000", prices[0].Price.Dec())

	require.Len(t, transfers, 1)
	assert.Equal(t, pay.Address(), transfers[0].Token)
	assert.Equal(t, s.Address(), transfers[0].To)
}

func TestTranslateSkipsUnknownLogs(t *testing.T) {
	r := &chain.Receipt{TxID: "x"}
	assert.Empty(t, Translate(r, chain.Log{Event: token.BanEvent{}}, time.Now()))
	assert.Len(t, Translate(r, chain.Log{Event: sale.TradeEvent{Kind: sale.TradeSell}}, time.Now()), 3)
}
