// internal/sale/sale.go
package sale

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/curve"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
)

// Config параметры продажи. Неизменяемы после развёртывания.
type Config struct {
	Name     string
	Symbol   string
	Decimals uint8
	// PricePrecision знаменатель цены, по умолчанию 1e9
	PricePrecision *uint256.Int
	// Slope числитель цены на одну целую единицу supply, по умолчанию PricePrecision
	Slope    *uint256.Int
	PayToken PayToken
	// Flow пустой = определить по возможностям токена
	Flow Flow
}

// Sale продажа токена по линейной кривой.
type Sale struct {
	addr     types.Address
	name     string
	symbol   string
	decimals uint8

	curve   *curve.Curve
	ledger  Ledger
	gateway *Gateway
	inbound inboundAdapter

	logger *zap.Logger
}

const keyLock = "lock"

// New создаёт продажу по адресу addr без регистрации в рантайме.
func New(addr types.Address, cfg Config, logger *zap.Logger) (*Sale, error) {
	if cfg.PayToken == nil {
		return nil, fmt.Errorf("%w: pay token is required", ErrInvalidConfig)
	}
	if cfg.Symbol == "" {
		return nil, fmt.Errorf("%w: symbol is required", ErrInvalidConfig)
	}

	flow := cfg.Flow
	if flow == "" {
		flow = DetectFlow(cfg.PayToken)
	}
	if err := validateFlow(cfg.PayToken, flow); err != nil {
		return nil, err
	}

	precision := cfg.PricePrecision
	if precision == nil {
		precision = curve.DefaultPricePrecision
	}
	slope := cfg.Slope
	if slope == nil {
		slope = precision
	}
	cv, err := curve.New(curve.Params{
		Unit:           pow10(cfg.Decimals),
		PayUnit:        pow10(cfg.PayToken.Decimals()),
		PricePrecision: precision,
		Slope:          slope,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to build curve: %w", err)
	}

	gw := &Gateway{token: cfg.PayToken, self: addr, flow: flow}
	return &Sale{
		addr:     addr,
		name:     cfg.Name,
		symbol:   cfg.Symbol,
		decimals: cfg.Decimals,
		curve:    cv,
		gateway:  gw,
		inbound:  newAdapter(gw, cv),
		logger:   logger.Named("sale").With(zap.String("symbol", cfg.Symbol), zap.String("flow", string(flow))),
	}, nil
}

// Deploy выводит адрес и регистрирует продажу в рантайме.
func Deploy(ctx context.Context, rt *chain.Runtime, deployer types.Address, cfg Config, logger *zap.Logger) (*Sale, error) {
	addr, err := rt.DeriveAddress(deployer, cfg.Symbol)
	if err != nil {
		return nil, err
	}
	s, err := New(addr, cfg, logger)
	if err != nil {
		return nil, err
	}
	if _, err := rt.Deploy(ctx, deployer, s, func(*chain.Context) error { return nil }); err != nil {
		return nil, err
	}
	s.logger.Info("Sale deployed",
		zap.String("address", addr.String()),
		zap.String("pay_token", cfg.PayToken.Address().String()),
		zap.String("price_precision", s.curve.PricePrecision().Dec()))
	return s, nil
}

func (s *Sale) Address() types.Address  { return s.addr }
func (s *Sale) Name() string            { return s.name }
func (s *Sale) Symbol() string          { return s.symbol }
func (s *Sale) Decimals() uint8         { return s.decimals }
func (s *Sale) Flow() Flow              { return s.gateway.flow }
func (s *Sale) Curve() *curve.Curve     { return s.curve }
func (s *Sale) PayToken() types.Address { return s.gateway.token.Address() }

// PricePrecision знаменатель цены.
func (s *Sale) PricePrecision() *uint256.Int {
	return s.curve.PricePrecision()
}

// Price текущая маржинальная цена.
func (s *Sale) Price(c *chain.Context) (*uint256.Int, error) {
	return s.curve.Price(s.ledger.Supply(c))
}

func (s *Sale) TotalSupply(c *chain.Context) *uint256.Int {
	return s.ledger.Supply(c)
}

func (s *Sale) BalanceOf(c *chain.Context, holder types.Address) *uint256.Int {
	return s.ledger.BalanceOf(c, holder)
}

// Reserve сколько платёжных токенов должно обеспечивать текущий supply.
func (s *Sale) Reserve(c *chain.Context) (*uint256.Int, error) {
	return s.curve.Reserve(s.ledger.Supply(c))
}

// Liquidity фактический баланс платёжного токена продажи.
func (s *Sale) Liquidity(c *chain.Context) (*uint256.Int, error) {
	return s.gateway.Liquidity(c)
}

// QuoteBuyPriceAmount цена после покупки amount и сумма к оплате.
func (s *Sale) QuoteBuyPriceAmount(c *chain.Context, amount *uint256.Int) (curve.Quote, error) {
	return s.curve.QuoteBuy(s.ledger.Supply(c), amount)
}

// QuoteSellPriceAmount цена после продажи amount и сумма к выплате.
func (s *Sale) QuoteSellPriceAmount(c *chain.Context, amount *uint256.Int) (curve.Quote, error) {
	return s.curve.QuoteSell(s.ledger.Supply(c), amount)
}

// QuotePayment сколько токенов купит push-платёж payment.
func (s *Sale) QuotePayment(c *chain.Context, payment *uint256.Int) (curve.Fill, error) {
	return s.curve.AmountForPayment(s.ledger.Supply(c), payment)
}

// Buy покупка amount с проверкой price <= maxPrice + tolerance (pull).
// Перед вызовом покупатель должен выдать продаже allowance.
func (s *Sale) Buy(c *chain.Context, amount, maxPrice, tolerance *uint256.Int) error {
	if maxPrice == nil {
		return fmt.Errorf("%w: max price is required, use BuyUnbounded", ErrInvalidBounds)
	}
	return s.buyPull(c, amount, NewBounds(maxPrice, tolerance))
}

// BuyUnbounded покупка по любой цене. Вызывающий принимает риск проскальзывания.
func (s *Sale) BuyUnbounded(c *chain.Context, amount *uint256.Int) error {
	return s.buyPull(c, amount, nil)
}

// Sell продажа amount с проверкой price >= minPrice - tolerance.
func (s *Sale) Sell(c *chain.Context, amount, minPrice, tolerance *uint256.Int) error {
	if minPrice == nil {
		return fmt.Errorf("%w: min price is required, use SellUnbounded", ErrInvalidBounds)
	}
	return s.sell(c, amount, NewBounds(minPrice, tolerance))
}

// SellUnbounded продажа по любой цене.
func (s *Sale) SellUnbounded(c *chain.Context, amount *uint256.Int) error {
	return s.sell(c, amount, nil)
}

// OnTransferReceived точка входа callback-протокола. data может нести
// EncodeBuyBounds.
func (s *Sale) OnTransferReceived(c *chain.Context, operator, from types.Address, amount *uint256.Int, data []byte) error {
	if err := s.gateway.authenticate(c, FlowCallback); err != nil {
		return err
	}
	return s.buyPush(c, from, amount, data)
}

// TokensReceived точка входа hook-протокола. userData может нести
// EncodeBuyBounds.
func (s *Sale) TokensReceived(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error {
	if err := s.gateway.authenticate(c, FlowHook); err != nil {
		return err
	}
	if to != s.addr {
		return fmt.Errorf("%w: hook for %s", ErrUnknownPaymentSource, to)
	}
	return s.buyPush(c, from, amount, userData)
}

func (s *Sale) buyPull(c *chain.Context, amount *uint256.Int, bounds *Bounds) error {
	if s.inbound.Flow() != FlowPull {
		return fmt.Errorf("%w: direct buy on a %s sale, send the payment instead", ErrUnsupportedFlow, s.inbound.Flow())
	}
	return s.executeBuy(c, order{buyer: c.Sender(), amount: amount, bounds: bounds})
}

func (s *Sale) buyPush(c *chain.Context, buyer types.Address, payment *uint256.Int, data []byte) error {
	bounds, err := DecodeBuyBounds(data)
	if err != nil {
		return err
	}
	return s.executeBuy(c, order{buyer: buyer, payment: payment, bounds: bounds})
}

// executeBuy общий путь покупки: котировка по текущему состоянию, проверка
// границы, зачисление, затем расчёт через адаптер протокола.
func (s *Sale) executeBuy(c *chain.Context, o order) error {
	if err := s.enter(c); err != nil {
		return err
	}
	defer s.exit(c)

	supply := s.ledger.Supply(c)
	f, err := s.inbound.resolve(supply, o)
	if err != nil {
		return err
	}
	if err := o.bounds.checkBuy(f.price); err != nil {
		s.logger.Debug("Buy rejected",
			zap.String("tx_id", c.TxID()),
			zap.String("buyer", o.buyer.String()),
			zap.Error(err))
		return err
	}

	if err := s.ledger.Credit(c, o.buyer, f.amount); err != nil {
		return err
	}
	if err := s.inbound.settle(c, o, f); err != nil {
		return err
	}

	return s.emitTrade(c, TradeBuy, o.buyer, f.amount, f.cost, f.refund, f.price)
}

func (s *Sale) sell(c *chain.Context, amount *uint256.Int, bounds *Bounds) error {
	if err := s.enter(c); err != nil {
		return err
	}
	defer s.exit(c)

	seller := c.Sender()
	q, err := s.curve.QuoteSell(s.ledger.Supply(c), amount)
	if err != nil {
		return err
	}
	if err := bounds.checkSell(q.Price); err != nil {
		s.logger.Debug("Sell rejected",
			zap.String("tx_id", c.TxID()),
			zap.String("seller", seller.String()),
			zap.Error(err))
		return err
	}

	if err := s.ledger.Debit(c, seller, amount); err != nil {
		return err
	}
	if err := s.gateway.payout(c, seller, q.PayAmount); err != nil {
		return err
	}

	return s.emitTrade(c, TradeSell, seller, amount, q.PayAmount, new(uint256.Int), q.Price)
}

func (s *Sale) enter(c *chain.Context) error {
	if c.GetBool(keyLock) {
		return ErrReentrantCall
	}
	c.SetBool(keyLock, true)
	return nil
}

func (s *Sale) exit(c *chain.Context) {
	c.SetBool(keyLock, false)
}

func (s *Sale) emitTrade(c *chain.Context, kind TradeKind, account types.Address, amount, pay, refund, price *uint256.Int) error {
	supply := s.ledger.Supply(c)
	reserve, err := s.curve.Reserve(supply)
	if err != nil {
		return err
	}

	c.Emit(TradeEvent{
		Kind:      kind,
		Flow:      s.Flow(),
		Account:   account,
		Amount:    amount.Clone(),
		PayAmount: pay.Clone(),
		Refund:    refund.Clone(),
		Price:     price.Clone(),
		Supply:    supply,
		Reserve:   reserve,
	})

	s.logger.Debug("Trade executed",
		zap.String("tx_id", c.TxID()),
		zap.String("kind", string(kind)),
		zap.String("account", account.String()),
		zap.String("amount", amount.Dec()),
		zap.String("pay_amount", pay.Dec()),
		zap.String("price", price.Dec()),
		zap.String("supply", supply.Dec()))
	return nil
}

func pow10(decimals uint8) *uint256.Int {
	return new(uint256.Int).Exp(uint256.NewInt(10), uint256.NewInt(uint64(decimals)))
}
