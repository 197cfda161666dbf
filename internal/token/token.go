// internal/token/token.go
package token

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"go.uber.org/zap"
)

// Kind определяет протокол уведомления получателя.
type Kind string

const (
	// KindERC20 обычный токен: approve + transferFrom
	KindERC20 Kind = "erc20"
	// KindCallback transferAndCall с колбэком получателю
	KindCallback Kind = "callback"
	// KindHook хук получателя на каждый перевод
	KindHook Kind = "hook"
)

// Config параметры выпуска токена.
type Config struct {
	Name          string
	Symbol        string
	Decimals      uint8
	InitialSupply *uint256.Int
	Kind          Kind
	// Sanctions включает Ban/Unban
	Sanctions bool
	// GodMode включает GodTransfer для владельца
	GodMode bool
}

// ERC20 общий интерфейс всех токенов.
type ERC20 interface {
	chain.Contract
	Name() string
	Symbol() string
	Decimals() uint8
	TotalSupply(c *chain.Context) *uint256.Int
	BalanceOf(c *chain.Context, account types.Address) *uint256.Int
	Allowance(c *chain.Context, owner, spender types.Address) *uint256.Int
	Transfer(c *chain.Context, to types.Address, amount *uint256.Int) error
	Approve(c *chain.Context, spender types.Address, amount *uint256.Int) error
	TransferFrom(c *chain.Context, from, to types.Address, amount *uint256.Int) error
}

// Admin операции владельца.
type Admin interface {
	Owner(c *chain.Context) types.Address
	Mint(c *chain.Context, to types.Address, amount *uint256.Int) error
	Ban(c *chain.Context, account types.Address) error
	Unban(c *chain.Context, account types.Address) error
	IsBanned(c *chain.Context, account types.Address) bool
	GodTransfer(c *chain.Context, from, to types.Address, amount *uint256.Int) error
}

type receiveHook func(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error

// Token базовый токен с балансами и allowance. Санкции и god mode
// включаются конфигурацией.
type Token struct {
	addr      types.Address
	name      string
	symbol    string
	decimals  uint8
	sanctions bool
	godMode   bool

	// afterTransfer вызывается после каждого перевода (hook-токены)
	afterTransfer receiveHook

	logger *zap.Logger
}

const (
	keyOwner  = "owner"
	keySupply = "supply"
)

func balanceKey(a types.Address) string    { return chain.Key("bal", a) }
func allowanceKey(o, s types.Address) string { return chain.Key("allow", o, s) }
func banKey(a types.Address) string        { return chain.Key("ban", a) }

// New создаёт базовый токен по адресу addr. Регистрацию выполняет Deploy.
func New(addr types.Address, cfg Config, logger *zap.Logger) *Token {
	return &Token{
		addr:      addr,
		name:      cfg.Name,
		symbol:    cfg.Symbol,
		decimals:  cfg.Decimals,
		sanctions: cfg.Sanctions,
		godMode:   cfg.GodMode,
		logger:    logger.Named("token").With(zap.String("symbol", cfg.Symbol)),
	}
}

// Deploy выводит адрес, создаёт токен нужного вида и выпускает
// InitialSupply на счёт owner.
func Deploy(ctx context.Context, rt *chain.Runtime, owner types.Address, cfg Config, logger *zap.Logger) (ERC20, error) {
	addr, err := rt.DeriveAddress(owner, cfg.Symbol)
	if err != nil {
		return nil, err
	}

	var (
		tok  ERC20
		base *Token
	)
	switch cfg.Kind {
	case "", KindERC20:
		base = New(addr, cfg, logger)
		tok = base
	case KindCallback:
		ct := NewCallback(addr, cfg, logger)
		base, tok = ct.Token, ct
	case KindHook:
		ht := NewHook(addr, cfg, logger)
		base, tok = ht.Token, ht
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownKind, cfg.Kind)
	}

	if _, err := rt.Deploy(ctx, owner, tok, func(c *chain.Context) error {
		return base.initialize(c, cfg.InitialSupply)
	}); err != nil {
		return nil, err
	}

	base.logger.Info("Token deployed",
		zap.String("address", addr.String()),
		zap.String("kind", string(cfg.Kind)),
		zap.Bool("sanctions", cfg.Sanctions),
		zap.Bool("god_mode", cfg.GodMode))
	return tok, nil
}

func (t *Token) initialize(c *chain.Context, initialSupply *uint256.Int) error {
	c.SetAddress(keyOwner, c.Sender())
	if initialSupply != nil && !initialSupply.IsZero() {
		return t.mint(c, c.Sender(), initialSupply)
	}
	return nil
}

func (t *Token) Address() types.Address { return t.addr }
func (t *Token) Name() string           { return t.name }
func (t *Token) Symbol() string         { return t.symbol }
func (t *Token) Decimals() uint8        { return t.decimals }

func (t *Token) Owner(c *chain.Context) types.Address {
	return c.GetAddress(keyOwner)
}

func (t *Token) TotalSupply(c *chain.Context) *uint256.Int {
	return c.GetUint(keySupply)
}

func (t *Token) BalanceOf(c *chain.Context, account types.Address) *uint256.Int {
	return c.GetUint(balanceKey(account))
}

func (t *Token) Allowance(c *chain.Context, owner, spender types.Address) *uint256.Int {
	return c.GetUint(allowanceKey(owner, spender))
}

// Transfer переводит amount со счёта вызывающего.
func (t *Token) Transfer(c *chain.Context, to types.Address, amount *uint256.Int) error {
	return t.send(c, c.Sender(), c.Sender(), to, amount, nil, nil)
}

// Approve разрешает spender списывать до amount.
func (t *Token) Approve(c *chain.Context, spender types.Address, amount *uint256.Int) error {
	if spender.IsZero() {
		return fmt.Errorf("%w: approve to zero address", ErrInvalidReceiver)
	}
	owner := c.Sender()
	c.SetUint(allowanceKey(owner, spender), amount)
	c.Emit(ApprovalEvent{Owner: owner, Spender: spender, Amount: amount.Clone()})
	return nil
}

// TransferFrom переводит from -> to, расходуя allowance вызывающего.
func (t *Token) TransferFrom(c *chain.Context, from, to types.Address, amount *uint256.Int) error {
	spender := c.Sender()
	if err := t.spendAllowance(c, from, spender, amount); err != nil {
		return err
	}
	return t.send(c, spender, from, to, amount, nil, nil)
}

// Mint выпускает новые токены. Только владелец.
func (t *Token) Mint(c *chain.Context, to types.Address, amount *uint256.Int) error {
	if err := t.onlyOwner(c); err != nil {
		return err
	}
	return t.mint(c, to, amount)
}

// Ban добавляет аккаунт в санкционный список.
func (t *Token) Ban(c *chain.Context, account types.Address) error {
	return t.setBanned(c, account, true)
}

// Unban убирает аккаунт из санкционного списка.
func (t *Token) Unban(c *chain.Context, account types.Address) error {
	return t.setBanned(c, account, false)
}

func (t *Token) IsBanned(c *chain.Context, account types.Address) bool {
	return t.sanctions && c.GetBool(banKey(account))
}

// GodTransfer переводит чужие токены без allowance. Только владелец.
func (t *Token) GodTransfer(c *chain.Context, from, to types.Address, amount *uint256.Int) error {
	if !t.godMode {
		return fmt.Errorf("%w: god transfer", ErrUnsupportedOperation)
	}
	if err := t.onlyOwner(c); err != nil {
		return err
	}
	t.logger.Warn("God transfer",
		zap.String("from", from.String()),
		zap.String("to", to.String()),
		zap.String("amount", amount.Dec()))
	return t.move(c, from, to, amount, true)
}

func (t *Token) setBanned(c *chain.Context, account types.Address, banned bool) error {
	if !t.sanctions {
		return fmt.Errorf("%w: sanctions", ErrUnsupportedOperation)
	}
	if err := t.onlyOwner(c); err != nil {
		return err
	}
	c.SetBool(banKey(account), banned)
	c.Emit(BanEvent{Account: account, Banned: banned})
	return nil
}

func (t *Token) onlyOwner(c *chain.Context) error {
	if c.Sender() != t.Owner(c) {
		return ErrUnauthorized
	}
	return nil
}

func (t *Token) spendAllowance(c *chain.Context, owner, spender types.Address, amount *uint256.Int) error {
	allowed := t.Allowance(c, owner, spender)
	if allowed.Lt(amount) {
		return fmt.Errorf("%w: allowed %s, need %s", ErrAllowanceExceeded, allowed.Dec(), amount.Dec())
	}
	c.SetUint(allowanceKey(owner, spender), new(uint256.Int).Sub(allowed, amount))
	return nil
}

func (t *Token) send(c *chain.Context, operator, from, to types.Address, amount *uint256.Int, userData, operatorData []byte) error {
	if err := t.move(c, from, to, amount, false); err != nil {
		return err
	}
	if t.afterTransfer != nil {
		return t.afterTransfer(c, operator, from, to, amount, userData, operatorData)
	}
	return nil
}

func (t *Token) move(c *chain.Context, from, to types.Address, amount *uint256.Int, forced bool) error {
	if to.IsZero() {
		return fmt.Errorf("%w: transfer to zero address", ErrInvalidReceiver)
	}
	if t.IsBanned(c, from) {
		return fmt.Errorf("%w: %s", ErrBannedAddress, from)
	}
	if t.IsBanned(c, to) {
		return fmt.Errorf("%w: %s", ErrBannedAddress, to)
	}

	fromBal := t.BalanceOf(c, from)
	if fromBal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientBalance, fromBal.Dec(), amount.Dec())
	}
	c.SetUint(balanceKey(from), new(uint256.Int).Sub(fromBal, amount))
	toBal := t.BalanceOf(c, to)
	c.SetUint(balanceKey(to), new(uint256.Int).Add(toBal, amount))

	c.Emit(TransferEvent{From: from, To: to, Amount: amount.Clone(), Forced: forced})
	return nil
}

func (t *Token) mint(c *chain.Context, to types.Address, amount *uint256.Int) error {
	if to.IsZero() {
		return fmt.Errorf("%w: mint to zero address", ErrInvalidReceiver)
	}
	if t.IsBanned(c, to) {
		return fmt.Errorf("%w: %s", ErrBannedAddress, to)
	}
	supply, overflow := new(uint256.Int).AddOverflow(t.TotalSupply(c), amount)
	if overflow {
		return ErrSupplyOverflow
	}
	c.SetUint(keySupply, supply)
	c.SetUint(balanceKey(to), new(uint256.Int).Add(t.BalanceOf(c, to), amount))
	c.Emit(TransferEvent{From: types.ZeroAddress, To: to, Amount: amount.Clone()})
	return nil
}
