// =============================================
// File: internal/scenario/model.go
// =============================================
// Package scenario прогоняет сценарии торговли против продажи.
package scenario

import (
	"errors"
	"fmt"
	"time"

	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/sale"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// Action тип шага сценария
type Action string

const (
	ActionApprove     Action = "approve"
	ActionBuy         Action = "buy"
	ActionSell        Action = "sell"
	ActionPay         Action = "pay"
	ActionTransfer    Action = "transfer"
	ActionBan         Action = "ban"
	ActionUnban       Action = "unban"
	ActionGodTransfer Action = "god_transfer"
	ActionMint        Action = "mint"
	ActionQuote       Action = "quote"
)

// Специальные имена аккаунтов
const (
	AccountOwner = "owner"
	AccountSale  = "sale"
)

var ErrInvalidStep = errors.New("invalid scenario step")

// Step один шаг. Суммы в человекочитаемых единицах: для buy/sell/quote
// в единицах продаваемого токена, для остальных в единицах платёжного.
type Step struct {
	Name     string                `yaml:"name"`
	Action   Action                `yaml:"action"`
	Account  string                `yaml:"account"`
	From     string                `yaml:"from"`
	To       string                `yaml:"to"`
	Target   string                `yaml:"target"`
	Amount   string                `yaml:"amount"`
	Slippage *types.SlippageConfig `yaml:"slippage"`
	// Expect имя ожидаемой ошибки (см. ErrorNames), шаг с ней считается успешным
	Expect string `yaml:"expect_error"`
	// Parallel группа шагов, исполняемых одновременно
	Parallel []Step `yaml:"parallel"`
}

// IsGroup true для параллельной группы.
func (s Step) IsGroup() bool {
	return len(s.Parallel) > 0
}

// Scenario список шагов и политика по умолчанию.
type Scenario struct {
	Name        string               `yaml:"name"`
	Slippage    types.SlippageConfig `yaml:"slippage"`
	StopOnError bool                 `yaml:"stop_on_error"`
	Steps       []Step               `yaml:"steps"`
}

// Result исход одного шага.
type Result struct {
	Index    int
	Name     string
	Action   Action
	Account  string
	Attempts int
	TxID     string
	Duration time.Duration
	// Quote заполняется для quote/buy/sell/pay
	Quote *QuoteInfo
	Err   error
	// Expected ошибка совпала с expect_error
	Expected bool
}

// OK шаг завершился как ожидалось.
func (r Result) OK() bool {
	return r.Err == nil || r.Expected
}

// QuoteInfo котировка, по которой исполнялся шаг.
type QuoteInfo struct {
	Amount    string
	PayAmount string
	Price     string
	Refund    string
}

// ErrorNames имена для expect_error.
var ErrorNames = map[string]error{
	"slippage_exceeded":      sale.ErrSlippageExceeded,
	"insufficient_balance":   sale.ErrInsufficientBalance,
	"insufficient_liquidity": sale.ErrInsufficientLiquidity,
	"insufficient_supply":    sale.ErrInsufficientSupply,
	"unsupported_flow":       sale.ErrUnsupportedFlow,
	"payment_too_small":      sale.ErrPaymentTooSmall,
	"reentrant_call":         sale.ErrReentrantCall,
	"zero_amount":            sale.ErrZeroAmount,
	"allowance_exceeded":     token.ErrAllowanceExceeded,
	"banned_address":         token.ErrBannedAddress,
	"pay_balance":            token.ErrInsufficientBalance,
	"unauthorized":           token.ErrUnauthorized,
	"unsupported_operation":  token.ErrUnsupportedOperation,
	"unknown_contract":       chain.ErrUnknownContract,
}

func (s Step) validate() error {
	if s.IsGroup() {
		if s.Action != "" {
			return fmt.Errorf("%w: %q has both action and parallel", ErrInvalidStep, s.Name)
		}
		for _, sub := range s.Parallel {
			if sub.IsGroup() {
				return fmt.Errorf("%w: nested parallel groups in %q", ErrInvalidStep, s.Name)
			}
			if err := sub.validate(); err != nil {
				return err
			}
		}
		return nil
	}

	if s.Expect != "" {
		if _, ok := ErrorNames[s.Expect]; !ok {
			return fmt.Errorf("%w: %q: unknown expect_error %q", ErrInvalidStep, s.Name, s.Expect)
		}
	}

	needAccount := true
	needAmount := true
	switch s.Action {
	case ActionApprove, ActionBuy, ActionSell, ActionPay:
	case ActionQuote:
		needAccount = false
	case ActionTransfer, ActionMint:
		if s.To == "" {
			return fmt.Errorf("%w: %q: %s requires to", ErrInvalidStep, s.Name, s.Action)
		}
	case ActionGodTransfer:
		if s.From == "" || s.To == "" {
			return fmt.Errorf("%w: %q: god_transfer requires from and to", ErrInvalidStep, s.Name)
		}
	case ActionBan, ActionUnban:
		needAmount = false
		if s.Target == "" {
			return fmt.Errorf("%w: %q: %s requires target", ErrInvalidStep, s.Name, s.Action)
		}
	default:
		return fmt.Errorf("%w: %q: unsupported action %q", ErrInvalidStep, s.Name, s.Action)
	}
	if needAccount && s.Account == "" {
		return fmt.Errorf("%w: %q: account is required", ErrInvalidStep, s.Name)
	}
	if needAmount && s.Amount == "" {
		return fmt.Errorf("%w: %q: amount is required", ErrInvalidStep, s.Name)
	}
	return nil
}

// Accounts имена всех аккаунтов сценария, кроме owner и sale.
func (sc *Scenario) Accounts() []string {
	seen := map[string]bool{AccountOwner: true, AccountSale: true, "": true}
	var out []string
	var walk func(steps []Step)
	walk = func(steps []Step) {
		for _, s := range steps {
			for _, name := range []string{s.Account, s.From, s.To, s.Target} {
				if !seen[name] {
					seen[name] = true
					out = append(out, name)
				}
			}
			walk(s.Parallel)
		}
	}
	walk(sc.Steps)
	return out
}
