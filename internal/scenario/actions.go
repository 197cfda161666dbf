package scenario

import (
	"context"
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/curve"
	"github.com/rovshanmuradov/tokensale/internal/sale"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/rovshanmuradov/tokensale/internal/types"
	"github.com/rovshanmuradov/tokensale/internal/units"
)

type transferAndCaller interface {
	TransferAndCall(c *chain.Context, to types.Address, amount *uint256.Int, data []byte) error
}

type sender interface {
	Send(c *chain.Context, to types.Address, amount *uint256.Int, userData []byte) error
}

func (r *Runner) execute(ctx context.Context, step Step, slip types.SlippageConfig) (outcome, error) {
	switch step.Action {
	case ActionQuote:
		return r.quote(ctx, step)
	case ActionBuy:
		return r.buy(ctx, step, slip)
	case ActionSell:
		return r.sell(ctx, step, slip)
	case ActionPay:
		return r.pay(ctx, step, slip)
	case ActionApprove, ActionTransfer, ActionMint, ActionGodTransfer, ActionBan, ActionUnban:
		return r.tokenOp(ctx, step)
	default:
		return outcome{}, fmt.Errorf("%w: unsupported action %q", ErrInvalidStep, step.Action)
	}
}

// resolve имя аккаунта, owner, sale или base58 адрес.
func (r *Runner) resolve(name string) (types.Address, error) {
	switch name {
	case AccountOwner:
		return r.env.Owner, nil
	case AccountSale:
		return r.env.Sale.Address(), nil
	}
	w, err := r.env.Wallets.Get(name)
	if err == nil {
		return w.Address(), nil
	}
	if addr, perr := types.ParseAddress(name); perr == nil {
		return addr, nil
	}
	return types.ZeroAddress, err
}

func (r *Runner) saleAmount(s string) (*uint256.Int, error) {
	return units.ToWei(s, r.env.Sale.Decimals())
}

func (r *Runner) payAmount(s string) (*uint256.Int, error) {
	return units.ToWei(s, r.env.PayToken.Decimals())
}

func (r *Runner) view(ctx context.Context, fn func(c *chain.Context) error) error {
	return r.env.Runtime.View(ctx, r.env.Sale.Address(), fn)
}

func (r *Runner) exec(ctx context.Context, from, to types.Address, method string, fn func(c *chain.Context) error) (outcome, error) {
	receipt, err := r.env.Runtime.Execute(ctx, from, to, method, fn)
	if receipt == nil {
		return outcome{}, err
	}
	return outcome{txID: receipt.TxID}, err
}

func (r *Runner) quoteInfo(amount *uint256.Int, q curve.Quote, refund *uint256.Int) *QuoteInfo {
	info := &QuoteInfo{
		Amount:    units.FormatUnits(amount, r.env.Sale.Decimals()),
		PayAmount: units.FormatUnits(q.PayAmount, r.env.PayToken.Decimals()),
		Price:     q.Price.Dec(),
	}
	if refund != nil {
		info.Refund = units.FormatUnits(refund, r.env.PayToken.Decimals())
	}
	return info
}

func (r *Runner) quote(ctx context.Context, step Step) (outcome, error) {
	amount, err := r.saleAmount(step.Amount)
	if err != nil {
		return outcome{}, err
	}
	var q curve.Quote
	err = r.view(ctx, func(c *chain.Context) error {
		var qerr error
		q, qerr = r.env.Sale.QuoteBuyPriceAmount(c, amount)
		return qerr
	})
	if err != nil {
		return outcome{}, err
	}
	return outcome{quote: r.quoteInfo(amount, q, nil)}, nil
}

func (r *Runner) buy(ctx context.Context, step Step, slip types.SlippageConfig) (outcome, error) {
	from, err := r.resolve(step.Account)
	if err != nil {
		return outcome{}, err
	}
	amount, err := r.saleAmount(step.Amount)
	if err != nil {
		return outcome{}, err
	}

	var q curve.Quote
	err = r.view(ctx, func(c *chain.Context) error {
		var qerr error
		q, qerr = r.env.Sale.QuoteBuyPriceAmount(c, amount)
		return qerr
	})
	if err != nil {
		return outcome{}, err
	}

	tol := types.CalculateTolerance(q.Price, slip)
	s := r.env.Sale
	out, err := r.exec(ctx, from, s.Address(), "buy", func(c *chain.Context) error {
		if tol == nil {
			return s.BuyUnbounded(c, amount)
		}
		return s.Buy(c, amount, q.Price, tol)
	})
	out.quote = r.quoteInfo(amount, q, nil)
	return out, err
}

func (r *Runner) sell(ctx context.Context, step Step, slip types.SlippageConfig) (outcome, error) {
	from, err := r.resolve(step.Account)
	if err != nil {
		return outcome{}, err
	}
	amount, err := r.saleAmount(step.Amount)
	if err != nil {
		return outcome{}, err
	}

	var q curve.Quote
	err = r.view(ctx, func(c *chain.Context) error {
		var qerr error
		q, qerr = r.env.Sale.QuoteSellPriceAmount(c, amount)
		return qerr
	})
	if err != nil {
		return outcome{}, err
	}

	tol := types.CalculateTolerance(q.Price, slip)
	s := r.env.Sale
	out, err := r.exec(ctx, from, s.Address(), "sell", func(c *chain.Context) error {
		if tol == nil {
			return s.SellUnbounded(c, amount)
		}
		return s.Sell(c, amount, q.Price, tol)
	})
	out.quote = r.quoteInfo(amount, q, nil)
	return out, err
}

// pay push-покупка: платёж отправляется токену, продажа получает
// уведомление и возвращает остаток.
func (r *Runner) pay(ctx context.Context, step Step, slip types.SlippageConfig) (outcome, error) {
	s := r.env.Sale
	if s.Flow() == sale.FlowPull {
		return outcome{}, fmt.Errorf("%w: pay on a pull sale, use buy", sale.ErrUnsupportedFlow)
	}
	from, err := r.resolve(step.Account)
	if err != nil {
		return outcome{}, err
	}
	payment, err := r.payAmount(step.Amount)
	if err != nil {
		return outcome{}, err
	}

	var (
		fill curve.Fill
		q    curve.Quote
	)
	err = r.view(ctx, func(c *chain.Context) error {
		var qerr error
		if fill, qerr = s.QuotePayment(c, payment); qerr != nil {
			return qerr
		}
		q, qerr = s.QuoteBuyPriceAmount(c, fill.Amount)
		return qerr
	})
	if err != nil {
		return outcome{}, err
	}

	var data []byte
	if tol := types.CalculateTolerance(q.Price, slip); tol != nil {
		data = sale.EncodeBuyBounds(q.Price, tol)
	}

	pay := r.env.PayToken
	out, err := r.exec(ctx, from, pay.Address(), "pay", func(c *chain.Context) error {
		switch tok := pay.(type) {
		case sender:
			return tok.Send(c, s.Address(), payment, data)
		case transferAndCaller:
			return tok.TransferAndCall(c, s.Address(), payment, data)
		default:
			return fmt.Errorf("%w: %s has no push protocol", sale.ErrUnsupportedFlow, pay.Symbol())
		}
	})
	out.quote = r.quoteInfo(fill.Amount, q, fill.Refund)
	return out, err
}

func (r *Runner) tokenOp(ctx context.Context, step Step) (outcome, error) {
	from, err := r.resolve(step.Account)
	if err != nil {
		return outcome{}, err
	}
	var amount *uint256.Int
	if step.Amount != "" {
		if amount, err = r.payAmount(step.Amount); err != nil {
			return outcome{}, err
		}
	}

	pay := r.env.PayToken
	admin, ok := pay.(token.Admin)
	if !ok && step.Action != ActionApprove && step.Action != ActionTransfer {
		return outcome{}, fmt.Errorf("%w: %s has no admin interface", token.ErrUnsupportedOperation, pay.Symbol())
	}

	var fn func(c *chain.Context) error
	switch step.Action {
	case ActionApprove:
		spender := r.env.Sale.Address()
		if step.To != "" {
			if spender, err = r.resolve(step.To); err != nil {
				return outcome{}, err
			}
		}
		fn = func(c *chain.Context) error { return pay.Approve(c, spender, amount) }
	case ActionTransfer:
		to, err := r.resolve(step.To)
		if err != nil {
			return outcome{}, err
		}
		fn = func(c *chain.Context) error { return pay.Transfer(c, to, amount) }
	case ActionMint:
		to, err := r.resolve(step.To)
		if err != nil {
			return outcome{}, err
		}
		fn = func(c *chain.Context) error { return admin.Mint(c, to, amount) }
	case ActionGodTransfer:
		src, err := r.resolve(step.From)
		if err != nil {
			return outcome{}, err
		}
		dst, err := r.resolve(step.To)
		if err != nil {
			return outcome{}, err
		}
		fn = func(c *chain.Context) error { return admin.GodTransfer(c, src, dst, amount) }
	case ActionBan, ActionUnban:
		target, err := r.resolve(step.Target)
		if err != nil {
			return outcome{}, err
		}
		if step.Action == ActionBan {
			fn = func(c *chain.Context) error { return admin.Ban(c, target) }
		} else {
			fn = func(c *chain.Context) error { return admin.Unban(c, target) }
		}
	}

	return r.exec(ctx, from, pay.Address(), string(step.Action), fn)
}
