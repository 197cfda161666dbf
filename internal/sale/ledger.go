// internal/sale/ledger.go
package sale

import (
	"fmt"

	"github.com/holiman/uint256"
	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/types"
)

// Ledger supply и балансы продаваемого токена. Меняется только через
// Credit/Debit, сумма балансов всегда равна supply.
type Ledger struct{}

const keySupply = "supply"

func holderKey(a types.Address) string { return chain.Key("bal", a) }

func (Ledger) Supply(c *chain.Context) *uint256.Int {
	return c.GetUint(keySupply)
}

func (Ledger) BalanceOf(c *chain.Context, holder types.Address) *uint256.Int {
	return c.GetUint(holderKey(holder))
}

// Credit выпускает amount на счёт holder.
func (l Ledger) Credit(c *chain.Context, holder types.Address, amount *uint256.Int) error {
	supply, overflow := new(uint256.Int).AddOverflow(l.Supply(c), amount)
	if overflow {
		return fmt.Errorf("%w: supply", ErrArithmeticOverflow)
	}
	c.SetUint(keySupply, supply)
	c.SetUint(holderKey(holder), new(uint256.Int).Add(l.BalanceOf(c, holder), amount))
	return nil
}

// Debit сжигает amount со счёта holder.
func (l Ledger) Debit(c *chain.Context, holder types.Address, amount *uint256.Int) error {
	bal := l.BalanceOf(c, holder)
	if bal.Lt(amount) {
		return fmt.Errorf("%w: balance %s, need %s", ErrInsufficientBalance, bal.Dec(), amount.Dec())
	}
	c.SetUint(holderKey(holder), new(uint256.Int).Sub(bal, amount))
	c.SetUint(keySupply, new(uint256.Int).Sub(l.Supply(c), amount))
	return nil
}
