package sale

import (
	"testing"

	"github.com/rovshanmuradov/tokensale/internal/chain"
	"github.com/rovshanmuradov/tokensale/internal/token"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLedgerCreditDebit(t *testing.T) {
	e := newEnv(t, token.KindERC20)
	var l Ledger

	_, err := e.onSale(e.alice, func(c *chain.Context) error {
		require.NoError(t, l.Credit(c, e.alice, wei("3")))
		require.NoError(t, l.Credit(c, e.bob, wei("1")))
		return l.Debit(c, e.alice, wei("2"))
	})
	require.NoError(t, err)

	assert.Equal(t, wei("2").Dec(), e.supply().Dec())
	assert.Equal(t, wei("1").Dec(), e.balance(e.alice).Dec())
	assert.Equal(t, wei("1").Dec(), e.balance(e.bob).Dec())
}

func TestLedgerDebitOverBalance(t *testing.T) {
	e := newEnv(t, token.KindERC20)
	var l Ledger

	_, err := e.onSale(e.alice, func(c *chain.Context) error {
		require.NoError(t, l.Credit(c, e.bob, wei("5")))
		return l.Debit(c, e.alice, wei("1"))
	})
	assert.ErrorIs(t, err, ErrInsufficientBalance)
	// вся транзакция откатилась, включая зачисление bob
	assert.True(t, e.supply().IsZero())
	assert.True(t, e.balance(e.bob).IsZero())
}
