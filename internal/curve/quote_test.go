package curve

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAmountForPaymentWholeUnits(t *testing.T) {
	c := defaultCurve(t)

	// 0.5 покупает первый токен, 1.5 второй
	fill, err := c.AmountForPayment(wei("0"), wei(half))
	require.NoError(t, err)
	assert.Equal(t, one, fill.Amount.Dec())
	assert.Equal(t, half, fill.Cost.Dec())
	assert.True(t, fill.Refund.IsZero())

	fill, err = c.AmountForPayment(wei(one), wei("1500000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, one, fill.Amount.Dec())
	assert.Equal(t, "1500000000000000000", fill.Cost.Dec())
	assert.True(t, fill.Refund.IsZero())
}

func TestAmountForPaymentInvertsQuote(t *testing.T) {
	c := defaultCurve(t)

	cases := []struct{ supply, amount string }{
		{"0", tenth},
		{"0", two},
		{two, two},
		{three, one},
		{"0", "1"},
		{"0", "100000000000000005"},
		{"0", "123456789012345678"},
		{tenth, "123456789012345678"},
		{"123456789012345678901", "7"},
		{three, "999999999999999999"},
	}
	for _, tc := range cases {
		q, err := c.QuoteBuy(wei(tc.supply), wei(tc.amount))
		require.NoError(t, err)
		if q.PayAmount.IsZero() {
			continue
		}

		fill, err := c.AmountForPayment(wei(tc.supply), q.PayAmount)
		require.NoError(t, err)
		assert.False(t, fill.Amount.Lt(wei(tc.amount)), "supply=%s amount=%s got=%s", tc.supply, tc.amount, fill.Amount.Dec())
		assert.Equal(t, q.PayAmount.Dec(), fill.Cost.Dec())
		assert.True(t, fill.Refund.IsZero())

		// ещё один токен сверх fill уже не по карману
		next, err := c.QuoteBuy(wei(tc.supply), new(uint256.Int).AddUint64(fill.Amount, 1))
		require.NoError(t, err)
		assert.True(t, next.PayAmount.Gt(q.PayAmount), "supply=%s amount=%s", tc.supply, tc.amount)
	}
}

func TestAmountForPaymentTakesWholePlateau(t *testing.T) {
	c := defaultCurve(t)

	// R(0.1) = 0.005, и R не растёт до 0.1 + 10 wei
	fill, err := c.AmountForPayment(wei("0"), wei("5000000000000000"))
	require.NoError(t, err)
	assert.Equal(t, "100000000000000009", fill.Amount.Dec())
	assert.Equal(t, "5000000000000000", fill.Cost.Dec())
	assert.True(t, fill.Refund.IsZero())
}

func TestAmountForPaymentRefundsRemainder(t *testing.T) {
	// R(x) = floor(x^2/2): 0, 0, 2, 4, 8 ...
	c := MustNew(Params{
		Unit:           uint256.NewInt(1),
		PayUnit:        uint256.NewInt(1),
		PricePrecision: uint256.NewInt(1),
		Slope:          uint256.NewInt(1),
	})

	fill, err := c.AmountForPayment(uint256.NewInt(0), uint256.NewInt(3))
	require.NoError(t, err)
	assert.Equal(t, uint64(2), fill.Amount.Uint64())
	assert.Equal(t, uint64(2), fill.Cost.Uint64())
	assert.Equal(t, uint64(1), fill.Refund.Uint64())

	fill, err = c.AmountForPayment(uint256.NewInt(2), uint256.NewInt(2))
	require.NoError(t, err)
	assert.Equal(t, uint64(1), fill.Amount.Uint64())
	assert.Equal(t, uint64(2), fill.Cost.Uint64())
	assert.True(t, fill.Refund.IsZero())

	_, err = c.AmountForPayment(uint256.NewInt(4), uint256.NewInt(1))
	assert.ErrorIs(t, err, ErrPaymentTooSmall)
}

func TestAmountForPaymentNeverOvercharges(t *testing.T) {
	c := defaultCurve(t)

	for _, p := range []string{"1", "7", "123456789", half, "2718281828459045235", "31415926535897932384"} {
		for _, s := range []string{"0", tenth, three, "123456789012345678901"} {
			fill, err := c.AmountForPayment(wei(s), wei(p))
			if err != nil {
				assert.ErrorIs(t, err, ErrPaymentTooSmall)
				continue
			}
			q, err := c.QuoteBuy(wei(s), fill.Amount)
			require.NoError(t, err)
			assert.Equal(t, q.PayAmount.Dec(), fill.Cost.Dec(), "payment=%s supply=%s", p, s)
			assert.Equal(t, wei(p).Dec(), new(uint256.Int).Add(fill.Cost, fill.Refund).Dec())
		}
	}
}

func TestAmountForPaymentZero(t *testing.T) {
	c := defaultCurve(t)
	_, err := c.AmountForPayment(wei(one), wei("0"))
	assert.ErrorIs(t, err, ErrZeroAmount)
}
