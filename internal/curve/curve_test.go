package curve

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func wei(s string) *uint256.Int {
	return uint256.MustFromDecimal(s)
}

const (
	one   = "1000000000000000000"
	two   = "2000000000000000000"
	three = "3000000000000000000"
	four  = "4000000000000000000"
	six   = "6000000000000000000"
	tenth = "100000000000000000"
	half  = "500000000000000000"
)

func defaultCurve(t *testing.T) *Curve {
	t.Helper()
	c, err := New(DefaultParams())
	require.NoError(t, err)
	return c
}

func TestPrice(t *testing.T) {
	c := defaultCurve(t)

	tests := []struct {
		supply string
		want   string
	}{
		{"0", "0"},
		{one, "1000000000"},
		{three, "3000000000"},
		{tenth, "100000000"},
		// округление вниз
		{"1", "0"},
		{"999999999", "0"},
		{"1000000000", "1"},
	}
	for _, tt := range tests {
		got, err := c.Price(wei(tt.supply))
		require.NoError(t, err)
		assert.Equal(t, tt.want, got.Dec(), "supply %s", tt.supply)
	}
}

func TestQuoteBuyScenario(t *testing.T) {
	c := defaultCurve(t)

	// первые 2 токена стоят 2, следующие 2 стоят 6
	q, err := c.QuoteBuy(wei("0"), wei(two))
	require.NoError(t, err)
	assert.Equal(t, two, q.PayAmount.Dec())
	assert.Equal(t, "2000000000", q.Price.Dec())

	q, err = c.QuoteBuy(wei(two), wei(two))
	require.NoError(t, err)
	assert.Equal(t, six, q.PayAmount.Dec())
	assert.Equal(t, "4000000000", q.Price.Dec())
}

func TestQuoteBuyFraction(t *testing.T) {
	c := defaultCurve(t)

	q, err := c.QuoteBuy(wei("0"), wei(tenth))
	require.NoError(t, err)
	assert.Equal(t, "5000000000000000", q.PayAmount.Dec())
	assert.Equal(t, "100000000", q.Price.Dec())
}

func TestQuoteSymmetry(t *testing.T) {
	c := defaultCurve(t)

	supplies := []string{"0", "1", tenth, one, "1234567890123456789", "77000000000000000000"}
	amounts := []string{"1", "3", tenth, one, two, "999999999999999999"}

	for _, s := range supplies {
		for _, a := range amounts {
			buy, err := c.QuoteBuy(wei(s), wei(a))
			require.NoError(t, err)

			after := new(uint256.Int).Add(wei(s), wei(a))
			sell, err := c.QuoteSell(after, wei(a))
			require.NoError(t, err)

			assert.Equal(t, buy.PayAmount.Dec(), sell.PayAmount.Dec(), "supply=%s amount=%s", s, a)

			priceBefore, err := c.Price(wei(s))
			require.NoError(t, err)
			assert.Equal(t, priceBefore.Dec(), sell.Price.Dec(), "price must round-trip")
		}
	}
}

func TestQuoteIdempotent(t *testing.T) {
	c := defaultCurve(t)
	supply := wei("5500000000000000000")

	q1, err := c.QuoteBuy(supply, wei(one))
	require.NoError(t, err)
	q2, err := c.QuoteBuy(supply, wei(one))
	require.NoError(t, err)

	assert.Equal(t, q1.Price.Dec(), q2.Price.Dec())
	assert.Equal(t, q1.PayAmount.Dec(), q2.PayAmount.Dec())
	assert.Equal(t, "5500000000000000000", supply.Dec(), "quote must not mutate supply")
}

func TestQuoteMonotonic(t *testing.T) {
	c := defaultCurve(t)
	supply := wei(three)

	prevPrice := new(uint256.Int)
	prevPay := new(uint256.Int)
	for i := uint64(1); i <= 50; i++ {
		amount := new(uint256.Int).Mul(uint256.NewInt(i), wei(tenth))
		q, err := c.QuoteBuy(supply, amount)
		require.NoError(t, err)

		assert.False(t, q.Price.Lt(prevPrice), "price decreased at step %d", i)
		assert.True(t, q.PayAmount.Gt(prevPay), "pay amount not increasing at step %d", i)
		prevPrice, prevPay = q.Price, q.PayAmount
	}
}

func TestQuoteErrors(t *testing.T) {
	c := defaultCurve(t)

	_, err := c.QuoteBuy(wei("0"), wei("0"))
	assert.ErrorIs(t, err, ErrZeroAmount)

	_, err = c.QuoteSell(wei(one), wei(two))
	assert.ErrorIs(t, err, ErrInsufficientSupply)

	_, err = c.QuoteSell(wei(one), wei("0"))
	assert.ErrorIs(t, err, ErrZeroAmount)

	max := new(uint256.Int).SetAllOne()
	_, err = c.QuoteBuy(max, wei("1"))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestOverflowFailsClosed(t *testing.T) {
	steep := MustNew(Params{
		Unit:           uint256.NewInt(1),
		PayUnit:        uint256.NewInt(1),
		PricePrecision: uint256.NewInt(1),
		Slope:          new(uint256.Int).Rsh(new(uint256.Int).SetAllOne(), 1),
	})

	_, err := steep.Price(uint256.NewInt(3))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)

	_, err = steep.Reserve(uint256.NewInt(1 << 40))
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestNewRejectsInvalidParams(t *testing.T) {
	p := DefaultParams()
	p.Slope = new(uint256.Int)
	_, err := New(p)
	assert.ErrorIs(t, err, ErrInvalidParams)

	p = DefaultParams()
	p.Unit = nil
	_, err = New(p)
	assert.ErrorIs(t, err, ErrInvalidParams)

	p = DefaultParams()
	p.Unit = new(uint256.Int).Lsh(uint256.NewInt(1), 200)
	_, err = New(p)
	assert.ErrorIs(t, err, ErrArithmeticOverflow)
}

func TestReserveTelescopes(t *testing.T) {
	c := defaultCurve(t)

	// сумма оплат последовательных покупок равна R(итогового supply)
	supply := new(uint256.Int)
	paid := new(uint256.Int)
	for _, a := range []string{"1", tenth, "333333333333333333", one, "7", two} {
		q, err := c.QuoteBuy(supply, wei(a))
		require.NoError(t, err)
		paid.Add(paid, q.PayAmount)
		supply.Add(supply, wei(a))
	}
	reserve, err := c.Reserve(supply)
	require.NoError(t, err)
	assert.Equal(t, reserve.Dec(), paid.Dec())
}
