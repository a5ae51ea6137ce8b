package money_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"innkeep/internal/domain/shared/money"
)

func TestNew_ValidatesCurrency(t *testing.T) {
	m, err := money.New(1500, "inr")
	require.NoError(t, err)
	assert.Equal(t, "INR", m.Currency)

	_, err = money.New(1500, "rupees")
	assert.ErrorIs(t, err, money.ErrInvalidCurrency)
}

func TestArithmetic_RequiresMatchingCurrency(t *testing.T) {
	a := money.Must(1000, "INR")
	b := money.Must(250, "INR")

	sum, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(1250), sum.Amount)

	diff, err := b.Sub(a)
	require.NoError(t, err)
	assert.Equal(t, int64(-750), diff.Amount)

	_, err = a.Add(money.Must(100, "USD"))
	assert.ErrorIs(t, err, money.ErrCurrencyMismatch)
}

func TestPercent_RoundsHalfAwayFromZero(t *testing.T) {
	assert.Equal(t, int64(600), money.Must(10000, "INR").Percent(6).Amount)
	// 125 * 6% = 7.5 -> 8
	assert.Equal(t, int64(8), money.Must(125, "INR").Percent(6).Amount)
	assert.Equal(t, int64(0), money.Must(10000, "INR").Percent(0).Amount)
}

func TestClampNonNegative(t *testing.T) {
	assert.Equal(t, int64(0), money.Money{Amount: -500, Currency: "INR"}.ClampNonNegative().Amount)
	assert.Equal(t, int64(500), money.Must(500, "INR").ClampNonNegative().Amount)
}

func TestString(t *testing.T) {
	assert.Equal(t, "123.45 INR", money.Must(12345, "INR").String())
}
