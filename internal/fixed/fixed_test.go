package fixed

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

func TestMul_Basic(t *testing.T) {
	// 2.5 * 4.0 = 10.0
	got, err := Mul(2_500_000, 4_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(10_000_000), got)
}

func TestMul_Truncates(t *testing.T) {
	// 1/3 * 3 loses the residue below one unit.
	third, err := Div(One, 3*One)
	require.NoError(t, err)
	got, err := Mul(third, 3*One)
	require.NoError(t, err)
	assert.Equal(t, int64(999_999), got)
}

func TestMul_Overflow(t *testing.T) {
	_, err := Mul(math.MaxInt64, math.MaxInt64)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestMul_RejectsNegative(t *testing.T) {
	_, err := Mul(-1, One)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestDiv_Basic(t *testing.T) {
	// 10.0 / 4.0 = 2.5
	got, err := Div(10_000_000, 4_000_000)
	require.NoError(t, err)
	assert.Equal(t, int64(2_500_000), got)
}

func TestDiv_ByZero(t *testing.T) {
	_, err := Div(One, 0)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestDiv_Overflow(t *testing.T) {
	_, err := Div(math.MaxInt64, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)
}

func TestAdd_Overflow(t *testing.T) {
	_, err := Add(math.MaxInt64, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	got, err := Add(1, 2)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got)
}

func TestSub_Overflow(t *testing.T) {
	_, err := Sub(math.MinInt64, 1)
	assert.ErrorIs(t, err, domain.ErrOverflow)

	got, err := Sub(5, 7)
	require.NoError(t, err)
	assert.Equal(t, int64(-2), got)
}

func TestMulDiv_Proportional(t *testing.T) {
	// 300 * 50 / 100 = 150, independent of Scale.
	got, err := MulDiv(300*One, 50*One, 100*One)
	require.NoError(t, err)
	assert.Equal(t, 150*One, got)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, int64(5), Clamp(3, 5, 10))
	assert.Equal(t, int64(10), Clamp(15, 5, 10))
	assert.Equal(t, int64(7), Clamp(7, 5, 10))
}
