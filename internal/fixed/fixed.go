// Package fixed provides overflow-checked fixed-point arithmetic for all
// monetary and share quantities in the engine. Values are int64 with an
// implicit scale of Scale (six decimal places); there is no floating point
// anywhere on a pricing or accounting path.
package fixed

import (
	"math"
	"math/bits"

	"github.com/alanyoungcy/predmarket/internal/domain"
)

// Scale is the fixed-point scale factor: 1.0 == 1_000_000 units.
const Scale int64 = 1_000_000

// One is 1.0 in fixed-point units.
const One = Scale

// Add returns a+b, rejecting overflow.
func Add(a, b int64) (int64, error) {
	sum := a + b
	if (b > 0 && sum < a) || (b < 0 && sum > a) {
		return 0, domain.ErrOverflow
	}
	return sum, nil
}

// Sub returns a-b, rejecting overflow.
func Sub(a, b int64) (int64, error) {
	diff := a - b
	if (b < 0 && diff < a) || (b > 0 && diff > a) {
		return 0, domain.ErrOverflow
	}
	return diff, nil
}

// Mul returns a*b/Scale using a 128-bit intermediate, rejecting results that
// do not fit in int64. Both operands must be non-negative; the engine never
// multiplies signed quantities.
func Mul(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, domain.ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(Scale) {
		return 0, domain.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(Scale))
	if q > math.MaxInt64 {
		return 0, domain.ErrOverflow
	}
	return int64(q), nil
}

// Div returns a*Scale/b using a 128-bit intermediate, rejecting division by
// zero and results that do not fit in int64. Both operands must be
// non-negative.
func Div(a, b int64) (int64, error) {
	if a < 0 || b <= 0 {
		return 0, domain.ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(Scale))
	if hi >= uint64(b) {
		return 0, domain.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(b))
	if q > math.MaxInt64 {
		return 0, domain.ErrOverflow
	}
	return int64(q), nil
}

// MulDiv returns a*b/den with a 128-bit intermediate, used for proportional
// splits such as cost-basis reduction. All operands must be non-negative and
// den non-zero.
func MulDiv(a, b, den int64) (int64, error) {
	if a < 0 || b < 0 || den <= 0 {
		return 0, domain.ErrOverflow
	}
	hi, lo := bits.Mul64(uint64(a), uint64(b))
	if hi >= uint64(den) {
		return 0, domain.ErrOverflow
	}
	q, _ := bits.Div64(hi, lo, uint64(den))
	if q > math.MaxInt64 {
		return 0, domain.ErrOverflow
	}
	return int64(q), nil
}

// Clamp bounds v to [lo, hi].
func Clamp(v, lo, hi int64) int64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
