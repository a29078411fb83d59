package organize

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/watertap-org/flowsheet-int/internal/models"
)

// MaxFractionDigits is the largest positive rounding accepted.
const MaxFractionDigits = 100

// ErrRoundingPolicy is returned for rounding values that cannot be applied.
var ErrRoundingPolicy = errors.New("invalid rounding policy")

// Round applies a display rounding policy to v.
//
//   - rounding == nil: v is returned unchanged.
//   - not a whole number (after reading numeric strings): ErrRoundingPolicy.
//   - rounding > 0: round to that many fractional digits.
//   - rounding == 0: round to the nearest integer.
//   - rounding < 0: round to the nearest multiple of 10^-rounding.
//
// Ties are broken half-to-even on the exact binary value of the float, so
// 2.5 rounds to 2, 3.5 to 4, and 1.005 (stored as 1.00499...) to 1.
// Numeric strings are parsed first; other non-numeric values are an error
// and v should be left as it was.
func Round(v models.Value, rounding *models.Rounding) (models.Value, error) {
	if rounding == nil {
		return v, nil
	}
	digits, err := rounding.Digits()
	if err != nil {
		return v, fmt.Errorf("%w: %v", ErrRoundingPolicy, err)
	}
	f, err := v.Numeric()
	if err != nil {
		return v, err
	}
	r, err := RoundFloat(f, digits)
	if err != nil {
		return v, err
	}
	return models.Number(r), nil
}

// RoundFloat rounds f according to the rounding digits r.
func RoundFloat(f float64, r int) (float64, error) {
	var out float64
	switch {
	case r > 0:
		if r > MaxFractionDigits {
			return f, fmt.Errorf("%w: %d fractional digits exceeds %d", ErrRoundingPolicy, r, MaxFractionDigits)
		}
		parsed, err := strconv.ParseFloat(strconv.FormatFloat(f, 'f', r, 64), 64)
		if err != nil {
			return f, fmt.Errorf("%w: %v", ErrRoundingPolicy, err)
		}
		out = parsed
	case r == 0:
		out = math.RoundToEven(f)
	default:
		factor := math.Pow10(-r)
		if math.IsInf(factor, 0) {
			return f, fmt.Errorf("%w: 10^%d overflows", ErrRoundingPolicy, -r)
		}
		out = math.RoundToEven(f/factor) * factor
	}

	if math.IsNaN(out) || math.IsInf(out, 0) {
		return f, fmt.Errorf("%w: rounding %v to %d gave %v", ErrRoundingPolicy, f, r, out)
	}
	if out == 0 {
		out = 0 // drop negative zero
	}
	return out, nil
}
