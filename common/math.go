package common

import (
	"math"

	"github.com/shopspring/decimal"
)

// DecimalToFixed rounds num half away from zero to precision decimal places.
// Non-finite values are returned unchanged.
func DecimalToFixed(num float64, precision int) float64 {
	if math.IsNaN(num) || math.IsInf(num, 0) {
		return num
	}
	out, _ := decimal.NewFromFloat(num).Round(int32(precision)).Float64()
	return out
}

// Clamp01 bounds v to [0, 1]. NaN becomes 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// IsFinite reports whether v is neither NaN nor infinite.
func IsFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
