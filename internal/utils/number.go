package utils

import "math"

// Round rounds v half away from zero to decimals places.
func Round(v float64, decimals int) float64 {
	p := math.Pow(10, float64(decimals))
	return math.Round(v*p) / p
}
