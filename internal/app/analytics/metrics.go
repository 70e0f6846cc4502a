// Package analytics derives read-side views from raw click and conversion
// events. Everything here is a pure function of its input.
package analytics

import "math"

// Round2 rounds half away from zero to two decimals.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// ConversionRate is conversions/clicks*100, rounded to two decimals; 0 without clicks.
func ConversionRate(conversions, clicks int64) float64 {
	if clicks <= 0 {
		return 0
	}
	return Round2(float64(conversions) / float64(clicks) * 100)
}

// EarningsPerClick is revenue/clicks, rounded to two decimals; 0 without clicks.
func EarningsPerClick(revenue float64, clicks int64) float64 {
	if clicks <= 0 {
		return 0
	}
	return Round2(revenue / float64(clicks))
}

// Share is part/total*100, rounded to two decimals; 0 when total is 0.
func Share(part, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return Round2(float64(part) / float64(total) * 100)
}
