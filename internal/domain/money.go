package domain

import "math"

// Round2 rounds a GHS amount to two decimal places using round-half-up on
// the cent boundary, matching how the storefront displays prices.
func Round2(amount float64) float64 {
	if amount < 0 {
		return -Round2(-amount)
	}
	return math.Floor(amount*100+0.5) / 100
}

// ToMinorUnits converts a GHS amount to pesewas for the payment processor.
// Every gateway call must pass amounts through this conversion exactly once.
func ToMinorUnits(amount float64) int64 {
	return int64(math.Floor(amount*100 + 0.5))
}

// FromMinorUnits converts pesewas back to a GHS amount.
func FromMinorUnits(minor int64) float64 {
	return float64(minor) / 100
}
