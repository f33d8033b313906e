package entity

import "math"

// Round2 rounds a monetary amount to two decimal places.
// All prize scaling and balance deltas pass through here so stored
// values never accumulate sub-paisa residue.
func Round2(amount float64) float64 {
	return math.Round(amount*100) / 100
}
