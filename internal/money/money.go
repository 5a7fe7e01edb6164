// Package money provides exact integer arithmetic on paisa, the minor unit
// of the ledger currency. 100 paisa = ₹1. All internal amounts are paisa;
// rupees appear only at the API edge.
package money

// PaisaToRupees converts a paisa amount to rupees for display.
func PaisaToRupees(paisa int64) float64 {
	return float64(paisa) / 100.0
}

// RupeesToPaisa converts a rupee amount to paisa for storage.
func RupeesToPaisa(rupees float64) int64 {
	if rupees >= 0 {
		return int64(rupees*100 + 0.5)
	}
	return -int64(-rupees*100 + 0.5)
}

// RoundUpPayment rounds a required amount up to a clean denomination the
// payer can actually send:
//
//	< ₹100   → next whole rupee
//	₹100–500 → next multiple of ₹5
//	> ₹500   → next multiple of ₹10
//
// Non-positive amounts round to zero.
func RoundUpPayment(paisa int64) int64 {
	if paisa <= 0 {
		return 0
	}

	var step int64
	switch {
	case paisa < 100_00:
		step = 100
	case paisa <= 500_00:
		step = 500
	default:
		step = 1000
	}

	if rem := paisa % step; rem != 0 {
		return paisa + step - rem
	}
	return paisa
}
