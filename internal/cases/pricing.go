package cases

// Publication fee per complexity tier, in reais.
const (
	priceLow    = 2.00
	priceMedium = 4.00
	priceHigh   = 6.00
)

// PriceForComplexity maps a complexity tier to the case publication fee.
// Unrecognized tiers fall back to the medium price.
func PriceForComplexity(complexity string) float64 {
	switch complexity {
	case "Baixa":
		return priceLow
	case "Média":
		return priceMedium
	case "Alta":
		return priceHigh
	default:
		return priceMedium
	}
}
