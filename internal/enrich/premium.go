package enrich

import (
	"math"
	"strconv"

	"github.com/jonathan/doc-composer/internal/value"
)

// PremiumCalculation totals product premiums and applies the standard
// multi-product discounts. Results land under "premiumCalculations".
type PremiumCalculation struct{}

func (*PremiumCalculation) Name() string { return "premiumCalculation" }

func (*PremiumCalculation) Enrich(payload *value.Map) *value.Map {
	enriched := payload.Clone()

	products := extractProducts(enriched)
	if len(products) == 0 {
		return enriched
	}

	monthlyTotal := 0.0
	for _, product := range products {
		if premium, ok := numberAt(product, "monthlyPremium"); ok {
			monthlyTotal += premium
		}
	}
	annualTotal := monthlyTotal * 12

	discount := discountFor(len(products), monthlyTotal)

	calc := value.NewMap()
	calc.Set("monthlyTotal", round2(monthlyTotal))
	calc.Set("annualTotal", round2(annualTotal))
	calc.Set("discount", round2(discount))
	calc.Set("finalMonthly", round2(monthlyTotal-discount))
	calc.Set("finalAnnual", round2(annualTotal-discount*12))
	calc.Set("savingsPercent", savingsPercent(monthlyTotal, discount))
	enriched.Set("premiumCalculations", calc)

	return enriched
}

// extractProducts finds product entries in either supported payload
// shape: a "proposedProducts" list, or flat medical/dental/vision maps.
func extractProducts(payload *value.Map) []*value.Map {
	if list, ok := value.AsSlice(payload.GetDefault("proposedProducts", nil)); ok {
		var products []*value.Map
		for _, el := range list {
			if m, ok := value.AsMap(el); ok {
				products = append(products, m)
			}
		}
		return products
	}

	var products []*value.Map
	for _, key := range []string{"medical", "dental", "vision"} {
		if m, ok := value.AsMap(payload.GetDefault(key, nil)); ok {
			products = append(products, m)
		}
	}
	return products
}

// discountFor: 10% with three or more products, otherwise 5% when the
// monthly total exceeds $500.
func discountFor(productCount int, monthlyTotal float64) float64 {
	if productCount >= 3 {
		return monthlyTotal * 0.10
	}
	if monthlyTotal > 500 {
		return monthlyTotal * 0.05
	}
	return 0
}

func savingsPercent(total, discount float64) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(discount/total*1000) / 10
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// numberAt reads a numeric field, accepting JSON and YAML number types
// and numeric strings.
func numberAt(m *value.Map, key string) (float64, bool) {
	switch n := m.GetDefault(key, nil).(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}
