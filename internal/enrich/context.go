package enrich

import (
	"fmt"
	"strings"

	"github.com/jonathan/doc-composer/internal/value"
)

// EnrollmentContext derives product, market, and state context from the
// payload's "enrollment" section, falling back to member-level product
// discovery. Results land under "enrollmentContext" and "productSummary".
type EnrollmentContext struct{}

func (*EnrollmentContext) Name() string { return "enrollmentContext" }

func (*EnrollmentContext) Enrich(payload *value.Map) *value.Map {
	enriched := payload.Clone()

	enrollment, ok := value.AsMap(enriched.GetDefault("enrollment", nil))
	if !ok {
		enriched.Set("enrollmentContext", contextFromMembers(enriched))
		return enriched
	}

	ctx := value.NewMap()

	if list, ok := value.AsSlice(enrollment.GetDefault("products", nil)); ok {
		products := make([]string, 0, len(list))
		for _, el := range list {
			products = append(products, value.Stringify(el))
		}
		ctx.Set("selectedProducts", list)
		ctx.Set("hasMultipleProducts", len(products) > 1)
		ctx.Set("productCount", len(products))
		ctx.Set("hasMedical", contains(products, "medical"))
		ctx.Set("hasDental", contains(products, "dental"))
		ctx.Set("hasVision", contains(products, "vision"))
		ctx.Set("hasLife", contains(products, "life"))
		ctx.Set("productsDisplay", strings.Join(products, ", "))
	}

	if market := value.Stringify(enrollment.GetDefault("marketCategory", nil)); market != "" {
		ctx.Set("marketCategory", market)
		ctx.Set("marketDisplay", marketDisplay(market))
		ctx.Set("isIndividual", strings.EqualFold(market, "individual"))
		ctx.Set("isSmallGroup", normalizedEquals(market, "small_group"))
		ctx.Set("isLargeGroup", normalizedEquals(market, "large_group"))
	}

	if state := value.Stringify(enrollment.GetDefault("state", nil)); state != "" {
		ctx.Set("state", state)
		ctx.Set("stateFullName", stateName(state))
		ctx.Set("requiresCADisclosures", strings.EqualFold(state, "CA"))
		ctx.Set("requiresNYRegulations", strings.EqualFold(state, "NY"))
		ctx.Set("requiresTXNotices", strings.EqualFold(state, "TX"))
	}

	if plans, ok := value.AsMap(enrollment.GetDefault("plansByProduct", nil)); ok {
		ctx.Set("plansByProduct", plans)
		total := 0
		plans.Range(func(_ string, v any) bool {
			if list, ok := value.AsSlice(v); ok {
				total += len(list)
			}
			return true
		})
		ctx.Set("totalPlansSelected", total)
	}

	enriched.Set("productSummary", productPricing(enriched))
	enriched.Set("enrollmentContext", ctx)
	return enriched
}

func contextFromMembers(payload *value.Map) *value.Map {
	ctx := value.NewMap()
	members, ok := value.AsSlice(payload.GetDefault("members", nil))
	if !ok || len(members) == 0 {
		return ctx
	}

	var found []string
	seen := map[string]bool{}
	for _, el := range members {
		m, ok := value.AsMap(el)
		if !ok {
			continue
		}
		for _, product := range []string{"medical", "dental", "vision", "life"} {
			if m.Has(product) && !seen[product] {
				seen[product] = true
				found = append(found, product)
			}
		}
	}
	ctx.Set("selectedProducts", found)
	ctx.Set("productCount", len(found))
	return ctx
}

// productPricing totals member-level premiums per product line.
func productPricing(payload *value.Map) *value.Map {
	summary := value.NewMap()
	members, ok := value.AsSlice(payload.GetDefault("members", nil))
	if !ok || len(members) == 0 {
		return summary
	}

	grandTotal := 0.0
	for _, product := range []string{"medical", "dental", "vision"} {
		total := 0.0
		count := 0
		for _, el := range members {
			m, ok := value.AsMap(el)
			if !ok {
				continue
			}
			pm, ok := value.AsMap(m.GetDefault(product, nil))
			if !ok {
				continue
			}
			if premium, ok := numberAt(pm, "premium"); ok {
				total += premium
				count++
			}
		}
		if count > 0 {
			summary.Set(product+"PremiumTotal", fmt.Sprintf("%.2f", total))
			summary.Set(product+"MemberCount", count)
		}
		grandTotal += total
	}
	summary.Set("grandTotalPremium", fmt.Sprintf("%.2f", grandTotal))
	return summary
}

func contains(list []string, s string) bool {
	for _, el := range list {
		if el == s {
			return true
		}
	}
	return false
}

func normalizedEquals(market, want string) bool {
	return strings.EqualFold(strings.ReplaceAll(market, "-", "_"), want)
}

func marketDisplay(market string) string {
	switch strings.ToLower(strings.ReplaceAll(market, "-", "_")) {
	case "individual":
		return "Individual & Family"
	case "small_group", "small group":
		return "Small Group (2-50)"
	case "large_group", "large group":
		return "Large Group (51+)"
	default:
		return market
	}
}

var stateNames = map[string]string{
	"CA": "California",
	"NY": "New York",
	"TX": "Texas",
	"FL": "Florida",
	"IL": "Illinois",
	"PA": "Pennsylvania",
	"OH": "Ohio",
	"GA": "Georgia",
	"NC": "North Carolina",
	"MI": "Michigan",
}

func stateName(code string) string {
	if name, ok := stateNames[strings.ToUpper(code)]; ok {
		return name
	}
	return code
}
