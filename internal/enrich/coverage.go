package enrich

import (
	"fmt"
	"time"

	"github.com/jonathan/doc-composer/internal/value"
)

// CoverageSummary builds the "coverageSummary" section used by the
// coverage summary document: applicants with ages and display names,
// coverage and carrier roll-ups, and effective date context.
type CoverageSummary struct{}

func (*CoverageSummary) Name() string { return "coverageSummary" }

func (*CoverageSummary) Enrich(payload *value.Map) *value.Map {
	enriched := payload.Clone()
	summary := value.NewMap()

	summary.Set("applicationNumber", enriched.GetDefault("applicationNumber", nil))
	summary.Set("effectiveDate", enriched.GetDefault("effectiveDate", nil))
	summary.Set("totalPremium", enriched.GetDefault("totalPremium", nil))

	if applicants, ok := value.AsSlice(enriched.GetDefault("applicants", nil)); ok && len(applicants) > 0 {
		out := make([]any, 0, len(applicants))
		for _, el := range applicants {
			applicant, ok := value.AsMap(el)
			if !ok {
				continue
			}
			out = append(out, summarizeApplicant(applicant))
		}
		summary.Set("enrichedApplicants", out)
		summary.Set("applicantCount", len(out))
	}

	if coverages, ok := value.AsSlice(enriched.GetDefault("coverages", nil)); ok && len(coverages) > 0 {
		summarizeCoverages(coverages, summary)
	}

	effectiveDate := value.Stringify(enriched.GetDefault("effectiveDate", nil))
	if effectiveDate != "" {
		summary.Set("formattedEffectiveDate", reformatDate(effectiveDate, longDateLayout))
	}
	summary.Set("daysUntilEffective", daysUntil(effectiveDate))

	enriched.Set("coverageSummary", summary)
	return enriched
}

func summarizeApplicant(applicant *value.Map) *value.Map {
	out := applicant.Clone()

	if demographic, ok := value.AsMap(applicant.GetDefault("demographic", nil)); ok {
		dob := value.Stringify(demographic.GetDefault("dateOfBirth", nil))
		if dob != "" {
			if parsed, err := time.Parse(isoDateLayout, dob); err == nil {
				out.Set("calculatedAge", yearsBetween(parsed, timeNow()))
			} else {
				out.Set("calculatedAge", 0)
			}
			first := value.Stringify(demographic.GetDefault("firstName", nil))
			last := value.Stringify(demographic.GetDefault("lastName", nil))
			out.Set("displayName", first+" "+last)

			relationship := value.Stringify(applicant.GetDefault("relationship", nil))
			if relationship == "" {
				relationship = "Primary"
			}
			out.Set("displayRelationship", relationship)
		}
	}

	if products, ok := value.AsSlice(applicant.GetDefault("products", nil)); ok && len(products) > 0 {
		total := 0.0
		for _, el := range products {
			product, ok := value.AsMap(el)
			if !ok {
				continue
			}
			if premium, ok := numberAt(product, "premium"); ok {
				total += premium
			}
		}
		out.Set("totalApplicantPremium", fmt.Sprintf("%.2f", total))
	}
	return out
}

func summarizeCoverages(coverages []any, summary *value.Map) {
	enrichedCoverages := make([]any, 0, len(coverages))
	var carrierNames []string
	seenCarriers := map[string]bool{}
	totalBenefits := 0

	for _, el := range coverages {
		coverage, ok := value.AsMap(el)
		if !ok {
			continue
		}
		out := coverage.Clone()

		if carrier := value.Stringify(coverage.GetDefault("carrierName", nil)); carrier != "" && !seenCarriers[carrier] {
			seenCarriers[carrier] = true
			carrierNames = append(carrierNames, carrier)
		}
		if benefits, ok := value.AsSlice(coverage.GetDefault("benefits", nil)); ok {
			totalBenefits += len(benefits)
			out.Set("benefitCount", len(benefits))
		}
		enrichedCoverages = append(enrichedCoverages, out)
	}

	summary.Set("enrichedCoverages", enrichedCoverages)
	summary.Set("totalCarriers", len(carrierNames))
	summary.Set("carrierNames", carrierNames)
	summary.Set("totalBenefits", totalBenefits)
}

func daysUntil(isoDate string) int {
	effective, err := time.Parse(isoDateLayout, isoDate)
	if err != nil {
		return 0
	}
	now := timeNow()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return int(effective.Sub(today).Hours() / 24)
}
