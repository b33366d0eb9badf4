package assemble

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"github.com/jonathan/doc-composer/internal/value"
)

// Generator draws a section directly instead of rendering a template.
type Generator interface {
	Name() string
	Generate(payload *value.Map) ([]byte, error)
}

// GeneratorRegistry holds code-drawn generators by name.
type GeneratorRegistry struct {
	names      []string
	generators map[string]Generator
}

// NewGeneratorRegistry returns a registry seeded with the built-in
// generators.
func NewGeneratorRegistry() *GeneratorRegistry {
	r := &GeneratorRegistry{generators: make(map[string]Generator)}
	r.Register(coverageSummaryGenerator{})
	r.Register(premiumSummaryGenerator{})
	return r
}

func (r *GeneratorRegistry) Register(g Generator) {
	if _, exists := r.generators[g.Name()]; !exists {
		r.names = append(r.names, g.Name())
	}
	r.generators[g.Name()] = g
}

func (r *GeneratorRegistry) Get(name string) (Generator, bool) {
	g, ok := r.generators[name]
	return g, ok
}

func (r *GeneratorRegistry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

const (
	pageMargin = 50.0
	lineHeight = 15.0
)

// coverageSummaryGenerator draws the applicant and coverage roll-up
// prepared by the coverageSummary enricher.
type coverageSummaryGenerator struct{}

func (coverageSummaryGenerator) Name() string { return "coverage-summary" }

func (coverageSummaryGenerator) Generate(payload *value.Map) ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 18)
	doc.SetXY(pageMargin, pageMargin)
	doc.Cell(0, 20, "Coverage Summary")
	y := pageMargin + 40.0

	summary, ok := mapAt(payload, "coverageSummary")
	if ok {
		doc.SetFont("Helvetica", "", 11)
		for _, row := range []struct{ label, key string }{
			{"Application Number: ", "applicationNumber"},
			{"Effective Date: ", "formattedEffectiveDate"},
		} {
			if s := stringAt(summary, row.key); s != "" {
				y = drawLine(doc, row.label+s, pageMargin, y)
			}
		}
		if v, found := summary.Get("totalPremium"); found && v != nil {
			y = drawLine(doc, "Total Monthly Premium: $"+value.Stringify(v), pageMargin, y)
		}
		y += lineHeight

		applicants := listAt(summary, "enrichedApplicants")
		if len(applicants) > 0 {
			doc.SetFont("Helvetica", "B", 12)
			count, _ := summary.Get("applicantCount")
			y = drawLine(doc, fmt.Sprintf("Covered Individuals (%v):", value.Stringify(count)), pageMargin, y)
			doc.SetFont("Helvetica", "", 10)
			for _, el := range applicants {
				applicant, ok := value.AsMap(el)
				if !ok {
					continue
				}
				name := stringAt(applicant, "displayName")
				if name == "" {
					continue
				}
				line := name + " - " + stringAt(applicant, "displayRelationship")
				if age, found := applicant.Get("calculatedAge"); found && age != nil {
					line += fmt.Sprintf(" (Age %v)", age)
				}
				y = drawLine(doc, line, pageMargin+20, y)
				for _, pe := range listAt(applicant, "products") {
					if product, ok := value.AsMap(pe); ok {
						plan := stringAt(product, "planName")
						if plan == "" {
							continue
						}
						y = drawLine(doc, fmt.Sprintf("Coverage: %s ($%s/mo)", plan, stringAt(product, "premium")), pageMargin+40, y)
					}
				}
			}
		}
	} else {
		doc.SetFont("Helvetica", "", 11)
		drawLine(doc, "No coverage information available.", pageMargin, y)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errf(KindRenderFailure, err, "coverage summary drawing failed: %v", err)
	}
	return buf.Bytes(), nil
}

// premiumSummaryGenerator draws the totals box prepared by the
// premiumCalculation enricher.
type premiumSummaryGenerator struct{}

func (premiumSummaryGenerator) Name() string { return "premium-summary" }

func (premiumSummaryGenerator) Generate(payload *value.Map) ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 18)
	doc.SetXY(pageMargin, pageMargin)
	doc.Cell(0, 20, "Premium Summary")
	y := pageMargin + 40.0

	doc.SetFont("Helvetica", "", 11)
	if calc, ok := mapAt(payload, "premiumCalculations"); ok {
		for _, row := range []struct{ label, key string }{
			{"Monthly Total: $", "monthlyTotal"},
			{"Annual Total: $", "annualTotal"},
			{"Discount: $", "discount"},
			{"Final Monthly Premium: $", "finalMonthly"},
			{"Final Annual Premium: $", "finalAnnual"},
		} {
			if v, found := calc.Get(row.key); found && v != nil {
				y = drawLine(doc, row.label+value.Stringify(v), pageMargin, y)
			}
		}
		if v, found := calc.Get("savingsPercent"); found && v != nil {
			drawLine(doc, fmt.Sprintf("Savings: %v%%", v), pageMargin, y)
		}
	} else {
		drawLine(doc, "No premium information available.", pageMargin, y)
	}

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errf(KindRenderFailure, err, "premium summary drawing failed: %v", err)
	}
	return buf.Bytes(), nil
}

func drawLine(doc *fpdf.Fpdf, text string, x, y float64) float64 {
	doc.SetXY(x, y)
	doc.Cell(0, lineHeight, text)
	return y + lineHeight
}
