package enrich

import (
	"strconv"
	"time"

	"github.com/jonathan/doc-composer/internal/value"
)

const (
	isoDateLayout   = "2006-01-02"
	longDateLayout  = "January 2, 2006"
	shortDateLayout = "01/02/2006"
)

// DateFormatting adds display-formatted dates and calculated ages.
// Formatted variants of submittedDate and effectiveDate land under
// "formattedDates"; applicants under primary, spouse, dependentN, and
// allDependents get calculatedAge and ageCategory.
type DateFormatting struct{}

func (*DateFormatting) Name() string { return "dateFormatting" }

func (*DateFormatting) Enrich(payload *value.Map) *value.Map {
	enriched := payload.Clone()

	formatted := value.NewMap()
	for _, field := range []string{"submittedDate", "effectiveDate"} {
		if raw, ok := enriched.Get(field); ok {
			date := value.Stringify(raw)
			formatted.Set(field+"Long", reformatDate(date, longDateLayout))
			formatted.Set(field+"Short", reformatDate(date, shortDateLayout))
		}
	}
	enriched.Set("formattedDates", formatted)

	today := timeNow()
	for _, key := range applicantKeys() {
		if applicant, ok := value.AsMap(enriched.GetDefault(key, nil)); ok {
			addAge(applicant, today)
		}
	}
	if deps, ok := value.AsSlice(enriched.GetDefault("allDependents", nil)); ok {
		for _, el := range deps {
			if applicant, ok := value.AsMap(el); ok {
				addAge(applicant, today)
			}
		}
	}
	return enriched
}

func applicantKeys() []string {
	keys := []string{"primary", "spouse"}
	for i := 1; i <= 10; i++ {
		keys = append(keys, "dependent"+strconv.Itoa(i))
	}
	return keys
}

// reformatDate re-renders an ISO date in the given layout, returning
// the input untouched when it does not parse.
func reformatDate(isoDate, layout string) string {
	d, err := time.Parse(isoDateLayout, isoDate)
	if err != nil {
		return isoDate
	}
	return d.Format(layout)
}

func addAge(applicant *value.Map, today time.Time) {
	raw, ok := applicant.Get("dateOfBirth")
	if !ok {
		return
	}
	dob, err := time.Parse(isoDateLayout, value.Stringify(raw))
	if err != nil {
		return
	}
	age := yearsBetween(dob, today)
	applicant.Set("calculatedAge", age)
	applicant.Set("ageCategory", ageCategory(age))
}

func yearsBetween(from, to time.Time) int {
	years := to.Year() - from.Year()
	// Not yet reached the birthday this year.
	if to.Month() < from.Month() || (to.Month() == from.Month() && to.Day() < from.Day()) {
		years--
	}
	if years < 0 {
		return 0
	}
	return years
}

func ageCategory(age int) string {
	switch {
	case age < 18:
		return "MINOR"
	case age < 26:
		return "YOUNG_ADULT"
	case age < 65:
		return "ADULT"
	default:
		return "SENIOR"
	}
}
