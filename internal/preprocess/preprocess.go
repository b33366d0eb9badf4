package preprocess

import (
	"strconv"
	"strings"

	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/value"
)

// OriginalPayloadKey is where Enrich stores the untouched payload so
// templates can still reach the full structure.
const OriginalPayloadKey = "originalPayload"

// Apply runs the rules against payload and returns only the extracted
// fields, in rule order.
func Apply(payload *value.Map, rules *Rules) *value.Map {
	result := value.NewMap()
	if payload == nil || rules == nil {
		return result
	}

	for _, f := range rules.ArrayFilters {
		applyArrayFilter(payload, f, result)
	}
	for _, e := range rules.SimpleExtractors {
		if v := pathexpr.Resolve(payload, e.SourcePath); v != nil {
			result.Set(e.TargetKey, v)
		}
	}
	for _, c := range rules.CalculatedFields {
		applyCalculation(result, c)
	}
	return result
}

// Enrich applies the rules and merges the extracted fields over a
// clone of the payload. The original payload is preserved under
// OriginalPayloadKey.
func Enrich(payload *value.Map, rules *Rules) *value.Map {
	if payload == nil {
		payload = value.NewMap()
	}
	if rules.Empty() {
		return payload.Clone()
	}

	out := payload.Clone()
	Apply(payload, rules).Range(func(key string, v any) bool {
		out.Set(key, v)
		return true
	})
	out.Set(OriginalPayloadKey, payload.Clone())
	return out
}

func applyArrayFilter(payload *value.Map, f ArrayFilter, result *value.Map) {
	source, ok := value.AsSlice(pathexpr.Resolve(payload, f.SourcePath))
	if !ok {
		return
	}

	var filtered []any
	for _, item := range source {
		m, ok := value.AsMap(item)
		if !ok {
			continue
		}
		if matchesFilter(m, f) {
			filtered = append(filtered, item)
		}
	}

	switch f.Mode {
	case ModeAll:
		result.Set(f.TargetKey, filtered)
	case ModeIndexed:
		limit := len(filtered)
		if f.MaxItems > 0 && f.MaxItems < limit {
			limit = f.MaxItems
		}
		for i := 0; i < limit; i++ {
			result.Set(f.TargetKey+strconv.Itoa(i+1), filtered[i])
		}
		if f.MaxItems > 0 && len(filtered) > f.MaxItems {
			result.Set(f.TargetKey+"Overflow", filtered[f.MaxItems:])
		}
	default: // first
		if len(filtered) > 0 {
			result.Set(f.TargetKey, filtered[0])
		}
	}
}

func matchesFilter(item *value.Map, f ArrayFilter) bool {
	if len(f.Conditions) == 0 {
		actual, _ := item.Get(f.FilterField)
		return scalarEqual(actual, f.FilterValue)
	}
	if strings.EqualFold(f.Logic, "OR") {
		for _, c := range f.Conditions {
			if matchesCondition(item, c) {
				return true
			}
		}
		return false
	}
	for _, c := range f.Conditions {
		if !matchesCondition(item, c) {
			return false
		}
	}
	return true
}

func matchesCondition(item *value.Map, c Condition) bool {
	actual, _ := item.Get(c.Field)
	if actual == nil {
		return false
	}

	switch strings.ToLower(c.Operator) {
	case "equals":
		return scalarEqual(actual, c.Value)
	case "notequals":
		return !scalarEqual(actual, c.Value)
	case "contains":
		return strings.Contains(value.Stringify(actual), value.Stringify(c.Value))
	case "startswith":
		return strings.HasPrefix(value.Stringify(actual), value.Stringify(c.Value))
	case "endswith":
		return strings.HasSuffix(value.Stringify(actual), value.Stringify(c.Value))
	case "greaterthan":
		cmp, ok := compareNumbers(actual, c.Value)
		return ok && cmp > 0
	case "lessthan":
		cmp, ok := compareNumbers(actual, c.Value)
		return ok && cmp < 0
	case "greaterthanorequal":
		cmp, ok := compareNumbers(actual, c.Value)
		return ok && cmp >= 0
	case "lessthanorequal":
		cmp, ok := compareNumbers(actual, c.Value)
		return ok && cmp <= 0
	case "in":
		return inList(actual, c.Value)
	case "notin":
		return !inList(actual, c.Value)
	default:
		return false
	}
}

// scalarEqual compares two scalars by their string form. Rule values
// come from YAML and payload values from JSON, so numeric types rarely
// line up exactly.
func scalarEqual(a, b any) bool {
	if a == nil || b == nil {
		return a == b
	}
	return value.Stringify(a) == value.Stringify(b)
}

// compareNumbers compares numerically; values that do not parse as
// numbers report no match.
func compareNumbers(actual, expected any) (int, bool) {
	a, err := strconv.ParseFloat(value.Stringify(actual), 64)
	if err != nil {
		return 0, false
	}
	b, err := strconv.ParseFloat(value.Stringify(expected), 64)
	if err != nil {
		return 0, false
	}
	switch {
	case a < b:
		return -1, true
	case a > b:
		return 1, true
	}
	return 0, true
}

func inList(actual, expected any) bool {
	list, ok := value.AsSlice(expected)
	if !ok {
		return false
	}
	for _, el := range list {
		if scalarEqual(actual, el) {
			return true
		}
	}
	return false
}

func applyCalculation(data *value.Map, c Calculation) {
	switch c.Type {
	case "exists":
		v, ok := data.Get(c.CheckKey)
		data.Set(c.TargetKey, ok && v != nil)
	case "count":
		count := 0
		if list, ok := value.AsSlice(data.GetDefault(c.SourceKey, nil)); ok {
			count = len(list)
		}
		data.Set(c.TargetKey, count)
	case "subtract":
		diff := operand(data, c.Minuend) - operand(data, c.Subtrahend)
		if diff < 0 {
			diff = 0
		}
		data.Set(c.TargetKey, diff)
	}
}

// operand resolves a subtract operand: a string names a key in the
// extracted data, anything numeric is a literal.
func operand(data *value.Map, v any) int {
	if key, ok := v.(string); ok {
		v = data.GetDefault(key, 0)
	}
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
