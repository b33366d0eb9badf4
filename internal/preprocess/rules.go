// Package preprocess reshapes incoming payloads before field mapping.
// Rules are declarative: array filters pull items out of lists by
// condition, simple extractors copy values to new keys, and calculated
// fields derive counts and flags from what the earlier rules produced.
package preprocess

import (
	"github.com/jonathan/doc-composer/internal/value"
)

// Filter modes.
const (
	ModeFirst   = "first"
	ModeAll     = "all"
	ModeIndexed = "indexed"
)

// Rules is a parsed preprocessing configuration. Rule groups run in a
// fixed order: array filters, then simple extractors, then calculated
// fields.
type Rules struct {
	ArrayFilters     []ArrayFilter
	SimpleExtractors []Extractor
	CalculatedFields []Calculation
}

// ArrayFilter extracts items from a payload list.
type ArrayFilter struct {
	SourcePath string
	TargetKey  string
	// Mode is first, all, or indexed. Indexed mode writes
	// targetKey1..targetKeyN and collects the remainder under
	// targetKeyOverflow when MaxItems is set.
	Mode     string
	MaxItems int

	// Single-condition form.
	FilterField string
	FilterValue any

	// Multi-condition form; Logic is AND (default) or OR.
	Conditions []Condition
	Logic      string
}

// Condition is one comparison inside an array filter.
type Condition struct {
	Field    string
	Operator string
	Value    any
}

// Extractor copies one resolved path to a target key.
type Extractor struct {
	SourcePath string
	TargetKey  string
}

// Calculation derives a field from already-extracted data.
type Calculation struct {
	Type      string
	TargetKey string

	// exists
	CheckKey string
	// count
	SourceKey string
	// subtract: each operand is a key into the extracted data or a
	// numeric literal.
	Minuend    any
	Subtrahend any
}

// RulesFromTree parses a preprocessing rules tree, typically the
// "preprocessing" section of a mapping document or a standalone rules
// file.
func RulesFromTree(tree *value.Map) *Rules {
	rules := &Rules{}
	if tree == nil {
		return rules
	}

	if list, ok := value.AsSlice(tree.GetDefault("arrayFilters", nil)); ok {
		for _, el := range list {
			m, ok := value.AsMap(el)
			if !ok {
				continue
			}
			f := ArrayFilter{
				SourcePath:  stringAt(m, "sourcePath"),
				TargetKey:   stringAt(m, "targetKey"),
				Mode:        stringDefault(m, "mode", ModeFirst),
				FilterField: stringAt(m, "filterField"),
				Logic:       stringDefault(m, "conditionLogic", "AND"),
			}
			f.FilterValue = m.GetDefault("filterValue", nil)
			if n, ok := intAt(m, "maxItems"); ok {
				f.MaxItems = n
			}
			if conds, ok := value.AsSlice(m.GetDefault("conditions", nil)); ok {
				for _, cel := range conds {
					cm, ok := value.AsMap(cel)
					if !ok {
						continue
					}
					f.Conditions = append(f.Conditions, Condition{
						Field:    stringAt(cm, "field"),
						Operator: stringDefault(cm, "operator", "equals"),
						Value:    cm.GetDefault("value", nil),
					})
				}
			}
			rules.ArrayFilters = append(rules.ArrayFilters, f)
		}
	}

	if list, ok := value.AsSlice(tree.GetDefault("simpleExtractors", nil)); ok {
		for _, el := range list {
			m, ok := value.AsMap(el)
			if !ok {
				continue
			}
			rules.SimpleExtractors = append(rules.SimpleExtractors, Extractor{
				SourcePath: stringAt(m, "sourcePath"),
				TargetKey:  stringAt(m, "targetKey"),
			})
		}
	}

	if list, ok := value.AsSlice(tree.GetDefault("calculatedFields", nil)); ok {
		for _, el := range list {
			m, ok := value.AsMap(el)
			if !ok {
				continue
			}
			rules.CalculatedFields = append(rules.CalculatedFields, Calculation{
				Type:       stringAt(m, "type"),
				TargetKey:  stringAt(m, "targetKey"),
				CheckKey:   stringAt(m, "checkKey"),
				SourceKey:  stringAt(m, "sourceKey"),
				Minuend:    m.GetDefault("minuend", nil),
				Subtrahend: m.GetDefault("subtrahend", nil),
			})
		}
	}

	return rules
}

// Empty reports whether the rules contain nothing to apply.
func (r *Rules) Empty() bool {
	return r == nil ||
		(len(r.ArrayFilters) == 0 && len(r.SimpleExtractors) == 0 && len(r.CalculatedFields) == 0)
}

func stringAt(m *value.Map, key string) string {
	return value.Stringify(m.GetDefault(key, nil))
}

func stringDefault(m *value.Map, key, def string) string {
	if s := stringAt(m, key); s != "" {
		return s
	}
	return def
}

func intAt(m *value.Map, key string) (int, bool) {
	switch n := m.GetDefault(key, nil).(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		return int(n), true
	}
	return 0, false
}
