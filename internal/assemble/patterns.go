package assemble

import (
	"log"
	"strconv"
	"strings"

	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/value"
)

// ExpandPatterns turns index-templated field patterns into an explicit
// field name to path map. The field name substitutes the display index
// (1-based) for {n}; the source path substitutes the array index
// (0-based). A subPath with the static prefix is kept whole instead of
// being appended to the source.
func ExpandPatterns(patterns []FieldPattern) *value.Map {
	expanded := value.NewMap()
	for _, p := range patterns {
		if p.FieldPattern == "" || p.Source == "" || p.Fields == nil {
			log.Printf("[ASSEMBLE] skipping malformed field pattern %q", p.FieldPattern)
			continue
		}
		for i := 0; i <= p.MaxIndex; i++ {
			prefix := strings.ReplaceAll(p.FieldPattern, "{n}", strconv.Itoa(i+1))
			prefix = strings.ReplaceAll(prefix, "*", "")
			source := strings.ReplaceAll(p.Source, "{n}", strconv.Itoa(i))

			p.Fields.Range(func(suffix string, v any) bool {
				subPath := value.Stringify(v)
				path := subPath
				if !pathexpr.IsStatic(subPath) {
					path = source + "." + subPath
				}
				expanded.Set(prefix+suffix, path)
				return true
			})
		}
	}
	return expanded
}

// EffectiveFieldMap layers explicit field mappings over the
// pattern-expanded entries.
func EffectiveFieldMap(section Section) *value.Map {
	fields := ExpandPatterns(section.Patterns)
	if section.FieldMapping != nil {
		section.FieldMapping.Range(func(name string, v any) bool {
			fields.Set(name, value.Stringify(v))
			return true
		})
	}
	return fields
}
