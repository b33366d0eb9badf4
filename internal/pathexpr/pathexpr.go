// Package pathexpr resolves dotted path expressions against a payload
// tree. Paths address nested maps with dots, list elements with numeric
// indices (bracketed or as bare segments), and support predicate filters
// of the form [field=value]. A "static:" prefix short-circuits resolution
// and yields the remainder of the path as a literal.
package pathexpr

import (
	"strconv"
	"strings"

	"github.com/jonathan/doc-composer/internal/value"
)

// StaticPrefix marks a path whose remainder is a literal value rather
// than a payload reference.
const StaticPrefix = "static:"

// Sanitize strips wrapper prefixes so a path resolves relative to the
// payload root. Mapping authors often write "payload.x.y" or "$.x.y".
func Sanitize(path string) string {
	p := strings.TrimSpace(path)
	if strings.HasPrefix(p, "payload.") {
		return p[len("payload."):]
	}
	if strings.HasPrefix(p, "$.") {
		return p[2:]
	}
	return p
}

// IsStatic reports whether the path carries the literal prefix.
func IsStatic(path string) bool {
	return strings.HasPrefix(path, StaticPrefix)
}

// Resolve walks path through root and returns the addressed value, or
// nil when any step fails to match. Filters narrow a list to matching
// elements; if no numeric index follows, the first match wins.
func Resolve(root *value.Map, path string) any {
	if path == "" {
		return nil
	}
	if IsStatic(path) {
		return path[len(StaticPrefix):]
	}

	var cur any = root
	for _, part := range strings.Split(path, ".") {
		if cur == nil {
			return nil
		}
		if strings.Contains(part, "[") {
			cur = resolveBracketed(cur, part)
			continue
		}
		switch c := cur.(type) {
		case *value.Map:
			cur, _ = c.Get(part)
		case []any:
			idx, err := strconv.Atoi(part)
			if err != nil || idx < 0 || idx >= len(c) {
				return nil
			}
			cur = c[idx]
		default:
			return nil
		}
	}
	return cur
}

// ResolveString resolves path and coerces the result with
// value.Stringify. Missing values become the empty string.
func ResolveString(root *value.Map, path string) string {
	return value.Stringify(Resolve(root, path))
}

// Truthy evaluates a condition path against the payload: a boolean
// resolves to itself, any other non-nil value is true.
func Truthy(root *value.Map, condition string) bool {
	v := Resolve(root, Sanitize(condition))
	if b, ok := v.(bool); ok {
		return b
	}
	return v != nil
}

// resolveBracketed handles a path part like "members[relationship=PRIMARY][0]":
// look up the key before the first bracket, then apply each bracketed
// filter or index in sequence.
func resolveBracketed(cur any, part string) any {
	name := part[:strings.Index(part, "[")]
	if name != "" {
		m, ok := cur.(*value.Map)
		if !ok {
			return nil
		}
		cur, _ = m.Get(name)
	}
	list, ok := cur.([]any)
	if !ok {
		return nil
	}

	indexed := false
	for _, filter := range extractFilters(part) {
		if idx, err := strconv.Atoi(filter); err == nil {
			if idx < 0 || idx >= len(list) {
				return nil
			}
			cur = list[idx]
			indexed = true
			break
		}
		fieldName, fieldValue, ok := strings.Cut(filter, "=")
		if !ok {
			return nil
		}
		list = filterList(list, strings.TrimSpace(fieldName), strings.TrimSpace(fieldValue))
		if len(list) == 0 {
			return nil
		}
	}
	if !indexed {
		if len(list) == 0 {
			return nil
		}
		cur = list[0]
	}
	return cur
}

// extractFilters returns the bracketed expressions of a path part in
// order, e.g. "members[relationship=PRIMARY][0]" yields
// ["relationship=PRIMARY", "0"].
func extractFilters(part string) []string {
	var filters []string
	start := strings.Index(part, "[")
	for start != -1 {
		end := strings.Index(part[start:], "]")
		if end == -1 {
			break
		}
		end += start
		filters = append(filters, part[start+1:end])
		next := strings.Index(part[end:], "[")
		if next == -1 {
			break
		}
		start = end + next
	}
	return filters
}

func filterList(list []any, fieldName, fieldValue string) []any {
	var filtered []any
	for _, item := range list {
		m, ok := item.(*value.Map)
		if !ok {
			continue
		}
		if v, present := m.Get(fieldName); present && v != nil && value.Stringify(v) == fieldValue {
			filtered = append(filtered, item)
		}
	}
	return filtered
}
