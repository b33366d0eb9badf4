package value

import (
	"fmt"
	"strings"
)

// Unflatten expands dotted keys into nested maps. A key like
// "mapping.pdf.field.Name" becomes mapping → pdf → field → Name.
// Keys without dots pass through; intermediate non-map values are
// replaced by maps, matching property-source expansion semantics.
func Unflatten(flat *Map) *Map {
	root := NewMap()
	flat.Range(func(key string, v any) bool {
		parts := strings.Split(key, ".")
		cur := root
		for i, p := range parts {
			if i == len(parts)-1 {
				cur.Set(p, v)
				break
			}
			next, ok := cur.Get(p)
			nm, isMap := AsMap(next)
			if !ok || !isMap {
				nm = NewMap()
				cur.Set(p, nm)
			}
			cur = nm
		}
		return true
	})
	return root
}

// Flatten joins nested map keys with '.' into a single-level map.
// Sequences and scalars are kept as leaf values.
func Flatten(nested *Map) *Map {
	out := NewMap()
	flattenInto("", nested, out)
	return out
}

func flattenInto(prefix string, m *Map, out *Map) {
	m.Range(func(key string, v any) bool {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nm, ok := AsMap(v); ok {
			flattenInto(full, nm, out)
		} else {
			out.Set(full, v)
		}
		return true
	})
}

// Stringify renders a leaf value the way flat property sources do:
// nil becomes the empty string, everything else its default text form.
func Stringify(v any) string {
	if v == nil {
		return ""
	}
	return fmt.Sprint(v)
}
