package assemble

import (
	"strconv"

	"github.com/jonathan/doc-composer/internal/value"
)

func mapAt(m *value.Map, key string) (*value.Map, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	return value.AsMap(v)
}

func listAt(m *value.Map, key string) []any {
	if m == nil {
		return nil
	}
	v, ok := m.Get(key)
	if !ok {
		return nil
	}
	list, _ := value.AsSlice(v)
	return list
}

func stringAt(m *value.Map, key string) string {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return ""
	}
	s, _ := v.(string)
	return s
}

func stringDefault(m *value.Map, key, def string) string {
	if s := stringAt(m, key); s != "" {
		return s
	}
	return def
}

func boolAt(m *value.Map, key string, def bool) bool {
	v, ok := m.Get(key)
	if !ok {
		return def
	}
	b, ok := v.(bool)
	if !ok {
		return def
	}
	return b
}

func intAt(m *value.Map, key string, def int) int {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case int:
		return t
	case int64:
		return int(t)
	case float64:
		return int(t)
	case string:
		if n, err := strconv.Atoi(t); err == nil {
			return n
		}
	}
	return def
}

func floatAt(m *value.Map, key string, def float64) float64 {
	v, ok := m.Get(key)
	if !ok || v == nil {
		return def
	}
	switch t := v.(type) {
	case float64:
		return t
	case int:
		return float64(t)
	case int64:
		return float64(t)
	case string:
		if f, err := strconv.ParseFloat(t, 64); err == nil {
			return f
		}
	}
	return def
}
