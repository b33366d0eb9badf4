package assemble

import (
	"fmt"
	"strconv"
	"time"

	"github.com/jonathan/doc-composer/internal/funcs"
	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/value"
)

// ResolveFieldValues resolves an effective field map against a payload
// into form-ready strings. Fields whose expression resolves to nothing
// are omitted.
func ResolveFieldValues(fields *value.Map, payload *value.Map, resolver *funcs.Resolver) (map[string]string, error) {
	out := make(map[string]string, fields.Len())
	var failure error
	fields.Range(func(name string, raw any) bool {
		expr := value.Stringify(raw)
		if funcs.IsExpression(expr) {
			resolved, err := resolver.Resolve(expr, payload)
			if err != nil {
				failure = errf(KindInvalidPlan, err, "field %s: %v", name, err)
				return false
			}
			out[name] = resolved
			return true
		}
		if pathexpr.IsStatic(expr) {
			out[name] = expr[len(pathexpr.StaticPrefix):]
			return true
		}
		v := pathexpr.Resolve(payload, pathexpr.Sanitize(expr))
		if v == nil {
			return true
		}
		out[name] = ConvertFieldValue(v)
		return true
	})
	if failure != nil {
		return nil, failure
	}
	return out, nil
}

// form date layouts recognized for reformatting to MM/dd/yyyy
var formDateLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// ConvertFieldValue renders a payload value as a form field string:
// booleans become Yes/No, ISO dates become MM/dd/yyyy, numbers keep a
// locale-independent decimal form.
func ConvertFieldValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case bool:
		if t {
			return "Yes"
		}
		return "No"
	case string:
		for _, layout := range formDateLayouts {
			if parsed, err := time.Parse(layout, t); err == nil {
				return parsed.Format("01/02/2006")
			}
		}
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int64:
		return strconv.FormatInt(t, 10)
	case int:
		return strconv.Itoa(t)
	default:
		return fmt.Sprint(t)
	}
}
