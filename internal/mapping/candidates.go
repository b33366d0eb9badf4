package mapping

import (
	"regexp"
	"strings"

	"github.com/jonathan/doc-composer/internal/value"
)

var placeholderPattern = regexp.MustCompile(`\{([^}]+)\}`)

// BuildCandidates returns the ordered candidate list for composition,
// least specific first. When candidateOrder patterns are configured,
// each is expanded against the request; otherwise a default hierarchy
// is used: base application, template, products, market, state, and
// the combined product/template path.
func BuildCandidates(req *Request, candidateOrder []string) []string {
	if len(candidateOrder) > 0 {
		var candidates []string
		for _, pattern := range candidateOrder {
			candidates = append(candidates, expandPattern(pattern, req)...)
		}
		return candidates
	}

	candidates := []string{"mappings/base-application"}
	if req.TemplateName != "" {
		candidates = append(candidates, "mappings/templates/"+req.TemplateName)
	}

	products := payloadList(req.Payload, "products", "productList", "product")
	if len(products) > 0 {
		for _, p := range products {
			candidates = append(candidates, "mappings/products/"+p)
		}
	} else if req.ProductType != "" {
		candidates = append(candidates, "mappings/products/"+req.ProductType)
	}

	if req.MarketCategory != "" {
		candidates = append(candidates, "mappings/markets/"+req.MarketCategory)
	}
	if req.State != "" {
		candidates = append(candidates, "mappings/states/"+req.State)
	}
	if req.ProductType != "" && req.TemplateName != "" {
		candidates = append(candidates, "mappings/templates/"+req.ProductType+"/"+req.TemplateName)
	}
	return candidates
}

// expandPattern expands one candidate pattern into zero or more
// concrete candidates. Placeholder values come from payload lists
// (plural key, <name>List, or the bare key) or, failing that, the
// matching request attribute. Multiple list-valued placeholders
// produce the Cartesian product in pattern order. A recognized
// placeholder with no value skips the pattern entirely; an unknown
// placeholder with no value stays in the output as a literal.
func expandPattern(pattern string, req *Request) []string {
	var out []string
	if pattern == "" {
		return out
	}

	var names []string
	seen := map[string]bool{}
	for _, m := range placeholderPattern.FindAllStringSubmatch(pattern, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}

	if len(names) == 0 {
		if s := strings.TrimSpace(pattern); s != "" && !strings.Contains(strings.ToLower(s), "null") {
			out = append(out, s)
		}
		return out
	}

	valueLists := make([][]string, 0, len(names))
	for _, name := range names {
		vals := payloadList(req.Payload, name+"s", name+"List", name)
		if len(vals) == 0 {
			if single := strings.TrimSpace(req.attribute(name)); single != "" && !strings.EqualFold(single, "null") {
				vals = []string{single}
			} else if !recognizedPlaceholder(name) {
				// Unknown placeholders survive as literals so a later
				// composition stage can still see them.
				vals = []string{"{" + name + "}"}
			}
		}
		if len(vals) == 0 {
			return nil
		}
		valueLists = append(valueLists, vals)
	}

	// Cartesian product, rightmost placeholder varying fastest.
	idx := make([]int, len(names))
	for {
		s := pattern
		for i, name := range names {
			s = strings.ReplaceAll(s, "{"+name+"}", valueLists[i][idx[i]])
		}
		s = strings.TrimSpace(s)
		if s != "" && !strings.Contains(strings.ToLower(s), "null") {
			out = append(out, s)
		}

		pos := len(idx) - 1
		for pos >= 0 {
			idx[pos]++
			if idx[pos] < len(valueLists[pos]) {
				break
			}
			idx[pos] = 0
			pos--
		}
		if pos < 0 {
			break
		}
	}
	return out
}

// payloadList returns the first non-empty string list found in the
// payload under the given keys. Blank and "null" elements are dropped.
func payloadList(payload *value.Map, keys ...string) []string {
	if payload == nil {
		return nil
	}
	for _, key := range keys {
		raw, ok := payload.Get(key)
		if !ok || raw == nil {
			continue
		}
		// First present key wins; a non-list value means no list at all.
		list, ok := value.AsSlice(raw)
		if !ok {
			return nil
		}
		var vals []string
		for _, el := range list {
			if el == nil {
				continue
			}
			s := strings.TrimSpace(value.Stringify(el))
			if s != "" && !strings.EqualFold(s, "null") {
				vals = append(vals, s)
			}
		}
		return vals
	}
	return nil
}
