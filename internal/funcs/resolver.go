package funcs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/value"
)

// expressionPattern matches a full #{name(args)} expression. Mixed
// content is split into individual expressions by scanExpressions
// before this pattern applies.
var expressionPattern = regexp.MustCompile(`^#\{\s*([a-zA-Z_][a-zA-Z0-9_]*)\s*\((.*)\)\s*\}$`)

// Resolver evaluates function expressions embedded in mapping values.
type Resolver struct {
	registry *Registry
}

func NewResolver() *Resolver {
	return &Resolver{registry: NewRegistry()}
}

func (r *Resolver) Registry() *Registry {
	return r.registry
}

// IsExpression reports whether the value is a single function expression.
func IsExpression(expr string) bool {
	return expressionPattern.MatchString(strings.TrimSpace(expr))
}

// Resolve evaluates expr against the payload. A plain value is treated
// as a field reference and resolved directly.
func (r *Resolver) Resolve(expr string, payload *value.Map) (string, error) {
	trimmed := strings.TrimSpace(expr)
	m := expressionPattern.FindStringSubmatch(trimmed)
	if m == nil {
		return fieldReference(trimmed, payload), nil
	}
	name, rawArgs := m[1], m[2]
	fn, ok := r.registry.Get(name)
	if !ok {
		return "", fmt.Errorf("unknown function: %s", name)
	}
	args, err := r.parseArguments(rawArgs, payload)
	if err != nil {
		return "", err
	}
	return fn.Apply(args, payload), nil
}

// ResolveAll replaces every expression embedded in template, leaving
// surrounding literal text intact.
func (r *Resolver) ResolveAll(template string, payload *value.Map) (string, error) {
	spans := scanExpressions(template)
	if len(spans) == 0 {
		return template, nil
	}
	var b strings.Builder
	last := 0
	for _, span := range spans {
		b.WriteString(template[last:span[0]])
		resolved, err := r.Resolve(template[span[0]:span[1]], payload)
		if err != nil {
			return "", err
		}
		b.WriteString(resolved)
		last = span[1]
	}
	b.WriteString(template[last:])
	return b.String(), nil
}

// scanExpressions finds the byte spans of #{...} expressions, balancing
// nested braces and skipping quoted sections.
func scanExpressions(s string) [][2]int {
	var spans [][2]int
	for i := 0; i+1 < len(s); {
		if s[i] != '#' || s[i+1] != '{' {
			i++
			continue
		}
		depth := 1
		var quote byte
		j := i + 2
		for ; j < len(s) && depth > 0; j++ {
			c := s[j]
			switch {
			case quote != 0:
				if c == quote {
					quote = 0
				}
			case c == '\'' || c == '"':
				quote = c
			case c == '{':
				depth++
			case c == '}':
				depth--
			}
		}
		if depth != 0 {
			break
		}
		spans = append(spans, [2]int{i, j})
		i = j
	}
	return spans
}

// parseArguments splits the raw argument list on top-level commas and
// resolves each argument to a concrete value.
func (r *Resolver) parseArguments(raw string, payload *value.Map) ([]any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}
	var args []any
	var current strings.Builder
	depth := 0
	var quote byte
	for i := 0; i < len(raw); i++ {
		c := raw[i]
		switch {
		case quote != 0:
			if c == quote {
				quote = 0
			}
			current.WriteByte(c)
		case c == '\'' || c == '"':
			quote = c
			current.WriteByte(c)
		case c == '(' || c == '{':
			depth++
			current.WriteByte(c)
		case c == ')' || c == '}':
			depth--
			current.WriteByte(c)
		case c == ',' && depth == 0:
			arg, err := r.resolveArgument(current.String(), payload)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			current.Reset()
		default:
			current.WriteByte(c)
		}
	}
	arg, err := r.resolveArgument(current.String(), payload)
	if err != nil {
		return nil, err
	}
	return append(args, arg), nil
}

func (r *Resolver) resolveArgument(raw string, payload *value.Map) (any, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", nil
	}
	if strings.HasPrefix(raw, "#{") {
		return r.Resolve(raw, payload)
	}
	if len(raw) >= 2 {
		if (raw[0] == '\'' && raw[len(raw)-1] == '\'') || (raw[0] == '"' && raw[len(raw)-1] == '"') {
			return raw[1 : len(raw)-1], nil
		}
	}
	if strings.Contains(raw, ".") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return f, nil
		}
	} else if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return n, nil
	}
	if raw == "true" || raw == "false" {
		return raw == "true", nil
	}
	return fieldReference(raw, payload), nil
}

// fieldReference resolves a payload path, returning the empty string
// for missing fields.
func fieldReference(path string, payload *value.Map) string {
	v := pathexpr.Resolve(payload, pathexpr.Sanitize(path))
	if v == nil {
		return ""
	}
	return value.Stringify(v)
}
