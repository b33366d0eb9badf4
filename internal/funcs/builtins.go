package funcs

import (
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/doc-composer/internal/value"
)

// fn is a built-in function backed by a closure.
type fn struct {
	name        string
	description string
	apply       func(args []any, payload *value.Map) string
}

func (f fn) Name() string        { return f.name }
func (f fn) Description() string { return f.description }
func (f fn) Apply(args []any, payload *value.Map) string {
	return f.apply(args, payload)
}

func builtins() []Function {
	return []Function{
		fn{"concat", "Concatenates all arguments into a single string", applyConcat},
		fn{"uppercase", "Converts text to upper case", applyUppercase},
		fn{"lowercase", "Converts text to lower case", applyLowercase},
		fn{"capitalize", "Capitalizes the first letter of each word", applyCapitalize},
		fn{"substring", "Extracts a substring by start and optional end index", applySubstring},
		fn{"replace", "Replaces all occurrences of a target with a replacement", applyReplace},
		fn{"trim", "Removes leading and trailing whitespace", applyTrim},
		fn{"mask", "Masks all but the trailing characters of a value", applyMask},
		fn{"maskEmail", "Masks the local part of an email address", applyMaskEmail},
		fn{"maskPhone", "Masks all but the last four digits of a phone number", applyMaskPhone},
		fn{"formatDate", "Reformats a date using the given output pattern", applyFormatDate},
		fn{"parseDate", "Parses a date and renders it as yyyy-MM-dd", applyParseDate},
		fn{"formatNumber", "Formats a number with thousands separators", applyFormatNumber},
		fn{"formatCurrency", "Formats a number as a dollar amount", applyFormatCurrency},
		fn{"coalesce", "Returns the first non-blank argument", applyCoalesce},
		fn{"default", "Returns the first argument, or the second when blank", applyDefault},
		fn{"ifEmpty", "Returns the replacement when the value is blank", applyIfEmpty},
	}
}

func argString(args []any, i int) string {
	if i >= len(args) || args[i] == nil {
		return ""
	}
	return value.Stringify(args[i])
}

func argInt(args []any, i int, def int) int {
	if i >= len(args) || args[i] == nil {
		return def
	}
	switch v := args[i].(type) {
	case int64:
		return int(v)
	case float64:
		return int(v)
	case string:
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			return n
		}
	}
	return def
}

func applyConcat(args []any, _ *value.Map) string {
	var b strings.Builder
	for i := range args {
		b.WriteString(argString(args, i))
	}
	return b.String()
}

func applyUppercase(args []any, _ *value.Map) string {
	return strings.ToUpper(argString(args, 0))
}

func applyLowercase(args []any, _ *value.Map) string {
	return strings.ToLower(argString(args, 0))
}

func applyCapitalize(args []any, _ *value.Map) string {
	words := strings.Fields(strings.ToLower(argString(args, 0)))
	for i, w := range words {
		words[i] = strings.ToUpper(w[:1]) + w[1:]
	}
	return strings.Join(words, " ")
}

func applySubstring(args []any, _ *value.Map) string {
	s := argString(args, 0)
	start := argInt(args, 1, 0)
	end := argInt(args, 2, len(s))
	if start < 0 {
		start = 0
	}
	if end > len(s) {
		end = len(s)
	}
	if start >= end {
		return ""
	}
	return s[start:end]
}

func applyReplace(args []any, _ *value.Map) string {
	return strings.ReplaceAll(argString(args, 0), argString(args, 1), argString(args, 2))
}

func applyTrim(args []any, _ *value.Map) string {
	return strings.TrimSpace(argString(args, 0))
}

// applyMask hides all but the trailing visible characters. Values no
// longer than the visible count pass through unchanged.
func applyMask(args []any, _ *value.Map) string {
	s := argString(args, 0)
	visible := argInt(args, 1, 4)
	if s == "" || len(s) <= visible {
		return s
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}

func applyMaskEmail(args []any, _ *value.Map) string {
	s := argString(args, 0)
	at := strings.Index(s, "@")
	if at < 2 {
		return s
	}
	return s[:1] + "***" + s[at:]
}

func applyMaskPhone(args []any, _ *value.Map) string {
	s := argString(args, 0)
	var digits strings.Builder
	for _, c := range s {
		if c >= '0' && c <= '9' {
			digits.WriteRune(c)
		}
	}
	d := digits.String()
	if len(d) < 4 {
		return s
	}
	return "XXX-XXX-" + d[len(d)-4:]
}

func applyFormatDate(args []any, _ *value.Map) string {
	s := argString(args, 0)
	pattern := argString(args, 1)
	if pattern == "" {
		pattern = "MM/dd/yyyy"
	}
	t, ok := parseAnyDate(s)
	if !ok {
		return s
	}
	return t.Format(dateLayout(pattern))
}

func applyParseDate(args []any, _ *value.Map) string {
	s := argString(args, 0)
	t, ok := parseAnyDate(s)
	if !ok {
		return s
	}
	return t.Format("2006-01-02")
}

func applyFormatNumber(args []any, _ *value.Map) string {
	s := argString(args, 0)
	n, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(s), ",", ""), 64)
	if err != nil {
		return s
	}
	return groupThousands(n, argInt(args, 1, 2))
}

func applyFormatCurrency(args []any, _ *value.Map) string {
	s := strings.TrimSpace(argString(args, 0))
	if s == "" {
		return "$0.00"
	}
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(s)
	n, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return s
	}
	return "$" + groupThousands(n, 2)
}

func applyCoalesce(args []any, _ *value.Map) string {
	for i := range args {
		if s := argString(args, i); strings.TrimSpace(s) != "" {
			return s
		}
	}
	return ""
}

func applyDefault(args []any, _ *value.Map) string {
	if s := argString(args, 0); strings.TrimSpace(s) != "" {
		return s
	}
	return argString(args, 1)
}

func applyIfEmpty(args []any, _ *value.Map) string {
	if s := argString(args, 0); strings.TrimSpace(s) != "" {
		return s
	}
	return argString(args, 1)
}

// inputDateLayouts are the accepted input formats, tried in order.
var inputDateLayouts = []string{
	"2006-01-02",
	"01/02/2006",
	"02/01/2006",
	"2006-01-02T15:04:05",
	"Jan 02, 2006",
}

func parseAnyDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range inputDateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// patternTokens translates date pattern tokens to Go layout fragments.
// Longer tokens are listed first so they win during scanning.
var patternTokens = []struct{ from, to string }{
	{"yyyy", "2006"},
	{"yy", "06"},
	{"MMMM", "January"},
	{"MMM", "Jan"},
	{"MM", "01"},
	{"M", "1"},
	{"dd", "02"},
	{"d", "2"},
	{"EEEE", "Monday"},
	{"EEE", "Mon"},
	{"HH", "15"},
	{"hh", "03"},
	{"mm", "04"},
	{"ss", "05"},
	{"a", "PM"},
}

func dateLayout(pattern string) string {
	var b strings.Builder
	for i := 0; i < len(pattern); {
		if pattern[i] == '\'' {
			end := strings.IndexByte(pattern[i+1:], '\'')
			if end < 0 {
				b.WriteString(pattern[i+1:])
				break
			}
			b.WriteString(pattern[i+1 : i+1+end])
			i += end + 2
			continue
		}
		matched := false
		for _, tok := range patternTokens {
			if strings.HasPrefix(pattern[i:], tok.from) {
				b.WriteString(tok.to)
				i += len(tok.from)
				matched = true
				break
			}
		}
		if !matched {
			b.WriteByte(pattern[i])
			i++
		}
	}
	return b.String()
}

// groupThousands renders n with comma separators and the given number
// of decimal places.
func groupThousands(n float64, decimals int) string {
	if decimals < 0 {
		decimals = 0
	}
	s := strconv.FormatFloat(n, 'f', decimals, 64)
	neg := strings.HasPrefix(s, "-")
	if neg {
		s = s[1:]
	}
	intPart, fracPart, hasFrac := strings.Cut(s, ".")
	var b strings.Builder
	if neg {
		b.WriteString("-")
	}
	for i, c := range intPart {
		if i > 0 && (len(intPart)-i)%3 == 0 {
			b.WriteString(",")
		}
		b.WriteRune(c)
	}
	if hasFrac {
		b.WriteString(".")
		b.WriteString(fracPart)
	}
	return b.String()
}
