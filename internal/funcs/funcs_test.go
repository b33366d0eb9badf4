package funcs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/doc-composer/internal/value"
)

func testPayload(t *testing.T) *value.Map {
	t.Helper()
	m, err := value.DecodeYAMLMap([]byte(`
applicant:
  firstName: jane
  lastName: doe
  email: jane.doe@example.com
  phone: (555) 123-4567
  ssn: "123-45-6789"
  birthDate: "1985-03-15"
premium:
  monthly: 1234.5
  annual: "14814"
blank: ""
`))
	require.NoError(t, err)
	return m
}

func TestResolveFieldReference(t *testing.T) {
	r := NewResolver()
	got, err := r.Resolve("payload.applicant.firstName", testPayload(t))
	require.NoError(t, err)
	assert.Equal(t, "jane", got)

	got, err = r.Resolve("applicant.missing", testPayload(t))
	require.NoError(t, err)
	assert.Equal(t, "", got)
}

func TestIsExpression(t *testing.T) {
	assert.True(t, IsExpression("#{uppercase(applicant.firstName)}"))
	assert.True(t, IsExpression("  #{trim(' x ')}  "))
	assert.False(t, IsExpression("applicant.firstName"))
	assert.False(t, IsExpression("prefix #{trim(' x ')}"))
}

func TestStringFunctions(t *testing.T) {
	r := NewResolver()
	payload := testPayload(t)
	cases := map[string]string{
		"#{concat(applicant.firstName, ' ', applicant.lastName)}": "jane doe",
		"#{uppercase(applicant.lastName)}":                        "DOE",
		"#{lowercase('HELLO')}":                                   "hello",
		"#{capitalize('jane doe')}":                               "Jane Doe",
		"#{substring('enrollment', 0, 6)}":                        "enroll",
		"#{substring('enrollment', 6)}":                           "ment",
		"#{replace(applicant.email, 'example', 'test')}":          "jane.doe@test.com",
		"#{trim('  padded  ')}":                                   "padded",
	}
	for expr, want := range cases {
		got, err := r.Resolve(expr, payload)
		require.NoError(t, err, expr)
		assert.Equal(t, want, got, expr)
	}
}

func TestMaskingFunctions(t *testing.T) {
	r := NewResolver()
	payload := testPayload(t)

	got, err := r.Resolve("#{mask(applicant.ssn)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "*******6789", got)

	got, err = r.Resolve("#{mask('abc', 4)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "abc", got)

	got, err = r.Resolve("#{maskEmail(applicant.email)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "j***@example.com", got)

	got, err = r.Resolve("#{maskEmail('no-at-sign')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "no-at-sign", got)

	got, err = r.Resolve("#{maskPhone(applicant.phone)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "XXX-XXX-4567", got)
}

func TestDateFunctions(t *testing.T) {
	r := NewResolver()
	payload := testPayload(t)

	got, err := r.Resolve("#{formatDate(applicant.birthDate, 'MMMM d, yyyy')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "March 15, 1985", got)

	got, err = r.Resolve("#{formatDate('03/15/1985', 'yyyy-MM-dd')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "1985-03-15", got)

	got, err = r.Resolve("#{formatDate('not a date', 'yyyy-MM-dd')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "not a date", got)

	got, err = r.Resolve("#{parseDate('03/15/1985')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "1985-03-15", got)
}

func TestNumberFunctions(t *testing.T) {
	r := NewResolver()
	payload := testPayload(t)

	got, err := r.Resolve("#{formatNumber(premium.annual)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "14,814.00", got)

	got, err = r.Resolve("#{formatNumber('1234567.891', 1)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "1,234,567.9", got)

	got, err = r.Resolve("#{formatCurrency(premium.monthly)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "$1,234.50", got)

	got, err = r.Resolve("#{formatCurrency(blank)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "$0.00", got)

	got, err = r.Resolve("#{formatCurrency('$2,500')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "$2,500.00", got)
}

func TestFallbackFunctions(t *testing.T) {
	r := NewResolver()
	payload := testPayload(t)

	got, err := r.Resolve("#{coalesce(blank, applicant.middleName, applicant.firstName)}", payload)
	require.NoError(t, err)
	assert.Equal(t, "jane", got)

	got, err = r.Resolve("#{default(blank, 'N/A')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "N/A", got)

	got, err = r.Resolve("#{ifEmpty(applicant.firstName, 'unknown')}", payload)
	require.NoError(t, err)
	assert.Equal(t, "jane", got)
}

func TestNestedExpressions(t *testing.T) {
	r := NewResolver()
	got, err := r.Resolve("#{uppercase(#{concat(applicant.firstName, ' ', applicant.lastName)})}", testPayload(t))
	require.NoError(t, err)
	assert.Equal(t, "JANE DOE", got)
}

func TestResolveAllMixedContent(t *testing.T) {
	r := NewResolver()
	got, err := r.ResolveAll("Dear #{capitalize(applicant.firstName)}, your total is #{formatCurrency(premium.monthly)}.", testPayload(t))
	require.NoError(t, err)
	assert.Equal(t, "Dear Jane, your total is $1,234.50.", got)
}

func TestUnknownFunction(t *testing.T) {
	r := NewResolver()
	_, err := r.Resolve("#{nope('x')}", testPayload(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown function: nope")
}

func TestRegistryDescriptions(t *testing.T) {
	reg := NewRegistry()
	assert.True(t, reg.Has("CONCAT"))
	names := reg.Names()
	require.NotEmpty(t, names)
	assert.Equal(t, "concat", names[0])
	desc := reg.Descriptions()
	assert.Equal(t, len(names), desc.Len())
}
