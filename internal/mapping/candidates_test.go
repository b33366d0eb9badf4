package mapping

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/doc-composer/internal/value"
)

func mapWith(t *testing.T, jsonDoc string) *value.Map {
	t.Helper()
	m, err := value.DecodeJSONMap([]byte(jsonDoc))
	require.NoError(t, err)
	return m
}

func TestBuildCandidates_FallbackOrder(t *testing.T) {
	req := &Request{
		TemplateName:   "enrollment",
		ClientService:  "member-portal",
		ProductType:    "MEDICAL",
		MarketCategory: "SMALL_GROUP",
		State:          "CA",
	}

	got := BuildCandidates(req, nil)
	assert.Equal(t, []string{
		"mappings/base-application",
		"mappings/templates/enrollment",
		"mappings/products/MEDICAL",
		"mappings/markets/SMALL_GROUP",
		"mappings/states/CA",
		"mappings/templates/MEDICAL/enrollment",
	}, got)
}

func TestBuildCandidates_FallbackProductList(t *testing.T) {
	req := &Request{
		TemplateName: "enrollment",
		ProductType:  "VISION",
		Payload:      mapWith(t, `{"products":["MEDICAL","DENTAL"]}`),
	}

	got := BuildCandidates(req, nil)
	assert.Equal(t, []string{
		"mappings/base-application",
		"mappings/templates/enrollment",
		"mappings/products/MEDICAL",
		"mappings/products/DENTAL",
		"mappings/templates/VISION/enrollment",
	}, got)
}

func TestExpandPattern_SingleValues(t *testing.T) {
	req := &Request{TemplateName: "invoice", ProductType: "MEDICAL"}

	assert.Equal(t, []string{"mappings/templates/invoice"},
		expandPattern("mappings/templates/{template}", req))
	assert.Equal(t, []string{"mappings/products/MEDICAL/invoice"},
		expandPattern("mappings/products/{product}/{template}", req))
}

func TestExpandPattern_PayloadListWins(t *testing.T) {
	req := &Request{
		ProductType: "VISION",
		Payload:     mapWith(t, `{"products":["MEDICAL","DENTAL"]}`),
	}

	assert.Equal(t, []string{"mappings/products/MEDICAL", "mappings/products/DENTAL"},
		expandPattern("mappings/products/{product}", req))
}

func TestExpandPattern_CartesianProduct(t *testing.T) {
	req := &Request{
		Payload: mapWith(t, `{"products":["A","B"],"markets":["X","Y"]}`),
	}

	assert.Equal(t, []string{
		"m/A/X", "m/A/Y", "m/B/X", "m/B/Y",
	}, expandPattern("m/{product}/{market}", req))
}

func TestExpandPattern_MissingRecognizedPlaceholderSkips(t *testing.T) {
	req := &Request{TemplateName: "invoice"}
	assert.Empty(t, expandPattern("mappings/products/{product}", req))
	assert.Empty(t, expandPattern("mappings/states/{state}", req))
}

func TestExpandPattern_UnknownPlaceholderKeptAsLiteral(t *testing.T) {
	req := &Request{}
	assert.Equal(t, []string{"mappings/{region}/base"},
		expandPattern("mappings/{region}/base", req))
}

func TestExpandPattern_DropsNullAndBlankValues(t *testing.T) {
	req := &Request{
		Payload: mapWith(t, `{"products":["MEDICAL", "", "null", null]}`),
	}
	assert.Equal(t, []string{"mappings/products/MEDICAL"},
		expandPattern("mappings/products/{product}", req))
}

func TestExpandPattern_NoPlaceholders(t *testing.T) {
	req := &Request{}
	assert.Equal(t, []string{"mappings/base-application"},
		expandPattern("mappings/base-application", req))
	assert.Empty(t, expandPattern("   ", req))
}

func TestBuildCandidates_ConfiguredOrder(t *testing.T) {
	req := &Request{
		TemplateName: "summary",
		ProductType:  "DENTAL",
	}
	order := []string{
		"mappings/base-application",
		"mappings/templates/{template}",
		"mappings/products/{product}",
	}

	got := BuildCandidates(req, order)
	assert.Equal(t, []string{
		"mappings/base-application",
		"mappings/templates/summary",
		"mappings/products/DENTAL",
	}, got)
}
