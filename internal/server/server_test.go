package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/doc-composer/internal/config"
)

// storeFiles maps config-store file paths to YAML bodies.
type storeFiles map[string]string

func newTestServer(t *testing.T, files storeFiles) *Server {
	t.Helper()
	store := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasPrefix(r.URL.Path, "/application/") {
			parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/application/"), "/", 3)
			if len(parts) == 3 {
				if body, ok := files[parts[2]]; ok {
					fmt.Fprint(w, body)
					return
				}
			}
		}
		http.NotFound(w, r)
	}))
	t.Cleanup(store.Close)

	srv, err := New(&config.Config{
		Port:           0,
		ConfigStoreURL: store.URL,
		DefaultLabel:   "main",
	})
	require.NoError(t, err)
	return srv
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func generateBody(payload map[string]any) map[string]any {
	return map[string]any{
		"templateName":  "member-summary",
		"clientService": "enrollment-portal",
		"payload":       payload,
	}
}

const memberSummaryMapping = `
mapping:
  pdf:
    field:
      memberName: payload.applicant.name
      status: static:ACTIVE
  excel:
    cell:
      B1: applicant.name
`

func TestHealthEndpoint(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestGenerate_Validation(t *testing.T) {
	srv := newTestServer(t, nil)

	rec := postJSON(t, srv.Handler(), "/generate", map[string]any{"clientService": "x"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ValidationError", body["error"])
	assert.Contains(t, body["message"], "TemplateName")
}

func TestGenerate_InvalidBody(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodPost, "/generate", strings.NewReader("{not json"))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGenerate_SingleTemplateFallback(t *testing.T) {
	srv := newTestServer(t, storeFiles{
		"mappings/templates/member-summary.yml": memberSummaryMapping,
	})

	rec := postJSON(t, srv.Handler(), "/generate",
		generateBody(map[string]any{"applicant": map[string]any{"name": "Jane Doe"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "%PDF-"))
}

func TestGenerateExcel(t *testing.T) {
	srv := newTestServer(t, storeFiles{
		"mappings/templates/member-summary.yml": memberSummaryMapping,
	})

	rec := postJSON(t, srv.Handler(), "/generate/excel",
		generateBody(map[string]any{"applicant": map[string]any{"name": "Jane Doe"}}))
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Contains(t, rec.Header().Get("Content-Type"), "spreadsheetml")
	assert.NotEmpty(t, rec.Body.Bytes())
}

func TestGenerateExcel_MalformedMappingIsUnprocessable(t *testing.T) {
	srv := newTestServer(t, storeFiles{
		"mappings/templates/member-summary.yml": `
mapping:
  excel:
    cell:
      B1: 42
`,
	})

	rec := postJSON(t, srv.Handler(), "/generate/excel", generateBody(nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "MappingInvalid", body["error"])
}

func TestGenerate_UnknownGeneratorIsUnprocessable(t *testing.T) {
	srv := newTestServer(t, storeFiles{
		"mappings/templates/member-summary.yml": `
pdfMerge:
  sections:
    - name: bogus
      type: pdfbox
      template: does-not-exist
`,
	})

	rec := postJSON(t, srv.Handler(), "/generate", generateBody(nil))
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UnknownGenerator", body["error"])
}

func TestCandidatesDebug(t *testing.T) {
	srv := newTestServer(t, storeFiles{
		"mappings/templates/member-summary.yml": memberSummaryMapping,
	})

	rec := postJSON(t, srv.Handler(), "/generate/debug/candidates", generateBody(nil))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Candidates   []string `json:"candidates"`
		ComposedKeys []string `json:"composedKeys"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Candidates, "mappings/templates/member-summary")
	assert.Contains(t, body.ComposedKeys, "mapping")
}

func TestAdminFunctions(t *testing.T) {
	srv := newTestServer(t, nil)
	req := httptest.NewRequest(http.MethodGet, "/admin/functions", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Functions map[string]string `json:"functions"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Contains(t, body.Functions, "formatCurrency")
	assert.Contains(t, body.Functions, "maskEmail")
}

func TestAdminCacheStatsAndEvict(t *testing.T) {
	srv := newTestServer(t, storeFiles{
		"mappings/templates/member-summary.yml": memberSummaryMapping,
	})

	// Warm a cache entry.
	postJSON(t, srv.Handler(), "/generate/debug/candidates", generateBody(nil))

	req := httptest.NewRequest(http.MethodGet, "/admin/cache/stats", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "configFile")

	req = httptest.NewRequest(http.MethodPost, "/admin/cache/evict", nil)
	rec = httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"evicted"}`, rec.Body.String())
}

func TestNew_RequiresStoreURL(t *testing.T) {
	_, err := New(&config.Config{Port: 8080})
	require.Error(t, err)
}
