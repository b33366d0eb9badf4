package assemble

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/jonathan/doc-composer/internal/configstore"
	"github.com/jonathan/doc-composer/internal/mapping"
	"github.com/jonathan/doc-composer/internal/value"
)

func singleDocument(t *testing.T, yamlDoc string) *mapping.Document {
	t.Helper()
	tree, err := value.DecodeYAMLMap([]byte(yamlDoc))
	require.NoError(t, err)
	return mapping.DocumentFromTree(tree)
}

func TestRenderSingle_HTMLReplacements(t *testing.T) {
	renderer := &stubRenderer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body><p>{{fullName}} pays ${{premium}}</p></body></html>")
	}))
	defer srv.Close()

	a := NewAssembler(Options{PDF: &stubPDF{}, Renderer: renderer})
	doc := singleDocument(t, fmt.Sprintf(`
template:
  url: %s/enrollment.html
  type: html
mapping:
  pdf:
    field:
      fullName: payload.applicant.name
      premium: premium.monthly
`, srv.URL))
	payload := payloadFixture(t, `{"applicant": {"name": "Jane Doe"}, "premium": {"monthly": 42.5}}`)

	out, err := a.RenderSingle(context.Background(), doc, payload)
	require.NoError(t, err)
	assert.Equal(t, "rendered", string(out))
	assert.Contains(t, renderer.lastHTML, "Jane Doe pays $42.5")
}

func TestRenderSingle_TemplateEngine(t *testing.T) {
	renderer := &stubRenderer{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html><body>{{.greeting}} {{.payload.applicant.name}}</body></html>")
	}))
	defer srv.Close()

	a := NewAssembler(Options{PDF: &stubPDF{}, Renderer: renderer})
	doc := singleDocument(t, fmt.Sprintf(`
template:
  url: %s/letter.ftl
  type: ftl
mapping:
  pdf:
    field:
      greeting: static:Dear
`, srv.URL))
	payload := payloadFixture(t, `{"applicant": {"name": "Jane Doe"}}`)

	_, err := a.RenderSingle(context.Background(), doc, payload)
	require.NoError(t, err)
	assert.Contains(t, renderer.lastHTML, "Dear Jane Doe")
}

func TestRenderSingle_KeyValueFallback(t *testing.T) {
	a := NewAssembler(Options{PDF: &stubPDF{}, Renderer: &stubRenderer{}})
	doc := singleDocument(t, `
mapping:
  pdf:
    field:
      name: applicant.name
      state: static:WA
`)
	payload := payloadFixture(t, `{"applicant": {"name": "Jane Doe"}}`)

	out, err := a.RenderSingle(context.Background(), doc, payload)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(out), "%PDF-"))
}

func TestRenderSingle_MissingTemplate(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	a := NewAssembler(Options{PDF: &stubPDF{}, Renderer: &stubRenderer{}})
	doc := singleDocument(t, fmt.Sprintf(`
template:
  url: %s/gone.ftl
  type: ftl
mapping:
  pdf:
    field:
      name: applicant.name
`, srv.URL))

	_, err := a.RenderSingle(context.Background(), doc, value.NewMap())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindTemplateNotFound, pe.Kind)
}

func TestGenerateExcel(t *testing.T) {
	a := NewAssembler(Options{PDF: &stubPDF{}, Renderer: &stubRenderer{}})
	doc := singleDocument(t, `
mapping:
  excel:
    cell:
      B1: applicant.name
      B2: premium.monthly
      B3: static:ACTIVE
      B4: applicant.nope
`)
	payload := payloadFixture(t, `{"applicant": {"name": "Jane Doe"}, "premium": {"monthly": 42.5}}`)

	out, err := a.GenerateExcel(context.Background(), doc, payload)
	require.NoError(t, err)

	f, err := excelize.OpenReader(bytes.NewReader(out))
	require.NoError(t, err)
	defer f.Close()
	sheet := f.GetSheetName(0)

	v, err := f.GetCellValue(sheet, "B1")
	require.NoError(t, err)
	assert.Equal(t, "Jane Doe", v)
	v, err = f.GetCellValue(sheet, "B2")
	require.NoError(t, err)
	assert.Equal(t, "42.5", v)
	v, err = f.GetCellValue(sheet, "B3")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", v)
	v, err = f.GetCellValue(sheet, "B4")
	require.NoError(t, err)
	assert.Empty(t, v, "unresolved cells stay untouched")
}

func TestGenerateExcel_NoCells(t *testing.T) {
	a := NewAssembler(Options{PDF: &stubPDF{}, Renderer: &stubRenderer{}})
	doc := singleDocument(t, "mapping:\n  pdf:\n    field:\n      a: b\n")
	_, err := a.GenerateExcel(context.Background(), doc, value.NewMap())
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindInvalidPlan, pe.Kind)
}

func planStoreServer(t *testing.T, files map[string]string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// /application/{profile}/{label}/{path...}
		parts := strings.SplitN(strings.TrimPrefix(r.URL.Path, "/application/"), "/", 3)
		if len(parts) < 3 {
			http.NotFound(w, r)
			return
		}
		body, ok := files[parts[2]]
		if !ok {
			http.NotFound(w, r)
			return
		}
		fmt.Fprint(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestPlanLoader_Composition(t *testing.T) {
	srv := planStoreServer(t, map[string]string{
		"base-plan.yml": `
pdfMerge:
  settings:
    addBookmarks: true
  pageNumbering:
    position: bottom-center
`,
		"dental-sections.yml": `
pdfMerge:
  sections:
    - name: dental-form
      type: acroform
      template: dental.pdf
`,
		"dental-plan.yml": `
composition:
  base: base-plan
  components:
    - dental-sections
pdfMerge:
  pageNumbering:
    position: bottom-right
`,
	})

	client := configstore.NewClient(&configstore.Options{BaseURL: srv.URL}, nil)
	loader := NewPlanLoader(client, "default", "main", nil)

	plan, err := loader.Load(context.Background(), "dental-plan")
	require.NoError(t, err)

	assert.True(t, plan.AddBookmarks, "base contributes settings")
	require.Len(t, plan.Sections, 1)
	assert.Equal(t, "dental-form", plan.Sections[0].Name, "component contributes sections")
	require.NotNil(t, plan.PageNumbers)
	assert.Equal(t, "bottom-right", plan.PageNumbers.Position, "own keys override the composition")
}

func TestPlanLoader_MissingComponentSkipped(t *testing.T) {
	srv := planStoreServer(t, map[string]string{
		"plan.yml": `
composition:
  components:
    - nope
pdfMerge:
  sections:
    - name: only
      type: acroform
      template: x.pdf
`,
	})
	client := configstore.NewClient(&configstore.Options{BaseURL: srv.URL}, nil)
	loader := NewPlanLoader(client, "default", "main", nil)

	plan, err := loader.Load(context.Background(), "plan")
	require.NoError(t, err)
	require.Len(t, plan.Sections, 1)
}

func TestPlanLoader_Resolve(t *testing.T) {
	srv := planStoreServer(t, map[string]string{
		"referenced.yml": `
pdfMerge:
  sections:
    - name: from-file
      type: acroform
      template: x.pdf
`,
	})
	client := configstore.NewClient(&configstore.Options{BaseURL: srv.URL}, nil)
	loader := NewPlanLoader(client, "default", "main", nil)

	byRef, err := value.DecodeYAMLMap([]byte("pdfMergeConfig: referenced\n"))
	require.NoError(t, err)
	plan, ok, err := loader.Resolve(context.Background(), byRef)
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, plan.Sections, 1)
	assert.Equal(t, "from-file", plan.Sections[0].Name)

	inline, err := value.DecodeYAMLMap([]byte("pdfMerge:\n  sections:\n    - name: inline\n      type: acroform\n      template: y.pdf\n"))
	require.NoError(t, err)
	plan, ok, err = loader.Resolve(context.Background(), inline)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "inline", plan.Sections[0].Name)

	none, err := value.DecodeYAMLMap([]byte("template:\n  url: t.html\n"))
	require.NoError(t, err)
	_, ok, err = loader.Resolve(context.Background(), none)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestPlanLoader_NotFound(t *testing.T) {
	srv := planStoreServer(t, nil)
	client := configstore.NewClient(&configstore.Options{BaseURL: srv.URL}, nil)
	loader := NewPlanLoader(client, "default", "main", nil)

	_, err := loader.Load(context.Background(), "missing")
	var pe *Error
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, KindInvalidPlan, pe.Kind)
}
