package configstore

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonathan/doc-composer/internal/cache"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *cache.Registry) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	reg := cache.NewRegistry()
	return NewClient(&Options{BaseURL: srv.URL, Timeout: DefaultTimeout}, reg), reg
}

func TestApplicationConfig(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/enrollment-service/default/main", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"name": "enrollment-service",
			"profiles": ["default"],
			"label": "main",
			"propertySources": [
				{"name": "enrollment-service.yml", "source": {"template": "enrollment", "product": "medical"}}
			]
		}`))
	})

	resp, err := client.ApplicationConfig(context.Background(), "enrollment-service", "", "")
	require.NoError(t, err)
	assert.Equal(t, "enrollment-service", resp.Name)
	require.Len(t, resp.PropertySources, 1)
	assert.Equal(t, "enrollment", resp.PropertySources[0].Source.GetDefault("template", nil))
}

func TestApplicationSource_CachesResult(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"propertySources":[{"name":"a","source":{"k":"v"}}]}`))
	})

	src, ok := client.ApplicationSource(context.Background(), "app", "default", "main")
	require.True(t, ok)
	assert.Equal(t, "v", src.GetDefault("k", nil))

	_, ok = client.ApplicationSource(context.Background(), "app", "default", "main")
	require.True(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFile_YAMLBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/application/default/main/mappings/base-application.yml", r.URL.Path)
		_, _ = w.Write([]byte("template:\n  url: templates/base.html\nmapping:\n  pdf:\n    field:\n      Name: customer.name\n"))
	})

	resp, err := client.File(context.Background(), "default", "main", "mappings/base-application.yml")
	require.NoError(t, err)
	require.Len(t, resp.PropertySources, 1)
	assert.Equal(t, "mappings/base-application.yml", resp.PropertySources[0].Name)

	src := resp.PropertySources[0].Source
	assert.Equal(t, []string{"template", "mapping"}, src.Keys())
}

func TestFile_YAMLEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("name: application\nversion: abc123\npropertySources:\n  - name: invoice.yml\n    source:\n      invoiceNumber: order.id\n"))
	})

	src, ok := client.FileSource(context.Background(), "default", "main", "mappings/invoice.yml")
	require.True(t, ok)
	assert.Equal(t, []string{"invoiceNumber"}, src.Keys())
	assert.Equal(t, "order.id", src.GetDefault("invoiceNumber", nil))
}

func TestFile_BOMStripped(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write(append([]byte{0xEF, 0xBB, 0xBF}, []byte(`{"propertySources":[{"name":"x.yml","source":{"a":"b"}}]}`)...))
	})

	src, ok := client.FileSource(context.Background(), "default", "main", "mappings/x.yml")
	require.True(t, ok)
	assert.Equal(t, "b", src.GetDefault("a", nil))
}

func TestFile_JSONEnvelope(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"propertySources":[{"name":"x.yml","source":{"a":1}}]}`))
	})

	resp, err := client.File(context.Background(), "default", "main", "mappings/x.yml")
	require.NoError(t, err)
	require.Len(t, resp.PropertySources, 1)
	assert.Equal(t, "x.yml", resp.PropertySources[0].Name)
}

func TestFile_StripsLeadingSlashes(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/application/default/main/mappings/a.yml", r.URL.Path)
		_, _ = w.Write([]byte("k: v\n"))
	})

	_, err := client.File(context.Background(), "", "", "//mappings/a.yml")
	require.NoError(t, err)
}

func TestFileSource_NotFoundCachedAsAbsent(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	})

	_, ok := client.FileSource(context.Background(), "default", "main", "mappings/missing.yml")
	assert.False(t, ok)

	_, ok = client.FileSource(context.Background(), "default", "main", "mappings/missing.yml")
	assert.False(t, ok)
	assert.Equal(t, int32(1), calls.Load())
}

func TestFileSource_ServerErrorNotCached(t *testing.T) {
	var calls atomic.Int32
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, ok := client.FileSource(context.Background(), "default", "main", "mappings/a.yml")
	assert.False(t, ok)
	_, ok = client.FileSource(context.Background(), "default", "main", "mappings/a.yml")
	assert.False(t, ok)
	assert.Equal(t, int32(2), calls.Load())
}

func TestEvictCaches(t *testing.T) {
	var calls atomic.Int32
	client, reg := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"propertySources":[{"name":"a","source":{"k":"v"}}]}`))
	})

	_, ok := client.ApplicationSource(context.Background(), "app", "default", "main")
	require.True(t, ok)

	client.EvictCaches()
	_, ok = client.ApplicationSource(context.Background(), "app", "default", "main")
	require.True(t, ok)
	assert.Equal(t, int32(2), calls.Load())

	stats := reg.Stats()
	require.Len(t, stats, 2)
	assert.Equal(t, "appSource", stats[0].Name)
	assert.Equal(t, "configFile", stats[1].Name)
}
