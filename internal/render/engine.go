package render

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/jonathan/doc-composer/internal/value"
)

// DefaultRefreshInterval bounds how long a loaded template is reused
// before its source is consulted again.
const DefaultRefreshInterval = 5 * time.Second

type cachedTemplate struct {
	content string
	loaded  time.Time
}

// Engine loads templates by name and renders them against a payload
// model. Names resolve through a loader chain: http(s) URLs, then
// files relative to the working directory, then absolute paths.
type Engine struct {
	refresh time.Duration
	client  *http.Client

	mu    sync.Mutex
	cache map[string]cachedTemplate
}

func NewEngine() *Engine {
	return &Engine{
		refresh: DefaultRefreshInterval,
		client:  &http.Client{Timeout: 30 * time.Second},
		cache:   make(map[string]cachedTemplate),
	}
}

// Load returns the template content for a name, reusing a cached copy
// within the refresh interval.
func (e *Engine) Load(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", &NotFoundError{Template: name}
	}

	e.mu.Lock()
	cached, ok := e.cache[name]
	e.mu.Unlock()
	if ok && time.Since(cached.loaded) < e.refresh {
		return cached.content, nil
	}

	content, err := e.fetch(name)
	if err != nil {
		return "", err
	}
	e.mu.Lock()
	e.cache[name] = cachedTemplate{content: content, loaded: time.Now()}
	e.mu.Unlock()
	return content, nil
}

func (e *Engine) fetch(name string) (string, error) {
	if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
		resp, err := e.client.Get(name)
		if err != nil {
			return "", &Error{Template: name, Message: "template fetch failed", Cause: err}
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return "", &NotFoundError{Template: name}
		}
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			return "", &Error{Template: name, Message: "template read failed", Cause: err}
		}
		return string(body), nil
	}

	for _, path := range []string{strings.TrimPrefix(name, "/"), name} {
		data, err := os.ReadFile(path)
		if err == nil {
			return string(data), nil
		}
	}
	return "", &NotFoundError{Template: name}
}

// Process renders template content against the model using Go template
// syntax with missing keys rendered as empty strings.
func (e *Engine) Process(name, content string, model *value.Map) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=zero").Parse(content)
	if err != nil {
		return "", &Error{Template: name, Message: "template parse failed", Cause: err}
	}
	var b strings.Builder
	if err := tmpl.Execute(&b, model.Plain()); err != nil {
		return "", &Error{Template: name, Message: fmt.Sprintf("template execution failed: %v", err), Cause: err}
	}
	return strings.ReplaceAll(b.String(), "<no value>", ""), nil
}

// ProcessLocation loads a template by name and renders it.
func (e *Engine) ProcessLocation(name string, model *value.Map) (string, error) {
	content, err := e.Load(name)
	if err != nil {
		return "", err
	}
	return e.Process(name, content, model)
}

// ApplyReplacements substitutes {{key}} and ${key} markers with the
// HTML-escaped string form of each top-level model value.
func ApplyReplacements(templateHTML string, values *value.Map) string {
	if values == nil || values.Len() == 0 {
		return templateHTML
	}
	out := templateHTML
	values.Range(func(key string, v any) bool {
		escaped := escapeHTML(value.Stringify(v))
		out = strings.ReplaceAll(out, "{{"+key+"}}", escaped)
		out = strings.ReplaceAll(out, "${"+key+"}", escaped)
		return true
	})
	return out
}

var htmlEscaper = strings.NewReplacer(
	"&", "&amp;",
	"<", "&lt;",
	">", "&gt;",
	`"`, "&quot;",
	"'", "&#39;",
)

func escapeHTML(s string) string {
	return htmlEscaper.Replace(s)
}
