// Package configstore is the HTTP client for the external configuration
// store. The store serves application-level config documents and raw
// config files, either as a JSON envelope of property sources or as
// plain YAML. Successful lookups are cached; the composer layers its
// own per-request memoization on top.
package configstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/jonathan/doc-composer/internal/cache"
	"github.com/jonathan/doc-composer/internal/value"
)

// DefaultBaseURL is where the config store listens unless configured
// otherwise.
const DefaultBaseURL = "http://localhost:8888"

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// Error represents a failure talking to the config store.
type Error struct {
	URL     string
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("config store error for %s: %s: %v", e.URL, e.Message, e.Cause)
	}
	return fmt.Sprintf("config store error for %s: %s", e.URL, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Response is the config store's envelope: a named document carrying a
// list of property sources, highest precedence first.
type Response struct {
	Name            string           `json:"name"`
	Profiles        []string         `json:"profiles"`
	Label           string           `json:"label"`
	Version         string           `json:"version"`
	PropertySources []PropertySource `json:"propertySources"`
}

// PropertySource is one layer of configuration inside a Response.
type PropertySource struct {
	Name   string     `json:"name"`
	Source *value.Map `json:"source"`
}

// Options configures the client.
type Options struct {
	BaseURL string
	Timeout time.Duration
}

// DefaultOptions returns sensible client defaults.
func DefaultOptions() *Options {
	return &Options{
		BaseURL: DefaultBaseURL,
		Timeout: DefaultTimeout,
	}
}

// Client fetches configuration documents and files from the store.
type Client struct {
	baseURL string
	http    *http.Client

	appSource  *cache.Cache[*value.Map]
	configFile *cache.Cache[*value.Map]
}

// NewClient creates a client and registers its caches with reg.
// A nil opts uses DefaultOptions; a nil reg skips registration.
func NewClient(opts *Options, reg *cache.Registry) *Client {
	if opts == nil {
		opts = DefaultOptions()
	}
	c := &Client{
		baseURL:    strings.TrimRight(opts.BaseURL, "/"),
		http:       &http.Client{Timeout: opts.Timeout},
		appSource:  cache.New[*value.Map]("appSource", cache.DefaultOptions()),
		configFile: cache.New[*value.Map]("configFile", cache.DefaultOptions()),
	}
	if reg != nil {
		reg.Register(c.appSource)
		reg.Register(c.configFile)
	}
	return c
}

// ApplicationConfig fetches the application-level document at
// /{application}/{profile}/{label}.
func (c *Client) ApplicationConfig(ctx context.Context, application, profile, label string) (*Response, error) {
	uri := fmt.Sprintf("%s/%s/%s/%s",
		c.baseURL,
		url.PathEscape(application),
		url.PathEscape(defaultString(profile, "default")),
		url.PathEscape(defaultString(label, "main")))

	body, err := c.get(ctx, uri)
	if err != nil {
		return nil, err
	}
	var resp Response
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, &Error{URL: uri, Message: "failed to decode application config", Cause: err}
	}
	return &resp, nil
}

// ApplicationSource returns the first property source of the
// application document, or false when the document is missing or
// empty. Results, including absence, are cached.
func (c *Client) ApplicationSource(ctx context.Context, application, profile, label string) (*value.Map, bool) {
	key := application + "|" + profile + "|" + label
	src, err := c.appSource.GetOrLoad(key, func() (*value.Map, error) {
		resp, err := c.ApplicationConfig(ctx, application, profile, label)
		if err != nil {
			return nil, err
		}
		if len(resp.PropertySources) == 0 || resp.PropertySources[0].Source == nil {
			return nil, nil
		}
		return resp.PropertySources[0].Source, nil
	})
	if err != nil {
		log.Printf("configstore: application source %s unavailable: %v", key, err)
		return nil, false
	}
	if src == nil {
		return nil, false
	}
	return src, true
}

// File fetches a raw config file at /application/{profile}/{label}/{path}.
// The body may be a JSON envelope or plain YAML; a YAML document
// becomes a single property source named after the path.
func (c *Client) File(ctx context.Context, profile, label, path string) (*Response, error) {
	normalized := strings.TrimLeft(strings.TrimSpace(path), "/")
	if normalized == "" {
		return nil, &Error{URL: c.baseURL, Message: "empty file path"}
	}
	segments := strings.Split(normalized, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	uri := fmt.Sprintf("%s/application/%s/%s/%s",
		c.baseURL,
		url.PathEscape(defaultString(profile, "default")),
		url.PathEscape(defaultString(label, "main")),
		strings.Join(segments, "/"))

	body, err := c.get(ctx, uri)
	if err != nil {
		return nil, err
	}
	body = bytes.TrimPrefix(body, utf8BOM)
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil, &Error{URL: uri, Message: "empty response body"}
	}

	// Some store deployments answer with the JSON envelope even on the
	// file endpoint.
	var resp Response
	if err := json.Unmarshal(body, &resp); err == nil && len(resp.PropertySources) > 0 {
		return &resp, nil
	}

	doc, err := value.DecodeYAMLMap(body)
	if err != nil {
		return nil, &Error{URL: uri, Message: "failed to parse file as YAML", Cause: err}
	}
	// A YAML body can itself be the envelope. Unwrap it rather than
	// handing the envelope keys back as a source document.
	if env, ok := envelopeFromTree(doc); ok {
		return env, nil
	}
	return &Response{
		PropertySources: []PropertySource{{Name: path, Source: doc}},
	}, nil
}

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// envelopeFromTree converts a decoded YAML map that carries a
// propertySources list into the typed envelope.
func envelopeFromTree(doc *value.Map) (*Response, bool) {
	raw, ok := value.AsSlice(doc.GetDefault("propertySources", nil))
	if !ok {
		return nil, false
	}
	resp := &Response{
		Name:    value.Stringify(doc.GetDefault("name", nil)),
		Label:   value.Stringify(doc.GetDefault("label", nil)),
		Version: value.Stringify(doc.GetDefault("version", nil)),
	}
	for _, entry := range raw {
		ps, ok := value.AsMap(entry)
		if !ok {
			continue
		}
		source, _ := value.AsMap(ps.GetDefault("source", nil))
		resp.PropertySources = append(resp.PropertySources, PropertySource{
			Name:   value.Stringify(ps.GetDefault("name", nil)),
			Source: source,
		})
	}
	return resp, true
}

// FileSource returns the first property source of a config file, or
// false when the file is missing. Results, including absence, are
// cached.
func (c *Client) FileSource(ctx context.Context, profile, label, path string) (*value.Map, bool) {
	key := profile + "|" + label + "|" + path
	src, err := c.configFile.GetOrLoad(key, func() (*value.Map, error) {
		resp, err := c.File(ctx, profile, label, path)
		if err != nil {
			// Missing files are an expected outcome of candidate
			// probing, not a client failure.
			if isNotFound(err) {
				return nil, nil
			}
			return nil, err
		}
		if len(resp.PropertySources) == 0 || resp.PropertySources[0].Source == nil {
			return nil, nil
		}
		return resp.PropertySources[0].Source, nil
	})
	if err != nil {
		log.Printf("configstore: file source %s unavailable: %v", key, err)
		return nil, false
	}
	if src == nil {
		return nil, false
	}
	return src, true
}

// EvictCaches drops everything in the appSource and configFile caches.
func (c *Client) EvictCaches() {
	c.appSource.Clear()
	c.configFile.Clear()
	log.Printf("configstore: evicted all config caches")
}

func (c *Client) get(ctx context.Context, uri string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, &Error{URL: uri, Message: "failed to create request", Cause: err}
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &Error{URL: uri, Message: "HTTP request failed", Cause: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &Error{URL: uri, Message: "failed to read response body", Cause: err}
	}
	if resp.StatusCode == http.StatusNotFound {
		return nil, &Error{URL: uri, Message: notFoundMessage}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, &Error{URL: uri, Message: fmt.Sprintf("HTTP status %d", resp.StatusCode)}
	}
	return body, nil
}

const notFoundMessage = "not found"

func isNotFound(err error) bool {
	var serr *Error
	return errors.As(err, &serr) && serr.Message == notFoundMessage
}

func defaultString(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
