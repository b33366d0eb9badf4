package mapping

import (
	"context"
	"log"
	"strings"

	"github.com/jonathan/doc-composer/internal/configstore"
	"github.com/jonathan/doc-composer/internal/value"
)

// Source fetches one mapping fragment. Implementations decide whether
// a candidate names a config file or an application document.
type Source interface {
	Fetch(ctx context.Context, label string) (*value.Map, bool)
}

// fileSource fetches a fragment from a config file path.
type fileSource struct {
	client *configstore.Client
	path   string
}

func (s *fileSource) Fetch(ctx context.Context, label string) (*value.Map, bool) {
	return s.client.FileSource(ctx, "default", label, s.path)
}

// appSource fetches a fragment from an application config document.
type appSource struct {
	client *configstore.Client
	app    string
}

func (s *appSource) Fetch(ctx context.Context, label string) (*value.Map, bool) {
	return s.client.ApplicationSource(ctx, s.app, "default", label)
}

// Options configures the composer.
type Options struct {
	// CandidateOrder holds candidate patterns, least specific first.
	// Empty means the built-in fallback hierarchy.
	CandidateOrder []string
}

// Composer builds mapping documents by fetching and merging candidate
// fragments.
type Composer struct {
	client *configstore.Client
	opts   Options
}

func NewComposer(client *configstore.Client, opts Options) *Composer {
	return &Composer{client: client, opts: opts}
}

// CandidateOrder returns the configured candidate patterns,
// placeholders intact.
func (c *Composer) CandidateOrder() []string {
	out := make([]string, len(c.opts.CandidateOrder))
	copy(out, c.opts.CandidateOrder)
	return out
}

// Candidates returns the expanded candidate list for a request.
func (c *Composer) Candidates(req *Request) []string {
	return BuildCandidates(req, c.opts.CandidateOrder)
}

// Compose fetches each candidate in order and deep-merges the
// fragments, later candidates overriding earlier ones. Candidates that
// cannot be fetched are skipped. Duplicate candidates are fetched once
// per call.
func (c *Composer) Compose(ctx context.Context, req *Request, candidates []string) *value.Map {
	merged := value.NewMap()

	type fragment struct {
		tree *value.Map
		ok   bool
	}
	fetched := map[string]fragment{}

	for _, candidate := range candidates {
		raw := strings.TrimSpace(candidate)
		if raw == "" {
			continue
		}

		key, src := c.classify(raw)
		frag, seen := fetched[key]
		if !seen {
			frag.tree, frag.ok = src.Fetch(ctx, req.label())
			fetched[key] = frag
		}
		if !frag.ok {
			log.Printf("mapping: candidate %s not found, skipping", raw)
			continue
		}

		nested := value.Unflatten(frag.tree)
		normalizeTree(nested)
		value.DeepMerge(merged, nested)
	}
	return merged
}

// classify decides whether a candidate names a config file or an
// application document. Explicit "file:" and "app:" prefixes win;
// otherwise anything that looks like a path (mappings/ prefix, a YAML
// or JSON extension, or a slash) is a file, and the rest are
// application names. File candidates without an extension get ".yml".
func (c *Composer) classify(raw string) (key string, src Source) {
	switch {
	case strings.HasPrefix(raw, "file:"):
		p := ensureExtension(raw[len("file:"):])
		return "file:" + p, &fileSource{client: c.client, path: p}
	case strings.HasPrefix(raw, "app:"):
		app := raw[len("app:"):]
		return "app:" + app, &appSource{client: c.client, app: app}
	case strings.HasPrefix(raw, "mappings/"),
		hasConfigExtension(raw),
		strings.Contains(raw, "/"):
		p := ensureExtension(raw)
		return "file:" + p, &fileSource{client: c.client, path: p}
	default:
		return "app:" + raw, &appSource{client: c.client, app: raw}
	}
}

// ComposeDocument runs the full resolution for a request: build
// candidates, compose fragments, merge the inline override, and
// return the typed document.
func (c *Composer) ComposeDocument(ctx context.Context, req *Request) (*Document, error) {
	merged := c.Compose(ctx, req, c.Candidates(req))

	if strings.TrimSpace(req.MappingOverride) != "" {
		override, err := parseOverride(req.MappingOverride)
		if err != nil {
			return nil, &ComposeError{Message: "invalid mapping override", Cause: err}
		}
		value.DeepMerge(merged, override)
	}
	return DocumentFromTree(merged), nil
}

// parseOverride parses inline override YAML. Overrides written with
// dotted keys are unflattened; nested YAML passes through. A bare
// top-level "pdf" node is wrapped under "mapping" either way.
func parseOverride(overrideYAML string) (*value.Map, error) {
	parsed, err := value.DecodeYAMLMap([]byte(overrideYAML))
	if err != nil {
		return nil, err
	}
	looksFlat := false
	for _, k := range parsed.Keys() {
		if strings.Contains(k, ".") {
			looksFlat = true
			break
		}
	}
	if looksFlat {
		parsed = value.Unflatten(parsed)
	}
	normalizeTree(parsed)
	return parsed, nil
}

func ensureExtension(p string) string {
	if hasConfigExtension(p) {
		return p
	}
	return p + ".yml"
}

func hasConfigExtension(p string) bool {
	return strings.HasSuffix(p, ".yml") || strings.HasSuffix(p, ".yaml") || strings.HasSuffix(p, ".json")
}
