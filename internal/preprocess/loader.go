package preprocess

import (
	"context"
	"fmt"
	"sync"

	"github.com/jonathan/doc-composer/internal/configstore"
	"github.com/jonathan/doc-composer/internal/value"
)

// Loader fetches standalone rules files from the config store and
// keeps parsed rules in memory. Rules files change rarely; eviction
// happens through Reset.
type Loader struct {
	client *configstore.Client

	mu    sync.RWMutex
	rules map[string]*Rules
}

func NewLoader(client *configstore.Client) *Loader {
	return &Loader{
		client: client,
		rules:  make(map[string]*Rules),
	}
}

// Load returns the parsed rules at path, e.g.
// "preprocessing/enrollment-rules.yml".
func (l *Loader) Load(ctx context.Context, label, path string) (*Rules, error) {
	l.mu.RLock()
	cached, ok := l.rules[path]
	l.mu.RUnlock()
	if ok {
		return cached, nil
	}

	src, found := l.client.FileSource(ctx, "default", label, path)
	if !found {
		return nil, fmt.Errorf("preprocessing rules not found: %s", path)
	}
	rules := RulesFromTree(src)

	l.mu.Lock()
	l.rules[path] = rules
	l.mu.Unlock()
	return rules, nil
}

// ForDocument resolves the rules a composed mapping tree declares:
// a preprocessingConfig file reference, or an inline preprocessing
// block. A tree that declares neither yields nil rules and no error.
func (l *Loader) ForDocument(ctx context.Context, label string, tree *value.Map) (*Rules, error) {
	if ref := value.Stringify(tree.GetDefault("preprocessingConfig", nil)); ref != "" {
		return l.Load(ctx, label, ref)
	}
	if sub, ok := value.AsMap(tree.GetDefault("preprocessing", nil)); ok {
		return RulesFromTree(sub), nil
	}
	return nil, nil
}

// Reset drops all cached rules.
func (l *Loader) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.rules = make(map[string]*Rules)
}
