package assemble

import (
	"context"
	"log"
	"path"
	"strings"

	"github.com/jonathan/doc-composer/internal/cache"
	"github.com/jonathan/doc-composer/internal/configstore"
	"github.com/jonathan/doc-composer/internal/value"
)

// PlanLoader fetches standalone merge-plan files from the config
// store. A plan file may declare a composition block naming a base
// plan and component fragments; the file's own keys override the
// merged result.
type PlanLoader struct {
	client  *configstore.Client
	profile string
	label   string
	plans   *cache.Cache[*Plan]
}

func NewPlanLoader(client *configstore.Client, profile, label string, reg *cache.Registry) *PlanLoader {
	l := &PlanLoader{
		client:  client,
		profile: profile,
		label:   label,
		plans:   cache.New[*Plan]("pdfConfigs", cache.DefaultOptions()),
	}
	if reg != nil {
		reg.Register(l.plans)
	}
	return l
}

// Load resolves a plan by file name. Names without an extension get
// ".yml" appended.
func (l *PlanLoader) Load(ctx context.Context, name string) (*Plan, error) {
	normalized := normalizePlanName(name)
	return l.plans.GetOrLoad(normalized, func() (*Plan, error) {
		tree, err := l.loadTree(ctx, normalized, 0)
		if err != nil {
			return nil, err
		}
		return PlanFromTree(tree)
	})
}

// Resolve finds the merge plan a composed mapping tree declares:
// inline under pdfMerge, or in a standalone plan file named by
// pdfMergeConfig. The second return reports whether the tree declares
// a plan at all.
func (l *PlanLoader) Resolve(ctx context.Context, tree *value.Map) (*Plan, bool, error) {
	if ref := value.Stringify(tree.GetDefault("pdfMergeConfig", nil)); ref != "" {
		plan, err := l.Load(ctx, ref)
		if err != nil {
			return nil, false, err
		}
		return plan, true, nil
	}
	if !HasPlan(tree) {
		return nil, false, nil
	}
	plan, err := PlanFromTree(tree)
	if err != nil {
		return nil, false, err
	}
	return plan, true, nil
}

const maxCompositionDepth = 5

func (l *PlanLoader) loadTree(ctx context.Context, name string, depth int) (*value.Map, error) {
	if depth > maxCompositionDepth {
		return nil, errf(KindInvalidPlan, nil, "composition nesting too deep at %s", name)
	}
	tree, ok := l.client.FileSource(ctx, l.profile, l.label, name)
	if !ok {
		return nil, errf(KindInvalidPlan, nil, "merge plan not found: %s", name)
	}

	comp, ok := value.AsMap(tree.GetDefault("composition", nil))
	if !ok {
		return tree, nil
	}

	merged := value.NewMap()
	if base := value.Stringify(comp.GetDefault("base", nil)); base != "" {
		baseTree, err := l.loadTree(ctx, normalizePlanName(base), depth+1)
		if err != nil {
			return nil, err
		}
		value.DeepMerge(merged, baseTree)
	}
	if components, ok := value.AsSlice(comp.GetDefault("components", nil)); ok {
		for _, c := range components {
			ref := value.Stringify(c)
			if ref == "" {
				continue
			}
			part, err := l.loadTree(ctx, normalizePlanName(ref), depth+1)
			if err != nil {
				log.Printf("[ASSEMBLE] skipping unavailable plan component %s: %v", ref, err)
				continue
			}
			value.DeepMerge(merged, part)
		}
	}

	// The file's own keys win over everything it composed.
	overrides := tree.Clone()
	overrides.Delete("composition")
	value.DeepMerge(merged, overrides)
	return merged, nil
}

func normalizePlanName(name string) string {
	n := strings.TrimSpace(name)
	if path.Ext(n) == "" {
		n += ".yml"
	}
	return n
}
