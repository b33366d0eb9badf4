package assemble

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/jonathan/doc-composer/internal/cache"
	"github.com/jonathan/doc-composer/internal/enrich"
	"github.com/jonathan/doc-composer/internal/funcs"
	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/pdf"
	"github.com/jonathan/doc-composer/internal/render"
	"github.com/jonathan/doc-composer/internal/value"
)

var timeNow = time.Now

// Options wires the assembler's collaborators. Zero fields get
// production defaults.
type Options struct {
	Engine     *render.Engine
	Renderer   render.PDFRenderer
	PDF        pdf.Engine
	Enrichers  *enrich.Registry
	Generators *GeneratorRegistry
	Functions  *funcs.Resolver
	Caches     *cache.Registry
}

// Assembler executes merge plans against payloads.
type Assembler struct {
	engine     *render.Engine
	renderer   render.PDFRenderer
	pdf        pdf.Engine
	enrichers  *enrich.Registry
	generators *GeneratorRegistry
	funcs      *funcs.Resolver
	templates  *cache.Cache[[]byte]
	client     *http.Client
}

func NewAssembler(opts Options) *Assembler {
	a := &Assembler{
		engine:     opts.Engine,
		renderer:   opts.Renderer,
		pdf:        opts.PDF,
		enrichers:  opts.Enrichers,
		generators: opts.Generators,
		funcs:      opts.Functions,
		client:     &http.Client{Timeout: 30 * time.Second},
	}
	if a.engine == nil {
		a.engine = render.NewEngine()
	}
	if a.renderer == nil {
		a.renderer = render.NewChromeRenderer()
	}
	if a.pdf == nil {
		a.pdf = pdf.NewProcessor()
	}
	if a.enrichers == nil {
		a.enrichers = enrich.DefaultRegistry()
	}
	if a.generators == nil {
		a.generators = NewGeneratorRegistry()
	}
	if a.funcs == nil {
		a.funcs = funcs.NewResolver()
	}
	a.templates = cache.New[[]byte]("acroformTemplates", cache.DefaultOptions())
	if opts.Caches != nil {
		opts.Caches.Register(a.templates)
	}
	return a
}

// Generators exposes the registry for the admin surface.
func (a *Assembler) Generators() *GeneratorRegistry {
	return a.generators
}

// Functions exposes the function registry for the admin surface.
func (a *Assembler) Functions() *funcs.Registry {
	return a.funcs.Registry()
}

// ResolveSections applies conditional blocks to the base section list.
// A block whose condition resolves truthy contributes its sections,
// each inserted after its named anchor when one exists, appended
// otherwise.
func ResolveSections(plan *Plan, payload *value.Map) []Section {
	resolved := make([]Section, len(plan.Sections))
	copy(resolved, plan.Sections)

	for _, block := range plan.Conditionals {
		if !pathexpr.Truthy(payload, block.Condition) {
			continue
		}
		for _, section := range block.Sections {
			at := -1
			if section.InsertAfter != "" {
				for i, existing := range resolved {
					if existing.Name == section.InsertAfter {
						at = i
						break
					}
				}
			}
			if at >= 0 {
				resolved = append(resolved[:at+1], append([]Section{section}, resolved[at+1:]...)...)
			} else {
				resolved = append(resolved, section)
			}
		}
	}
	return resolved
}

// Generate runs the full plan: section generation in resolved order,
// merge, page numbers, bands, bookmarks.
func (a *Assembler) Generate(ctx context.Context, plan *Plan, payload *value.Map) ([]byte, error) {
	sections := ResolveSections(plan, payload)

	var docs [][]byte
	startPages := make(map[string]int)
	currentPage := 1
	for _, section := range sections {
		if !section.Enabled {
			continue
		}
		doc, err := a.generateSection(ctx, section, payload)
		if err != nil {
			return nil, err
		}
		pages, err := a.pdf.PageCount(doc)
		if err != nil {
			return nil, errf(KindAssemblyFailure, err, "section %s produced an unreadable document", section.Name)
		}
		docs = append(docs, doc)
		startPages[section.Name] = currentPage
		currentPage += pages
	}
	if len(docs) == 0 {
		return nil, errf(KindInvalidPlan, nil, "merge plan has no enabled sections")
	}

	merged, err := a.pdf.Merge(docs)
	if err != nil {
		return nil, errf(KindAssemblyFailure, err, "section merge failed")
	}
	total, err := a.pdf.PageCount(merged)
	if err != nil {
		return nil, errf(KindAssemblyFailure, err, "merged document is unreadable")
	}

	if plan.PageNumbers != nil {
		if merged, err = a.stampPageNumbers(merged, plan.PageNumbers, total); err != nil {
			return nil, err
		}
	}
	if plan.Header != nil && plan.Header.Enabled {
		if merged, err = a.applyBand(merged, plan.Header, payload, total, true); err != nil {
			return nil, err
		}
	}
	if plan.Footer != nil && plan.Footer.Enabled {
		if merged, err = a.applyBand(merged, plan.Footer, payload, total, false); err != nil {
			return nil, err
		}
	}
	if plan.AddBookmarks && len(plan.Bookmarks) > 0 {
		outline := buildOutline(plan.Bookmarks, startPages, total)
		if merged, err = a.pdf.AddBookmarks(merged, outline); err != nil {
			return nil, errf(KindAssemblyFailure, err, "bookmark pass failed")
		}
	}
	return merged, nil
}

func (a *Assembler) generateSection(ctx context.Context, section Section, payload *value.Map) ([]byte, error) {
	enriched, err := a.enrichedPayload(section, payload)
	if err != nil {
		return nil, err
	}

	switch section.Type {
	case TypeHTMLTemplate:
		model := value.NewMap()
		model.Set("payload", enriched)
		enriched.Range(func(k string, v any) bool {
			model.Set(k, v)
			return true
		})
		html, err := a.engine.ProcessLocation(section.Template, model)
		if err != nil {
			return nil, translateTemplateError(section.Name, err)
		}
		out, err := a.renderer.RenderPDF(ctx, render.CoerceXHTML(html))
		if err != nil {
			return nil, errf(KindRenderFailure, err, "section %s: %v", section.Name, err)
		}
		return out, nil

	case TypeAcroForm:
		fields := EffectiveFieldMap(section)
		if fields.Len() == 0 {
			return nil, errf(KindInvalidPlan, nil, "acroform section %s needs fieldMapping or patterns", section.Name)
		}
		values, err := ResolveFieldValues(fields, enriched, a.funcs)
		if err != nil {
			return nil, err
		}
		template, err := a.loadTemplateBytes(ctx, section.Template)
		if err != nil {
			return nil, translateTemplateError(section.Name, err)
		}
		out, err := a.pdf.FillForm(template, values)
		if err != nil {
			return nil, errf(KindRenderFailure, err, "section %s: form fill failed", section.Name)
		}
		return out, nil

	case TypeCodeDrawn:
		generator, ok := a.generators.Get(section.Template)
		if !ok {
			return nil, errf(KindUnknownGenerator, nil, "no generator registered with name: %s", section.Template)
		}
		return generator.Generate(enriched)
	}
	return nil, errf(KindUnknownSectionType, nil, "unknown section type: %s", section.Type)
}

func (a *Assembler) enrichedPayload(section Section, payload *value.Map) (*value.Map, error) {
	if len(section.Enrichers) == 0 {
		return payload, nil
	}
	log.Printf("[ASSEMBLE] applying enrichers %v to section %s", section.Enrichers, section.Name)
	enriched, err := a.enrichers.Apply(section.Enrichers, payload)
	if err != nil {
		return nil, errf(KindUnknownEnricher, err, "section %s: %v", section.Name, err)
	}
	return enriched, nil
}

// loadTemplateBytes fetches a form template by URL or path, cached
// process-wide.
func (a *Assembler) loadTemplateBytes(ctx context.Context, name string) ([]byte, error) {
	if strings.TrimSpace(name) == "" {
		return nil, &render.NotFoundError{Template: name}
	}
	return a.templates.GetOrLoad(name, func() ([]byte, error) {
		if strings.HasPrefix(name, "http://") || strings.HasPrefix(name, "https://") {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
			if err != nil {
				return nil, err
			}
			resp, err := a.client.Do(req)
			if err != nil {
				return nil, err
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusOK {
				return nil, &render.NotFoundError{Template: name}
			}
			return io.ReadAll(resp.Body)
		}
		for _, path := range []string{strings.TrimPrefix(name, "/"), name} {
			if data, err := os.ReadFile(path); err == nil {
				return data, nil
			}
		}
		return nil, &render.NotFoundError{Template: name}
	})
}

func (a *Assembler) stampPageNumbers(doc []byte, pn *PageNumbering, total int) ([]byte, error) {
	var stamps []pdf.TextStamp
	for page := pn.StartPage; page <= total; page++ {
		text := strings.ReplaceAll(pn.Format, "{current}", strconv.Itoa(page))
		text = strings.ReplaceAll(text, "{total}", strconv.Itoa(total))
		stamps = append(stamps, pdf.TextStamp{
			Page:     page,
			Text:     text,
			Position: pn.Position,
			Font:     pn.Font,
			Size:     pn.FontSize,
			OffsetY:  20,
		})
	}
	out, err := a.pdf.StampText(doc, stamps)
	if err != nil {
		return nil, errf(KindAssemblyFailure, err, "page numbering failed")
	}
	return out, nil
}

func (a *Assembler) applyBand(doc []byte, band *Band, payload *value.Map, total int, header bool) ([]byte, error) {
	var stamps []pdf.TextStamp
	for page := band.StartPage; page <= total; page++ {
		for _, slot := range []struct {
			text *BandText
			pos  [2]string
		}{
			{band.Left, [2]string{pdf.TopLeft, pdf.BottomLeft}},
			{band.Center, [2]string{pdf.TopCenter, pdf.BottomCenter}},
			{band.Right, [2]string{pdf.TopRight, pdf.BottomRight}},
		} {
			if slot.text == nil || slot.text.Text == "" {
				continue
			}
			pos := slot.pos[1]
			if header {
				pos = slot.pos[0]
			}
			stamps = append(stamps, pdf.TextStamp{
				Page:     page,
				Text:     replaceBandVars(slot.text.Text, page, total, payload),
				Position: pos,
				Font:     slot.text.Font,
				Size:     slot.text.FontSize,
				OffsetY:  20,
			})
		}
	}
	out, err := a.pdf.StampText(doc, stamps)
	if err != nil {
		return nil, errf(KindAssemblyFailure, err, "header/footer pass failed")
	}
	if band.Border != nil && band.Border.Enabled {
		line := pdf.Line{
			Y:       float64(band.Height),
			FromTop: header,
			Color:   band.Border.Color,
			Width:   band.Border.Thickness,
		}
		out, err = a.pdf.StampLine(out, line, band.StartPage)
		if err != nil {
			return nil, errf(KindAssemblyFailure, err, "band separator failed")
		}
	}
	return out, nil
}

// replaceBandVars substitutes {current}, {total}, {date}, and any
// top-level payload key.
func replaceBandVars(text string, page, total int, payload *value.Map) string {
	out := strings.ReplaceAll(text, "{current}", strconv.Itoa(page))
	out = strings.ReplaceAll(out, "{total}", strconv.Itoa(total))
	out = strings.ReplaceAll(out, "{date}", timeNow().Format("2006-01-02"))
	if payload != nil {
		payload.Range(func(k string, v any) bool {
			marker := "{" + k + "}"
			if v != nil && strings.Contains(out, marker) {
				out = strings.ReplaceAll(out, marker, value.Stringify(v))
			}
			return true
		})
	}
	return out
}

type outlineNode struct {
	title    string
	page     int
	children []*outlineNode
}

// buildOutline nests bookmarks by level: each entry attaches under the
// most recent bookmark one level up. Bookmarks naming unknown sections
// or pages past the end are dropped.
func buildOutline(specs []BookmarkSpec, startPages map[string]int, total int) []pdf.Bookmark {
	var roots []*outlineNode
	levelParents := make(map[int]*outlineNode)
	for _, spec := range specs {
		page, ok := startPages[spec.Section]
		if !ok || page > total {
			continue
		}
		node := &outlineNode{title: spec.Title, page: page}
		if spec.Level <= 1 {
			roots = append(roots, node)
			levelParents[1] = node
		} else if parent := levelParents[spec.Level-1]; parent != nil {
			parent.children = append(parent.children, node)
			levelParents[spec.Level] = node
		}
	}
	return toBookmarks(roots)
}

func toBookmarks(nodes []*outlineNode) []pdf.Bookmark {
	out := make([]pdf.Bookmark, len(nodes))
	for i, n := range nodes {
		out[i] = pdf.Bookmark{Title: n.title, Page: n.page, Children: toBookmarks(n.children)}
	}
	return out
}

func translateTemplateError(section string, err error) *Error {
	var nf *render.NotFoundError
	if errors.As(err, &nf) {
		return errf(KindTemplateNotFound, err, "section %s: %v", section, err)
	}
	return errf(KindRenderFailure, err, "section %s: %v", section, err)
}
