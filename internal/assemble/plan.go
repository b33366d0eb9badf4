// Package assemble turns a composed mapping document and a payload
// into a finished multi-section PDF: it resolves conditional sections,
// produces each section through one of the registered backends, merges
// the page sets, and applies page numbers, header and footer bands,
// and outline bookmarks.
package assemble

import (
	"github.com/jonathan/doc-composer/internal/value"
)

// Section backend types. The legacy spellings are accepted on parse.
const (
	TypeHTMLTemplate = "html-template"
	TypeAcroForm     = "acroform"
	TypeCodeDrawn    = "code-drawn"
)

// Plan is the parsed pdfMerge subtree of a mapping document.
type Plan struct {
	Sections     []Section
	Conditionals []ConditionalBlock
	PageNumbers  *PageNumbering
	Bookmarks    []BookmarkSpec
	Header       *Band
	Footer       *Band
	AddBookmarks bool
}

type Section struct {
	Name         string
	Type         string
	Template     string
	Enabled      bool
	InsertAfter  string
	FieldMapping *value.Map
	Patterns     []FieldPattern
	Enrichers    []string
}

type ConditionalBlock struct {
	Condition string
	Sections  []Section
}

type FieldPattern struct {
	FieldPattern string
	Source       string
	MaxIndex     int
	Fields       *value.Map
}

type PageNumbering struct {
	StartPage int
	Format    string
	Position  string
	Font      string
	FontSize  int
}

type BookmarkSpec struct {
	Section string
	Title   string
	Level   int
}

type Band struct {
	Enabled   bool
	Height    int
	StartPage int
	Left      *BandText
	Center    *BandText
	Right     *BandText
	Border    *BandBorder
}

type BandText struct {
	Text     string
	Font     string
	FontSize int
}

type BandBorder struct {
	Enabled   bool
	Color     string
	Thickness float64
}

// HasPlan reports whether the mapping document declares a merge plan.
func HasPlan(tree *value.Map) bool {
	_, ok := mapAt(tree, "pdfMerge")
	return ok
}

// PlanFromTree parses the pdfMerge subtree of a composed mapping
// document.
func PlanFromTree(tree *value.Map) (*Plan, error) {
	merge, ok := mapAt(tree, "pdfMerge")
	if !ok {
		return nil, errf(KindInvalidPlan, nil, "mapping document has no pdfMerge plan")
	}

	plan := &Plan{}
	if settings, ok := mapAt(merge, "settings"); ok {
		plan.AddBookmarks = boolAt(settings, "addBookmarks", false)
	}
	for _, el := range listAt(merge, "sections") {
		if m, ok := value.AsMap(el); ok {
			plan.Sections = append(plan.Sections, parseSection(m))
		}
	}
	for _, el := range listAt(merge, "conditionalSections") {
		m, ok := value.AsMap(el)
		if !ok {
			continue
		}
		block := ConditionalBlock{Condition: stringAt(m, "condition")}
		for _, s := range listAt(m, "sections") {
			if sm, ok := value.AsMap(s); ok {
				block.Sections = append(block.Sections, parseSection(sm))
			}
		}
		plan.Conditionals = append(plan.Conditionals, block)
	}
	if pn, ok := mapAt(merge, "pageNumbering"); ok {
		plan.PageNumbers = &PageNumbering{
			StartPage: intAt(pn, "startPage", 1),
			Format:    stringDefault(pn, "format", "Page {current}"),
			Position:  stringDefault(pn, "position", "bottom-center"),
			Font:      stringDefault(pn, "font", "Helvetica"),
			FontSize:  intAt(pn, "fontSize", 10),
		}
	}
	for _, el := range listAt(merge, "bookmarks") {
		if m, ok := value.AsMap(el); ok {
			plan.Bookmarks = append(plan.Bookmarks, BookmarkSpec{
				Section: stringAt(m, "section"),
				Title:   stringAt(m, "title"),
				Level:   intAt(m, "level", 1),
			})
		}
	}
	if h, ok := mapAt(merge, "header"); ok {
		plan.Header = parseBand(h)
	}
	if f, ok := mapAt(merge, "footer"); ok {
		plan.Footer = parseBand(f)
	}
	return plan, nil
}

func parseSection(m *value.Map) Section {
	s := Section{
		Name:        stringAt(m, "name"),
		Type:        normalizeSectionType(stringAt(m, "type")),
		Template:    stringAt(m, "template"),
		Enabled:     boolAt(m, "enabled", true),
		InsertAfter: stringAt(m, "insertAfter"),
	}
	if fm, ok := mapAt(m, "fieldMapping"); ok {
		s.FieldMapping = fm
	}
	for _, el := range listAt(m, "patterns") {
		if pm, ok := value.AsMap(el); ok {
			fields, _ := mapAt(pm, "fields")
			s.Patterns = append(s.Patterns, FieldPattern{
				FieldPattern: stringAt(pm, "fieldPattern"),
				Source:       stringAt(pm, "source"),
				MaxIndex:     intAt(pm, "maxIndex", 0),
				Fields:       fields,
			})
		}
	}
	for _, el := range listAt(m, "payloadEnrichers") {
		if name := value.Stringify(el); name != "" {
			s.Enrichers = append(s.Enrichers, name)
		}
	}
	return s
}

func normalizeSectionType(t string) string {
	switch t {
	case "freemarker", "ftl", "html":
		return TypeHTMLTemplate
	case "pdfbox":
		return TypeCodeDrawn
	}
	return t
}

func parseBand(m *value.Map) *Band {
	band := &Band{
		Enabled:   boolAt(m, "enabled", false),
		Height:    intAt(m, "height", 40),
		StartPage: intAt(m, "startPage", 1),
	}
	if content, ok := mapAt(m, "content"); ok {
		band.Left = parseBandText(content, "left")
		band.Center = parseBandText(content, "center")
		band.Right = parseBandText(content, "right")
	}
	if border, ok := mapAt(m, "border"); ok {
		band.Border = &BandBorder{
			Enabled:   boolAt(border, "enabled", false),
			Color:     stringDefault(border, "color", "#000000"),
			Thickness: floatAt(border, "thickness", 0.5),
		}
	}
	return band
}

func parseBandText(content *value.Map, key string) *BandText {
	m, ok := mapAt(content, key)
	if !ok {
		return nil
	}
	return &BandText{
		Text:     stringAt(m, "text"),
		Font:     stringDefault(m, "font", "Helvetica"),
		FontSize: intAt(m, "fontSize", 9),
	}
}
