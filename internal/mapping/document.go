package mapping

import (
	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/value"
)

// Document is the typed view of a composed mapping tree.
type Document struct {
	Template *Template
	Mapping  *Mapping
	Metadata *value.Map

	// Tree is the full composed tree the typed fields were read from.
	// Sections beyond the typed surface (preprocessing, enrichment,
	// merge plans) are read from here by their own consumers.
	Tree *value.Map
}

// Template locates the render template for the document.
type Template struct {
	URL  string
	Type string
}

// Mapping holds the per-format field mappings.
type Mapping struct {
	PDF   *PDFMapping
	Excel *ExcelMapping
}

// PDFMapping maps PDF form field names to payload paths.
type PDFMapping struct {
	Field *value.Map
}

// ExcelMapping maps workbook cell references to payload paths.
type ExcelMapping struct {
	Cell *value.Map
}

// DocumentFromTree reads the typed mapping surface out of a composed
// tree. Absent branches leave the corresponding field nil.
func DocumentFromTree(tree *value.Map) *Document {
	doc := &Document{Tree: tree}
	if tree == nil {
		doc.Tree = value.NewMap()
		return doc
	}

	if tm, ok := value.AsMap(tree.GetDefault("template", nil)); ok {
		doc.Template = &Template{
			URL:  value.Stringify(tm.GetDefault("url", nil)),
			Type: value.Stringify(tm.GetDefault("type", nil)),
		}
	}
	if mm, ok := value.AsMap(tree.GetDefault("mapping", nil)); ok {
		doc.Mapping = &Mapping{}
		if pm, ok := value.AsMap(mm.GetDefault("pdf", nil)); ok {
			pdf := &PDFMapping{}
			if fm, ok := value.AsMap(pm.GetDefault("field", nil)); ok {
				pdf.Field = fm
			}
			doc.Mapping.PDF = pdf
		}
		if em, ok := value.AsMap(mm.GetDefault("excel", nil)); ok {
			excel := &ExcelMapping{}
			if cm, ok := value.AsMap(em.GetDefault("cell", nil)); ok {
				excel.Cell = cm
			}
			doc.Mapping.Excel = excel
		}
	}
	if md, ok := value.AsMap(tree.GetDefault("metadata", nil)); ok {
		doc.Metadata = md
	}
	return doc
}

// FieldMap returns the PDF field mapping as ordered field/path pairs
// with wrapper prefixes stripped from the paths.
func (d *Document) FieldMap() *value.Map {
	out := value.NewMap()
	if d == nil || d.Mapping == nil || d.Mapping.PDF == nil || d.Mapping.PDF.Field == nil {
		return out
	}
	d.Mapping.PDF.Field.Range(func(field string, path any) bool {
		out.Set(field, pathexpr.Sanitize(value.Stringify(path)))
		return true
	})
	return out
}

// CellMap returns the Excel cell mapping as ordered cell/path pairs
// with wrapper prefixes stripped.
func (d *Document) CellMap() *value.Map {
	out := value.NewMap()
	if d == nil || d.Mapping == nil || d.Mapping.Excel == nil || d.Mapping.Excel.Cell == nil {
		return out
	}
	d.Mapping.Excel.Cell.Range(func(cell string, path any) bool {
		out.Set(cell, pathexpr.Sanitize(value.Stringify(path)))
		return true
	})
	return out
}

// normalizeTree rewrites a fragment so a bare top-level "pdf" node is
// wrapped under "mapping", the canonical shape.
func normalizeTree(tree *value.Map) {
	if tree == nil {
		return
	}
	if pdf, ok := tree.Get("pdf"); ok && !tree.Has("mapping") {
		tree.Delete("pdf")
		wrapped := value.NewMap()
		wrapped.Set("pdf", pdf)
		tree.Set("mapping", wrapped)
	}
}
