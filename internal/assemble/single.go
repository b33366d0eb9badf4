package assemble

import (
	"bytes"
	"context"
	"strings"

	"github.com/go-pdf/fpdf"

	"github.com/jonathan/doc-composer/internal/excel"
	"github.com/jonathan/doc-composer/internal/funcs"
	"github.com/jonathan/doc-composer/internal/mapping"
	"github.com/jonathan/doc-composer/internal/pathexpr"
	"github.com/jonathan/doc-composer/internal/render"
	"github.com/jonathan/doc-composer/internal/value"
)

// RenderSingle produces a PDF from a mapping document that carries a
// single template rather than a merge plan. Documents without a
// template fall back to a plain key-value listing of the resolved
// fields.
func (a *Assembler) RenderSingle(ctx context.Context, doc *mapping.Document, payload *value.Map) ([]byte, error) {
	fields, err := a.resolveRawFieldValues(doc.FieldMap(), payload)
	if err != nil {
		return nil, err
	}

	if doc.Template == nil || doc.Template.URL == "" {
		return keyValuePDF(fields)
	}

	model := fields.Clone()
	model.Set("payload", payload)

	var html string
	switch strings.ToLower(doc.Template.Type) {
	case "html":
		raw, err := a.engine.Load(doc.Template.URL)
		if err != nil {
			return nil, translateTemplateError(doc.Template.URL, err)
		}
		html = render.ApplyReplacements(raw, model)
	case "ftl", "freemarker", "":
		html, err = a.engine.ProcessLocation(doc.Template.URL, model)
		if err != nil {
			return nil, translateTemplateError(doc.Template.URL, err)
		}
	default:
		return keyValuePDF(fields)
	}

	out, err := a.renderer.RenderPDF(ctx, render.CoerceXHTML(html))
	if err != nil {
		return nil, errf(KindRenderFailure, err, "template %s: %v", doc.Template.URL, err)
	}
	return out, nil
}

// GenerateExcel fills the document's workbook template with values
// resolved through the cell mapping. Values keep their payload types
// so numeric cells stay numeric.
func (a *Assembler) GenerateExcel(ctx context.Context, doc *mapping.Document, payload *value.Map) ([]byte, error) {
	cells := doc.CellMap()
	if cells.Len() == 0 {
		return nil, errf(KindInvalidPlan, nil, "mapping has no excel cell entries")
	}

	var mutations []excel.Mutation
	var resolveErr error
	cells.Range(func(cell string, path any) bool {
		expr := value.Stringify(path)
		var v any
		switch {
		case funcs.IsExpression(expr):
			s, err := a.funcs.Resolve(expr, payload)
			if err != nil {
				resolveErr = errf(KindInvalidPlan, err, "cell %s: %v", cell, err)
				return false
			}
			v = s
		case pathexpr.IsStatic(expr):
			v = strings.TrimPrefix(expr, pathexpr.StaticPrefix)
		default:
			v = pathexpr.Resolve(payload, expr)
		}
		if v == nil {
			return true
		}
		mutations = append(mutations, excel.Mutation{Cell: cell, Value: value.Plain(v)})
		return true
	})
	if resolveErr != nil {
		return nil, resolveErr
	}

	var template []byte
	if doc.Template != nil && doc.Template.URL != "" {
		var err error
		template, err = a.loadTemplateBytes(ctx, doc.Template.URL)
		if err != nil {
			return nil, translateTemplateError(doc.Template.URL, err)
		}
	}
	out, err := excel.Fill(template, mutations)
	if err != nil {
		return nil, errf(KindRenderFailure, err, "workbook fill failed")
	}
	return out, nil
}

// resolveRawFieldValues maps field names to values without the form
// string conversion: template models keep the original payload types.
func (a *Assembler) resolveRawFieldValues(fields *value.Map, payload *value.Map) (*value.Map, error) {
	out := value.NewMap()
	var resolveErr error
	fields.Range(func(name string, path any) bool {
		expr := value.Stringify(path)
		switch {
		case funcs.IsExpression(expr):
			s, err := a.funcs.Resolve(expr, payload)
			if err != nil {
				resolveErr = errf(KindInvalidPlan, err, "field %s: %v", name, err)
				return false
			}
			out.Set(name, s)
		case pathexpr.IsStatic(expr):
			out.Set(name, strings.TrimPrefix(expr, pathexpr.StaticPrefix))
		default:
			v := pathexpr.Resolve(payload, expr)
			if v == nil {
				out.Set(name, "")
			} else {
				out.Set(name, v)
			}
		}
		return true
	})
	if resolveErr != nil {
		return nil, resolveErr
	}
	return out, nil
}

// keyValuePDF draws the resolved fields as a two-column listing.
func keyValuePDF(fields *value.Map) ([]byte, error) {
	doc := fpdf.New("P", "pt", "Letter", "")
	doc.SetMargins(pageMargin, pageMargin, pageMargin)
	doc.AddPage()
	doc.SetFont("Helvetica", "B", 14)
	doc.CellFormat(0, lineHeight*1.5, "Generated Document", "", 1, "L", false, 0, "")
	doc.Ln(lineHeight / 2)
	doc.SetFont("Helvetica", "", 10)
	fields.Range(func(name string, v any) bool {
		doc.SetFont("Helvetica", "B", 10)
		doc.CellFormat(180, lineHeight, name+":", "", 0, "L", false, 0, "")
		doc.SetFont("Helvetica", "", 10)
		doc.MultiCell(0, lineHeight, value.Stringify(v), "", "L", false)
		return true
	})

	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, errf(KindRenderFailure, err, "key-value rendering failed")
	}
	return buf.Bytes(), nil
}
