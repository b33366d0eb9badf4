// Package excel writes resolved cell mutations into xlsx workbooks.
package excel

import (
	"bytes"
	"errors"
	"fmt"
	"strings"

	"github.com/xuri/excelize/v2"
)

// ErrRendererUnavailable is returned by ConvertToPDF. Workbook to PDF
// conversion needs an external renderer that is not part of this
// service.
var ErrRendererUnavailable = errors.New("excel to pdf conversion requires an external renderer; none is configured")

// Mutation writes one value into one cell. Cell accepts "B4" or
// "Sheet2!B4"; without a sheet prefix the first sheet is used.
type Mutation struct {
	Cell  string
	Value any
}

// Error describes a failed workbook operation.
type Error struct {
	Message string
	Cause   error
}

func (e *Error) Error() string {
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Fill applies mutations to a workbook template. A nil template starts
// from an empty workbook.
func Fill(template []byte, mutations []Mutation) ([]byte, error) {
	var f *excelize.File
	var err error
	if len(template) == 0 {
		f = excelize.NewFile()
	} else {
		f, err = excelize.OpenReader(bytes.NewReader(template))
		if err != nil {
			return nil, &Error{Message: "workbook template could not be opened", Cause: err}
		}
	}
	defer f.Close()

	for _, m := range mutations {
		sheet, cell := splitCellRef(f, m.Cell)
		if cell == "" {
			return nil, &Error{Message: fmt.Sprintf("invalid cell reference: %q", m.Cell)}
		}
		if err := f.SetCellValue(sheet, cell, m.Value); err != nil {
			return nil, &Error{Message: fmt.Sprintf("could not write cell %s", m.Cell), Cause: err}
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, &Error{Message: "workbook serialization failed", Cause: err}
	}
	return buf.Bytes(), nil
}

func splitCellRef(f *excelize.File, ref string) (sheet, cell string) {
	ref = strings.TrimSpace(ref)
	if s, c, ok := strings.Cut(ref, "!"); ok {
		return s, c
	}
	return f.GetSheetName(0), ref
}

// ConvertToPDF is the Excel to PDF entry point.
func ConvertToPDF([]byte) ([]byte, error) {
	return nil, ErrRendererUnavailable
}
