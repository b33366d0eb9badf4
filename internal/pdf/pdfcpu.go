package pdf

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/go-pdf/fpdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
)

// letter page geometry in points
const (
	letterWidth  = 612.0
	letterHeight = 792.0
	lineMargin   = 36.0
)

// Processor implements Engine on pdfcpu.
type Processor struct{}

func NewProcessor() *Processor {
	return &Processor{}
}

func conf() *model.Configuration {
	c := model.NewDefaultConfiguration()
	c.ValidationMode = model.ValidationRelaxed
	return c
}

func (p *Processor) Merge(docs [][]byte) ([]byte, error) {
	if len(docs) == 0 {
		return nil, &Error{Op: "merge", Cause: fmt.Errorf("no documents to merge")}
	}
	if len(docs) == 1 {
		return docs[0], nil
	}
	readers := make([]io.ReadSeeker, len(docs))
	for i, d := range docs {
		readers[i] = bytes.NewReader(d)
	}
	var out bytes.Buffer
	if err := api.MergeRaw(readers, &out, false, conf()); err != nil {
		return nil, &Error{Op: "merge", Cause: err}
	}
	return out.Bytes(), nil
}

func (p *Processor) PageCount(doc []byte) (int, error) {
	n, err := api.PageCount(bytes.NewReader(doc), conf())
	if err != nil {
		return 0, &Error{Op: "page count", Cause: err}
	}
	return n, nil
}

func (p *Processor) StampText(doc []byte, stamps []TextStamp) ([]byte, error) {
	// Watermark maps hold one stamp per page, so overlapping stamps
	// (header left/center/right) are applied in successive passes.
	var passes []map[int]*model.Watermark
	for _, s := range stamps {
		wm, err := textWatermark(s)
		if err != nil {
			return nil, &Error{Op: "stamp", Cause: err}
		}
		placed := false
		for _, pass := range passes {
			if _, taken := pass[s.Page]; !taken {
				pass[s.Page] = wm
				placed = true
				break
			}
		}
		if !placed {
			passes = append(passes, map[int]*model.Watermark{s.Page: wm})
		}
	}
	for _, pass := range passes {
		var out bytes.Buffer
		if err := api.AddWatermarksMap(bytes.NewReader(doc), &out, pass, conf()); err != nil {
			return nil, &Error{Op: "stamp", Cause: err}
		}
		doc = out.Bytes()
	}
	return doc, nil
}

func textWatermark(s TextStamp) (*model.Watermark, error) {
	font := s.Font
	if font == "" {
		font = "Helvetica"
	}
	size := s.Size
	if size <= 0 {
		size = 10
	}
	dy := s.OffsetY
	if posFromTop(s.Position) {
		dy = -dy
	}
	desc := fmt.Sprintf("fontname:%s, points:%d, pos:%s, off:0 %.1f, fillcol:#000000, rot:0, scalefactor:1 abs, op:1",
		font, size, posCode(s.Position), dy)
	return api.TextWatermark(s.Text, desc, true, false, types.POINTS)
}

func posCode(position string) string {
	switch position {
	case TopLeft:
		return "tl"
	case TopCenter:
		return "tc"
	case TopRight:
		return "tr"
	case BottomLeft:
		return "bl"
	case BottomRight:
		return "br"
	default:
		return "bc"
	}
}

func posFromTop(position string) bool {
	switch position {
	case TopLeft, TopCenter, TopRight:
		return true
	}
	return false
}

// StampLine draws a horizontal separator on every page from fromPage
// onward, via a single-page overlay applied as a stamp.
func (p *Processor) StampLine(doc []byte, line Line, fromPage int) ([]byte, error) {
	overlay, err := lineOverlay(line)
	if err != nil {
		return nil, &Error{Op: "separator", Cause: err}
	}
	tmp, err := os.CreateTemp("", "overlay-*.pdf")
	if err != nil {
		return nil, &Error{Op: "separator", Cause: err}
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(overlay); err != nil {
		tmp.Close()
		return nil, &Error{Op: "separator", Cause: err}
	}
	tmp.Close()

	wm, err := api.PDFWatermark(tmp.Name(), "pos:c, rot:0, scalefactor:1 abs, op:1", true, false, types.POINTS)
	if err != nil {
		return nil, &Error{Op: "separator", Cause: err}
	}
	if fromPage < 1 {
		fromPage = 1
	}
	pages := []string{strconv.Itoa(fromPage) + "-"}
	var out bytes.Buffer
	if err := api.AddWatermarks(bytes.NewReader(doc), &out, pages, wm, conf()); err != nil {
		return nil, &Error{Op: "separator", Cause: err}
	}
	return out.Bytes(), nil
}

func lineOverlay(line Line) ([]byte, error) {
	y := line.Y
	if !line.FromTop {
		y = letterHeight - line.Y
	}
	width := line.Width
	if width <= 0 {
		width = 0.5
	}
	r, g, b := parseHexColor(line.Color)

	doc := fpdf.New("P", "pt", "Letter", "")
	doc.AddPage()
	doc.SetDrawColor(r, g, b)
	doc.SetLineWidth(width)
	doc.Line(lineMargin, y, letterWidth-lineMargin, y)
	var buf bytes.Buffer
	if err := doc.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func parseHexColor(s string) (int, int, int) {
	if len(s) == 7 && s[0] == '#' {
		if v, err := strconv.ParseUint(s[1:], 16, 32); err == nil {
			return int(v >> 16), int(v >> 8 & 0xff), int(v & 0xff)
		}
	}
	return 0, 0, 0
}

func (p *Processor) AddBookmarks(doc []byte, bookmarks []Bookmark) ([]byte, error) {
	if len(bookmarks) == 0 {
		return doc, nil
	}
	var out bytes.Buffer
	if err := api.AddBookmarks(bytes.NewReader(doc), &out, toOutline(bookmarks), true, conf()); err != nil {
		return nil, &Error{Op: "bookmarks", Cause: err}
	}
	return out.Bytes(), nil
}

func toOutline(bookmarks []Bookmark) []pdfcpu.Bookmark {
	out := make([]pdfcpu.Bookmark, len(bookmarks))
	for i, b := range bookmarks {
		out[i] = pdfcpu.Bookmark{
			Title:    b.Title,
			PageFrom: b.Page,
			Kids:     toOutline(b.Children),
		}
	}
	return out
}
