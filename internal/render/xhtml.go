// Package render turns HTML templates into finished markup and, through
// a headless browser, into PDF bytes.
package render

import (
	"log"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

const (
	xhtmlNamespace = "http://www.w3.org/1999/xhtml"
	xmlProlog      = `<?xml version="1.0" encoding="utf-8"?>`
	pageSizeCSS    = "@page { size: 8.5in 11in; margin: 0; }"
)

// CoerceXHTML tidies arbitrary HTML into well-formed XHTML with the
// XHTML namespace and an XML prolog, injecting a default page size
// rule when the document declares none.
func CoerceXHTML(html string) string {
	html = strings.TrimPrefix(html, "\uFEFF")
	if i := strings.IndexByte(html, '<'); i > 0 {
		html = html[i:]
	}
	html = ensurePageSizeCSS(html)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		log.Printf("[RENDER] HTML tidy failed, coercing in place: %v", err)
		return coerceFallback(html)
	}
	root := doc.Find("html")
	if ns, _ := root.Attr("xmlns"); ns != xhtmlNamespace {
		root.SetAttr("xmlns", xhtmlNamespace)
	}
	out, err := doc.Html()
	if err != nil {
		log.Printf("[RENDER] HTML serialization failed, coercing in place: %v", err)
		return coerceFallback(html)
	}
	if !strings.HasPrefix(strings.TrimSpace(out), "<?xml") {
		out = xmlProlog + "\n" + out
	}
	return out
}

func coerceFallback(html string) string {
	if !strings.Contains(strings.ToLower(html), `xmlns="http://www.w3.org/1999/xhtml"`) {
		if i := strings.Index(strings.ToLower(html), "<html"); i != -1 {
			html = html[:i+5] + ` xmlns="` + xhtmlNamespace + `"` + html[i+5:]
		}
	}
	if !strings.HasPrefix(strings.TrimSpace(html), "<?xml") {
		html = xmlProlog + "\n" + html
	}
	return html
}

// ensurePageSizeCSS injects a US Letter @page rule unless the document
// already defines one.
func ensurePageSizeCSS(html string) string {
	if html == "" || strings.Contains(strings.ToLower(html), "@page") {
		return html
	}
	lower := strings.ToLower(html)
	if i := strings.Index(lower, "<style"); i != -1 {
		if end := strings.IndexByte(html[i:], '>'); end != -1 {
			at := i + end + 1
			return html[:at] + "\n" + pageSizeCSS + "\n" + html[at:]
		}
	}
	if i := strings.Index(lower, "</head>"); i != -1 {
		return html[:i] + "<style>" + pageSizeCSS + "</style>\n" + html[i:]
	}
	if i := strings.Index(lower, "<html"); i != -1 {
		if end := strings.IndexByte(html[i:], '>'); end != -1 {
			at := i + end + 1
			return html[:at] + "\n<head><style>" + pageSizeCSS + "</style></head>\n" + html[at:]
		}
	}
	return "<style>" + pageSizeCSS + "</style>\n" + html
}
