// Package extract converts raw document bytes (PDF, HTML, plain text) into
// plain text for chunking. Each format has a best-effort strategy: PDFs get
// a whole-document text pass with a per-page fallback, HTML is stripped of
// page chrome and boilerplate, and anything else is decoded as UTF-8.
// Extraction failure for one document must never abort an ingestion batch —
// callers treat an error as "zero chunks for this document" and move on.
package extract

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

// chromeKeywords identify container elements that hold page furniture rather
// than content. Elements whose class or id contains any of these are dropped
// before text extraction.
var chromeKeywords = []string{
	"header", "footer", "nav", "menu", "sidebar",
	"cookie", "banner", "subscribe", "modal",
}

// Text extracts plain text from data, choosing a strategy from the file name
// and declared content type. PDFs and HTML get dedicated extractors; all
// other inputs fall back to a lossy UTF-8 decode.
func Text(data []byte, name, contentType string) (string, error) {
	switch {
	case isPDF(data, name, contentType):
		return PDF(data)
	case isHTML(data, contentType):
		return HTML(data)
	default:
		return strings.ToValidUTF8(string(data), ""), nil
	}
}

// isPDF reports whether the input looks like a PDF document.
func isPDF(data []byte, name, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "pdf") {
		return true
	}
	if strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return true
	}
	return bytes.HasPrefix(data, []byte("%PDF-"))
}

// isHTML reports whether the input looks like an HTML page.
func isHTML(data []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "html") {
		return true
	}
	head := strings.ToLower(string(data[:min(len(data), 1024)]))
	return strings.Contains(head, "<html") || strings.Contains(head, "<!doctype html")
}

// PDF extracts text from PDF bytes. It tries the whole-document text stream
// first; if that yields nothing it walks the pages individually, keeping
// whatever pages do decode. The PDF parser panics on some malformed inputs,
// so both passes run under a recover guard.
func PDF(data []byte) (text string, err error) {
	reader, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("extract: open pdf: %w", err)
	}

	if t := wholePDFText(reader); strings.TrimSpace(t) != "" {
		return t, nil
	}

	t := perPagePDFText(reader)
	if strings.TrimSpace(t) == "" {
		return "", fmt.Errorf("extract: pdf contained no extractable text")
	}
	return t, nil
}

// wholePDFText runs the reader's single-pass plain-text extraction.
// Returns "" on any failure.
func wholePDFText(reader *pdf.Reader) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	stream, err := reader.GetPlainText()
	if err != nil {
		return ""
	}
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, stream); err != nil {
		return ""
	}
	return buf.String()
}

// perPagePDFText extracts each page independently, skipping pages that fail.
func perPagePDFText(reader *pdf.Reader) string {
	var parts []string
	for i := 1; i <= reader.NumPage(); i++ {
		if t := onePageText(reader, i); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, "\n")
}

// onePageText extracts a single page under a recover guard.
func onePageText(reader *pdf.Reader, n int) (text string) {
	defer func() {
		if r := recover(); r != nil {
			text = ""
		}
	}()

	page := reader.Page(n)
	if page.V.IsNull() {
		return ""
	}
	t, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return t
}

// HTML extracts readable text from an HTML page. Script/style/navigation
// elements and containers that look like page chrome are removed; if the
// page has <main> or <article> regions only their text is kept, otherwise
// the whole remaining body is used.
func HTML(data []byte) (string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("extract: parse html: %w", err)
	}

	doc.Find("script, style, noscript, header, nav, footer, aside, form, button").Remove()

	doc.Find("*").Each(func(_ int, sel *goquery.Selection) {
		class, _ := sel.Attr("class")
		id, _ := sel.Attr("id")
		label := strings.ToLower(class + " " + id)
		for _, kw := range chromeKeywords {
			if strings.Contains(label, kw) {
				sel.Remove()
				return
			}
		}
	})

	var parts []string
	doc.Find("main, article").Each(func(_ int, sel *goquery.Selection) {
		if t := strings.TrimSpace(sel.Text()); t != "" {
			parts = append(parts, t)
		}
	})
	if len(parts) > 0 {
		return strings.Join(parts, "\n"), nil
	}

	return strings.TrimSpace(doc.Text()), nil
}
