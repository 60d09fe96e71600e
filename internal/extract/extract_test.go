package extract

import (
	"strings"
	"testing"
)

func Test_Text_PlainFallback(t *testing.T) {
	t.Parallel()

	got, err := Text([]byte("reefer unit log for shipment 42"), "notes.txt", "text/plain")
	if err != nil {
		t.Fatalf("plain text extraction failed: %v", err)
	}
	if got != "reefer unit log for shipment 42" {
		t.Errorf("unexpected text: %q", got)
	}
}

func Test_Text_InvalidUTF8Dropped(t *testing.T) {
	t.Parallel()

	got, err := Text([]byte{'o', 'k', 0xff, 0xfe, '!'}, "blob.bin", "")
	if err != nil {
		t.Fatalf("raw decode failed: %v", err)
	}
	if got != "ok!" {
		t.Errorf("want invalid bytes dropped, got %q", got)
	}
}

func Test_HTML_StripsChromeAndPrefersMain(t *testing.T) {
	t.Parallel()

	page := `<!doctype html><html><head><style>body{}</style></head><body>
<nav>Home | About</nav>
<div class="cookie-banner">Accept cookies</div>
<main><p>Standard operating procedure for cold-chain handling.</p></main>
<footer>© Logistics Co</footer>
</body></html>`

	got, err := Text([]byte(page), "sop.html", "text/html")
	if err != nil {
		t.Fatalf("html extraction failed: %v", err)
	}
	if !strings.Contains(got, "Standard operating procedure") {
		t.Errorf("main content missing from %q", got)
	}
	for _, unwanted := range []string{"Accept cookies", "Home | About", "Logistics Co", "body{}"} {
		if strings.Contains(got, unwanted) {
			t.Errorf("page chrome %q leaked into extracted text", unwanted)
		}
	}
}

func Test_HTML_FallsBackToBodyText(t *testing.T) {
	t.Parallel()

	page := `<html><body><p>No main element here.</p></body></html>`
	got, err := HTML([]byte(page))
	if err != nil {
		t.Fatalf("html extraction failed: %v", err)
	}
	if !strings.Contains(got, "No main element here.") {
		t.Errorf("body text missing: %q", got)
	}
}

func Test_PDF_GarbageInputErrorsWithoutPanic(t *testing.T) {
	t.Parallel()

	if _, err := PDF([]byte("%PDF-1.7 not actually a pdf")); err == nil {
		t.Error("want error for malformed pdf, got nil")
	}
}

func Test_Text_SniffsPDFByMagic(t *testing.T) {
	t.Parallel()

	// Magic bytes route to the PDF extractor even with no extension or
	// content type; the malformed body then surfaces as an error rather
	// than silently decoding as text.
	if _, err := Text([]byte("%PDF-1.4 broken"), "upload", ""); err == nil {
		t.Error("want pdf extraction error, got nil")
	}
}
