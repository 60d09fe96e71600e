package rag

import (
	"strings"
	"testing"
	"unicode/utf8"
)

func Test_Snippet_CapsAtRuneBoundary(t *testing.T) {
	t.Parallel()

	// 450 multi-byte runes exceed the cap in characters; the snippet must
	// hold exactly maxSnippetLen runes and stay valid UTF-8.
	text := strings.Repeat("€", 450)
	got := snippet(text)
	if !utf8.ValidString(got) {
		t.Error("snippet is not valid UTF-8")
	}
	if n := utf8.RuneCountInString(got); n != maxSnippetLen {
		t.Errorf("snippet holds %d characters, want %d", n, maxSnippetLen)
	}
}

func Test_Snippet_ShortTextUntouched(t *testing.T) {
	t.Parallel()

	// Under the cap in characters even though over it in bytes.
	text := strings.Repeat("é", 280)
	if got := snippet(text); got != text {
		t.Error("text under the cap must pass through unchanged")
	}
}
