// Package chunk implements text normalization and overlapping-window
// chunking for the ingestion pipeline. Normalization flattens extracted
// document text (PDF line wraps, HTML whitespace) into a single clean line;
// Split then advances a fixed-width window across it with a configurable
// overlap. Chunks are the unit of embedding and retrieval.
package chunk

import (
	"regexp"
	"strings"
)

// Default window parameters used when a caller passes zero values.
const (
	// DefaultSize is the default chunk width in characters.
	DefaultSize = 1000
	// DefaultOverlap is the default number of characters shared between
	// consecutive chunks.
	DefaultOverlap = 200
)

var (
	// hyphenBreak matches a hyphen followed by a line break, i.e. a word
	// wrapped across lines in extracted PDF text ("ware-\nhouse").
	hyphenBreak = regexp.MustCompile(`-\s*\n\s*`)
	// newlineRun matches one or more consecutive newlines.
	newlineRun = regexp.MustCompile(`\n+`)
	// spaceRun matches runs of spaces and tabs.
	spaceRun = regexp.MustCompile(`[ \t]+`)
	// multiSpace matches two or more whitespace characters of any kind.
	multiSpace = regexp.MustCompile(`\s{2,}`)
)

// Normalize cleans extracted document text for chunking: CRLF/CR become LF,
// words hyphenated across line breaks are rejoined, whitespace runs collapse
// to single spaces, and the result is flattened to one trimmed line.
// Normalize is idempotent: Normalize(Normalize(s)) == Normalize(s).
func Normalize(text string) string {
	t := strings.ReplaceAll(text, "\r\n", "\n")
	t = strings.ReplaceAll(t, "\r", "\n")
	t = hyphenBreak.ReplaceAllString(t, "")
	t = newlineRun.ReplaceAllString(t, "\n")
	t = spaceRun.ReplaceAllString(t, " ")
	t = strings.ReplaceAll(t, "\n", " ")
	t = multiSpace.ReplaceAllString(t, " ")
	return strings.TrimSpace(t)
}

// Split cuts text into overlapping windows of size characters, advancing by
// size-overlap each step. Windows that are empty after trimming whitespace
// are dropped. Invalid parameters are clamped rather than rejected: a
// non-positive size falls back to DefaultSize and overlap is clamped into
// [0, size).
//
// size and overlap count characters, not bytes, so window boundaries never
// land inside a multi-byte rune and every chunk is valid UTF-8.
//
// A text shorter than size yields exactly one chunk (the trimmed text).
// An empty or all-whitespace text yields no chunks.
func Split(text string, size, overlap int) []string {
	if size <= 0 {
		size = DefaultSize
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= size {
		overlap = size - 1
	}

	runes := []rune(text)
	stride := size - overlap
	var chunks []string
	for start := 0; start < len(runes); start += stride {
		end := start + size
		if end > len(runes) {
			end = len(runes)
		}
		window := strings.TrimSpace(string(runes[start:end]))
		if window != "" {
			chunks = append(chunks, window)
		}
		if end == len(runes) {
			break
		}
	}
	return chunks
}
