package rag

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// contextSeparator joins retrieved chunk texts in the prompt context so the
// model can tell chunk boundaries apart from ordinary paragraph breaks.
const contextSeparator = "\n\n---\n\n"

// emptyContextPlaceholder stands in for the context when retrieval returned
// nothing. The prompt still goes out; the model is instructed to say it
// does not know rather than invent an answer.
const emptyContextPlaceholder = "(no context retrieved)"

// maxSnippetLen caps citation snippets.
const maxSnippetLen = 300

// systemPrompt frames every query. The model must answer strictly from the
// supplied context.
const systemPrompt = `You are a logistics knowledge assistant. Answer the question using ONLY the provided context from the knowledge base (shipping documents, SOPs, customs rules, carrier contracts, sensor reports). If the context does not contain the answer, say you don't know — do not invent facts, figures, or regulations. When the context includes concrete values (temperatures, durations, HS codes, dates), quote them exactly.`

// styleDirectives is the fixed set of answer formats. Unknown styles fall
// back to DefaultStyle.
var styleDirectives = map[string]string{
	"concise":   "Answer in one or two short sentences.",
	"bulleted":  "Answer as a bulleted list of the key points.",
	"detailed":  "Answer thoroughly in full paragraphs, covering caveats and edge cases present in the context.",
	"json-list": `Answer as a JSON array of strings, one finding per element, with no surrounding prose.`,
}

// DefaultStyle is used when the caller passes an empty or unknown style.
const DefaultStyle = "concise"

// resolveStyle maps a requested style to a known one.
func resolveStyle(style string) string {
	s := strings.ToLower(strings.TrimSpace(style))
	if _, ok := styleDirectives[s]; ok {
		return s
	}
	return DefaultStyle
}

// buildUserPrompt assembles the context block, the question, and the style
// directive into the single user message sent to the model.
func buildUserPrompt(contextText, question, style string) string {
	if contextText == "" {
		contextText = emptyContextPlaceholder
	}
	return fmt.Sprintf("Context:\n%s\n\nQuestion: %s\n\n%s", contextText, question, styleDirectives[style])
}

// snippet truncates a document text to maxSnippetLen characters for use
// in a citation. Truncation happens at a rune boundary so the snippet
// stays valid UTF-8.
func snippet(text string) string {
	if utf8.RuneCountInString(text) <= maxSnippetLen {
		return text
	}
	return string([]rune(text)[:maxSnippetLen])
}
