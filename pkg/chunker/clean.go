// Markup and noise removal ahead of Split. Segments are hashed and
// deduplicated by content, so two ingests of the same prose wrapped in
// different markup must normalise to identical bytes: the cleaner
// flattens tags to their visible text, drops runes that carry no
// retrievable content, and collapses whitespace runs, all in a single
// streaming pass.
package chunker

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// CleanText normalises raw source text before it reaches Split.
func CleanText(text string) string {
	var w cleanWriter
	w.b.Grow(len(text))

	z := html.NewTokenizer(strings.NewReader(text))
	hidden := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return w.b.String()
		case html.StartTagToken:
			if name, _ := z.TagName(); hiddenTag(string(name)) {
				hidden++
			}
			w.breakWord()
		case html.EndTagToken:
			if name, _ := z.TagName(); hiddenTag(string(name)) && hidden > 0 {
				hidden--
			}
			w.breakWord()
		case html.SelfClosingTagToken:
			w.breakWord()
		case html.TextToken:
			if hidden == 0 {
				w.writeText(z.Text())
			}
		}
	}
}

// hiddenTag reports elements whose content never renders as text.
func hiddenTag(name string) bool {
	switch name {
	case "script", "style", "head", "noscript", "template":
		return true
	}
	return false
}

// cleanWriter folds rune filtering and whitespace collapsing into one
// pass: a word break (whitespace or a tag boundary) becomes a single
// space, and only when more text follows, so output never carries
// leading or trailing space.
type cleanWriter struct {
	b         strings.Builder
	wordBreak bool
}

func (w *cleanWriter) breakWord() { w.wordBreak = true }

func (w *cleanWriter) writeText(raw []byte) {
	for _, r := range string(raw) {
		switch {
		case unicode.IsSpace(r):
			w.wordBreak = true
		case noiseRune(r):
			// dropped without becoming a word break, so a rune
			// stripped from inside a word does not split it
		default:
			if w.wordBreak && w.b.Len() > 0 {
				w.b.WriteByte(' ')
			}
			w.b.WriteRune(r)
			w.wordBreak = false
		}
	}
}

// noiseRune reports runes with no retrieval value: control characters,
// surrogates, private-use code points, emoji and other pictographic
// symbols, and variation selectors.
func noiseRune(r rune) bool {
	return unicode.In(r, unicode.Cc, unicode.Cs, unicode.Co, unicode.So, unicode.Sk, unicode.Variation_Selector)
}
