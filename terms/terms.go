// Package terms implements the filename/path term extractor: turning a
// basename or dirname into a set of normalized, lowercased search
// terms, with one documented deviation from a literal punctuation-class
// split — see replacePunctuation.
package terms

import (
	"strings"
	"unicode"
)

// accentTranslit maps accented Latin letters to their unaccented form.
// Extract emits both the accented and transliterated form of any term
// that contains one, so an accent-insensitive query ("gonzalez") still
// matches a properly-accented filename ("González").
var accentTranslit = map[rune]rune{
	'á': 'a', 'é': 'e', 'í': 'i', 'ó': 'o', 'ú': 'u', 'ü': 'u', 'ñ': 'n',
	'Á': 'A', 'É': 'E', 'Í': 'I', 'Ó': 'O', 'Ú': 'U', 'Ü': 'U', 'Ñ': 'N',
}

// Extract derives normalized search terms from a filename or path
// component. Punctuation is replaced with spaces, CamelCase words are
// split at internal case boundaries, digit/letter boundaries are
// split apart, and short fragments are dropped unless they are purely
// numeric or the single letter "c" — version suffixes like "07" and
// language tags like "c" are meaningful even under the usual
// 3-character floor.
func Extract(s string) []string {
	if s == "" {
		return nil
	}

	step := replacePunctuation(s)
	step = splitCamelCase(step)
	step = insertDigitLetterBoundaries(step)
	step = splitDotComma(step)

	var out []string
	seen := make(map[string]bool)
	add := func(term string) {
		if term == "" || seen[term] {
			return
		}
		seen[term] = true
		out = append(out, term)
	}

	for _, field := range strings.Fields(step) {
		lower := strings.ToLower(field)
		if !accept(lower) {
			continue
		}
		add(lower)
		if translit := transliterate(lower); translit != lower && accept(translit) {
			add(translit)
		}
	}
	return out
}

// punctuationClass is the punctuation set replaced with spaces, minus
// the apostrophe (handled separately below).
const punctuationClass = "!\"#$%&()*+-/:;<=>?@[\\]^_`{|}~"

// replacePunctuation replaces every character in the punctuation class
// with a space. The apostrophe is deliberately excluded from the
// blanket class and instead only replaced when it is NOT sitting
// directly between two letters: a naive blanket split would break
// "day's" into "day" and "s", destroying a contraction or possessive
// that should survive intact. This mirrors the same "word-internal
// survives" shape as the dot/comma exception in splitDotComma.
func replacePunctuation(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == '\'' {
			prevLetter := i > 0 && unicode.IsLetter(runes[i-1])
			nextLetter := i+1 < len(runes) && unicode.IsLetter(runes[i+1])
			if prevLetter && nextLetter {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
			continue
		}
		if strings.ContainsRune(punctuationClass, r) {
			b.WriteRune(' ')
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitCamelCase inserts a space before an uppercase letter that
// immediately follows a lowercase letter, and before an uppercase
// letter that follows any letter and is itself followed by a lowercase
// one, so "AFewCamelCasedWords"
// tokenizes into "A Few Camel Cased Words" — the leading single-letter
// fragment is then dropped by the length/whitelist rule in Extract.
func splitCamelCase(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i, r := range runes {
		nextLower := i+1 < len(runes) && unicode.IsLower(runes[i+1])
		if i > 0 && unicode.IsUpper(r) && (unicode.IsLower(runes[i-1]) || (unicode.IsLetter(runes[i-1]) && nextLower)) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// insertDigitLetterBoundaries inserts a space at every transition
// between an ASCII digit and a letter, in either direction.
func insertDigitLetterBoundaries(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s) + 8)
	for i, r := range runes {
		if i > 0 && isDigitLetterBoundary(runes[i-1], r) {
			b.WriteRune(' ')
		}
		b.WriteRune(r)
	}
	return b.String()
}

func isDigitLetterBoundary(a, b rune) bool {
	return (unicode.IsDigit(a) && unicode.IsLetter(b)) || (unicode.IsLetter(a) && unicode.IsDigit(b))
}

// splitDotComma splits on a '.' or ',' whenever at least one of its
// neighbors is not a digit, so "3.0" stays joined but "pub." and
// "a,b" split apart.
func splitDotComma(s string) string {
	runes := []rune(s)
	var b strings.Builder
	b.Grow(len(s))
	for i, r := range runes {
		if r == '.' || r == ',' {
			prevDigit := i > 0 && unicode.IsDigit(runes[i-1])
			nextDigit := i+1 < len(runes) && unicode.IsDigit(runes[i+1])
			if prevDigit && nextDigit {
				b.WriteRune(r)
			} else {
				b.WriteRune(' ')
			}
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// accept applies the short-fragment whitelist: a fragment of fewer
// than 3 runes is kept only if it is entirely digits or is the single
// letter "c".
func accept(fragment string) bool {
	if fragment == "" {
		return false
	}
	runes := []rune(fragment)
	if len(runes) >= 3 {
		return true
	}
	if fragment == "c" {
		return true
	}
	for _, r := range runes {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

func transliterate(s string) string {
	runes := []rune(s)
	changed := false
	for i, r := range runes {
		if repl, ok := accentTranslit[r]; ok {
			runes[i] = repl
			changed = true
		}
	}
	if !changed {
		return s
	}
	return string(runes)
}
