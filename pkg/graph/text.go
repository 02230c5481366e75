package graph

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

func isWordRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}

// normalizeText lower-cases s and collapses every whitespace run to a single
// space.
func normalizeText(s string) string {
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// wordIndex returns the byte offset of the first whole-word occurrence of
// phrase in text, or -1. Both arguments must already be normalized. A phrase
// edge that is a word character must not touch another word character, so
// "ceo" is not found inside "ceolicious".
func wordIndex(text, phrase string) int {
	if phrase == "" {
		return -1
	}
	first, _ := utf8.DecodeRuneInString(phrase)
	last, _ := utf8.DecodeLastRuneInString(phrase)
	checkBefore := isWordRune(first)
	checkAfter := isWordRune(last)

	offset := 0
	for offset <= len(text) {
		idx := strings.Index(text[offset:], phrase)
		if idx < 0 {
			return -1
		}
		start := offset + idx
		end := start + len(phrase)

		ok := true
		if checkBefore && start > 0 {
			prev, _ := utf8.DecodeLastRuneInString(text[:start])
			ok = !isWordRune(prev)
		}
		if ok && checkAfter && end < len(text) {
			next, _ := utf8.DecodeRuneInString(text[end:])
			ok = !isWordRune(next)
		}
		if ok {
			return start
		}

		_, size := utf8.DecodeRuneInString(text[start:])
		offset = start + size
	}
	return -1
}

func containsWord(text, phrase string) bool {
	return wordIndex(text, phrase) >= 0
}

// tokenize splits s into lower-cased word tokens.
func tokenize(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !isWordRune(r)
	})
}

func tokenSet(s string) map[string]struct{} {
	tokens := tokenize(s)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}

const maxSnippetLength = 200
const snippetPadding = 40

// snippet returns a whitespace-collapsed excerpt of text covering the byte
// range [start, end) plus some padding, capped at maxSnippetLength bytes.
func snippet(text string, start, end int) string {
	if start < 0 {
		start = 0
	}
	if end > len(text) {
		end = len(text)
	}
	if end < start {
		end = start
	}
	from := max(0, start-snippetPadding)
	to := min(len(text), end+snippetPadding)
	if to-from > maxSnippetLength {
		to = from + maxSnippetLength
	}
	for from > 0 && !utf8.RuneStart(text[from]) {
		from--
	}
	for to < len(text) && !utf8.RuneStart(text[to]) {
		to--
	}
	return strings.Join(strings.Fields(text[from:to]), " ")
}

// insertSorted adds v to the sorted set s and reports whether it was new.
func insertSorted(s []string, v string) ([]string, bool) {
	lo, hi := 0, len(s)
	for lo < hi {
		mid := (lo + hi) / 2
		if s[mid] < v {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if lo < len(s) && s[lo] == v {
		return s, false
	}
	s = append(s, "")
	copy(s[lo+1:], s[lo:])
	s[lo] = v
	return s, true
}

// unionSorted returns the sorted union of a and b without duplicates.
func unionSorted(a []string, b ...string) []string {
	out := make([]string, 0, len(a)+len(b))
	for _, v := range a {
		out, _ = insertSorted(out, v)
	}
	for _, v := range b {
		out, _ = insertSorted(out, v)
	}
	return out
}
