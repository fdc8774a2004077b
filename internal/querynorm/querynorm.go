// Package querynorm turns raw user queries into ordered lexical variants that are
// insensitive to case, diacritics, and hyphen/space separators.
package querynorm

import (
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Queries up to shortQueryRunes get no expansion; condensed forms shorter than minCondensed are dropped.
const (
	shortQueryRunes = 2
	minCondensed    = 3
)

// combiningBreve survives folding so that "й" stays distinct from "и".
const combiningBreve = '\u0306'

var stripMarks = runes.Remove(runes.Predicate(func(r rune) bool {
	return unicode.Is(unicode.Mn, r) && r != combiningBreve
}))

// Basic lowercases, folds diacritics ("ё" -> "е"), trims, and collapses inner whitespace.
// Basic(Basic(q)) == Basic(q).
func Basic(q string) string {
	q = strings.ToLower(q)

	// A fresh chain per call: transform.Chain keeps state and is not safe for concurrent use.
	folded, _, err := transform.String(transform.Chain(norm.NFD, stripMarks, norm.NFC), q)
	if err == nil {
		q = folded
	}

	return strings.Join(strings.Fields(q), " ")
}

// Variants returns distinct variants of q, base form first. Queries of at most two
// runes yield only the base form; an empty query yields nil.
func Variants(q string) []string {
	base := Basic(q)
	if base == "" {
		return nil
	}

	if utf8.RuneCountInString(base) <= shortQueryRunes {
		return []string{base}
	}

	out := newOrderedSet(base)

	condensed := strings.NewReplacer(" ", "", "-", "").Replace(base)
	if utf8.RuneCountInString(condensed) >= minCondensed && condensed != base {
		out.add(condensed)
	}

	words := strings.FieldsFunc(base, isSeparator)

	if strings.Contains(base, "-") {
		out.add(strings.Join(words, " "))
	}

	if strings.Contains(base, " ") {
		out.add(strings.Join(words, "-"))
	}

	if hasLetter(condensed) && hasDigit(condensed) {
		out.add(splitLetterDigit(condensed, '-'))
		out.add(splitLetterDigit(condensed, ' '))
	}

	tokens := pairTokens(base)
	if len(tokens) > 1 {
		for i := 0; i+1 < len(tokens); i++ {
			a, b := tokens[i], tokens[i+1]
			out.add(a + b)
			out.add(a + "-" + b)

			if len(tokens) > 2 {
				out.add(a + " " + b)
			}
		}

		if len(tokens) == 2 && utf8.RuneCountInString(tokens[1]) == 1 {
			out.add(tokens[0])
		}
	}

	return out.items
}

// splitLetterDigit inserts sep at every boundary between a letter and a digit.
func splitLetterDigit(s string, sep rune) string {
	var b strings.Builder

	var prev rune

	for i, r := range s {
		if i > 0 && (unicode.IsLetter(prev) && unicode.IsDigit(r) || unicode.IsDigit(prev) && unicode.IsLetter(r)) {
			b.WriteRune(sep)
		}

		b.WriteRune(r)
		prev = r
	}

	return b.String()
}

func isSeparator(r rune) bool { return r == ' ' || r == '-' }

// pairTokens splits on whitespace and trims dangling hyphens, so "праймер-" and a lone "-"
// do not produce hyphen-only pieces.
func pairTokens(base string) []string {
	fields := strings.Fields(base)
	tokens := fields[:0]

	for _, f := range fields {
		if f = strings.Trim(f, "-"); f != "" {
			tokens = append(tokens, f)
		}
	}

	return tokens
}

func hasLetter(s string) bool { return strings.IndexFunc(s, unicode.IsLetter) >= 0 }

func hasDigit(s string) bool { return strings.IndexFunc(s, unicode.IsDigit) >= 0 }

type orderedSet struct {
	seen  map[string]struct{}
	items []string
}

func newOrderedSet(first string) *orderedSet {
	s := &orderedSet{seen: make(map[string]struct{})}
	s.add(first)

	return s
}

// add stores v in its whitespace-collapsed form so every variant is already normalized.
func (s *orderedSet) add(v string) {
	v = strings.Join(strings.Fields(v), " ")
	if v == "" {
		return
	}

	if _, ok := s.seen[v]; ok {
		return
	}

	s.seen[v] = struct{}{}
	s.items = append(s.items, v)
}
