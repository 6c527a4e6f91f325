package utils

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

var (
	nonTermChars = regexp.MustCompile(`[^\p{L}\p{N}\s\-'/.]`)
	leadingFill  = regexp.MustCompile(`^(?:a|an|the|some|any|mild|severe|moderate|occasional|intermittent)\s+`)
)

// NormalizeText applies NFKC normalization, drops control characters,
// lowercases and collapses whitespace.
func NormalizeText(text string) string {
	normed := norm.NFKC.String(text)
	normed = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, normed)
	return strings.Join(strings.Fields(strings.ToLower(normed)), " ")
}

// NormalizeTerm reduces a clinical finding ("Severe headache.") to the form
// used for equality checks ("headache").
func NormalizeTerm(term string) string {
	t := NormalizeText(term)
	t = nonTermChars.ReplaceAllString(t, "")
	t = strings.Trim(t, " .-'/")
	for {
		stripped := leadingFill.ReplaceAllString(t, "")
		if stripped == t {
			break
		}
		t = stripped
	}
	return strings.Join(strings.Fields(t), " ")
}

// Tokenize splits normalized text into words, dropping punctuation.
func Tokenize(text string) []string {
	return strings.FieldsFunc(NormalizeText(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r) && r != '-'
	})
}

// UniqueTerms normalizes terms and removes empties and duplicates while
// keeping the first spelling of each term.
func UniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := make([]string, 0, len(terms))
	for _, t := range terms {
		trimmed := strings.TrimSpace(t)
		key := NormalizeTerm(trimmed)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}

// Snippet returns at most maxRunes runes of text, cut on a word boundary.
func Snippet(text string, maxRunes int) string {
	text = strings.TrimSpace(text)
	runes := []rune(text)
	if maxRunes <= 0 || len(runes) <= maxRunes {
		return text
	}
	cut := string(runes[:maxRunes])
	if idx := strings.LastIndexAny(cut, " \n"); idx > maxRunes/2 {
		cut = cut[:idx]
	}
	return strings.TrimSpace(cut) + "…"
}
