package utils

import (
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
)

const (
	// MaxKeywordEditDistance is the largest edit distance tolerated between a
	// record word and a query keyword.
	MaxKeywordEditDistance = 2
	minFuzzyWordLength     = 4
	minSubstringLength     = 3
	minKeywordLength       = 3
)

var queryStopWords = map[string]struct{}{
	"a": {}, "about": {}, "all": {}, "an": {}, "and": {}, "any": {}, "are": {}, "as": {},
	"at": {}, "by": {}, "can": {}, "case": {}, "cases": {}, "chart": {}, "charts": {},
	"condition": {}, "conditions": {}, "create": {}, "data": {}, "diagnosed": {},
	"do": {}, "does": {}, "every": {}, "everyone": {}, "find": {}, "for": {}, "from": {},
	"generate": {}, "get": {}, "give": {}, "had": {}, "has": {}, "have": {}, "having": {},
	"history": {}, "how": {}, "i": {}, "in": {}, "is": {}, "list": {}, "many": {},
	"me": {}, "my": {}, "of": {}, "on": {}, "or": {}, "our": {}, "overview": {},
	"patient": {}, "patients": {}, "people": {}, "please": {}, "population": {},
	"record": {}, "records": {}, "report": {}, "reports": {}, "show": {},
	"suffering": {}, "summarize": {}, "summary": {}, "that": {}, "the": {},
	"their": {}, "them": {}, "those": {}, "to": {}, "visit": {}, "visits": {},
	"was": {}, "were": {}, "what": {}, "which": {}, "who": {}, "whom": {},
	"with": {},
}

// EditDistance returns the Levenshtein distance between two strings,
// counted in runes.
func EditDistance(a, b string) int {
	return levenshtein.ComputeDistance(a, b)
}

// WithinEditDistance reports whether a and b differ by at most max edits.
// Pairs whose lengths differ by more than max are never compared.
func WithinEditDistance(a, b string, max int) bool {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	diff := la - lb
	if diff < 0 {
		diff = -diff
	}
	if diff > max {
		return false
	}
	return EditDistance(a, b) <= max
}

// FuzzyWordMatch compares a single record word to a keyword. Words shorter
// than four runes must match exactly; four-rune words tolerate one edit and
// longer words tolerate MaxKeywordEditDistance.
func FuzzyWordMatch(word, keyword string) bool {
	if word == keyword {
		return true
	}
	shortest := utf8.RuneCountInString(word)
	if n := utf8.RuneCountInString(keyword); n < shortest {
		shortest = n
	}
	if shortest < minFuzzyWordLength {
		return false
	}
	max := MaxKeywordEditDistance
	if shortest == minFuzzyWordLength {
		max = 1
	}
	return WithinEditDistance(word, keyword, max)
}

// NearEqual reports whether two clinical terms are the same finding after
// normalization, allowing a plural suffix or one typo on longer terms.
func NearEqual(a, b string) bool {
	na, nb := NormalizeTerm(a), NormalizeTerm(b)
	if na == "" || nb == "" {
		return false
	}
	if na == nb {
		return true
	}
	if singular(na) == singular(nb) {
		return true
	}
	if utf8.RuneCountInString(na) >= 5 && utf8.RuneCountInString(nb) >= 5 {
		return WithinEditDistance(na, nb, 1)
	}
	return false
}

func singular(term string) string {
	words := strings.Fields(term)
	for i, w := range words {
		if utf8.RuneCountInString(w) > 3 && strings.HasSuffix(w, "s") && !strings.HasSuffix(w, "ss") {
			words[i] = strings.TrimSuffix(w, "s")
		}
	}
	return strings.Join(words, " ")
}

// ExtractKeywords strips stop-words from a free-text query and returns the
// remaining condition keywords in query order.
func ExtractKeywords(query string) []string {
	seen := make(map[string]struct{})
	var keywords []string
	for _, w := range Tokenize(query) {
		w = strings.Trim(w, "-")
		if utf8.RuneCountInString(w) < minKeywordLength {
			continue
		}
		if _, stop := queryStopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		keywords = append(keywords, w)
	}
	return keywords
}

// KeywordVariants expands a keyword with simple morphological variants
// (trailing "ing", "s", "ed" removed) and a form with the final character
// dropped.
func KeywordVariants(keyword string) []string {
	k := NormalizeText(keyword)
	if k == "" {
		return nil
	}
	variants := []string{k}
	add := func(v string) {
		if utf8.RuneCountInString(v) < minKeywordLength {
			return
		}
		for _, existing := range variants {
			if existing == v {
				return
			}
		}
		variants = append(variants, v)
	}
	for _, suffix := range []string{"ing", "s", "ed"} {
		if strings.HasSuffix(k, suffix) {
			add(strings.TrimSuffix(k, suffix))
		}
	}
	if runes := []rune(k); len(runes) >= 5 {
		add(string(runes[:len(runes)-1]))
	}
	return variants
}

// ExpandKeywords returns the union of KeywordVariants for every keyword.
func ExpandKeywords(keywords []string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, k := range keywords {
		for _, v := range KeywordVariants(k) {
			if _, ok := seen[v]; ok {
				continue
			}
			seen[v] = struct{}{}
			out = append(out, v)
		}
	}
	return out
}

// ContainsKeyword reports whether text contains any expanded keyword as a
// substring, or a word within the bounded edit distance of one.
func ContainsKeyword(text string, expanded []string) bool {
	if len(expanded) == 0 {
		return false
	}
	normalized := NormalizeText(text)
	if normalized == "" {
		return false
	}
	for _, v := range expanded {
		if utf8.RuneCountInString(v) >= minSubstringLength && strings.Contains(normalized, v) {
			return true
		}
	}
	for _, word := range Tokenize(normalized) {
		for _, v := range expanded {
			if FuzzyWordMatch(word, v) {
				return true
			}
		}
	}
	return false
}
