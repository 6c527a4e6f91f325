package services

import (
	"encoding/json"
	"os"
	"strings"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

// TermDictionary maps clinical abbreviations and lay phrases to the terms
// charts actually use ("htn" -> "hypertension", "sugar" -> "diabetes").
type TermDictionary struct {
	terms map[string][]string
	// first word -> multi-word keys starting with it
	multiWordIndex map[string][]string
}

// NewTermDictionary builds a dictionary from an in-memory map
func NewTermDictionary(entries map[string][]string) *TermDictionary {
	d := &TermDictionary{
		terms:          make(map[string][]string),
		multiWordIndex: make(map[string][]string),
	}
	for key, related := range entries {
		k := utils.NormalizeText(key)
		if k == "" {
			continue
		}
		for _, r := range related {
			if r = utils.NormalizeText(r); r != "" {
				d.terms[k] = append(d.terms[k], r)
			}
		}
		if words := strings.Fields(k); len(words) > 1 {
			d.multiWordIndex[words[0]] = append(d.multiWordIndex[words[0]], k)
		}
	}
	return d
}

// LoadTermDictionary reads a JSON object of term -> related terms
func LoadTermDictionary(path string) (*TermDictionary, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var raw map[string][]string
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	return NewTermDictionary(raw), nil
}

// Len returns the number of dictionary keys
func (d *TermDictionary) Len() int {
	if d == nil {
		return 0
	}
	return len(d.terms)
}

// Expand returns the related terms of every dictionary key found in query,
// longest phrases first.
func (d *TermDictionary) Expand(query string) []string {
	if d == nil || len(d.terms) == 0 {
		return nil
	}
	words := utils.Tokenize(query)
	var out []string
	used := make(map[int]bool)
	for i, w := range words {
		for _, phrase := range d.multiWordIndex[w] {
			n := len(strings.Fields(phrase))
			if i+n > len(words) || strings.Join(words[i:i+n], " ") != phrase {
				continue
			}
			out = append(out, d.terms[phrase]...)
			for j := i; j < i+n; j++ {
				used[j] = true
			}
		}
	}
	for i, w := range words {
		if used[i] {
			continue
		}
		out = append(out, d.terms[w]...)
	}
	return out
}

// KeywordMatcher validates patients against the condition keywords of a
// free-text query using substring and bounded edit-distance matching.
type KeywordMatcher struct {
	dict *TermDictionary
}

// NewKeywordMatcher creates a new keyword matcher. dict may be nil.
func NewKeywordMatcher(dict *TermDictionary) *KeywordMatcher {
	return &KeywordMatcher{dict: dict}
}

// Keywords strips stop-words from query and adds dictionary expansions
func (m *KeywordMatcher) Keywords(query string) []string {
	keywords := utils.ExtractKeywords(query)
	seen := make(map[string]struct{}, len(keywords))
	for _, k := range keywords {
		seen[k] = struct{}{}
	}
	for _, related := range m.dict.Expand(query) {
		if _, ok := seen[related]; ok {
			continue
		}
		seen[related] = struct{}{}
		keywords = append(keywords, related)
	}
	return keywords
}

// Matches reports whether any clinical text of the profile matches any
// keyword
func (m *KeywordMatcher) Matches(profile *entities.PatientProfile, keywords []string) bool {
	return matchesExpanded(profile, utils.ExpandKeywords(keywords))
}

// Filter returns the profiles matching any keyword, in input order
func (m *KeywordMatcher) Filter(profiles []*entities.PatientProfile, keywords []string) []*entities.PatientProfile {
	expanded := utils.ExpandKeywords(keywords)
	if len(expanded) == 0 {
		return nil
	}
	var out []*entities.PatientProfile
	for _, p := range profiles {
		if matchesExpanded(p, expanded) {
			out = append(out, p)
		}
	}
	return out
}

func matchesExpanded(profile *entities.PatientProfile, expanded []string) bool {
	if profile == nil || len(expanded) == 0 {
		return false
	}
	for _, text := range profile.ClinicalTexts() {
		if utils.ContainsKeyword(text, expanded) {
			return true
		}
	}
	return false
}
