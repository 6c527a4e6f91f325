package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeText(t *testing.T) {
	assert.Equal(t, "chest pain since monday", NormalizeText("  Chest\tPAIN\n since   Monday "))
	assert.Equal(t, "", NormalizeText(" \n\t "))
	// NFKC folds the full-width letters.
	assert.Equal(t, "bp", NormalizeText("ＢＰ"))
}

func TestNormalizeTerm(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Severe headache.", "headache"},
		{"a mild cough", "cough"},
		{"  Shortness of Breath!  ", "shortness of breath"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeTerm(tt.in))
		})
	}
}

func TestTokenize(t *testing.T) {
	assert.Equal(t, []string{"patients", "with", "type-2", "diabetes"}, Tokenize("Patients with type-2 diabetes?"))
}

func TestUniqueTerms(t *testing.T) {
	got := UniqueTerms([]string{"Headache", "headache.", " ", "Nausea", "severe headache"})
	assert.Equal(t, []string{"Headache", "Nausea"}, got)
}

func TestSnippet(t *testing.T) {
	assert.Equal(t, "short", Snippet("short", 10))
	assert.Equal(t, "hello…", Snippet("hello world foo", 8))
}
