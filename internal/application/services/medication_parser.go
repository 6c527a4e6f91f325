package services

import (
	"regexp"
	"strings"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

var (
	dosageRe    = regexp.MustCompile(`(?i)\b(\d+(?:\.\d+)?)\s*(` + dosageAlternation + `)\b`)
	frequencyRe = regexp.MustCompile(`(?i)\b(?:` + frequencyAlternation + `)\b`)
	leadingRe   = regexp.MustCompile(`(?i)^(?:on|taking|takes|started\s+on|currently\s+on|prescribed)\s+`)
)

// ParseMedication splits a free-text medication mention into name, dosage
// and frequency. Dosage and frequency are only filled when stated; when no
// name can be isolated the whole mention becomes the name.
func ParseMedication(raw string) entities.Medication {
	text := strings.Join(strings.Fields(raw), " ")
	text = leadingRe.ReplaceAllString(text, "")
	if text == "" {
		return entities.Medication{}
	}

	med := entities.Medication{}
	nameEnd := len(text)

	if loc := dosageRe.FindStringSubmatchIndex(text); loc != nil {
		med.Dosage = text[loc[2]:loc[3]] + " " + strings.ToLower(text[loc[4]:loc[5]])
		nameEnd = loc[0]
	}
	if loc := frequencyRe.FindStringIndex(text); loc != nil {
		med.Frequency = strings.Join(strings.Fields(strings.ToLower(text[loc[0]:loc[1]])), " ")
		if loc[0] < nameEnd {
			nameEnd = loc[0]
		}
	}

	med.Name = strings.TrimSpace(strings.Trim(text[:nameEnd], " ,-"))
	if med.Name == "" {
		return entities.Medication{Name: strings.TrimSpace(raw)}
	}
	return med
}

// MedicationKey is the comparable form of a medication's name
func MedicationKey(name string) string {
	return utils.NormalizeTerm(ParseMedication(name).Name)
}

// NearEqualMedication reports whether two medication mentions name the same
// drug, ignoring dosage and frequency.
func NearEqualMedication(a, b string) bool {
	ka, kb := MedicationKey(a), MedicationKey(b)
	if ka == "" || kb == "" {
		return false
	}
	if utils.NearEqual(ka, kb) {
		return true
	}
	// "metformin" vs "metformin er"
	fa, fb := strings.Fields(ka), strings.Fields(kb)
	return utils.NearEqual(fa[0], fb[0]) && (len(fa) == 1 || len(fb) == 1)
}
