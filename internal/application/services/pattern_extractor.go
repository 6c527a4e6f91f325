package services

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/zatekoja/clinicalcore/internal/domain/entities"
	"github.com/zatekoja/clinicalcore/pkg/utils"
)

// vitalFiller skips connecting words and punctuation between a vital's
// label and its value ("BP was 140/90", "heart rate: 72", "(bp) 140/90").
const vitalFiller = `(?:\s*(?:of|is|was|were|at|measured|reading|today|[:=,;()\[\]~-])\s*)*\s*`

const frequencyAlternation = `once\s+(?:daily|a\s+day)|twice\s+(?:daily|a\s+day)|three\s+times\s+(?:daily|a\s+day)|four\s+times\s+(?:daily|a\s+day)|every\s+\d+\s+hours?|q\d+h|daily|nightly|weekly|bid|tid|qid|qd|qhs|prn|as\s+needed|at\s+bedtime|in\s+the\s+morning`

const dosageAlternation = `mg|mcg|µg|g|ml|units?|iu`

var (
	bloodPressureRe = regexp.MustCompile(`(?i)(?:\bb\.?\s?p\.?|\bblood[\s-]*pressure)` + vitalFiller + `(\d{2,3})\s*(?:/|\s+over\s+)\s*(\d{2,3})\b`)
	heartRateRe     = regexp.MustCompile(`(?i)(?:\bheart[\s-]*rate|\bhr|\bpulse(?:\s+rate)?)` + vitalFiller + `(\d{2,3})\b`)
	bpmRe           = regexp.MustCompile(`(?i)\b(\d{2,3})\s*(?:bpm|beats\s+per\s+minute)\b`)
	temperatureRe   = regexp.MustCompile(`(?i)\btemp(?:erature)?\.?` + vitalFiller + `(\d{2,3}(?:\.\d+)?)\s*(?:°\s*|degrees?\s*)?(fahrenheit|celsius|f|c)?\b`)
	weightRe        = regexp.MustCompile(`(?i)\b(?:weight|wt|weighs|weighing)\.?` + vitalFiller + `(\d{1,3}(?:\.\d+)?)\s*(kilograms?|kgs?|pounds?|lbs?)?\b`)
	heightFeetRe    = regexp.MustCompile(`(?i)\b(?:height|ht)\.?` + vitalFiller + `(\d)\s*(?:'|ft\.?|feet|foot)\s*(\d{1,2})\s*(?:"|''|in(?:ches)?\.?)?`)
	heightRe        = regexp.MustCompile(`(?i)\b(?:height|ht)\.?` + vitalFiller + `(\d{1,3}(?:\.\d+)?)\s*(centimeters?|cm|meters?|metres?|m|inches|inch|in|feet|foot|ft)?\b`)

	medicationTriggerRe = regexp.MustCompile(`(?i)\b(?:takes|taking|prescribed|started\s+on|restarted\s+on|currently\s+on|continues\s+on|medications?\s*(?::|include|includes|are)|meds\s*:|rx\s*:)\s*([^.;\n]+)`)
	drugDoseRe          = regexp.MustCompile(`(?i)\b([a-z][a-z\-]{2,})\s+(\d+(?:\.\d+)?\s*(?:` + dosageAlternation + `))\b(\s+(?:` + frequencyAlternation + `)\b)?`)
	negatedMedicationRe = regexp.MustCompile(`(?i)\b(?:not\s+taking|no\s+longer\s+(?:taking|on)|stopped(?:\s+taking)?|discontinued|quit(?:\s+taking)?|off\s+of)\s+([^.;\n]+)`)

	allergyRe         = regexp.MustCompile(`(?i)\b(?:allergic\s+to|allerg(?:y|ies)\s*(?::|include|includes|to|are)?)\s*([^.;\n]*)`)
	notAllergicRe     = regexp.MustCompile(`(?i)\bnot\s+allergic\s+to\s+([^.;\n]+)`)
	noKnownAllergyRe  = regexp.MustCompile(`(?i)\b(?:nkda|nka|no\s+known\s+(?:drug\s+)?allergies|no\s+(?:drug\s+)?allergies|denies\s+(?:any\s+)?(?:drug\s+)?allergies|allergies\s*:\s*(?:none|nil|n/?a)\b)`)
	symptomTriggerRe  = regexp.MustCompile(`(?i)(?:\bcomplains?\s+of|\bcomplaining\s+of|\bc/o|\breports?|\breporting|\bpresents?\s+with|\bpresenting\s+with|\bexperiencing|\bsymptoms?\s*(?::|include|includes|are|of)|\bhas\s+(?:had\s+|been\s+having\s+)?|\bhaving)\s*([^.;\n]+)`)
	negatedSymptomRe  = regexp.MustCompile(`(?i)\b(denies|denied|denying|negative\s+for|without|absence\s+of|free\s+of|no(?:\s+(?:signs?|evidence|complaints?|history)\s+of)?)\s+([^.;\n]+)`)
	medicalHistoryRe  = regexp.MustCompile(`(?i)(?:\bhistory\s+of|\bhx\s+of|\bh/o|\bpmh\s*:?|\bpast\s+medical\s+history\s*(?::|of|includes?)?)\s*([^.;\n]+)`)
	diagnosisRe       = regexp.MustCompile(`(?i)\b(?:diagnos(?:is|es)|dx|diagnosed\s+with|(?:assessment|impression)(?:\s+and\s+plan)?)\s*(?::|of|is|was|-)?\s*([^.;\n]+)`)
	chiefComplaintRe  = regexp.MustCompile(`(?i)(?:\bcc\s*:|\bchief\s+complaint\s*(?::|is|of|-)?)\s*([^.;\n]+)`)
	suppressingPrefix = regexp.MustCompile(`(?i)\b(?:not|no|never|denies|denied|without|stopped|discontinued|family|no\s+longer|no\s+known|no\s+known\s+drug|no\s+drug|denies\s+any|not\s+currently)\s*$`)

	segmentSplitRe  = regexp.MustCompile(`(?i)\s*(?:,|\band\b|\bor\b|\bbut\b|\bas\s+well\s+as\b|\bplus\b)\s*`)
	findingCutRe    = regexp.MustCompile(`(?i)\s+(?:since|for|x|starting|that|which|who|over\s+the|in\s+the\s+last|during|after|when|while|because)\b.*$`)
	medicationCutRe = regexp.MustCompile(`(?i)\s+(?:since|for|to\s+treat|because|which|that|after|when)\b.*$`)
)

// noKnownAllergiesSentinel is recorded in negated_allergies when the
// transcript states the patient has no known allergies.
const noKnownAllergiesSentinel = "NKDA"

const maxSegmentWords = 8

// Words that end a finding list because a new clause starts.
var clauseStarters = map[string]struct{}{
	"has": {}, "have": {}, "having": {}, "had": {}, "reports": {}, "reported": {},
	"complains": {}, "complaining": {}, "presents": {}, "presenting": {}, "is": {},
	"was": {}, "were": {}, "taking": {}, "takes": {}, "started": {}, "currently": {},
	"patient": {}, "pt": {}, "she": {}, "he": {}, "they": {}, "been": {}, "history": {},
	"allergic": {}, "diagnosed": {}, "prescribed": {}, "bp": {}, "hr": {}, "temp": {},
}

var negationStarters = map[string]struct{}{
	"no": {}, "denies": {}, "denied": {}, "without": {}, "not": {}, "negative": {},
}

// "no X" phrases that are not negated findings.
var noSkipWords = map[string]struct{}{
	"longer": {}, "known": {}, "allergies": {}, "change": {}, "changes": {}, "new": {},
	"further": {}, "other": {}, "significant": {}, "medications": {}, "meds": {},
	"drug": {}, "drugs": {}, "prior": {}, "previous": {}, "more": {}, "one": {},
}

var emptyValues = map[string]struct{}{
	"none": {}, "nil": {}, "n/a": {}, "na": {}, "nkda": {}, "nka": {}, "unknown": {},
	"no known": {}, "none known": {},
}

// PatternExtractor is the rule-based first extraction pass. It is a pure
// function of its input and holds no state.
type PatternExtractor struct{}

// NewPatternExtractor creates a new pattern extractor
func NewPatternExtractor() *PatternExtractor {
	return &PatternExtractor{}
}

// Extract returns the raw matches for every pattern field. Fields that never
// match hold an empty slice.
func (p *PatternExtractor) Extract(text string) entities.PatternMatches {
	out := entities.NewPatternMatches()
	if strings.TrimSpace(text) == "" {
		return out
	}

	out[entities.PatternBloodPressure] = extractBloodPressure(text)
	out[entities.PatternHeartRate] = extractHeartRate(text)
	out[entities.PatternTemperature] = extractMeasurements(temperatureRe, text)
	out[entities.PatternWeight] = extractMeasurements(weightRe, text)
	out[entities.PatternHeight] = extractHeight(text)

	out[entities.PatternMedications] = extractMedications(text)
	out[entities.PatternNegatedMedications] = captureFindings(negatedMedicationRe, text, true, medicationCutRe)

	allergies, nkda := extractAllergies(text)
	out[entities.PatternAllergies] = allergies
	negatedAllergies := captureFindings(notAllergicRe, text, true, findingCutRe)
	if nkda {
		negatedAllergies = append(negatedAllergies, noKnownAllergiesSentinel)
	}
	out[entities.PatternNegatedAllergies] = utils.UniqueTerms(negatedAllergies)

	out[entities.PatternSymptoms] = withoutAllergyTerms(captureFindings(symptomTriggerRe, text, false, findingCutRe))
	out[entities.PatternNegatedSymptoms] = extractNegatedSymptoms(text)
	out[entities.PatternMedicalHistory] = captureFindings(medicalHistoryRe, text, false, findingCutRe)
	out[entities.PatternDiagnosis] = captureFindings(diagnosisRe, text, false, findingCutRe)
	out[entities.PatternChiefComplaint] = extractChiefComplaint(text)

	return out
}

func extractBloodPressure(text string) []string {
	values := []string{}
	for _, m := range bloodPressureRe.FindAllStringSubmatch(text, -1) {
		values = append(values, m[1]+"/"+m[2])
	}
	return dedupe(values)
}

func extractHeartRate(text string) []string {
	values := []string{}
	for _, m := range heartRateRe.FindAllStringSubmatch(text, -1) {
		values = append(values, m[1])
	}
	for _, m := range bpmRe.FindAllStringSubmatch(text, -1) {
		values = append(values, m[1])
	}
	return dedupe(values)
}

// extractMeasurements emits "value" or "value unit" for each match of a
// pattern whose first group is the number and second the optional unit.
func extractMeasurements(re *regexp.Regexp, text string) []string {
	values := []string{}
	for _, m := range re.FindAllStringSubmatch(text, -1) {
		v := m[1]
		if unit := strings.ToLower(strings.TrimSpace(m[2])); unit != "" {
			v += " " + unit
		}
		values = append(values, v)
	}
	return dedupe(values)
}

func extractHeight(text string) []string {
	values := []string{}
	for _, m := range heightFeetRe.FindAllStringSubmatch(text, -1) {
		feet, err1 := strconv.Atoi(m[1])
		inches, err2 := strconv.Atoi(m[2])
		if err1 != nil || err2 != nil {
			continue
		}
		values = append(values, strconv.Itoa(feet*12+inches)+" in")
	}
	if len(values) > 0 {
		return dedupe(values)
	}
	return extractMeasurements(heightRe, text)
}

func extractMedications(text string) []string {
	meds := captureFindings(medicationTriggerRe, text, false, medicationCutRe)
	meds = withoutEmptyValues(meds)

	for _, idx := range drugDoseRe.FindAllStringSubmatchIndex(text, -1) {
		if suppressed(text, idx[0]) {
			continue
		}
		name := strings.ToLower(text[idx[2]:idx[3]])
		if _, stop := clauseStarters[name]; stop {
			continue
		}
		covered := false
		for _, existing := range meds {
			if NearEqualMedication(existing, name) {
				covered = true
				break
			}
		}
		if covered {
			continue
		}
		meds = append(meds, utils.NormalizeText(text[idx[0]:idx[1]]))
	}
	return utils.UniqueTerms(meds)
}

func extractAllergies(text string) ([]string, bool) {
	nkda := noKnownAllergyRe.MatchString(text)
	allergies := []string{}
	for _, idx := range allergyRe.FindAllStringSubmatchIndex(text, -1) {
		if suppressed(text, idx[0]) {
			continue
		}
		capture := text[idx[2]:idx[3]]
		if _, empty := emptyValues[utils.NormalizeTerm(capture)]; empty {
			nkda = true
			continue
		}
		found, _ := splitFindings(capture, false, findingCutRe)
		allergies = append(allergies, found...)
	}
	return utils.UniqueTerms(withoutEmptyValues(allergies)), nkda
}

func extractNegatedSymptoms(text string) []string {
	values := []string{}
	for _, m := range negatedSymptomRe.FindAllStringSubmatch(text, -1) {
		if strings.EqualFold(m[1], "no") {
			if _, skip := noSkipWords[firstWord(m[2])]; skip {
				continue
			}
		}
		found, _ := splitFindings(m[2], true, findingCutRe)
		values = append(values, found...)
	}
	return utils.UniqueTerms(withoutAllergyTerms(values))
}

func extractChiefComplaint(text string) []string {
	m := chiefComplaintRe.FindStringSubmatch(text)
	if m == nil {
		return []string{}
	}
	cc := utils.NormalizeTerm(m[1])
	if cc == "" {
		return []string{}
	}
	return []string{cc}
}

// captureFindings runs re over text and splits the first capture group of
// every match into individual findings. Positive matches preceded by a
// negating word are skipped; the negated patterns report those. When a
// list ends early ("no fever but has headache") scanning resumes where it
// stopped, so a later trigger in the same sentence is still seen.
func captureFindings(re *regexp.Regexp, text string, negated bool, cut *regexp.Regexp) []string {
	values := []string{}
	for pos := 0; pos < len(text); {
		loc := re.FindStringSubmatchIndex(text[pos:])
		if loc == nil {
			break
		}
		start, end := pos+loc[0], pos+loc[1]
		next := end
		if end == start {
			next++
		}

		if (negated || !suppressed(text, start)) && loc[2] >= 0 {
			capStart := pos + loc[2]
			found, stop := splitFindings(text[capStart:pos+loc[3]], negated, cut)
			values = append(values, found...)
			if stop >= 0 && capStart+stop > start {
				next = capStart + stop
			}
		}
		pos = next
	}
	return utils.UniqueTerms(values)
}

// splitFindings splits a captured phrase into findings on commas and
// conjunctions. The list ends at the first segment that opens a new clause;
// positive lists also end at a negated segment. stop is the byte offset of
// that segment in capture, or -1 when the whole phrase was consumed.
// In negated lists a leading negation word continues the list.
func splitFindings(capture string, negated bool, cut *regexp.Regexp) (findings []string, stop int) {
	separators := segmentSplitRe.FindAllStringIndex(capture, -1)
	segStart := 0
	for i := 0; i <= len(separators); i++ {
		segEnd, nextStart := len(capture), len(capture)
		if i < len(separators) {
			segEnd, nextStart = separators[i][0], separators[i][1]
		}
		offset := segStart
		seg := strings.TrimSpace(capture[segStart:segEnd])
		segStart = nextStart
		if seg == "" {
			continue
		}

		seg = strings.TrimSpace(strings.TrimPrefix(strings.ToLower(seg), "also "))
		first := firstWord(seg)
		if _, isNeg := negationStarters[first]; isNeg {
			if !negated {
				return findings, offset
			}
			seg = strings.TrimSpace(seg[len(first):])
			seg = strings.TrimSpace(strings.TrimPrefix(seg, "for "))
			first = firstWord(seg)
		}
		if _, clause := clauseStarters[first]; clause {
			return findings, offset
		}
		if cut != nil {
			seg = cut.ReplaceAllString(" "+seg, "")
		}
		term := utils.NormalizeTerm(seg)
		if term == "" || len(strings.Fields(term)) > maxSegmentWords {
			continue
		}
		findings = append(findings, term)
	}
	return findings, -1
}

func suppressed(text string, start int) bool {
	from := start - 32
	if from < 0 {
		from = 0
	}
	return suppressingPrefix.MatchString(text[from:start])
}

func firstWord(s string) string {
	fields := strings.Fields(strings.ToLower(s))
	if len(fields) == 0 {
		return ""
	}
	return strings.Trim(fields[0], ",:;")
}

func withoutEmptyValues(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, empty := emptyValues[utils.NormalizeTerm(v)]; empty {
			continue
		}
		out = append(out, v)
	}
	return out
}

func withoutAllergyTerms(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if strings.Contains(v, "allerg") {
			continue
		}
		out = append(out, v)
	}
	return out
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
