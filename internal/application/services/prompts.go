package services

import (
	"fmt"
	"strings"
)

const extractionSystemPrompt = `You are a clinical documentation assistant. You read dictated visit notes and return ONLY a JSON object matching the provided schema. No prose, no markdown.

Rules:
- Extract only what the note states. Never infer, guess or fill in missing values. Use null for absent vitals and empty arrays for absent lists.
- Anything the speaker denies or rules out ("denies", "no", "negative for", "not taking", "stopped", "not allergic to") goes ONLY into negation_flags, never into the positive lists.
- "No known allergies" or "NKDA" means negated_allergies = ["NKDA"] and allergies = [].
- Copy blood pressure exactly as "systolic/diastolic". Give temperature, weight and height as numbers with their stated unit.
- Medications: name, plus dosage and frequency only when stated.
- confidence is your certainty in the whole extraction, between 0 and 1.`

// Few-shot exemplars. Both demonstrate negation handling.
var extractionExamples = []struct {
	Transcript string
	Output     string
}{
	{
		Transcript: "Patient is a 54 year old male. BP 150/95, pulse 88. He denies chest pain and shortness of breath but has a headache for two days. Taking lisinopril 10 mg daily. Stopped aspirin last month. No known allergies. Assessment: uncontrolled hypertension. Plan: increase lisinopril to 20 mg daily.",
		Output:     `{"vital_signs":{"blood_pressure":"150/95","heart_rate":88,"temperature":null,"temperature_unit":"","weight":null,"weight_unit":"","height":null,"height_unit":""},"medical_info":{"chief_complaint":"headache","symptoms":["headache"],"current_medications":[{"name":"lisinopril","dosage":"10 mg","frequency":"daily"}],"allergies":[],"medical_history":[],"diagnosis":["uncontrolled hypertension"],"treatment_plan":"increase lisinopril to 20 mg daily"},"negation_flags":{"negated_symptoms":["chest pain","shortness of breath"],"negated_medications":["aspirin"],"negated_allergies":["NKDA"]},"confidence":0.92}`,
	},
	{
		Transcript: "Follow-up for type 2 diabetes. Temp 98.4 F, weight 82 kg. Reports fatigue, no fever, no cough. She is not allergic to penicillin but is allergic to sulfa. Continues metformin 500 mg twice daily.",
		Output:     `{"vital_signs":{"blood_pressure":null,"heart_rate":null,"temperature":98.4,"temperature_unit":"F","weight":82,"weight_unit":"kg","height":null,"height_unit":""},"medical_info":{"chief_complaint":"diabetes follow-up","symptoms":["fatigue"],"current_medications":[{"name":"metformin","dosage":"500 mg","frequency":"twice daily"}],"allergies":["sulfa"],"medical_history":["type 2 diabetes"],"diagnosis":["type 2 diabetes"],"treatment_plan":""},"negation_flags":{"negated_symptoms":["fever","cough"],"negated_medications":[],"negated_allergies":["penicillin"]},"confidence":0.9}`,
	},
}

func stringArraySchema() map[string]interface{} {
	return map[string]interface{}{"type": "array", "items": map[string]interface{}{"type": "string"}}
}

func nullable(t string) map[string]interface{} {
	return map[string]interface{}{"type": []string{t, "null"}}
}

// extractionSchema is the fixed JSON schema of the generative pass
func extractionSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"vital_signs", "medical_info", "negation_flags", "confidence"},
		"properties": map[string]interface{}{
			"vital_signs": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"blood_pressure", "heart_rate", "temperature", "temperature_unit", "weight", "weight_unit", "height", "height_unit"},
				"properties": map[string]interface{}{
					"blood_pressure":   nullable("string"),
					"heart_rate":       nullable("number"),
					"temperature":      nullable("number"),
					"temperature_unit": map[string]interface{}{"type": "string"},
					"weight":           nullable("number"),
					"weight_unit":      map[string]interface{}{"type": "string"},
					"height":           nullable("number"),
					"height_unit":      map[string]interface{}{"type": "string"},
				},
			},
			"medical_info": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"chief_complaint", "symptoms", "current_medications", "allergies", "medical_history", "diagnosis", "treatment_plan"},
				"properties": map[string]interface{}{
					"chief_complaint": map[string]interface{}{"type": "string"},
					"symptoms":        stringArraySchema(),
					"current_medications": map[string]interface{}{
						"type": "array",
						"items": map[string]interface{}{
							"type":                 "object",
							"additionalProperties": false,
							"required":             []string{"name", "dosage", "frequency"},
							"properties": map[string]interface{}{
								"name":      map[string]interface{}{"type": "string"},
								"dosage":    map[string]interface{}{"type": "string"},
								"frequency": map[string]interface{}{"type": "string"},
							},
						},
					},
					"allergies":       stringArraySchema(),
					"medical_history": stringArraySchema(),
					"diagnosis":       stringArraySchema(),
					"treatment_plan":  map[string]interface{}{"type": "string"},
				},
			},
			"negation_flags": map[string]interface{}{
				"type":                 "object",
				"additionalProperties": false,
				"required":             []string{"negated_symptoms", "negated_medications", "negated_allergies"},
				"properties": map[string]interface{}{
					"negated_symptoms":    stringArraySchema(),
					"negated_medications": stringArraySchema(),
					"negated_allergies":   stringArraySchema(),
				},
			},
			"confidence": map[string]interface{}{"type": "number"},
		},
	}
}

func buildExtractionUserPrompt(transcript string) string {
	var b strings.Builder
	for i, ex := range extractionExamples {
		fmt.Fprintf(&b, "Example %d\nNote: %s\nJSON: %s\n\n", i+1, ex.Transcript, ex.Output)
	}
	fmt.Fprintf(&b, "Now extract from this note.\nNote: %s\nJSON:", transcript)
	return b.String()
}

const classificationSystemPrompt = `You classify requests for patient reports. Return ONLY a JSON object:
{"type": "population" | "condition-specific", "confidence": "high" | "medium" | "low", "reasoning": "<one sentence>"}

"population" means the request is about all patients with no clinical filter (e.g. "summarize all my patients", "overview of the practice").
"condition-specific" means the request names a condition, symptom, medication, finding or a specific patient (e.g. "patients with hypertension", "who is on metformin", "John Smith's last visit").
When unsure, answer "condition-specific" with "low" confidence.`

func buildClassificationUserPrompt(query string) string {
	return "Request: " + query
}

// classificationSchema is the JSON schema of the classifier answer
func classificationSchema() map[string]interface{} {
	return map[string]interface{}{
		"type":                 "object",
		"additionalProperties": false,
		"required":             []string{"type", "confidence", "reasoning"},
		"properties": map[string]interface{}{
			"type":       map[string]interface{}{"type": "string", "enum": []string{"population", "condition-specific"}},
			"confidence": map[string]interface{}{"type": "string", "enum": []string{"high", "medium", "low"}},
			"reasoning":  map[string]interface{}{"type": "string"},
		},
	}
}
