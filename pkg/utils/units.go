package utils

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	bloodPressurePattern = regexp.MustCompile(`^\s*(\d{1,3})\s*/\s*(\d{1,3})\s*$`)
	measurementPattern   = regexp.MustCompile(`(?i)^\s*(\d+(?:\.\d+)?)\s*°?\s*([a-z"']*)\s*$`)
)

// VitalBounds holds the plausible ranges used to reject misheard or
// mistyped vital signs.
type VitalBounds struct {
	SystolicMax     int
	DiastolicMax    int
	HeartRateMin    int
	HeartRateMax    int
	TemperatureMinF float64
	TemperatureMaxF float64
	WeightMinKg     float64
	WeightMaxKg     float64
	HeightMinCm     float64
	HeightMaxCm     float64
}

// DefaultVitalBounds returns the clinically plausible defaults.
func DefaultVitalBounds() VitalBounds {
	return VitalBounds{
		SystolicMax:     300,
		DiastolicMax:    200,
		HeartRateMin:    30,
		HeartRateMax:    250,
		TemperatureMinF: 90,
		TemperatureMaxF: 110,
		WeightMinKg:     1,
		WeightMaxKg:     500,
		HeightMinCm:     30,
		HeightMaxCm:     272,
	}
}

// ValidBloodPressure rejects pairs above the configured maxima, non-positive
// readings and pairs where systolic is below diastolic.
func (b VitalBounds) ValidBloodPressure(systolic, diastolic int) bool {
	if systolic <= 0 || diastolic <= 0 {
		return false
	}
	if systolic > b.SystolicMax || diastolic > b.DiastolicMax {
		return false
	}
	return systolic >= diastolic
}

// ValidHeartRate checks the inclusive heart-rate band.
func (b VitalBounds) ValidHeartRate(bpm int) bool {
	return bpm >= b.HeartRateMin && bpm <= b.HeartRateMax
}

// ValidTemperatureC checks a Celsius reading against the Fahrenheit band.
func (b VitalBounds) ValidTemperatureC(celsius float64) bool {
	f := CelsiusToFahrenheit(celsius)
	return f >= b.TemperatureMinF && f <= b.TemperatureMaxF
}

// ValidWeightKg checks the inclusive weight band.
func (b VitalBounds) ValidWeightKg(kg float64) bool {
	return kg >= b.WeightMinKg && kg <= b.WeightMaxKg
}

// ValidHeightCm checks the inclusive height band.
func (b VitalBounds) ValidHeightCm(cm float64) bool {
	return cm >= b.HeightMinCm && cm <= b.HeightMaxCm
}

// ParseBloodPressure parses "140/90" into its systolic and diastolic parts.
func ParseBloodPressure(raw string) (systolic, diastolic int, ok bool) {
	m := bloodPressurePattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, 0, false
	}
	systolic, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, 0, false
	}
	diastolic, err = strconv.Atoi(m[2])
	if err != nil {
		return 0, 0, false
	}
	return systolic, diastolic, true
}

// ParseMeasurement splits "101.5F" or "72 kg" into value and lowercase unit.
// The unit is empty when the text carries none.
func ParseMeasurement(raw string) (value float64, unit string, ok bool) {
	m := measurementPattern.FindStringSubmatch(raw)
	if m == nil {
		return 0, "", false
	}
	v, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", false
	}
	return v, strings.ToLower(m[2]), true
}

// TemperatureToCelsius converts a reading to Celsius. Without a unit,
// readings above 50 are taken as Fahrenheit.
func TemperatureToCelsius(value float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "f", "°f", "fahrenheit":
		return round1(FahrenheitToCelsius(value))
	case "c", "°c", "celsius":
		return round1(value)
	}
	if value > 50 {
		return round1(FahrenheitToCelsius(value))
	}
	return round1(value)
}

// WeightToKg converts pounds to kilograms; kilograms and unit-less values
// pass through.
func WeightToKg(value float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "lb", "lbs", "pound", "pounds":
		return round1(value * 0.45359237)
	}
	return round1(value)
}

// HeightToCm converts inches, feet and metres to centimetres.
func HeightToCm(value float64, unit string) float64 {
	switch strings.ToLower(strings.TrimSpace(unit)) {
	case "in", "inch", "inches", `"`:
		return round1(value * 2.54)
	case "ft", "feet", "foot", "'":
		return round1(value * 30.48)
	case "m", "meter", "meters", "metre", "metres":
		return round1(value * 100)
	}
	return round1(value)
}

// FahrenheitToCelsius converts °F to °C.
func FahrenheitToCelsius(f float64) float64 {
	return (f - 32) * 5 / 9
}

// CelsiusToFahrenheit converts °C to °F.
func CelsiusToFahrenheit(c float64) float64 {
	return c*9/5 + 32
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
