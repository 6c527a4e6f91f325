package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVitalBounds(t *testing.T) {
	b := DefaultVitalBounds()

	assert.True(t, b.ValidBloodPressure(120, 80))
	assert.False(t, b.ValidBloodPressure(400, 90), "systolic above max")
	assert.False(t, b.ValidBloodPressure(120, 250), "diastolic above max")
	assert.False(t, b.ValidBloodPressure(80, 120), "systolic below diastolic")

	assert.True(t, b.ValidHeartRate(72))
	assert.False(t, b.ValidHeartRate(20))
	assert.False(t, b.ValidHeartRate(300))

	assert.True(t, b.ValidTemperatureC(37))
	assert.False(t, b.ValidTemperatureC(50))

	assert.True(t, b.ValidWeightKg(70))
	assert.False(t, b.ValidWeightKg(0))
	assert.True(t, b.ValidHeightCm(175))
	assert.False(t, b.ValidHeightCm(300))
}

func TestParseBloodPressure(t *testing.T) {
	sys, dia, ok := ParseBloodPressure("140 / 90")
	assert.True(t, ok)
	assert.Equal(t, 140, sys)
	assert.Equal(t, 90, dia)

	_, _, ok = ParseBloodPressure("high")
	assert.False(t, ok)
}

func TestParseMeasurement(t *testing.T) {
	v, unit, ok := ParseMeasurement("101.5F")
	assert.True(t, ok)
	assert.Equal(t, 101.5, v)
	assert.Equal(t, "f", unit)

	v, unit, ok = ParseMeasurement("72 kg")
	assert.True(t, ok)
	assert.Equal(t, 72.0, v)
	assert.Equal(t, "kg", unit)

	_, _, ok = ParseMeasurement("normal")
	assert.False(t, ok)
}

func TestUnitConversions(t *testing.T) {
	assert.InDelta(t, 38.6, TemperatureToCelsius(101.5, "F"), 0.001)
	assert.InDelta(t, 37.0, TemperatureToCelsius(98.6, ""), 0.001)
	assert.InDelta(t, 38.2, TemperatureToCelsius(38.2, ""), 0.001)
	assert.InDelta(t, 81.6, WeightToKg(180, "lbs"), 0.001)
	assert.InDelta(t, 70.0, WeightToKg(70, "kg"), 0.001)
	assert.InDelta(t, 177.8, HeightToCm(70, "in"), 0.001)
	assert.InDelta(t, 180.0, HeightToCm(1.8, "m"), 0.001)
	assert.InDelta(t, 182.9, HeightToCm(6, "ft"), 0.001)
}
