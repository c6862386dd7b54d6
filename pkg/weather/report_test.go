package weather

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewReport(t *testing.T) {
	cycle := newFakeCycle()
	registers, err := Decode(cycle.type0(), cycle.type1())
	require.NoError(t, err)

	report, err := NewReport(registers)
	require.NoError(t, err)
	assert.Len(t, report.Temperatures, 4)
	assert.Len(t, report.Humidities, 4)
	require.NotNil(t, report.AverageOutdoor)
	require.NotNil(t, report.DewPoint)
	require.NotNil(t, report.FrostPoint)
	assert.Equal(t, -8.04, *report.DewPoint)
	assert.Equal(t, -7.43, *report.FrostPoint)
	assert.Empty(t, report.Warnings)
}

func TestNewReportOmitsMissingChannels(t *testing.T) {
	cycle := newFakeCycle()
	registers, err := Decode(cycle.type0(), cycle.type1())
	require.NoError(t, err)
	delete(registers, HumidityField(Outdoor1))
	delete(registers, TemperatureField(Outdoor2))

	report, err := NewReport(registers)
	require.NoError(t, err)
	assert.NotContains(t, report.Humidities, Outdoor1)
	assert.NotContains(t, report.Temperatures, Outdoor2)
	assert.Nil(t, report.AverageOutdoor)
	assert.Nil(t, report.DewPoint)
	assert.Nil(t, report.FrostPoint)
}

func TestNewReportWhenZeroHumidityThenWarning(t *testing.T) {
	cycle := newFakeCycle()
	cycle.humidity[1] = 0
	registers, err := Decode(cycle.type0(), cycle.type1())
	require.NoError(t, err)

	report, err := NewReport(registers)
	require.NoError(t, err)
	assert.Nil(t, report.DewPoint)
	require.Len(t, report.Warnings, 1)
	assert.True(t, errors.Is(report.Warnings[0], ErrDomain))
}

func TestNewReportWhenCorruptRegisterThenError(t *testing.T) {
	registers := RegisterMap{
		"index0_temperature":     "XXXX",
		"index0_temperature_max": "0000",
		"index0_temperature_min": "0000",
	}
	_, err := NewReport(registers)
	assert.True(t, errors.Is(err, ErrMalformedPayload))
}
