package weather

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fakeReport(t *testing.T) Report {
	t.Helper()
	cycle := newFakeCycle()
	registers, err := Decode(cycle.type0(), cycle.type1())
	require.NoError(t, err)
	report, err := NewReport(registers)
	require.NoError(t, err)
	return report
}

func TestWriteDetails(t *testing.T) {
	var output bytes.Buffer
	require.NoError(t, WriteDetails(&output, fakeReport(t)))

	details := output.String()
	assert.Contains(t, details, "***INDOOR***\nIndoor temp : 21.5°C, max : 23.2°C, min : 19.8°C\n")
	assert.Contains(t, details, "Indoor humidity : 45%, max : 52%, min : 38%\n")
	assert.Contains(t, details, "Outdoor temp : -5.3°C, max : 1.2°C, min : -12.1°C\n")
	assert.Contains(t, details, "Outdoor temp 2 : 8.7°C, max : 11.0°C, min : 4.0°C\n")
	assert.Contains(t, details, "Average outdoor temperature: 1.7°C\n")
	assert.Contains(t, details, "Outdoor humidity : 81%, max : 95%, min : 60%\n")
	assert.Contains(t, details, "Dew point: -8.04°C\n")
	assert.Contains(t, details, "Frost point: -7.43°C\n")
	assert.Contains(t, details, "Trends: temperature 1, humidity 2\n")
}

func TestWriteDetailsSkipsMissingReadings(t *testing.T) {
	report := fakeReport(t)
	delete(report.Temperatures, Outdoor2)
	report.AverageOutdoor = nil
	report.DewPoint = nil

	var output bytes.Buffer
	require.NoError(t, WriteDetails(&output, report))
	assert.NotContains(t, output.String(), "Outdoor temp 2")
	assert.NotContains(t, output.String(), "Average outdoor")
	assert.NotContains(t, output.String(), "Dew point")
}

func TestSummary(t *testing.T) {
	summary, err := Summary(fakeReport(t))
	require.NoError(t, err)
	assert.Equal(t, "It is 21.5 degrees indoors with 45% humidity. Outside it is -5.3 degrees with 81% humidity.", summary)
}

func TestSummaryWhenOutdoorMissingThenError(t *testing.T) {
	report := fakeReport(t)
	delete(report.Humidities, Outdoor1)

	_, err := Summary(report)
	assert.True(t, errors.Is(err, ErrIncompleteReport))
}

func TestStatsTruncatesAverages(t *testing.T) {
	stats, err := Stats(fakeReport(t))
	require.NoError(t, err)
	assert.Equal(t, "Indoor minimum was 19 degrees and maximum 23 degrees. Outdoor minimum was -4 degrees and maximum 6 degrees.", stats)
}

func TestStatsWhenSecondOutdoorSensorMissingThenError(t *testing.T) {
	report := fakeReport(t)
	delete(report.Temperatures, Outdoor2)

	_, err := Stats(report)
	assert.True(t, errors.Is(err, ErrIncompleteReport))
}
