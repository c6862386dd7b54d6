package weather

import (
	"github.com/pkg/errors"
)

// Report gathers everything derived from one decoded cycle. Channels
// missing from the cycle are absent from the maps.
type Report struct {
	Registers      RegisterMap
	Temperatures   map[Channel]Reading
	Humidities     map[Channel]Reading
	AverageOutdoor *float64
	DewPoint       *float64
	FrostPoint     *float64
	// Warnings holds derived values that could not be computed.
	Warnings []error
}

// NewReport builds a Report from a decoded register map. Dew and frost
// points use the first outdoor sensor.
func NewReport(registers RegisterMap) (Report, error) {
	report := Report{
		Registers:    registers,
		Temperatures: make(map[Channel]Reading),
		Humidities:   make(map[Channel]Reading),
	}

	for _, c := range Channels {
		t, err := registers.Temperature(c)
		if err != nil {
			return Report{}, errors.Wrapf(err, "%s temperature", c)
		}
		if t != nil {
			report.Temperatures[c] = *t
		}
		h, err := registers.Humidity(c)
		if err != nil {
			return Report{}, errors.Wrapf(err, "%s humidity", c)
		}
		if h != nil {
			report.Humidities[c] = *h
		}
	}

	avg, err := registers.AverageOutdoorTemperature()
	if err != nil {
		return Report{}, err
	}
	report.AverageOutdoor = avg

	t, okT := report.Temperatures[Outdoor1]
	h, okH := report.Humidities[Outdoor1]
	if !okT || !okH {
		return report, nil
	}
	dew, err := DewPoint(t.Current, h.Current)
	if err != nil {
		report.Warnings = append(report.Warnings, err)
		return report, nil
	}
	report.DewPoint = &dew

	frost, err := FrostPoint(t.Current, dew)
	if err != nil {
		report.Warnings = append(report.Warnings, err)
		return report, nil
	}
	report.FrostPoint = &frost
	return report, nil
}
