package weather

import (
	"fmt"

	"github.com/pkg/errors"
)

// Channel is one sensor location of the station. Indoor is the base
// station itself, the outdoor channels are the remote sensors.
type Channel int

const (
	Indoor Channel = iota
	Outdoor1
	Outdoor2
	Outdoor3
)

const (
	maxSuffix = "_max"
	minSuffix = "_min"

	temperatureScale = 10.0
)

// Channels lists every channel the station reports.
var Channels = []Channel{Indoor, Outdoor1, Outdoor2, Outdoor3}

func (c Channel) String() string {
	switch c {
	case Indoor:
		return "indoor"
	case Outdoor1:
		return "outdoor"
	case Outdoor2:
		return "outdoor 2"
	case Outdoor3:
		return "outdoor 3"
	}
	return fmt.Sprintf("channel %d", int(c))
}

func TemperatureField(c Channel) string {
	return fmt.Sprintf("index%d_temperature", int(c))
}

func HumidityField(c Channel) string {
	return fmt.Sprintf("index%d_humidity", int(c))
}

// Reading is the current value of a channel and the extremes recorded by
// the station since its last reset.
type Reading struct {
	Current float64
	Max     float64
	Min     float64
}

// Temperature returns the channel temperature in °C, or nil when the
// channel was not part of the decoded cycle.
func (r RegisterMap) Temperature(c Channel) (*Reading, error) {
	return r.reading(TemperatureField(c), temperatureScale)
}

// Humidity returns the channel relative humidity in %, or nil when the
// channel was not part of the decoded cycle.
func (r RegisterMap) Humidity(c Channel) (*Reading, error) {
	return r.reading(HumidityField(c), 1)
}

func (r RegisterMap) reading(field string, scale float64) (*Reading, error) {
	values := [3]float64{}
	for i, name := range []string{field, field + maxSuffix, field + minSuffix} {
		value, ok, err := r.Value(name)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, nil
		}
		values[i] = float64(value) / scale
	}
	return &Reading{Current: values[0], Max: values[1], Min: values[2]}, nil
}

// AverageOutdoorTemperature is the mean current temperature of the first
// two outdoor sensors.
func (r RegisterMap) AverageOutdoorTemperature() (*float64, error) {
	first, err := r.Temperature(Outdoor1)
	if err != nil {
		return nil, errors.Wrap(err, "outdoor temperature")
	}
	second, err := r.Temperature(Outdoor2)
	if err != nil {
		return nil, errors.Wrap(err, "outdoor 2 temperature")
	}
	if first == nil || second == nil {
		return nil, nil
	}
	avg := AverageOutdoor(first.Current, second.Current)
	return &avg, nil
}
