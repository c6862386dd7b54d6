package weather

import (
	"fmt"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var ErrIncompleteReport = errors.New("report lacks the channels this view needs")

// WriteDetails prints every available reading of the report, indoor
// first.
func WriteDetails(w io.Writer, r Report) error {
	var b strings.Builder
	b.WriteString("***INDOOR***\n")
	writeTemperature(&b, "Indoor temp", r.Temperatures, Indoor)
	writeHumidity(&b, "Indoor humidity", r.Humidities, Indoor)

	b.WriteString("\n***OUTDOOR***\n")
	writeTemperature(&b, "Outdoor temp", r.Temperatures, Outdoor1)
	writeTemperature(&b, "Outdoor temp 2", r.Temperatures, Outdoor2)
	writeTemperature(&b, "Outdoor temp 3", r.Temperatures, Outdoor3)
	if r.AverageOutdoor != nil {
		fmt.Fprintf(&b, "Average outdoor temperature: %.1f°C\n", *r.AverageOutdoor)
	}
	writeHumidity(&b, "Outdoor humidity", r.Humidities, Outdoor1)
	writeHumidity(&b, "Outdoor humidity 2", r.Humidities, Outdoor2)
	writeHumidity(&b, "Outdoor humidity 3", r.Humidities, Outdoor3)
	if r.DewPoint != nil {
		fmt.Fprintf(&b, "Dew point: %.2f°C\n", *r.DewPoint)
	}
	if r.FrostPoint != nil {
		fmt.Fprintf(&b, "Frost point: %.2f°C\n", *r.FrostPoint)
	}
	if temperature, humidity, ok := r.Registers.Trends(); ok {
		fmt.Fprintf(&b, "Trends: temperature %d, humidity %d\n", temperature, humidity)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTemperature(b *strings.Builder, label string, readings map[Channel]Reading, c Channel) {
	if t, ok := readings[c]; ok {
		fmt.Fprintf(b, "%s : %.1f°C, max : %.1f°C, min : %.1f°C\n", label, t.Current, t.Max, t.Min)
	}
}

func writeHumidity(b *strings.Builder, label string, readings map[Channel]Reading, c Channel) {
	if h, ok := readings[c]; ok {
		fmt.Fprintf(b, "%s : %.0f%%, max : %.0f%%, min : %.0f%%\n", label, h.Current, h.Max, h.Min)
	}
}

// Summary is a one-line description of current indoor and outdoor
// conditions.
func Summary(r Report) (string, error) {
	indoorT, ok1 := r.Temperatures[Indoor]
	indoorH, ok2 := r.Humidities[Indoor]
	outdoorT, ok3 := r.Temperatures[Outdoor1]
	outdoorH, ok4 := r.Humidities[Outdoor1]
	if !ok1 || !ok2 || !ok3 || !ok4 {
		return "", errors.Wrap(ErrIncompleteReport, "summary")
	}
	return fmt.Sprintf("It is %.1f degrees indoors with %.0f%% humidity. Outside it is %.1f degrees with %.0f%% humidity.",
		indoorT.Current, indoorH.Current, outdoorT.Current, outdoorH.Current), nil
}

// Stats describes the indoor and outdoor extremes in whole degrees. The
// outdoor extremes average the first two outdoor sensors.
func Stats(r Report) (string, error) {
	indoor, ok1 := r.Temperatures[Indoor]
	first, ok2 := r.Temperatures[Outdoor1]
	second, ok3 := r.Temperatures[Outdoor2]
	if !ok1 || !ok2 || !ok3 {
		return "", errors.Wrap(ErrIncompleteReport, "stats")
	}
	return fmt.Sprintf("Indoor minimum was %d degrees and maximum %d degrees. Outdoor minimum was %d degrees and maximum %d degrees.",
		int(indoor.Min), int(indoor.Max),
		int(AverageOutdoor(first.Min, second.Min)), int(AverageOutdoor(first.Max, second.Max))), nil
}
