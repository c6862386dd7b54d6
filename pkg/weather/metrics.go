package weather

import (
	"math"

	"github.com/pkg/errors"
)

const (
	magnusA = 17.27
	magnusB = 237.7

	zeroCelsius = 273.15
)

// DewPoint computes the dew point in °C with the Magnus approximation.
func DewPoint(tempC, relativeHumidity float64) (float64, error) {
	if !finite(tempC) || !finite(relativeHumidity) {
		return 0, errors.Wrapf(ErrDomain, "dew point: temperature %v, relative humidity %v", tempC, relativeHumidity)
	}
	if relativeHumidity <= 0 {
		return 0, errors.Wrapf(ErrDomain, "dew point: relative humidity %.1f%%", relativeHumidity)
	}
	if magnusB+tempC == 0 {
		return 0, errors.Wrap(ErrDomain, "dew point: division by zero")
	}
	alpha := (magnusA*tempC)/(magnusB+tempC) + math.Log(relativeHumidity/100.0)
	if alpha == magnusA {
		return 0, errors.Wrap(ErrDomain, "dew point: division by zero")
	}
	return checkFinite("dew point", (magnusB*alpha)/(magnusA-alpha))
}

// FrostPoint computes the frost point in °C from the air temperature and
// the dew point.
func FrostPoint(tempC, dewPointC float64) (float64, error) {
	if !finite(tempC) || !finite(dewPointC) {
		return 0, errors.Wrapf(ErrDomain, "frost point: temperature %v, dew point %v", tempC, dewPointC)
	}
	airK := zeroCelsius + tempC
	if airK <= 0 {
		return 0, errors.Wrapf(ErrDomain, "frost point: air temperature %.2f°C", tempC)
	}
	dewK := zeroCelsius + dewPointC
	denominator := 2954.61/airK + 2.193665*math.Log(airK) - 13.3448
	if denominator == 0 {
		return 0, errors.Wrap(ErrDomain, "frost point: division by zero")
	}
	frostK := dewK - airK + 2671.02/denominator
	return checkFinite("frost point", frostK-zeroCelsius)
}

func AverageOutdoor(first, second float64) float64 {
	return (first + second) / 2.0
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}

func checkFinite(metric string, x float64) (float64, error) {
	if !finite(x) {
		return 0, errors.Wrapf(ErrDomain, "%s: result %v", metric, x)
	}
	return round2(x), nil
}

func round2(x float64) float64 {
	return math.Round(x*100) / 100
}
