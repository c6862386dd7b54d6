package network

import (
	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
)

// ReadingSent carries one decoded read cycle.
type ReadingSent struct {
	ID          string               `json:"id"`
	Measurement entities.Measurement `json:"measurement"`
}

type BatterySent struct {
	ID      string           `json:"id"`
	Battery entities.Battery `json:"battery"`
}

// ReadRequest asks the daemon for an immediate read cycle.
type ReadRequest struct {
	ID string `json:"id"`
}
