package station

import (
	"context"
	"time"

	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/janael-pinheiro/ble-weather-station/pkg/weather"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

type Outcome int

const (
	OutcomeData Outcome = iota
	OutcomeTimeout
	OutcomeTransportError
	OutcomeMalformedPayload
)

var ErrIncompleteCycle = errors.New("read cycle ended without both payloads")

func (o Outcome) String() string {
	switch o {
	case OutcomeData:
		return "data"
	case OutcomeTimeout:
		return "timeout"
	case OutcomeTransportError:
		return "transport error"
	case OutcomeMalformedPayload:
		return "malformed payload"
	}
	return "unknown"
}

// CycleResult is the outcome of one read cycle. Registers is set only
// for OutcomeData, Err for every other outcome.
type CycleResult struct {
	Outcome   Outcome
	Registers weather.RegisterMap
	Err       error
}

type Monitor struct {
	peripheral          Peripheral
	notificationTimeout time.Duration
	maxNotifications    int
	accumulator         weather.Accumulator
	log                 *logrus.Entry
}

func NewMonitor(peripheral Peripheral, conf entities.StationConfig, log *logrus.Entry) *Monitor {
	conf = conf.WithDefaults()
	return &Monitor{
		peripheral:          peripheral,
		notificationTimeout: conf.NotificationTimeout,
		maxNotifications:    conf.MaxCycleNotifications,
		log:                 log,
	}
}

// Cycle enables notifications and collects them until the station goes
// quiet, then decodes the last type0/type1 pair received. Every cycle
// starts from an empty accumulator. Cycle is not safe for concurrent use.
func (m *Monitor) Cycle(ctx context.Context) CycleResult {
	m.accumulator.Reset()
	if err := m.peripheral.EnableNotifications(ctx); err != nil {
		return CycleResult{Outcome: OutcomeTransportError, Err: err}
	}

	for received := 0; received < m.maxNotifications; received++ {
		notification, err := m.peripheral.WaitForNotification(ctx, m.notificationTimeout)
		if errors.Is(err, ErrNotificationTimeout) {
			m.log.Debugln("notification timeout")
			break
		}
		if err != nil {
			return CycleResult{Outcome: OutcomeTransportError, Err: err}
		}
		if !m.accumulator.Accumulate(notification.Handle, notification.Data) {
			m.log.Debugf("skipping handle 0x%04x = %x", notification.Handle, notification.Data)
		}
	}

	registers, ok, err := m.accumulator.TryDecode()
	if err != nil {
		return CycleResult{Outcome: OutcomeMalformedPayload, Err: err}
	}
	if !ok {
		return CycleResult{Outcome: OutcomeTimeout, Err: ErrIncompleteCycle}
	}
	return CycleResult{Outcome: OutcomeData, Registers: registers}
}
