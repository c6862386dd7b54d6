package station

import (
	"context"
	"encoding/json"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	bloomFilter "github.com/bits-and-blooms/bloom/v3"
	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/janael-pinheiro/ble-weather-station/pkg/gateways/station/network"
	"github.com/janael-pinheiro/ble-weather-station/pkg/weather"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	DUPLICATION_FILTER            = "0"
	FILTER_CAPACITY               = "100000"
	DUPLICATION_PROBABILITY       = "0.01"
	RESET_FILTER_USAGE_PERCENTAGE = "75"
)

const (
	celsius = "°C"
	percent = "%"
)

// DialFunc connects to the station.
type DialFunc func(ctx context.Context) (Peripheral, error)

// Integration publishes the decoded cycles of one station to the broker.
type Integration struct {
	station                      string
	name                         string
	userToken                    string
	pollInterval                 time.Duration
	monitor                      *Monitor
	peripheral                   Peripheral
	dial                         DialFunc
	redialBackOff                func() backoff.BackOff
	amqp                         network.Messaging
	publisher                    network.Publisher
	subscriber                   network.Subscriber
	filter                       *bloomFilter.BloomFilter
	filterLock                   sync.Mutex
	filterCapacity               uint
	maximumPercentageFilterUsage float32
	isCycleDuplicatedFunction    func(string) bool
	log                          *logrus.Entry
	now                          func() time.Time
}

// NewIntegration takes ownership of peripheral. After a transport error
// the station is dialed again through dial, when it is not nil.
func NewIntegration(conf entities.StationConfig, peripheral Peripheral, dial DialFunc, amqp network.Messaging, log *logrus.Entry) (*Integration, error) {
	if err := amqp.Start(); err != nil {
		return nil, errors.Wrap(err, "broker connection")
	}
	log.Infoln("broker connected")
	return newIntegration(conf, peripheral, dial, amqp, network.NewMsgPublisher(amqp), network.NewMsgSubscriber(amqp), log)
}

func newIntegration(conf entities.StationConfig, peripheral Peripheral, dial DialFunc, amqp network.Messaging, publisher network.Publisher, subscriber network.Subscriber, log *logrus.Entry) (*Integration, error) {
	conf = conf.WithDefaults()
	integration := &Integration{
		station:      conf.Address,
		name:         conf.Name,
		userToken:    conf.Integration.UserToken,
		pollInterval: conf.Integration.PollInterval,
		monitor:      NewMonitor(peripheral, conf, log),
		peripheral:   peripheral,
		dial:         dial,
		redialBackOff: func() backoff.BackOff {
			return backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries)
		},
		amqp:       amqp,
		publisher:  publisher,
		subscriber: subscriber,
		log:        log,
		now:        time.Now,
	}

	maximumPercentageFilterUsage, err := strconv.ParseFloat(getValueFromEnvironmentVariable("RESET_FILTER_USAGE_PERCENTAGE", RESET_FILTER_USAGE_PERCENTAGE), 32)
	if err != nil {
		return nil, errors.Wrap(err, "RESET_FILTER_USAGE_PERCENTAGE environment variable")
	}
	integration.maximumPercentageFilterUsage = float32(maximumPercentageFilterUsage)
	filterCapacity, err := strconv.ParseUint(getValueFromEnvironmentVariable("FILTER_CAPACITY", FILTER_CAPACITY), 10, 0)
	if err != nil {
		return nil, errors.Wrap(err, "FILTER_CAPACITY environment variable")
	}
	duplicationProbability, err := strconv.ParseFloat(getValueFromEnvironmentVariable("DUPLICATION_PROBABILITY", DUPLICATION_PROBABILITY), 64)
	if err != nil {
		return nil, errors.Wrap(err, "DUPLICATION_PROBABILITY environment variable")
	}
	integration.filterCapacity = uint(filterCapacity)
	integration.filter = bloomFilter.NewWithEstimates(integration.filterCapacity, duplicationProbability)

	duplicationFilterFunctionMapping := map[string]func(string) bool{
		DUPLICATION_FILTER: func(string) bool { return false },
		"1":                integration.isCycleDuplicated,
	}
	enableDuplicationFilter := getValueFromEnvironmentVariable("DUPLICATION_FILTER", DUPLICATION_FILTER)
	function, ok := duplicationFilterFunctionMapping[enableDuplicationFilter]
	if !ok {
		return nil, errors.Errorf("DUPLICATION_FILTER environment variable with invalid value %q", enableDuplicationFilter)
	}
	integration.isCycleDuplicatedFunction = function
	return integration, nil
}

// Serve runs a read cycle every poll interval and on every read request
// received from the broker, until ctx is done.
func (i *Integration) Serve(ctx context.Context) error {
	msgChan := make(chan network.InMsg)
	if err := i.subscriber.SubscribeToReadRequests(msgChan); err != nil {
		return errors.Wrap(err, "subscribe to read requests")
	}

	ticker := time.NewTicker(i.pollInterval)
	defer ticker.Stop()

	i.readAndLog(ctx)
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			i.readAndLog(ctx)
		case msg := <-msgChan:
			var request network.ReadRequest
			if err := json.Unmarshal(msg.Body, &request); err != nil {
				i.log.Debugln("read request without a readable body:", err)
			}
			i.log.Infof("read requested by %q through %s", request.ID, msg.RoutingKey)
			i.readAndLog(ctx)
		}
	}
}

func (i *Integration) readAndLog(ctx context.Context) {
	if err := i.ReadOnce(ctx); err != nil {
		i.log.Errorln(err)
	}
}

// ReadOnce runs a single read cycle and publishes its result and the
// battery level.
func (i *Integration) ReadOnce(ctx context.Context) error {
	result := i.monitor.Cycle(ctx)
	if result.Outcome == OutcomeTransportError {
		if err := i.reconnect(ctx); err != nil {
			i.log.Errorln(err)
		}
	}
	if result.Outcome != OutcomeData {
		return errors.Wrapf(result.Err, "read cycle: %s", result.Outcome)
	}

	report, err := weather.NewReport(result.Registers)
	if err != nil {
		return errors.Wrap(err, "build report")
	}
	for _, warning := range report.Warnings {
		i.log.Warnln(warning)
	}
	if err := i.Transmit(report); err != nil {
		return err
	}

	level, err := i.peripheral.ReadBattery(ctx)
	if err != nil {
		i.log.Warnln(err)
		return nil
	}
	battery := entities.Battery{Station: i.name, Level: level, TimeStamp: i.now()}
	if err := i.publisher.PublishBattery(i.userToken, i.station, battery); err != nil {
		return errors.Wrap(err, "publish battery")
	}
	return nil
}

// Transmit publishes a report unless the same register set was already
// published.
func (i *Integration) Transmit(report weather.Report) error {
	key := i.cycleKey(report.Registers)
	if i.isCycleDuplicatedFunction(key) {
		i.log.Debugln("skipping duplicated read cycle")
		return nil
	}

	measurement := NewMeasurement(i.name, report, i.now())
	if err := i.publisher.PublishReading(i.userToken, i.station, measurement); err != nil {
		return errors.Wrap(err, "publish reading")
	}
	i.log.Infoln("published reading")
	i.updateDuplicationFilter(key)
	return nil
}

// reconnect replaces the peripheral with a freshly dialed one.
func (i *Integration) reconnect(ctx context.Context) error {
	if i.dial == nil {
		return nil
	}
	if err := i.peripheral.Disconnect(); err != nil {
		i.log.Debugln("closing lost station connection:", err)
	}

	var peripheral Peripheral
	attempt := func() error {
		p, err := i.dial(ctx)
		if err != nil {
			i.log.Warnln("redial failed:", err)
			return err
		}
		peripheral = p
		return nil
	}
	if err := backoff.Retry(attempt, backoff.WithContext(i.redialBackOff(), ctx)); err != nil {
		return errors.Wrapf(err, "reconnect to %s", i.station)
	}
	i.peripheral = peripheral
	i.monitor.peripheral = peripheral
	i.log.Infoln("weather station reconnected")
	return nil
}

// Close stops the broker connection and disconnects the station.
func (i *Integration) Close() error {
	if err := i.peripheral.Disconnect(); err != nil {
		i.log.Debugln("disconnecting station:", err)
	}
	return i.amqp.Stop()
}

func (i *Integration) cycleKey(registers weather.RegisterMap) string {
	names := make([]string, 0, len(registers))
	for name := range registers {
		names = append(names, name)
	}
	sort.Strings(names)

	var key strings.Builder
	key.WriteString(i.station)
	for _, name := range names {
		key.WriteString("_")
		key.WriteString(name)
		key.WriteString("=")
		key.WriteString(registers[name])
	}
	return key.String()
}

func (i *Integration) isCycleDuplicated(key string) bool {
	i.filterLock.Lock()
	defer i.filterLock.Unlock()
	return i.filter.Test([]byte(key))
}

func (i *Integration) updateDuplicationFilter(key string) {
	i.filterLock.Lock()
	defer i.filterLock.Unlock()
	i.resetDuplicationFilter()
	i.filter.Add([]byte(key))
}

// resetDuplicationFilter clears the filter once it holds more items than
// its estimates allow for. Callers hold filterLock.
func (i *Integration) resetDuplicationFilter() {
	approximatedFilterSize := i.filter.ApproximatedSize()
	currentPercentageFilterUsage := (float32(approximatedFilterSize) / float32(i.filterCapacity)) * 100
	if currentPercentageFilterUsage >= i.maximumPercentageFilterUsage {
		i.filter.ClearAll()
	}
}

// NewMeasurement converts a report into its wire form. Channels are
// listed in station order.
func NewMeasurement(station string, report weather.Report, at time.Time) entities.Measurement {
	measurement := entities.Measurement{
		Station:            station,
		AverageOutdoorTemp: report.AverageOutdoor,
		DewPoint:           report.DewPoint,
		FrostPoint:         report.FrostPoint,
		Registers:          report.Registers,
		TimeStamp:          at,
	}
	for _, c := range weather.Channels {
		if t, ok := report.Temperatures[c]; ok {
			measurement.Temperatures = append(measurement.Temperatures, newSensor(c, t, celsius))
		}
		if h, ok := report.Humidities[c]; ok {
			measurement.Humidities = append(measurement.Humidities, newSensor(c, h, percent))
		}
	}
	return measurement
}

func newSensor(c weather.Channel, reading weather.Reading, unit string) entities.Sensor {
	return entities.Sensor{
		Channel: int(c),
		Name:    c.String(),
		Current: reading.Current,
		Max:     reading.Max,
		Min:     reading.Min,
		Unit:    unit,
	}
}

func getValueFromEnvironmentVariable(variableName, defaultValue string) string {
	value := os.Getenv(variableName)
	if value != "" {
		return value
	}
	return defaultValue
}
