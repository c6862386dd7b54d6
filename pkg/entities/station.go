package entities

import "time"

const (
	ModeReport  string = "report"
	ModeSummary string = "summary"
	ModeStats   string = "stats"
	ModeBattery string = "battery"
	ModeDaemon  string = "daemon"
)

// StationConfig is the YAML configuration of a single weather station.
type StationConfig struct {
	Name                  string        `yaml:"name"`
	Address               string        `yaml:"address"`
	Adapter               string        `yaml:"adapter"`
	ScanTimeout           time.Duration `yaml:"scanTimeout"`
	ConnectTimeout        time.Duration `yaml:"connectTimeout"`
	NotificationTimeout   time.Duration `yaml:"notificationTimeout"`
	MaxCycleNotifications int           `yaml:"maxCycleNotifications"`
	LogLevel              string        `yaml:"logLevel"`
	Integration           Integration   `yaml:"integration"`
}

// Integration holds the broker settings used by the daemon mode.
type Integration struct {
	URL          string        `yaml:"url"`
	UserToken    string        `yaml:"token"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

type Sensor struct {
	Channel int     `json:"channel"`
	Name    string  `json:"name"`
	Current float64 `json:"current"`
	Max     float64 `json:"max"`
	Min     float64 `json:"min"`
	Unit    string  `json:"unit"`
}

// Measurement is the wire form of one decoded read cycle.
type Measurement struct {
	Station            string            `json:"station"`
	Temperatures       []Sensor          `json:"temperatures"`
	Humidities         []Sensor          `json:"humidities"`
	AverageOutdoorTemp *float64          `json:"averageOutdoorTemperature,omitempty"`
	DewPoint           *float64          `json:"dewPoint,omitempty"`
	FrostPoint         *float64          `json:"frostPoint,omitempty"`
	Registers          map[string]string `json:"registers"`
	TimeStamp          time.Time         `json:"timestamp"`
}

// Battery is the wire form of a battery level read.
type Battery struct {
	Station   string    `json:"station"`
	Level     int       `json:"level"`
	TimeStamp time.Time `json:"timestamp"`
}

const (
	defaultScanTimeout           = 2 * time.Second
	defaultConnectTimeout        = 10 * time.Second
	defaultNotificationTimeout   = time.Second
	defaultMaxCycleNotifications = 32
	defaultPollInterval          = 5 * time.Minute
	defaultLogLevel              = "info"
)

// WithDefaults fills every unset tuning field.
func (c StationConfig) WithDefaults() StationConfig {
	if c.ScanTimeout <= 0 {
		c.ScanTimeout = defaultScanTimeout
	}
	if c.ConnectTimeout <= 0 {
		c.ConnectTimeout = defaultConnectTimeout
	}
	if c.NotificationTimeout <= 0 {
		c.NotificationTimeout = defaultNotificationTimeout
	}
	if c.MaxCycleNotifications <= 0 {
		c.MaxCycleNotifications = defaultMaxCycleNotifications
	}
	if c.Integration.PollInterval <= 0 {
		c.Integration.PollInterval = defaultPollInterval
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
	return c
}
