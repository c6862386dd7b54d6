// Command weatherstation reads an Oregon Scientific BLE weather station
// (EMR211, RAR218HG, BAR218HG) through BlueZ and prints or publishes its
// readings.
//
// Usage:
//
//	weatherstation [flags]
//
// Flags:
//
//	-config string     Station configuration file (YAML)
//	-mac string        Station address, scanned for by name when empty
//	-mode string       report, summary, stats, battery or daemon (default "report")
//	-log-level string  Log level: debug, info, warn, error
//
// Examples:
//
//	# Print every reading of the station
//	sudo weatherstation -mac D4:AB:55:10:22:9F
//
//	# Publish readings to the broker configured in the file
//	sudo weatherstation -config /etc/weatherstation/station_setup.yaml -mode daemon
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/janael-pinheiro/ble-weather-station/pkg/gateways/station"
	"github.com/janael-pinheiro/ble-weather-station/pkg/gateways/station/network"
	"github.com/janael-pinheiro/ble-weather-station/pkg/logging"
	"github.com/janael-pinheiro/ble-weather-station/pkg/utils"
	"github.com/janael-pinheiro/ble-weather-station/pkg/weather"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

// Name advertised by the RAR218HG base station.
const defaultStationName = "IDTW213R"

var modes = []string{
	entities.ModeReport,
	entities.ModeSummary,
	entities.ModeStats,
	entities.ModeBattery,
	entities.ModeDaemon,
}

type options struct {
	configFile string
	address    string
	mode       string
	logLevel   string
}

func main() {
	var opts options
	flag.StringVar(&opts.configFile, "config", "", "Station configuration file (YAML)")
	flag.StringVar(&opts.address, "mac", "", "Station address, scanned for by name when empty")
	flag.StringVar(&opts.mode, "mode", entities.ModeReport, "Output mode: "+strings.Join(modes, ", "))
	flag.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, stdout io.Writer) error {
	conf, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := logging.NewLogrus(conf.LogLevel, os.Stderr).Get("WeatherStation")

	if conf.Address == "" {
		scanCtx, cancel := context.WithTimeout(ctx, conf.ScanTimeout)
		conf.Address, err = station.Scan(scanCtx, conf.Adapter, conf.Name, log)
		cancel()
		if err != nil {
			return err
		}
	}

	dial := func(ctx context.Context) (station.Peripheral, error) {
		peripheral, err := station.Dial(ctx, conf, log)
		if err != nil {
			return nil, err
		}
		return peripheral, nil
	}
	peripheral, err := dial(ctx)
	if err != nil {
		return err
	}
	if opts.mode == entities.ModeDaemon {
		return serve(ctx, conf, peripheral, dial, log)
	}
	defer func() {
		if err := peripheral.Disconnect(); err != nil {
			log.Debugln("gatttool exited:", err)
		}
	}()

	if opts.mode == entities.ModeBattery {
		level, err := peripheral.ReadBattery(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(stdout, "Battery charge: %d%%\n", level)
		return nil
	}

	result := station.NewMonitor(peripheral, conf, log).Cycle(ctx)
	if result.Outcome != station.OutcomeData {
		return errors.Wrapf(result.Err, "no data received from the weather station: %s", result.Outcome)
	}
	report, err := weather.NewReport(result.Registers)
	if err != nil {
		return err
	}
	for _, warning := range report.Warnings {
		log.Warnln(warning)
	}
	return render(stdout, opts.mode, report)
}

// loadConfig merges the configuration file with the command line flags.
func loadConfig(opts options) (entities.StationConfig, error) {
	if !validMode(opts.mode) {
		return entities.StationConfig{}, errors.Errorf("unknown mode %q, expected one of %s", opts.mode, strings.Join(modes, ", "))
	}

	conf := entities.StationConfig{Name: defaultStationName}
	if opts.configFile != "" {
		var err error
		if conf, err = utils.LoadStationConfig(opts.configFile); err != nil {
			return conf, err
		}
		if conf.Name == "" {
			conf.Name = defaultStationName
		}
	}
	if opts.address != "" {
		conf.Address = strings.ToUpper(opts.address)
	}
	if opts.logLevel != "" {
		conf.LogLevel = opts.logLevel
	}
	if opts.mode == entities.ModeDaemon && conf.Integration.URL == "" {
		return conf, errors.New("daemon mode needs integration.url in the configuration file")
	}
	return conf.WithDefaults(), nil
}

func validMode(mode string) bool {
	for _, m := range modes {
		if m == mode {
			return true
		}
	}
	return false
}

func render(w io.Writer, mode string, report weather.Report) error {
	var line string
	var err error
	switch mode {
	case entities.ModeSummary:
		line, err = weather.Summary(report)
	case entities.ModeStats:
		line, err = weather.Stats(report)
	default:
		return weather.WriteDetails(w, report)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, line)
	return err
}

// serve hands peripheral over to the integration, which closes it.
func serve(ctx context.Context, conf entities.StationConfig, peripheral station.Peripheral, dial station.DialFunc, log *logrus.Entry) error {
	amqp := network.NewAMQPHandler(network.NewAmqpConnection(conf.Integration.URL), log)
	integration, err := station.NewIntegration(conf, peripheral, dial, amqp, log)
	if err != nil {
		_ = peripheral.Disconnect()
		return err
	}
	defer func() {
		if err := integration.Close(); err != nil {
			log.Errorln(err)
		}
	}()
	log.Infof("publishing readings of %s every %s", conf.Address, conf.Integration.PollInterval)
	return integration.Serve(ctx)
}
