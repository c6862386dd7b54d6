package utils

import (
	"os"
	"path/filepath"

	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

type config interface {
	entities.StationConfig
}

var ErrMissingStation = errors.New("neither station address nor name configured")

func readTextFile(filepathName string) ([]byte, error) {
	fileContent, err := os.ReadFile(filepath.Clean(filepathName))
	return fileContent, errors.Wrapf(err, "read %s", filepathName)
}

// ConfigurationParser decodes the YAML file at filepathName over
// configEntity, keeping the fields the file does not set.
func ConfigurationParser[T config](filepathName string, configEntity T) (T, error) {
	fileContent, err := readTextFile(filepathName)
	if err != nil {
		return configEntity, err
	}

	err = yaml.UnmarshalStrict(fileContent, &configEntity)
	return configEntity, errors.Wrapf(err, "parse %s", filepathName)
}

// LoadStationConfig reads a station configuration and fills in defaults.
func LoadStationConfig(filepathName string) (entities.StationConfig, error) {
	conf, err := ConfigurationParser(filepathName, entities.StationConfig{})
	if err != nil {
		return conf, err
	}
	conf = conf.WithDefaults()
	if conf.Address == "" && conf.Name == "" {
		return conf, errors.Wrap(ErrMissingStation, filepathName)
	}
	return conf, nil
}
