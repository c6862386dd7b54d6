package station

import (
	"bufio"
	"context"
	"io"
	"os/exec"
	"regexp"
	"strings"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const hcitoolBinary = "hcitool"

var scanPattern = regexp.MustCompile(`^\s*((?:[0-9A-Fa-f]{2}:){5}[0-9A-Fa-f]{2})\s+(.+?)\s*$`)

// Scan looks for a station advertising name and returns its address.
// Scanning needs root privileges.
func Scan(ctx context.Context, adapter, name string, log *logrus.Entry) (string, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	args := []string{"lescan", "--duplicates"}
	if adapter != "" {
		args = append([]string{"-i", adapter}, args...)
	}
	cmd := exec.CommandContext(ctx, hcitoolBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return "", errors.Wrap(err, "hcitool stdout")
	}
	if err := cmd.Start(); err != nil {
		return "", errors.Wrap(err, "start hcitool, scanning requires root privileges")
	}

	address, found := findStation(stdout, name)
	cancel()
	_ = cmd.Wait()

	if !found {
		log.Infoln("no weather station in range")
		return "", errors.Wrapf(ErrStationNotFound, "name %q", name)
	}
	log.Infof("weather station found at %s", address)
	return address, nil
}

// findStation reads hcitool lescan output until a device advertising
// name shows up or the output ends.
func findStation(r io.Reader, name string) (string, bool) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		address, advertised, ok := parseScanLine(scanner.Text())
		if ok && advertised == name {
			return strings.ToUpper(address), true
		}
	}
	return "", false
}

func parseScanLine(line string) (address, name string, ok bool) {
	match := scanPattern.FindStringSubmatch(line)
	if match == nil || match[2] == "(unknown)" {
		return "", "", false
	}
	return match[1], match[2], true
}
