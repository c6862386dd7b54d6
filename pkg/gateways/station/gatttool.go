package station

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	gatttoolBinary = "gatttool"
	batteryHandle  = 0x0031
	connectRetries = 3

	connectSuccessful = "Connection successful"
	writeSuccessful   = "Characteristic value was written successfully"
	readValue         = "Characteristic value/descriptor:"
)

type cccdWrite struct {
	handle uint16
	value  string
}

// Client characteristic configuration descriptors of the station.
// 0200 enables indications, 0100 notifications.
var subscriptions = []cccdWrite{
	{0x000c, "0200"},
	{0x000f, "0200"},
	{0x0012, "0200"},
	{0x0015, "0100"},
	{0x0018, "0200"},
	{0x001b, "0200"},
	{0x001e, "0200"},
	{0x0021, "0200"},
	{0x0032, "0100"},
}

var (
	notificationPattern = regexp.MustCompile(`(?:Notification|Indication)\s+handle\s*=\s*0x([0-9a-fA-F]{1,4})\s+value:\s*((?:[0-9a-fA-F]{2}\s*)+)`)
	readPattern         = regexp.MustCompile(`Characteristic value/descriptor:\s*((?:[0-9a-fA-F]{2}\s*)+)`)
	ansiPattern         = regexp.MustCompile(`\x1b\[[0-9;]*[A-Za-z]`)
)

// Gatttool drives an interactive BlueZ gatttool session connected to
// one station.
type Gatttool struct {
	address        string
	stdin          io.WriteCloser
	output         chan string
	notifications  chan Notification
	wait           func() error
	commandTimeout time.Duration
	log            *logrus.Entry
}

// Dial starts gatttool for the configured station and connects to it.
func Dial(ctx context.Context, conf entities.StationConfig, log *logrus.Entry) (*Gatttool, error) {
	args := []string{"-b", conf.Address, "-t", "random", "-I"}
	if conf.Adapter != "" {
		args = append([]string{"-i", conf.Adapter}, args...)
	}
	cmd := exec.Command(gatttoolBinary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, errors.Wrap(err, "gatttool stdin")
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, errors.Wrap(err, "gatttool stdout")
	}
	if err := cmd.Start(); err != nil {
		return nil, errors.Wrap(err, "start gatttool")
	}

	g := newGatttool(conf.Address, stdin, stdout, cmd.Wait, conf.ConnectTimeout, log)
	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), connectRetries), ctx)
	if err := g.connect(ctx, policy); err != nil {
		_ = g.Disconnect()
		return nil, err
	}
	return g, nil
}

func newGatttool(address string, stdin io.WriteCloser, stdout io.Reader, wait func() error, commandTimeout time.Duration, log *logrus.Entry) *Gatttool {
	g := &Gatttool{
		address:        address,
		stdin:          stdin,
		output:         make(chan string, 64),
		notifications:  make(chan Notification, 64),
		wait:           wait,
		commandTimeout: commandTimeout,
		log:            log,
	}
	go g.readOutput(stdout)
	return g
}

func (g *Gatttool) readOutput(stdout io.Reader) {
	defer close(g.output)
	defer close(g.notifications)

	scanner := bufio.NewScanner(stdout)
	for scanner.Scan() {
		line := ansiPattern.ReplaceAllString(scanner.Text(), "")
		if notification, ok := parseNotification(line); ok {
			g.log.Debugf("handle 0x%04x = %x", notification.Handle, notification.Data)
			g.queueNotification(notification)
			continue
		}
		select {
		case g.output <- line:
		default:
			g.log.Debugln("dropping gatttool output:", line)
		}
	}
}

// queueNotification never blocks the output reader. When the queue is
// full the oldest notification is dropped.
func (g *Gatttool) queueNotification(notification Notification) {
	for {
		select {
		case g.notifications <- notification:
			return
		default:
		}
		select {
		case dropped := <-g.notifications:
			g.log.Debugf("notification queue full, dropping handle 0x%04x = %x", dropped.Handle, dropped.Data)
		default:
		}
	}
}

func (g *Gatttool) connect(ctx context.Context, policy backoff.BackOff) error {
	attempt := func() error {
		_, err := g.command(ctx, "connect", connectSuccessful)
		if err != nil {
			g.log.Warnf("connection to %s failed: %v", g.address, err)
			if errors.Is(err, ErrTransportClosed) {
				return backoff.Permanent(err)
			}
		}
		return err
	}
	if err := backoff.Retry(attempt, policy); err != nil {
		return errors.Wrapf(err, "connect to %s", g.address)
	}
	g.log.Infoln("weather station connected")
	return nil
}

// EnableNotifications subscribes to every notification and indication
// the station offers. Notifications queued before the call are discarded
// so a cycle only sees values sent after it started.
func (g *Gatttool) EnableNotifications(ctx context.Context) error {
	if discarded := g.discardNotifications(); discarded > 0 {
		g.log.Debugf("discarded %d notifications received between cycles", discarded)
	}
	for _, s := range subscriptions {
		cmd := fmt.Sprintf("char-write-req 0x%04x %s", s.handle, s.value)
		if _, err := g.command(ctx, cmd, writeSuccessful); err != nil {
			return errors.Wrapf(err, "enable notifications on handle 0x%04x", s.handle)
		}
	}
	g.log.Debugln("notifications enabled")
	return nil
}

func (g *Gatttool) WaitForNotification(ctx context.Context, timeout time.Duration) (Notification, error) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case notification, ok := <-g.notifications:
		if !ok {
			return Notification{}, ErrTransportClosed
		}
		return notification, nil
	case <-timer.C:
		return Notification{}, ErrNotificationTimeout
	case <-ctx.Done():
		return Notification{}, ctx.Err()
	}
}

// ReadBattery returns the battery level in percent.
func (g *Gatttool) ReadBattery(ctx context.Context) (int, error) {
	line, err := g.command(ctx, fmt.Sprintf("char-read-hnd 0x%04x", batteryHandle), readValue)
	if err != nil {
		return 0, errors.Wrap(err, "read battery")
	}
	value, err := parseReadValue(line)
	if err != nil {
		return 0, errors.Wrap(err, "read battery")
	}
	if len(value) == 0 {
		return 0, errors.Wrap(ErrCommandFailed, "empty battery value")
	}
	return int(value[0]), nil
}

func (g *Gatttool) Disconnect() error {
	_, _ = io.WriteString(g.stdin, "disconnect\nexit\n")
	if err := g.stdin.Close(); err != nil {
		g.log.Debugln("closing gatttool stdin:", err)
	}
	if g.wait == nil {
		return nil
	}
	return g.wait()
}

// command sends one line to gatttool and waits for the line containing
// success.
func (g *Gatttool) command(ctx context.Context, cmd, success string) (string, error) {
	g.drain()
	if _, err := io.WriteString(g.stdin, cmd+"\n"); err != nil {
		return "", errors.Wrapf(ErrTransportClosed, "%s: %v", cmd, err)
	}

	timer := time.NewTimer(g.commandTimeout)
	defer timer.Stop()
	for {
		select {
		case line, ok := <-g.output:
			if !ok {
				return "", errors.Wrap(ErrTransportClosed, cmd)
			}
			if strings.Contains(line, success) {
				return line, nil
			}
			if isErrorLine(line) {
				return "", errors.Wrapf(ErrCommandFailed, "%s: %s", cmd, strings.TrimSpace(line))
			}
		case <-timer.C:
			return "", errors.Wrap(ErrCommandTimeout, cmd)
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (g *Gatttool) discardNotifications() int {
	discarded := 0
	for {
		select {
		case _, ok := <-g.notifications:
			if !ok {
				return discarded
			}
			discarded++
		default:
			return discarded
		}
	}
}

func (g *Gatttool) drain() {
	for {
		select {
		case _, ok := <-g.output:
			if !ok {
				return
			}
		default:
			return
		}
	}
}

func isErrorLine(line string) bool {
	lower := strings.ToLower(line)
	return strings.Contains(lower, "error") || strings.Contains(lower, "failed")
}

func parseNotification(line string) (Notification, bool) {
	match := notificationPattern.FindStringSubmatch(line)
	if match == nil {
		return Notification{}, false
	}
	handle, err := strconv.ParseUint(match[1], 16, 16)
	if err != nil {
		return Notification{}, false
	}
	data, err := parseHexBytes(match[2])
	if err != nil {
		return Notification{}, false
	}
	return Notification{Handle: uint16(handle), Data: data}, true
}

func parseReadValue(line string) ([]byte, error) {
	match := readPattern.FindStringSubmatch(line)
	if match == nil {
		return nil, errors.Wrapf(ErrCommandFailed, "unexpected read output %q", line)
	}
	return parseHexBytes(match[1])
}

func parseHexBytes(value string) ([]byte, error) {
	return hex.DecodeString(strings.Join(strings.Fields(value), ""))
}
