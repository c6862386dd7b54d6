package station

import (
	"bufio"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAddress = "C8:C3:2B:5E:11:0A"

// fakeGatttool answers the commands written to a Gatttool session.
type fakeGatttool struct {
	stdout   *io.PipeWriter
	lock     sync.Mutex
	received []string
}

func startFakeGatttool(t *testing.T, commandTimeout time.Duration, respond func(cmd string, attempt int) []string) (*Gatttool, *fakeGatttool) {
	stdinReader, stdinWriter := io.Pipe()
	stdoutReader, stdoutWriter := io.Pipe()
	fake := &fakeGatttool{stdout: stdoutWriter}

	go func() {
		defer stdoutWriter.Close()
		scanner := bufio.NewScanner(stdinReader)
		attempts := map[string]int{}
		for scanner.Scan() {
			cmd := scanner.Text()
			fake.lock.Lock()
			fake.received = append(fake.received, cmd)
			fake.lock.Unlock()
			attempts[cmd]++
			for _, line := range respond(cmd, attempts[cmd]) {
				if _, err := io.WriteString(stdoutWriter, line+"\n"); err != nil {
					return
				}
			}
		}
	}()

	logger, _ := test.NewNullLogger()
	g := newGatttool(testAddress, stdinWriter, stdoutReader, nil, commandTimeout, logrus.NewEntry(logger))
	t.Cleanup(func() { _ = g.Disconnect() })
	return g, fake
}

func (f *fakeGatttool) commands() []string {
	f.lock.Lock()
	defer f.lock.Unlock()
	return append([]string(nil), f.received...)
}

func (f *fakeGatttool) push(t *testing.T, line string) {
	_, err := io.WriteString(f.stdout, line+"\n")
	require.NoError(t, err)
}

func silent(string, int) []string { return nil }

func TestParseNotification(t *testing.T) {
	notification, ok := parseNotification("Notification handle = 0x0017 value: 82 00 f4 01 ")
	require.True(t, ok)
	assert.Equal(t, uint16(0x0017), notification.Handle)
	assert.Equal(t, []byte{0x82, 0x00, 0xf4, 0x01}, notification.Data)

	notification, ok = parseNotification("[C8:C3:2B:5E:11:0A][LE]> Indication   handle = 0x0017 value: 00 d7 00 ")
	require.True(t, ok)
	assert.Equal(t, []byte{0x00, 0xd7, 0x00}, notification.Data)

	_, ok = parseNotification("Characteristic value was written successfully")
	assert.False(t, ok)
}

func TestParseReadValue(t *testing.T) {
	value, err := parseReadValue("Characteristic value/descriptor: 5a ")
	require.NoError(t, err)
	assert.Equal(t, []byte{0x5a}, value)

	_, err = parseReadValue("Attempting to connect")
	assert.True(t, errors.Is(err, ErrCommandFailed))
}

func TestConnect(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		return []string{"Attempting to connect to " + testAddress, connectSuccessful}
	})

	err := g.connect(context.Background(), &backoff.StopBackOff{})
	assert.NoError(t, err)
	assert.Equal(t, []string{"connect"}, fake.commands())
}

func TestConnectRetriesWhenRefused(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		if attempt == 1 {
			return []string{"Error: connect error: Connection refused (111)"}
		}
		return []string{connectSuccessful}
	})

	err := g.connect(context.Background(), backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 3))
	assert.NoError(t, err)
	assert.Equal(t, []string{"connect", "connect"}, fake.commands())
}

func TestConnectWhenAlwaysRefusedReturnError(t *testing.T) {
	g, _ := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		return []string{"Error: connect error: Connection refused (111)"}
	})

	err := g.connect(context.Background(), backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 2))
	assert.True(t, errors.Is(err, ErrCommandFailed))
}

func TestEnableNotifications(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		return []string{writeSuccessful}
	})

	err := g.EnableNotifications(context.Background())
	require.NoError(t, err)
	commands := fake.commands()
	require.Len(t, commands, len(subscriptions))
	assert.Equal(t, "char-write-req 0x000c 0200", commands[0])
	assert.Equal(t, "char-write-req 0x0015 0100", commands[3])
	assert.Equal(t, "char-write-req 0x0032 0100", commands[8])
}

func TestEnableNotificationsWhenWriteFailsReturnError(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		return []string{"Error: Characteristic Write Request failed: Attribute can't be written"}
	})

	err := g.EnableNotifications(context.Background())
	assert.True(t, errors.Is(err, ErrCommandFailed))
	assert.Len(t, fake.commands(), 1)
}

func TestCommandWhenNoAnswerThenTimeout(t *testing.T) {
	g, _ := startFakeGatttool(t, 20*time.Millisecond, silent)

	_, err := g.ReadBattery(context.Background())
	assert.True(t, errors.Is(err, ErrCommandTimeout))
}

func TestReadBattery(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		return []string{"Characteristic value/descriptor: 5a "}
	})

	level, err := g.ReadBattery(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 90, level)
	assert.Equal(t, []string{"char-read-hnd 0x0031"}, fake.commands())
}

func TestWaitForNotification(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, silent)
	fake.push(t, "Notification handle = 0x0017 value: 00 d7 00 2e 00")

	notification, err := g.WaitForNotification(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, uint16(0x0017), notification.Handle)
	assert.Equal(t, []byte{0x00, 0xd7, 0x00, 0x2e, 0x00}, notification.Data)
}

func TestWaitForNotificationWhenQuietThenTimeout(t *testing.T) {
	g, _ := startFakeGatttool(t, time.Second, silent)

	_, err := g.WaitForNotification(context.Background(), 10*time.Millisecond)
	assert.True(t, errors.Is(err, ErrNotificationTimeout))
}

func TestWaitForNotificationWhenClosedThenTransportClosed(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, silent)
	require.NoError(t, fake.stdout.Close())

	_, err := g.WaitForNotification(context.Background(), time.Second)
	assert.True(t, errors.Is(err, ErrTransportClosed))
}

func TestWaitForNotificationWhenCancelled(t *testing.T) {
	g, _ := startFakeGatttool(t, time.Second, silent)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := g.WaitForNotification(ctx, time.Second)
	assert.True(t, errors.Is(err, context.Canceled))
}

const (
	type0Line = "Indication   handle = 0x0017 value: 00 d7 00 cb ff 57 00 00 00 2d 51 43 00 01 02 34 26 5f 3c 58 "
	type1Line = "Indication   handle = 0x0017 value: 82 33 00 00 e8 00 c6 00 0c 00 87 ff 6e 00 28 00 00 00 00 00 "
)

func acknowledgeWrites(cmd string, attempt int) []string {
	return []string{writeSuccessful}
}

func TestCycleIgnoresNotificationsQueuedBeforeIt(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, acknowledgeWrites)
	fake.push(t, "Indication   handle = 0x0017 value: 00 11 11 cb ff 57 00 00 00 2d 51 43 00 01 02 34 26 5f 3c 58 ")
	fake.push(t, type1Line)
	require.Eventually(t, func() bool { return len(g.notifications) == 2 }, time.Second, time.Millisecond)

	conf := entities.StationConfig{NotificationTimeout: 50 * time.Millisecond}
	result := newTestMonitor(g, conf).Cycle(context.Background())
	assert.Equal(t, OutcomeTimeout, result.Outcome)
	assert.Nil(t, result.Registers)
}

func TestCycleDecodesNotificationsSentAfterSubscribing(t *testing.T) {
	g, _ := startFakeGatttool(t, time.Second, func(cmd string, attempt int) []string {
		if cmd == "char-write-req 0x0032 0100" {
			return []string{writeSuccessful, type0Line, type1Line}
		}
		return []string{writeSuccessful}
	})

	conf := entities.StationConfig{NotificationTimeout: 100 * time.Millisecond}
	result := newTestMonitor(g, conf).Cycle(context.Background())
	require.Equal(t, OutcomeData, result.Outcome)
	assert.Equal(t, "00D7", result.Registers["index0_temperature"])
}

func TestEnableNotificationsWhenQueueOverflowedThenCommandsStillAnswered(t *testing.T) {
	g, fake := startFakeGatttool(t, time.Second, acknowledgeWrites)
	for i := 0; i < 70; i++ {
		fake.push(t, type0Line)
	}

	require.Eventually(t, func() bool { return len(g.notifications) == cap(g.notifications) }, time.Second, time.Millisecond)

	require.NoError(t, g.EnableNotifications(context.Background()))
	assert.Len(t, fake.commands(), len(subscriptions))
}

func TestQueueNotificationDropsOldest(t *testing.T) {
	logger, _ := test.NewNullLogger()
	g := &Gatttool{notifications: make(chan Notification, 2), log: logrus.NewEntry(logger)}

	for handle := uint16(1); handle <= 3; handle++ {
		g.queueNotification(Notification{Handle: handle})
	}
	assert.Equal(t, uint16(2), (<-g.notifications).Handle)
	assert.Equal(t, uint16(3), (<-g.notifications).Handle)
}
