package station

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

var (
	// ErrNotificationTimeout reports a quiet period without notifications,
	// which ends a read cycle.
	ErrNotificationTimeout = errors.New("no notification received")
	ErrTransportClosed     = errors.New("transport closed")
	ErrCommandFailed       = errors.New("command failed")
	ErrCommandTimeout      = errors.New("command timed out")
	ErrStationNotFound     = errors.New("weather station not found")
)

// Notification is a value pushed by the station on a characteristic.
type Notification struct {
	Handle uint16
	Data   []byte
}

// Peripheral is a connected weather station.
type Peripheral interface {
	EnableNotifications(ctx context.Context) error
	WaitForNotification(ctx context.Context, timeout time.Duration) (Notification, error)
	ReadBattery(ctx context.Context) (int, error)
	Disconnect() error
}
