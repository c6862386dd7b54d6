package station

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

type PeripheralMock struct {
	mock.Mock
}

func (p *PeripheralMock) EnableNotifications(ctx context.Context) error {
	args := p.Called()
	return args.Error(0)
}

func (p *PeripheralMock) WaitForNotification(ctx context.Context, timeout time.Duration) (Notification, error) {
	args := p.Called(timeout)
	return args.Get(0).(Notification), args.Error(1)
}

func (p *PeripheralMock) ReadBattery(ctx context.Context) (int, error) {
	args := p.Called()
	return args.Int(0), args.Error(1)
}

func (p *PeripheralMock) Disconnect() error {
	args := p.Called()
	return args.Error(0)
}
