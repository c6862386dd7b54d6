package mocks

import (
	"github.com/janael-pinheiro/ble-weather-station/pkg/gateways/station/network"
	"github.com/stretchr/testify/mock"
)

type SubscriberMock struct {
	mock.Mock
}

func (s *SubscriberMock) SubscribeToReadRequests(msgChan chan network.InMsg) error {
	args := s.Called(msgChan)
	return args.Error(0)
}
