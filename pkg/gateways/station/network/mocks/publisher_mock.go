package mocks

import (
	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
	"github.com/stretchr/testify/mock"
)

type PublisherMock struct {
	mock.Mock
}

func (p *PublisherMock) PublishReading(userToken string, id string, measurement entities.Measurement) error {
	args := p.Called(userToken, id, measurement)
	return args.Error(0)
}

func (p *PublisherMock) PublishBattery(userToken string, id string, battery entities.Battery) error {
	args := p.Called(userToken, id, battery)
	return args.Error(0)
}
