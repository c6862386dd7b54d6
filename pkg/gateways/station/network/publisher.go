package network

import (
	"github.com/google/uuid"
	"github.com/janael-pinheiro/ble-weather-station/pkg/entities"
)

const (
	routingKeyBattery     = "station.battery"
	defaultExpirationTime = "60000"
)

type Publisher interface {
	PublishReading(userToken string, id string, measurement entities.Measurement) error
	PublishBattery(userToken string, id string, battery entities.Battery) error
}

type msgPublisher struct {
	amqp  Messaging
	newID func() string
}

// NewMsgPublisher returns a publisher tagging every message with a fresh
// correlation ID.
func NewMsgPublisher(amqp Messaging) Publisher {
	return &msgPublisher{amqp: amqp, newID: uuid.NewString}
}

func (mp *msgPublisher) options(userToken string) *MessageOptions {
	return &MessageOptions{
		Authorization: userToken,
		CorrelationID: mp.newID(),
		Expiration:    defaultExpirationTime,
	}
}

func (mp *msgPublisher) PublishReading(userToken string, id string, measurement entities.Measurement) error {
	message := ReadingSent{
		ID:          id,
		Measurement: measurement,
	}

	return mp.amqp.PublishPersistentMessage(exchangeReadings, exchangeTypeFanout, "", message, mp.options(userToken))
}

func (mp *msgPublisher) PublishBattery(userToken string, id string, battery entities.Battery) error {
	message := BatterySent{
		ID:      id,
		Battery: battery,
	}

	return mp.amqp.PublishPersistentMessage(exchangeWeather, exchangeTypeDirect, routingKeyBattery, message, mp.options(userToken))
}
