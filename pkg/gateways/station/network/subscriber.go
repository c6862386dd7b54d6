package network

const (
	queueName             = "weather-station-requests"
	BindingKeyReadRequest = "station.read"
)

type Subscriber interface {
	SubscribeToReadRequests(msgChan chan InMsg) error
}

type msgSubscriber struct {
	amqp Messaging
}

func NewMsgSubscriber(amqp Messaging) Subscriber {
	return &msgSubscriber{amqp}
}

func (ms *msgSubscriber) SubscribeToReadRequests(msgChan chan InMsg) error {
	return ms.amqp.OnMessage(msgChan, queueName, exchangeWeather, exchangeTypeDirect, BindingKeyReadRequest)
}
