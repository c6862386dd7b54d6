package network

import (
	"sync"
	"time"

	"github.com/cenkalti/backoff"
	"github.com/pkg/errors"
	amqp "github.com/rabbitmq/amqp091-go"
	"github.com/sirupsen/logrus"
)

const (
	exchangeTypeDirect = "direct"
	exchangeTypeFanout = "fanout"

	exchangeWeather  = "weather"
	exchangeReadings = "weather.readings"
	durable          = true
	deleteWhenUnused = false
	exclusive        = false
	noWait           = false
	internal         = false
	noAck            = true
	noLocal          = false
	consumerTag      = ""

	startMaxElapsedTime = 2 * time.Minute
)

// Messaging is the broker surface used by publishers and subscribers.
type Messaging interface {
	Start() error
	Stop() error
	OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType, key string) error
	PublishPersistentMessage(exchange, exchangeType, key string, data interface{}, options *MessageOptions) error
}

type InMsg struct {
	Exchange      string
	RoutingKey    string
	ReplyTo       string
	CorrelationID string
	Headers       map[string]interface{}
	Body          []byte
}

// MessageOptions represents the message publishing options
type MessageOptions struct {
	Authorization string
	CorrelationID string
	ReplyTo       string
	Expiration    string
}

// subscription is a consumer registered through OnMessage, replayed
// after every reconnection.
type subscription struct {
	msgChan      chan InMsg
	queueName    string
	exchangeName string
	exchangeType string
	key          string
}

type AMQPHandler struct {
	conn              connection
	log               *logrus.Entry
	lock              sync.Mutex
	declaredExchanges map[string]struct{}
	subscriptions     []subscription
	startBackOff      func() backoff.BackOff
	reconnection      func() backoff.BackOff
}

func NewAMQPHandler(conn connection, log *logrus.Entry) *AMQPHandler {
	return &AMQPHandler{
		conn:              conn,
		log:               log,
		declaredExchanges: make(map[string]struct{}),
		startBackOff:      newStartBackOff,
		reconnection:      newReconnectionBackOff,
	}
}

func (a *AMQPHandler) Start() error {
	err := backoff.Retry(a.dial, a.startBackOff())
	if err != nil {
		return errors.Wrap(err, "connect to broker")
	}
	go a.notifyWhenClosed()
	return nil
}

func (a *AMQPHandler) Stop() error {
	if !a.conn.isOpen() {
		return nil
	}
	if err := a.conn.closeChannel(); err != nil {
		a.log.Warnln("closing channel:", err)
	}
	return a.conn.close()
}

func (a *AMQPHandler) OnMessage(msgChan chan InMsg, queueName, exchangeName, exchangeType, key string) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	s := subscription{msgChan, queueName, exchangeName, exchangeType, key}
	if err := a.subscribe(s); err != nil {
		return err
	}
	a.subscriptions = append(a.subscriptions, s)
	return nil
}

// subscribe declares and binds the queue of s and starts forwarding its
// deliveries. Callers hold a.lock.
func (a *AMQPHandler) subscribe(s subscription) error {
	if err := a.declareExchange(s.exchangeName, s.exchangeType); err != nil {
		return errors.Wrap(err, "declare exchange")
	}
	if err := a.conn.queueDeclare(s.queueName); err != nil {
		return errors.Wrap(err, "declare queue")
	}
	if err := a.conn.queueBind(s.queueName, s.key, s.exchangeName); err != nil {
		return errors.Wrap(err, "bind queue")
	}
	deliveries, err := a.conn.consume(s.queueName)
	if err != nil {
		return errors.Wrap(err, "consume")
	}

	go convertDeliveryToInMsg(deliveries, s.msgChan)
	return nil
}

func (a *AMQPHandler) PublishPersistentMessage(exchange, exchangeType, key string, data interface{}, options *MessageOptions) error {
	a.lock.Lock()
	defer a.lock.Unlock()

	if err := a.declareExchange(exchange, exchangeType); err != nil {
		return errors.Wrap(err, "declare exchange")
	}
	if err := a.conn.publish(exchange, key, data, options); err != nil {
		return errors.Wrap(err, "publish message")
	}
	return nil
}

// declareExchange declares each exchange once per connection.
// Callers hold a.lock.
func (a *AMQPHandler) declareExchange(name, exchangeType string) error {
	if _, ok := a.declaredExchanges[name]; ok {
		return nil
	}
	if err := a.conn.exchangeDeclare(name, exchangeType); err != nil {
		return err
	}
	a.declaredExchanges[name] = struct{}{}
	return nil
}

func (a *AMQPHandler) dial() error {
	if err := a.conn.connect(); err != nil {
		a.log.Warnln("cannot connect to broker:", err)
		return err
	}
	if err := a.conn.createChannel(); err != nil {
		a.log.Warnln("cannot open a channel:", err)
		return err
	}
	a.lock.Lock()
	a.declaredExchanges = make(map[string]struct{})
	a.lock.Unlock()
	return nil
}

// redial reconnects and restores every subscription of the lost
// connection.
func (a *AMQPHandler) redial() error {
	if err := a.dial(); err != nil {
		return err
	}
	a.lock.Lock()
	defer a.lock.Unlock()
	for _, s := range a.subscriptions {
		if err := a.subscribe(s); err != nil {
			a.log.Warnf("cannot restore subscription of queue %s: %v", s.queueName, err)
			return err
		}
	}
	return nil
}

func newStartBackOff() backoff.BackOff {
	startBackOff := backoff.NewExponentialBackOff()
	startBackOff.MaxElapsedTime = startMaxElapsedTime
	return startBackOff
}

func newReconnectionBackOff() backoff.BackOff {
	//randomized interval = RetryInterval * (random value in range [1 - RandomizationFactor, 1 + RandomizationFactor])
	reconnectionBackOff := backoff.NewExponentialBackOff()
	reconnectionBackOff.InitialInterval = 30 * time.Second
	reconnectionBackOff.MaxInterval = 5 * time.Minute
	reconnectionBackOff.Multiplier = 1.7
	reconnectionBackOff.MaxElapsedTime = 0 // never stop
	return reconnectionBackOff
}

func (a *AMQPHandler) notifyWhenClosed() {
	errReason := <-a.conn.notifyClose(make(chan *amqp.Error, 1))
	if errReason == nil {
		// graceful close through Stop
		return
	}

	a.log.Errorln("broker connection lost:", errReason)
	if err := backoff.Retry(a.redial, a.reconnection()); err != nil {
		a.log.Errorln("giving up reconnecting to broker:", err)
		return
	}
	a.log.Infoln("reconnected to broker")
	go a.notifyWhenClosed()
}

func convertDeliveryToInMsg(deliveries <-chan amqp.Delivery, outMsg chan InMsg) {
	for d := range deliveries {
		outMsg <- InMsg{d.Exchange, d.RoutingKey, d.ReplyTo, d.CorrelationId, d.Headers, d.Body}
	}
}
