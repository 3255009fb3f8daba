package tele

import (
	"context"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
	"github.com/temoto/thermux/helpers"
	"github.com/temoto/thermux/log2"
)

type transportMqtt struct {
	log       *log2.Log
	onConnect func()
	onMessage MessageCallback
	m         mqtt.Client
	mopt      *mqtt.ClientOptions
	timeout   time.Duration

	// test code sets newClient
	newClient func(*mqtt.ClientOptions) mqtt.Client
}

func (self *transportMqtt) Init(ctx context.Context, log *log2.Log, config Config, onConnect func(), onMessage MessageCallback) error {
	self.log = log
	mqtt.ERROR = log
	mqtt.CRITICAL = log
	mqtt.WARN = log
	if config.LogDebug {
		mqtt.DEBUG = log
	}

	if config.BrokerURL == "" {
		return errors.NotValidf("broker url empty")
	}
	self.onConnect = onConnect
	self.onMessage = onMessage
	keepAlive := helpers.IntSecondDefault(config.KeepaliveSec, DefaultKeepalive)
	pingTimeout := helpers.IntSecondDefault(config.PingTimeoutSec, DefaultPingTimeout)
	self.timeout = helpers.IntSecondDefault(config.NetworkTimeoutSec, DefaultNetworkTimeout)
	clientID := config.ClientID
	if clientID == "" {
		clientID = DefaultClientID
	}

	self.mopt = mqtt.NewClientOptions().
		AddBroker(config.BrokerURL).
		SetCleanSession(true).
		SetClientID(clientID).
		SetUsername(config.Username).
		SetPassword(config.Password).
		SetDefaultPublishHandler(self.messageHandler).
		SetKeepAlive(keepAlive).
		SetPingTimeout(pingTimeout).
		SetConnectTimeout(self.timeout).
		SetOrderMatters(true).
		SetAutoReconnect(true).
		SetConnectRetryInterval(keepAlive / 2).
		SetOnConnectHandler(self.onConnectHandler).
		SetConnectionLostHandler(self.connectLostHandler).
		SetConnectRetry(true)
	if self.newClient == nil { // production path
		self.newClient = mqtt.NewClient
	}
	self.m = self.newClient(self.mopt)
	self.log.Infof("mqtt connect broker=%s client_id=%s", config.BrokerURL, clientID)
	if token := self.m.Connect(); token.Error() != nil {
		self.log.Errorf("mqtt connect err=%v", token.Error())
	}
	return nil
}

func (self *transportMqtt) Close() {
	if self.m == nil {
		return
	}
	self.log.Infof("mqtt disconnect")
	self.m.Disconnect(uint(self.timeout / time.Millisecond))
}

func (self *transportMqtt) wait(token mqtt.Token, what string) error {
	if !token.WaitTimeout(self.timeout) {
		return errors.Timeoutf("mqtt %s", what)
	}
	return errors.Annotatef(token.Error(), "mqtt %s", what)
}

func (self *transportMqtt) Subscribe(topics ...string) error {
	filters := make(map[string]byte, len(topics))
	for _, t := range topics {
		filters[t] = 0
	}
	self.log.Debugf("mqtt subscribe %v", topics)
	return self.wait(self.m.SubscribeMultiple(filters, self.messageHandler), "subscribe")
}

func (self *transportMqtt) Unsubscribe(topics ...string) error {
	self.log.Debugf("mqtt unsubscribe %v", topics)
	return self.wait(self.m.Unsubscribe(topics...), "unsubscribe")
}

func (self *transportMqtt) Publish(topic string, payload []byte) error {
	self.log.Debugf("mqtt publish topic=%s payload=%x", topic, payload)
	token := self.m.Publish(topic, 0, false, payload)
	// qos 0 token completes once written to network or fails early when offline
	select {
	case <-token.Done():
		return errors.Annotatef(token.Error(), "mqtt publish topic=%s", topic)
	default:
		return nil
	}
}

func (self *transportMqtt) messageHandler(c mqtt.Client, msg mqtt.Message) {
	payload := append([]byte(nil), msg.Payload()...)
	self.log.Debugf("mqtt income topic=%s (%x)", msg.Topic(), payload)
	self.onMessage(msg.Topic(), payload)
}

func (self *transportMqtt) connectLostHandler(c mqtt.Client, err error) {
	self.log.Errorf("mqtt connection lost err=%v", err)
}

func (self *transportMqtt) onConnectHandler(c mqtt.Client) {
	self.log.Infof("mqtt connected")
	self.onConnect()
}
