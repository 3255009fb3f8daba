package tele

import (
	"sync"
	"testing"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"
	"github.com/juju/errors"
)

// MqttMock is paho client connected to nothing.
// Publish goes to Pub, TestPublish delivers to subscribed handlers.
type MqttMock struct {
	Opt  *mqtt.ClientOptions
	Pub  chan MockMsg
	mu   sync.Mutex
	subs []MockSub
}
type MockSub struct {
	Pattern string
	Qos     byte
	Handler mqtt.MessageHandler
}

func NewMqttMock() *MqttMock {
	return &MqttMock{
		Pub:  make(chan MockMsg, 32),
		subs: make([]MockSub, 0, 16),
	}
}

func (self *MqttMock) MockNew(opt *mqtt.ClientOptions) mqtt.Client {
	self.Opt = opt
	return self
}

func (self *MqttMock) IsSubscribed(topic string) bool {
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, sub := range self.subs {
		if sub.Pattern == topic {
			return true
		}
	}
	return false
}

func (self *MqttMock) TestPublish(t testing.TB, topic string, payload []byte) {
	self.mu.Lock()
	var handler mqtt.MessageHandler
	for _, sub := range self.subs {
		if topic == sub.Pattern {
			handler = sub.Handler
			break
		}
	}
	self.mu.Unlock()
	if handler == nil {
		t.Errorf("not subscribed for topic=%s", topic)
		return
	}
	handler(self, MockMsg{T: topic, P: payload})
}

// TestReceive waits for next published message.
func (self *MqttMock) TestReceive(t testing.TB) MockMsg {
	t.Helper()
	select {
	case msg := <-self.Pub:
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timeout waiting for publish")
		return MockMsg{}
	}
}

func (self *MqttMock) Disconnect(uint)        {}
func (self *MqttMock) IsConnected() bool      { return true }
func (self *MqttMock) IsConnectionOpen() bool { return true }

func (self *MqttMock) Connect() mqtt.Token {
	if self.Opt != nil && self.Opt.OnConnect != nil {
		self.Opt.OnConnect(self)
	}
	return mockToken{nil}
}

func (self *MqttMock) Publish(topic string, qos byte, retain bool, payload interface{}) mqtt.Token {
	self.Pub <- MockMsg{T: topic, P: payload.([]byte)}
	return mockToken{nil}
}

func (self *MqttMock) Subscribe(pattern string, qos byte, handler mqtt.MessageHandler) mqtt.Token {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.subs = append(self.subs, MockSub{pattern, qos, handler})
	return mockToken{nil}
}

func (self *MqttMock) SubscribeMultiple(filters map[string]byte, handler mqtt.MessageHandler) mqtt.Token {
	for pattern, qos := range filters {
		self.Subscribe(pattern, qos, handler)
	}
	return mockToken{nil}
}

func (self *MqttMock) Unsubscribe(topics ...string) mqtt.Token {
	self.mu.Lock()
	defer self.mu.Unlock()
	subs := self.subs[:0]
	for _, sub := range self.subs {
		keep := true
		for _, t := range topics {
			if sub.Pattern == t {
				keep = false
			}
		}
		if keep {
			subs = append(subs, sub)
		}
	}
	self.subs = subs
	return mockToken{nil}
}

func (self *MqttMock) AddRoute(string, mqtt.MessageHandler) { panic("not implemented") }

func (self *MqttMock) OptionsReader() mqtt.ClientOptionsReader {
	panic("not implemented")
}

type mockToken struct{ error }

func (tok mockToken) Error() error                   { return tok.error }
func (tok mockToken) Wait() bool                     { return !errors.IsTimeout(tok.error) }
func (tok mockToken) WaitTimeout(time.Duration) bool { return tok.Wait() }
func (tok mockToken) Done() <-chan struct{} {
	ch := make(chan struct{})
	close(ch)
	return ch
}

type MockMsg struct {
	T string
	P []byte
}

func (msg MockMsg) Ack()              {}
func (msg MockMsg) Duplicate() bool   { return false }
func (msg MockMsg) MessageID() uint16 { return 0 }
func (msg MockMsg) Payload() []byte   { return msg.P }
func (msg MockMsg) Qos() byte         { return 0 }
func (msg MockMsg) Retained() bool    { return false }
func (msg MockMsg) Topic() string     { return msg.T }
