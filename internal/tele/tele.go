// Package tele connects a session to the MQTT broker: inbound messages are
// pumped serially into the session, commands go out on the NCMD topic.
package tele

import (
	"context"
	"sync/atomic"

	"github.com/juju/errors"
	"github.com/temoto/alive/v2"
	"github.com/temoto/thermux/internal/command"
	"github.com/temoto/thermux/internal/session"
	"github.com/temoto/thermux/log2"
	"github.com/temoto/thermux/sparkplug"
)

const inboundQueueSize = 64

type ObserveFunc func(session.Result)

type Stat struct {
	Connects    uint32
	Received    uint32
	Dropped     uint32
	Diagnostics uint32
	Commands    uint32
}

type inbound struct {
	topic   string
	payload []byte
	reset   bool
}

// Client contract:
// - Start fails only with invalid config, broker may be unavailable
// - all session mutations happen on one worker goroutine, in arrival order
// - command methods block at most for publish queueing
type Client struct {
	log       *log2.Log
	config    Config
	transport Transporter
	session   *session.Session
	builder   *command.Builder
	observe   ObserveFunc
	alive     *alive.Alive
	inCh      chan inbound
	stat      Stat
}

func NewClient(log *log2.Log, config Config, sess *session.Session, observe ObserveFunc) *Client {
	return NewWithTransporter(log, config, sess, observe, &transportMqtt{})
}

func NewWithTransporter(log *log2.Log, config Config, sess *session.Session, observe ObserveFunc, trans Transporter) *Client {
	if observe == nil {
		observe = func(session.Result) {}
	}
	return &Client{
		log:       log,
		config:    config,
		transport: trans,
		session:   sess,
		builder:   command.NewBuilder(sess.Registry(), sess.Scope()),
		observe:   observe,
		alive:     alive.NewAlive(),
		inCh:      make(chan inbound, inboundQueueSize),
	}
}

func (self *Client) Session() *session.Session { return self.session }

func (self *Client) Stat() Stat {
	return Stat{
		Connects:    atomic.LoadUint32(&self.stat.Connects),
		Received:    atomic.LoadUint32(&self.stat.Received),
		Dropped:     atomic.LoadUint32(&self.stat.Dropped),
		Diagnostics: atomic.LoadUint32(&self.stat.Diagnostics),
		Commands:    atomic.LoadUint32(&self.stat.Commands),
	}
}

func (self *Client) Start(ctx context.Context) error {
	if !self.alive.Add(1) {
		return errors.New("tele client stopped")
	}
	go self.worker()
	if err := self.transport.Init(ctx, self.log, self.config, self.onConnect, self.onMessage); err != nil {
		self.alive.Stop()
		return errors.Annotate(err, "tele transport")
	}
	return nil
}

// Stop waits for worker to finish current message.
func (self *Client) Stop() {
	self.alive.Stop()
	self.transport.Close()
	self.alive.Wait()
}

func (self *Client) worker() {
	defer self.alive.Done()
	stopch := self.alive.StopChan()
	for {
		select {
		case in := <-self.inCh:
			if in.reset {
				self.session.Reset()
				continue
			}
			r := self.session.HandleMessage(in.topic, in.payload)
			if r.Dropped {
				atomic.AddUint32(&self.stat.Dropped, 1)
			}
			atomic.AddUint32(&self.stat.Diagnostics, uint32(len(r.Diagnostics)))
			self.observe(r)
		case <-stopch:
			return
		}
	}
}

func (self *Client) enqueue(in inbound) {
	select {
	case self.inCh <- in:
	case <-self.alive.StopChan():
	}
}

func (self *Client) onMessage(topic string, payload []byte) {
	atomic.AddUint32(&self.stat.Received, 1)
	self.enqueue(inbound{topic: topic, payload: payload})
}

// onConnect: forget node state, subscribe, ask node to rebirth.
func (self *Client) onConnect() {
	atomic.AddUint32(&self.stat.Connects, 1)
	self.enqueue(inbound{reset: true})
	topics := self.session.Topics()
	if err := self.transport.Subscribe(topics.Inbound()...); err != nil {
		self.log.Errorf("tele subscribe err=%v", err)
		return
	}
	if err := self.Rebirth(); err != nil {
		self.log.Errorf("tele rebirth err=%v", err)
	}
}

// SwitchModule hard resets session, moves subscription to module id and
// requests its birth.
func (self *Client) SwitchModule(id int) error {
	old, err := self.session.SwitchModule(id)
	if err != nil {
		return err
	}
	if err = self.transport.Unsubscribe(old.Inbound()...); err != nil {
		self.log.Errorf("tele unsubscribe err=%v", err)
	}
	if err = self.transport.Subscribe(self.session.Topics().Inbound()...); err != nil {
		return errors.Annotatef(err, "module=%d", id)
	}
	return self.Rebirth()
}

func (self *Client) publish(p *sparkplug.Payload, err error) error {
	if err != nil {
		return err
	}
	b, err := sparkplug.Encode(p)
	if err != nil {
		return errors.Annotate(err, "command encode")
	}
	topic := self.session.Topics().Command
	if err = self.transport.Publish(topic, b); err != nil {
		return err
	}
	atomic.AddUint32(&self.stat.Commands, 1)
	self.log.Debugf("tele command topic=%s metrics=%v", topic, p.Metrics)
	return nil
}

func (self *Client) Command(name string, value bool) error {
	return self.publish(self.builder.BuildSimple(name, value))
}
func (self *Client) Rebirth() error { return self.publish(self.builder.BuildRebirth()) }
func (self *Client) Reboot() error  { return self.publish(self.builder.BuildReboot()) }
func (self *Client) ClearCalibration() error {
	return self.publish(self.builder.BuildClearCalibration())
}
func (self *Client) CalibrationTemperature(n int, value float32) error {
	return self.publish(self.builder.BuildCalibrationTemperature(n, value))
}
