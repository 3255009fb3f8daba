// Package session tracks liveness and compatibility of one Sparkplug node
// and routes its messages into the metric registry.
package session

import (
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/atomic_clock"
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/log2"
	"github.com/temoto/thermux/sparkplug"
)

const (
	DefaultGroup        = "VI"
	DefaultNodeID       = "THERMISTOR"
	DefaultNumModules   = 6
	DefaultCommsVersion = 2
)

type MessageClass uint8

const (
	ClassUnknown MessageClass = iota
	ClassBirth
	ClassData
	ClassDeath
)

func (c MessageClass) String() string {
	switch c {
	case ClassBirth:
		return "birth"
	case ClassData:
		return "data"
	case ClassDeath:
		return "death"
	}
	return "unknown"
}

type State struct {
	Alive      bool
	Compatible bool
	LastSeq    uint8
	LastBdSeq  int64
	HasBdSeq   bool
}

func (s State) String() string {
	bd := "None"
	if s.HasBdSeq {
		bd = strconv.FormatInt(s.LastBdSeq, 10)
	}
	return fmt.Sprintf("alive=%t compatible=%t seq=%d bdSeq=%s", s.Alive, s.Compatible, s.LastSeq, bd)
}

type Options struct {
	Group        string
	NodeID       string
	NumModules   int
	CommsVersion int64
	Scope        metric.Scope
}

func (self *Options) defaults() {
	if self.Group == "" {
		self.Group = DefaultGroup
	}
	if self.NodeID == "" {
		self.NodeID = DefaultNodeID
	}
	if self.NumModules <= 0 {
		self.NumModules = DefaultNumModules
	}
	if self.CommsVersion == 0 {
		self.CommsVersion = DefaultCommsVersion
	}
}

// Topics of one module.
type Topics struct {
	Birth   string
	Death   string
	Data    string
	Command string
}

// Inbound returns topics to subscribe.
func (t Topics) Inbound() []string { return []string{t.Birth, t.Death, t.Data} }

func (t Topics) classify(topic string) MessageClass {
	switch topic {
	case t.Birth:
		return ClassBirth
	case t.Data:
		return ClassData
	case t.Death:
		return ClassDeath
	}
	return ClassUnknown
}

// Result describes what one inbound message did.
type Result struct {
	Topic       string
	Class       MessageClass
	Payload     *sparkplug.Payload
	Dropped     bool
	Diagnostics Diagnostics
	State       State
	Module      int
	Updated     []metric.Entry
}

// Session owns State and the registry of one tracked module.
// Process calls are serialized.
type Session struct {
	log      *log2.Log
	registry *metric.Registry
	opt      Options

	mu     sync.Mutex
	state  State
	module int
	topics Topics

	lastMessage atomic_clock.Clock
}

func New(log *log2.Log, registry *metric.Registry, opt Options) *Session {
	opt.defaults()
	self := &Session{
		log:      log,
		registry: registry,
		opt:      opt,
	}
	self.topics = self.topicsFor(0)
	return self
}

func (self *Session) topicsFor(module int) Topics {
	node := self.opt.NodeID + strconv.Itoa(module)
	mk := func(t sparkplug.MessageType) string {
		return sparkplug.NodeTopic(self.opt.Group, t, node).String()
	}
	return Topics{
		Birth:   mk(sparkplug.NodeBirth),
		Death:   mk(sparkplug.NodeDeath),
		Data:    mk(sparkplug.NodeData),
		Command: mk(sparkplug.NodeCommand),
	}
}

func (self *Session) Registry() *metric.Registry { return self.registry }
func (self *Session) Scope() metric.Scope        { return self.opt.Scope }
func (self *Session) NumModules() int            { return self.opt.NumModules }

// LastMessage is zero until first message.
func (self *Session) LastMessage() time.Time {
	if self.lastMessage.IsZero() {
		return time.Time{}
	}
	return time.Now().Add(-atomic_clock.Since(&self.lastMessage))
}

func (self *Session) State() State {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.state
}

func (self *Session) Topics() Topics {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.topics
}

func (self *Session) Module() int {
	self.mu.Lock()
	defer self.mu.Unlock()
	return self.module
}

// Reset forgets everything learned from the node.
// Called when connection is (re)established.
func (self *Session) Reset() {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.resetLocked()
}

func (self *Session) resetLocked() {
	self.state = State{}
	self.registry.ResetAll()
}

// ParseModuleID accepts decimal 0 <= id < n.
func ParseModuleID(s string, n int) (int, error) {
	id, err := strconv.Atoi(s)
	if err != nil {
		return 0, errors.NotValidf("module id=%q", s)
	}
	if id < 0 || id >= n {
		return 0, errors.NotValidf("module id=%d out of range 0-%d", id, n-1)
	}
	return id, nil
}

// SwitchModule hard resets session and starts tracking another module.
// Returns topics of previous module so caller can unsubscribe.
func (self *Session) SwitchModule(id int) (Topics, error) {
	if id < 0 || id >= self.opt.NumModules {
		return Topics{}, errors.NotValidf("module id=%d out of range 0-%d", id, self.opt.NumModules-1)
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	old := self.topics
	self.module = id
	self.topics = self.topicsFor(id)
	self.resetLocked()
	self.log.Debugf("session switch module=%d topics=%v", id, self.topics.Inbound())
	return old, nil
}

// HandleMessage decodes raw payload and processes it.
func (self *Session) HandleMessage(topic string, b []byte) Result {
	p, err := sparkplug.Decode(b)
	if err != nil {
		self.mu.Lock()
		r := Result{Topic: topic, Dropped: true, State: self.state, Module: self.module}
		self.mu.Unlock()
		r.Diagnostics.add(KindDecode, "Unable to decode payload on topic=%s: %v", topic, err)
		self.report(&r)
		return r
	}
	return self.Process(topic, p)
}

func (self *Session) Process(topic string, p *sparkplug.Payload) Result {
	self.lastMessage.SetNow()
	self.mu.Lock()
	defer self.mu.Unlock()

	r := Result{
		Topic:   topic,
		Class:   self.topics.classify(topic),
		Payload: p,
		Module:  self.module,
	}
	switch r.Class {
	case ClassBirth:
		self.onBirth(&r)
	case ClassData, ClassDeath:
		if self.gate(&r) {
			if r.Class == ClassData {
				self.onData(&r)
			} else {
				self.onDeath(&r)
			}
		}
	default:
		r.Dropped = true
		r.Diagnostics.add(KindUnknownTopic, "Unknown topic: %s", topic)
	}
	r.State = self.state
	self.report(&r)
	return r
}

func (self *Session) report(r *Result) {
	for _, d := range r.Diagnostics {
		self.log.Errorf("module=%d %s: %s", r.Module, d.Kind, d.Message)
	}
}

func (self *Session) gate(r *Result) bool {
	switch {
	case !self.state.Alive:
		r.Diagnostics.add(KindIgnoredDead, "Module is dead, message ignored")
	case !self.state.Compatible:
		r.Diagnostics.add(KindIgnoredIncompatible, "Module is incompatible, message ignored")
	default:
		return true
	}
	r.Dropped = true
	return false
}

func (self *Session) onBirth(r *Result) {
	seqv := NewSequenceValidator(&self.state)
	seqv.CheckMessageSequence(ClassBirth, r.Payload.Seq, &r.Diagnostics)

	self.registry.Reset(self.opt.Scope, true)
	// birth starts new bdSeq epoch
	self.state.LastBdSeq, self.state.HasBdSeq = 0, false
	self.state.Alive = true
	self.state.Compatible = CheckCompatibility(r.Payload, self.opt.CommsVersion, &r.Diagnostics)
	if !self.state.Compatible {
		return
	}

	if bd, ok := seqv.CheckBirthDeathSequence(r.Payload, true, false, &r.Diagnostics); ok {
		self.state.LastBdSeq, self.state.HasBdSeq = bd, true
	}
	self.apply(r, true)
}

func (self *Session) onData(r *Result) {
	seqv := NewSequenceValidator(&self.state)
	seqv.CheckMessageSequence(ClassData, r.Payload.Seq, &r.Diagnostics)
	seqv.CheckBirthDeathSequence(r.Payload, false, false, &r.Diagnostics)
	self.apply(r, false)
}

func (self *Session) onDeath(r *Result) {
	seqv := NewSequenceValidator(&self.state)
	seqv.CheckMessageSequence(ClassDeath, r.Payload.Seq, &r.Diagnostics)
	seqv.CheckBirthDeathSequence(r.Payload, true, true, &r.Diagnostics)
	self.apply(r, false)
	self.state.Alive = false
}

func (self *Session) apply(r *Result, bindAlias bool) {
	for _, m := range r.Payload.Metrics {
		e, err := self.registry.ApplyIncoming(self.opt.Scope, m, bindAlias)
		switch {
		case err == nil:
			r.Updated = append(r.Updated, e)
		case errors.IsNotFound(err):
			r.Diagnostics.add(KindUnrecognizedMetric, "Unrecognized metric: %s", metric.RefOf(m.Name, m.Alias))
		case errors.IsNotSupported(err):
			r.Diagnostics.add(KindUnsupportedType, "Unsupported datatype %s for metric %s", m.Datatype, metric.RefOf(m.Name, m.Alias))
		case errors.IsAlreadyExists(err):
			r.Diagnostics.add(KindAliasConflict, "Alias conflict: %s", errors.Cause(err))
		default:
			r.Diagnostics.add(KindCatalog, "%s", err)
		}
	}
}
