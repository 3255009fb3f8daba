// Package metric keeps the catalog of known node metrics together with
// the alias, latest value and timestamp learned from the node.
package metric

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermux/sparkplug"
)

// Scope is the owning device of a metric, NodeScope for node level metrics.
type Scope string

const (
	NodeScope Scope = ""
	// AllScopes matches every scope in Reset.
	AllScopes Scope = "*"
)

func (s Scope) String() string {
	if s == NodeScope {
		return "node"
	}
	return string(s)
}

func (s Scope) match(other Scope) bool { return s == AllScopes || s == other }

type Definition struct {
	Scope       Scope
	Name        string
	DisplayName string
	LogData     bool
}

// NewDefinition with empty displayName uses the last path element of name.
func NewDefinition(scope Scope, name, displayName string, logData bool) Definition {
	if displayName == "" {
		displayName = name[strings.LastIndexByte(name, '/')+1:]
	}
	return Definition{Scope: scope, Name: name, DisplayName: displayName, LogData: logData}
}

// Ref addresses a metric by name or by alias. Name wins when both are set.
type Ref struct {
	name     string
	alias    uint64
	hasName  bool
	hasAlias bool
}

func ByName(name string) Ref   { return Ref{name: name, hasName: name != ""} }
func ByAlias(alias uint64) Ref { return Ref{alias: alias, hasAlias: true} }

// RefOf builds Ref from optional wire fields, empty name counts as absent.
func RefOf(name *string, alias *uint64) Ref {
	var r Ref
	if name != nil && *name != "" {
		r.name, r.hasName = *name, true
	}
	if alias != nil {
		r.alias, r.hasAlias = *alias, true
	}
	return r
}

func (r Ref) Name() (string, bool)  { return r.name, r.hasName }
func (r Ref) Alias() (uint64, bool) { return r.alias, r.hasAlias }
func (r Ref) IsZero() bool          { return !r.hasName && !r.hasAlias }
func (r Ref) String() string {
	name, alias := "None", "None"
	if r.hasName {
		name = fmt.Sprintf("%q", r.name)
	}
	if r.hasAlias {
		alias = fmt.Sprintf("%d", r.alias)
	}
	return fmt.Sprintf("name=%s alias=%s", name, alias)
}

// Entry is a copy of one metric definition with its current state.
type Entry struct {
	Definition
	Alias     uint64
	HasAlias  bool
	Value     sparkplug.Value
	Timestamp time.Time
}

func (e *Entry) TimestampString() string {
	if e.Timestamp.IsZero() {
		return "None"
	}
	return e.Timestamp.Format("2006-01-02 15:04:05.000")
}

func (e *Entry) ValueString() string {
	v := e.Value
	if v.Kind() != sparkplug.KindFloat {
		return v.String()
	}
	switch {
	case strings.HasPrefix(e.Name, ThermistorPrefix):
		return fmt.Sprintf("%.3f °C", v.Float())
	case e.Name == NameADCTemperature:
		return fmt.Sprintf("%.2f °C", v.Float())
	case e.Name == NameCalibrationTemperature(1), e.Name == NameCalibrationTemperature(2):
		return fmt.Sprintf("%.2f", v.Float())
	}
	return v.String()
}

type entry struct {
	Entry
}

func (e *entry) reset(clearAlias bool) {
	if clearAlias {
		e.Alias, e.HasAlias = 0, false
	}
	e.Value = sparkplug.Value{}
	e.Timestamp = time.Time{}
}

// Registry is safe for concurrent use.
// Definitions never change after NewRegistry.
type Registry struct {
	mu      sync.RWMutex
	entries []*entry
	byName  map[Scope]map[string]*entry
}

func NewRegistry(defs []Definition) (*Registry, error) {
	self := &Registry{
		entries: make([]*entry, 0, len(defs)),
		byName:  make(map[Scope]map[string]*entry),
	}
	for _, d := range defs {
		if d.Name == "" {
			return nil, errors.NotValidf("metric definition with empty name scope=%s", d.Scope)
		}
		if d.Scope == AllScopes {
			return nil, errors.NotValidf("metric name=%s wildcard scope", d.Name)
		}
		names := self.byName[d.Scope]
		if names == nil {
			names = make(map[string]*entry)
			self.byName[d.Scope] = names
		}
		if _, ok := names[d.Name]; ok {
			return nil, errors.AlreadyExistsf("metric scope=%s name=%s", d.Scope, d.Name)
		}
		e := &entry{Entry{Definition: d}}
		names[d.Name] = e
		self.entries = append(self.entries, e)
	}
	return self, nil
}

func (self *Registry) Len() int { return len(self.entries) }

// Reset clears value and timestamp of every metric in scope, and alias if clearAlias.
func (self *Registry) Reset(scope Scope, clearAlias bool) {
	self.mu.Lock()
	defer self.mu.Unlock()
	for _, e := range self.entries {
		if scope.match(e.Scope) {
			e.reset(clearAlias)
		}
	}
}

func (self *Registry) ResetAll() { self.Reset(AllScopes, true) }

func (self *Registry) Find(scope Scope, ref Ref) (Entry, error) {
	self.mu.RLock()
	defer self.mu.RUnlock()
	e, err := self.findLocked(scope, ref)
	if err != nil {
		return Entry{}, err
	}
	return e.Entry, nil
}

func (self *Registry) Lookup(scope Scope, name string) (Entry, error) {
	return self.Find(scope, ByName(name))
}

func (self *Registry) findLocked(scope Scope, ref Ref) (*entry, error) {
	if name, ok := ref.Name(); ok {
		if e, ok := self.byName[scope][name]; ok {
			return e, nil
		}
		return nil, errors.NotFoundf("metric scope=%s %s", scope, ref)
	}
	if alias, ok := ref.Alias(); ok {
		for _, e := range self.entries {
			if e.Scope == scope && e.HasAlias && e.Alias == alias {
				return e, nil
			}
		}
	}
	return nil, errors.NotFoundf("metric scope=%s %s", scope, ref)
}

// ApplyIncoming copies value and timestamp of wire metric m into the
// matching entry. With bindAlias the entry is resolved by name only and
// learns the wire alias; this is how a birth teaches the alias table.
// Errors:
// - NotFound: no such metric in scope
// - AlreadyExists: birth alias is bound to another metric, m skipped
// - NotSupported: datatype outside the value union, alias is still bound
func (self *Registry) ApplyIncoming(scope Scope, m *sparkplug.Metric, bindAlias bool) (Entry, error) {
	self.mu.Lock()
	defer self.mu.Unlock()

	var e *entry
	var err error
	if bindAlias {
		e, err = self.findLocked(scope, RefOf(m.Name, nil))
		if err != nil {
			return Entry{}, errors.Annotatef(err, "alias=%s", aliasString(m.Alias))
		}
		if alias, ok := m.GetAlias(); ok {
			if other, _ := self.findLocked(scope, ByAlias(alias)); other != nil && other != e {
				return Entry{}, errors.AlreadyExistsf("alias=%d for name=%s bound to name=%s", alias, e.Name, other.Name)
			}
			e.Alias, e.HasAlias = alias, true
		} else {
			e.Alias, e.HasAlias = 0, false
		}
	} else {
		e, err = self.findLocked(scope, RefOf(m.Name, m.Alias))
		if err != nil {
			return Entry{}, err
		}
	}

	if !m.Datatype.Supported() {
		return e.Entry, errors.NotSupportedf("datatype=%s for metric name=%s", m.Datatype, e.Name)
	}
	e.Value = m.Value
	if m.IsNull {
		e.Value = sparkplug.Value{}
	}
	e.Timestamp = time.Time{}
	if m.Timestamp != nil {
		e.Timestamp = time.UnixMilli(int64(*m.Timestamp))
	}
	return e.Entry, nil
}

// Snapshot returns copies of all entries in catalog order.
func (self *Registry) Snapshot() []Entry {
	self.mu.RLock()
	defer self.mu.RUnlock()
	es := make([]Entry, len(self.entries))
	for i, e := range self.entries {
		es[i] = e.Entry
	}
	return es
}

func aliasString(alias *uint64) string {
	if alias == nil {
		return "None"
	}
	return fmt.Sprintf("%d", *alias)
}
