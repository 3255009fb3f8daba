// Package display prints session results to the console according to show mode.
package display

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/internal/session"
)

type ShowMode int32

const (
	ShowNone ShowMode = iota
	ShowErrors
	ShowTopic
	ShowChanged
	ShowAll
)

var showModeNames = []string{"none", "errors", "topic", "changed", "all"}

func ShowModeNames() []string { return append([]string(nil), showModeNames...) }

func (m ShowMode) String() string {
	if m >= 0 && int(m) < len(showModeNames) {
		return showModeNames[m]
	}
	return fmt.Sprintf("ShowMode(%d)", int32(m))
}

func ParseShowMode(s string) (ShowMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range showModeNames {
		if s == name {
			return ShowMode(i), nil
		}
	}
	return ShowChanged, errors.NotValidf("show mode=%q, must be one of %v", s, showModeNames)
}

// FormatTimestamp renders Sparkplug milliseconds, "None" for absent.
func FormatTimestamp(ms *uint64) string {
	if ms == nil {
		return "None"
	}
	return time.UnixMilli(int64(*ms)).Format("2006-01-02 15:04:05.000")
}

// Printer is safe for concurrent use.
type Printer struct {
	mu   sync.Mutex
	w    io.Writer
	mode int32
}

func NewPrinter(w io.Writer, mode ShowMode) *Printer {
	return &Printer{w: w, mode: int32(mode)}
}

func (self *Printer) Mode() ShowMode        { return ShowMode(atomic.LoadInt32(&self.mode)) }
func (self *Printer) SetMode(mode ShowMode) { atomic.StoreInt32(&self.mode, int32(mode)) }

// Report prints msg unless filtered by mode. always bypasses filter.
func (self *Printer) Report(msg string, isError, always bool) {
	mode := self.Mode()
	if !always {
		if mode == ShowNone || (mode == ShowErrors && !isError) {
			return
		}
	}
	if isError {
		msg = "*** " + msg + " ***"
	}
	self.mu.Lock()
	defer self.mu.Unlock()
	fmt.Fprintln(self.w, msg)
}

func (self *Printer) Reportf(format string, args ...interface{}) {
	self.Report(fmt.Sprintf(format, args...), false, true)
}

func (self *Printer) Errorf(format string, args ...interface{}) {
	self.Report(fmt.Sprintf(format, args...), true, true)
}

// PrintEntry prints one metric line.
func (self *Printer) PrintEntry(e metric.Entry) {
	self.mu.Lock()
	defer self.mu.Unlock()
	self.printEntry(e)
}

func (self *Printer) printEntry(e metric.Entry) {
	fmt.Fprintf(self.w, "%s at %s = %s\n", e.DisplayName, e.TimestampString(), e.ValueString())
}

// Show prints result r of one inbound message. snapshot is registry
// state after r, in catalog order.
func (self *Printer) Show(r session.Result, snapshot []metric.Entry) {
	mode := self.Mode()
	if mode == ShowNone {
		return
	}
	self.mu.Lock()
	defer self.mu.Unlock()

	if mode >= ShowTopic {
		fmt.Fprintf(self.w, "Message received: %s\n", r.Topic)
	}
	if mode == ShowAll && r.Payload != nil {
		fmt.Fprintf(self.w, "   timestamp = %s\n", FormatTimestamp(r.Payload.Timestamp))
		seq := "None"
		if r.Payload.Seq != nil {
			seq = fmt.Sprint(*r.Payload.Seq)
		}
		fmt.Fprintf(self.w, "   seq = %s\n", seq)
		fmt.Fprintf(self.w, "   num_metrics = %d\n", len(r.Payload.Metrics))
	}
	for _, d := range r.Diagnostics {
		fmt.Fprintf(self.w, "*** %s ***\n", d.Message)
	}

	if mode < ShowChanged || r.Dropped || !r.State.Compatible {
		return
	}
	changed := make(map[string]struct{}, len(r.Updated))
	for _, e := range r.Updated {
		changed[e.Name] = struct{}{}
	}
	for _, e := range snapshot {
		if _, ok := changed[e.Name]; ok || mode == ShowAll {
			self.printEntry(e)
		}
	}
}
