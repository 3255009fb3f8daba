package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync/atomic"

	prompt "github.com/c-bata/go-prompt"
	"github.com/juju/errors"
	"github.com/temoto/thermux/internal/csvlog"
	"github.com/temoto/thermux/internal/display"
	"github.com/temoto/thermux/internal/metric"
	"github.com/temoto/thermux/internal/session"
	"github.com/temoto/thermux/internal/tele"
	"github.com/temoto/thermux/log2"
)

const usage = `Commands:
    module MODULE_ID = switch to the Thermistor Mux module number (0-%d)
    reboot = send the Reboot command to the module
    show SHOW_WHAT = what to display when a message is received, where SHOW_WHAT is one of:
        none = don't display anything
        errors = just display errors in incoming messages
        topic = just display the message topic and errors
        changed = display the message topic and only those metrics it contains
        all = display the message topic and all the metrics from this module
    calibrate CAL_OPTIONS = check calibration status, calibrate thermistors or clear calibration data, where CAL_OPTIONS is one of:
        temp1 VALUE = send exact temperature of first calibration point (sets Calibration INW)
        temp2 VALUE = send exact temperature of second calibration point
        status = display calibration status
        clear yes = permanently delete stored calibration data
    status = display session state
    log = toggle logging data messages to CSV on or off
    quit, exit, <Ctrl-D> = stop this program
    help, h, ? = display this list of commands
`

// controller is the part of tele.Client used by shell.
type controller interface {
	Session() *session.Session
	Stat() tele.Stat
	SwitchModule(id int) error
	Reboot() error
	ClearCalibration() error
	CalibrationTemperature(n int, value float32) error
}

type shell struct {
	log     *log2.Log
	ctl     controller
	printer *display.Printer
	csv     *csvlog.Logger
	logging int32
	quit    func()
	out     io.Writer
}

func (self *shell) setLogging(on bool) {
	var v int32
	if on {
		v = 1
	}
	atomic.StoreInt32(&self.logging, v)
}
func (self *shell) isLogging() bool { return atomic.LoadInt32(&self.logging) != 0 }

// observe runs on tele worker goroutine.
func (self *shell) observe(registry *metric.Registry) tele.ObserveFunc {
	return func(r session.Result) {
		snapshot := registry.Snapshot()
		self.printer.Show(r, snapshot)
		if r.Dropped || !r.State.Compatible || !self.isLogging() {
			return
		}
		var ts *uint64
		if r.Payload != nil {
			ts = r.Payload.Timestamp
		}
		if err := self.csv.Append(ts, r.Topic, snapshot); err != nil {
			self.printer.Errorf("CSV Log: error occurred: %v", err)
		}
	}
}

func (self *shell) exec(line string) {
	if err := self.run(strings.Fields(strings.ToLower(line))); err != nil {
		self.printer.Errorf("%s", err)
		self.log.Debugf(errors.ErrorStack(err))
	}
}

func (self *shell) run(words []string) error {
	if len(words) == 0 {
		return nil
	}
	sess := self.ctl.Session()
	switch words[0] {
	case "module":
		if len(words) != 2 {
			return errors.New(`Invalid use, must be of the form "module MODULE_ID"`)
		}
		id, err := session.ParseModuleID(words[1], sess.NumModules())
		if err != nil {
			return err
		}
		if err = self.ctl.SwitchModule(id); err != nil {
			return err
		}
		self.printer.Reportf("Switching to module %d", id)

	case "reboot":
		if err := self.ctl.Reboot(); err != nil {
			return err
		}
		self.printer.Reportf("Reboot requested")

	case "show":
		if len(words) != 2 {
			return errors.New(`Invalid use, must be of the form "show SHOW_WHAT"`)
		}
		mode, err := display.ParseShowMode(words[1])
		if err != nil {
			return err
		}
		self.printer.SetMode(mode)
		self.printer.Reportf("Showing %s", mode)

	case "log":
		on := !self.isLogging()
		self.setLogging(on)
		if on {
			self.printer.Reportf("Logging is on, file=%s", self.csv.Path())
		} else {
			self.printer.Reportf("Logging is off")
		}

	case "calibrate":
		return self.calibrate(words[1:])

	case "status":
		self.printer.Reportf("module=%d %s stat=%+v", sess.Module(), sess.State(), self.ctl.Stat())
		if t := sess.LastMessage(); !t.IsZero() {
			self.printer.Reportf("last message at %s", t.Format("2006-01-02 15:04:05.000"))
		}

	case "quit", "exit":
		self.quit()

	case "help", "h", "?":
		fmt.Fprintf(self.out, "Thermistor Mux client connected to module %d\n", sess.Module())
		fmt.Fprintf(self.out, usage, sess.NumModules()-1)

	default:
		return errors.Errorf("Unknown command: %s, enter ? for help", words[0])
	}
	return nil
}

func (self *shell) calibrate(args []string) error {
	if len(args) == 0 {
		return errors.New(`Invalid use, must be of the form "calibrate temp1|temp2|status|clear"`)
	}
	switch args[0] {
	case "temp1", "temp2":
		n := 1
		if args[0] == "temp2" {
			n = 2
		}
		if len(args) != 2 {
			return errors.Errorf(`Invalid use, must be of the form "calibrate %s VALUE"`, args[0])
		}
		value, err := strconv.ParseFloat(args[1], 32)
		if err != nil {
			return errors.NotValidf("calibration temperature %q", args[1])
		}
		if err = self.ctl.CalibrationTemperature(n, float32(value)); err != nil {
			return err
		}
		self.printer.Reportf("Calibration temperature %d is %.2f", n, value)

	case "clear":
		if len(args) != 2 || args[1] != "yes" {
			self.printer.Reportf("Clear cal data has been aborted, confirm with: calibrate clear yes")
			return nil
		}
		return self.ctl.ClearCalibration()

	case "status":
		sess := self.ctl.Session()
		for _, name := range []string{metric.NameCalibrationStatus, metric.NameCalibrationINW} {
			e, err := sess.Registry().Lookup(sess.Scope(), name)
			if err != nil {
				return err
			}
			self.printer.PrintEntry(e)
		}

	default:
		return errors.Errorf("Invalid use, CAL must be one of [temp1 temp2 status clear]")
	}
	return nil
}

func (self *shell) complete(d prompt.Document) []prompt.Suggest {
	suggests := []prompt.Suggest{
		{Text: "module", Description: "switch module"},
		{Text: "reboot", Description: "send Reboot command"},
		{Text: "show", Description: "none|errors|topic|changed|all"},
		{Text: "calibrate", Description: "temp1|temp2|status|clear"},
		{Text: "status", Description: "session state"},
		{Text: "log", Description: "toggle CSV logging"},
		{Text: "quit", Description: "stop program"},
		{Text: "help", Description: "list commands"},
	}
	words := strings.Fields(d.TextBeforeCursor())
	if len(words) >= 1 && (len(words) > 1 || strings.HasSuffix(d.TextBeforeCursor(), " ")) {
		switch words[0] {
		case "show":
			suggests = suggests[:0]
			for _, name := range display.ShowModeNames() {
				suggests = append(suggests, prompt.Suggest{Text: name})
			}
		case "calibrate":
			suggests = []prompt.Suggest{{Text: "temp1"}, {Text: "temp2"}, {Text: "status"}, {Text: "clear"}}
		default:
			return nil
		}
	}
	return prompt.FilterHasPrefix(suggests, d.GetWordBeforeCursor(), true)
}
