// Package csvlog appends registry snapshots of data messages to a CSV file.
package csvlog

import (
	"encoding/csv"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/juju/errors"
	"github.com/temoto/thermux/internal/display"
	"github.com/temoto/thermux/internal/metric"
)

// DefaultPath is per day file name in current directory.
func DefaultPath(now time.Time) string {
	return "thermistorMux_test_log_" + now.Format("2006-01-02") + ".csv"
}

type Logger struct {
	mu   sync.Mutex
	path string
}

func New(path string) *Logger { return &Logger{path: path} }

func (self *Logger) Path() string { return self.path }

// Append writes one row: message timestamp, node id from topic, values of
// LogData metrics. Header row is written when file is empty.
func (self *Logger) Append(timestamp *uint64, topic string, snapshot []metric.Entry) error {
	header := []string{"TIMESTAMP", "MODULE_ID"}
	row := []string{display.FormatTimestamp(timestamp), topic[strings.LastIndexByte(topic, '/')+1:]}
	for _, e := range snapshot {
		if e.LogData {
			header = append(header, e.DisplayName)
			row = append(row, e.ValueString())
		}
	}

	self.mu.Lock()
	defer self.mu.Unlock()
	f, err := os.OpenFile(self.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return errors.Annotate(err, "csv log")
	}
	defer f.Close()
	fi, err := f.Stat()
	if err != nil {
		return errors.Annotate(err, "csv log")
	}
	w := csv.NewWriter(f)
	if fi.Size() == 0 {
		if err = w.Write(header); err != nil {
			return errors.Annotate(err, "csv log header")
		}
	}
	if err = w.Write(row); err != nil {
		return errors.Annotate(err, "csv log")
	}
	w.Flush()
	return errors.Annotate(w.Error(), "csv log")
}
