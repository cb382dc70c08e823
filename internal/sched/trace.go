// internal/sched/trace.go

package sched

import (
	"encoding/csv"
	"os"
	"strconv"
	"time"

	"github.com/rs/zerolog"
)

// CSVTrace writes status events to a CSV file.
type CSVTrace struct {
	csvFile   *os.File
	csvWriter *csv.Writer
	err       error // first write error, reported by Close
}

// NewCSVTrace opens the given file path for CSV logging of events.
func NewCSVTrace(path string) (*CSVTrace, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	w := csv.NewWriter(f)

	// write header
	if err := w.Write([]string{"timestamp", "tick", "event", "task_id", "result"}); err != nil {
		f.Close()
		return nil, err
	}
	w.Flush()
	return &CSVTrace{csvFile: f, csvWriter: w}, nil
}

// Observe records one event and flushes it, so a trace survives a fatal halt.
func (c *CSVTrace) Observe(ev StatusEvent) {
	if c.err != nil {
		return
	}
	rec := []string{
		ev.Time.Format(time.RFC3339Nano),
		strconv.FormatUint(ev.Tick, 10),
		ev.Kind.String(),
		strconv.FormatUint(uint64(ev.TaskID), 10),
		ev.Result.String(),
	}
	if err := c.csvWriter.Write(rec); err != nil {
		c.err = err
		return
	}
	c.csvWriter.Flush()
	c.err = c.csvWriter.Error()
}

// Err is the first error hit while writing, if any.
func (c *CSVTrace) Err() error { return c.err }

// Close flushes and closes the file.
func (c *CSVTrace) Close() error {
	c.csvWriter.Flush()
	err := c.err
	if err == nil {
		err = c.csvWriter.Error()
	}
	if err != nil {
		c.csvFile.Close()
		return err
	}
	return c.csvFile.Close()
}

// LogObserver reports dispatches and bad ids through l at trace level.
func LogObserver(l zerolog.Logger) Observer {
	return func(ev StatusEvent) {
		if ev.Kind == StatusIdle || ev.Kind == StatusResume {
			return
		}
		l.Trace().
			Uint64("tick", ev.Tick).
			Str("event", ev.Kind.String()).
			Uint32("task", uint32(ev.TaskID)).
			Str("result", ev.Result.String()).
			Msg("executor")
	}
}

// Observers fans one event out to several observers.
func Observers(obs ...Observer) Observer {
	return func(ev StatusEvent) {
		for _, o := range obs {
			if o != nil {
				o(ev)
			}
		}
	}
}
