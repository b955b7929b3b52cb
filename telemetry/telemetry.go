// Package telemetry defines the sink the drive reports to and a few implementations of it.
package telemetry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/spf13/cast"

	"github.com/thunderbots/lightning/logging"
)

// A Sink accepts tagged values. Sending is a side channel: implementations must not block for
// long and must not fail the caller.
type Sink interface {
	Send(tag string, value interface{})
}

// Nop discards everything it is sent.
var Nop Sink = nopSink{}

type nopSink struct{}

func (nopSink) Send(string, interface{}) {}

// LoggerSink writes each value as a debug log line.
type LoggerSink struct {
	logger logging.Logger
}

// NewLoggerSink returns a sink that logs to logger.
func NewLoggerSink(logger logging.Logger) *LoggerSink {
	return &LoggerSink{logger: logger}
}

// Send logs tag and a string rendering of value.
func (s *LoggerSink) Send(tag string, value interface{}) {
	s.logger.Debugw("telemetry", "tag", tag, "value", Format(value))
}

// Format renders value the way telemetry displays show it.
func Format(value interface{}) string {
	switch v := value.(type) {
	case []float64:
		return fmt.Sprintf("%.3f", v)
	case error:
		return v.Error()
	}
	if s, err := cast.ToStringE(value); err == nil {
		return s
	}
	return fmt.Sprintf("%v", value)
}

// Recorder keeps the latest value per tag.
type Recorder struct {
	mu     sync.Mutex
	values map[string]interface{}
	sends  int
}

// NewRecorder returns an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{values: map[string]interface{}{}}
}

// Send records value under tag.
func (r *Recorder) Send(tag string, value interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[tag] = value
	r.sends++
}

// Get returns the latest value sent with tag.
func (r *Recorder) Get(tag string) (interface{}, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[tag]
	return v, ok
}

// Tags returns the recorded tags in sorted order.
func (r *Recorder) Tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	tags := make([]string, 0, len(r.values))
	for tag := range r.values {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}

// Sends returns the total number of values sent.
func (r *Recorder) Sends() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sends
}
