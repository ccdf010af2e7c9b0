// Package metrics records gateway activity such as dispatch outcomes per
// handler, history writes and analysis cache hits.
//
// Metric names are snake_case and carry no namespace, for example
// dispatch_permission_denied or dispatch_duration; PrometheusCollector adds
// the namespace and unit suffixes. Labels are passed as alternating
// key/value strings ("handler", "read").
package metrics

import (
	"sync"
	"time"
)

// Collector receives gateway metrics.
type Collector interface {
	// IncrementCounter adds one to the named counter.
	IncrementCounter(name string, labels ...string)

	// RecordHistogram observes value in the named histogram.
	RecordHistogram(name string, value float64, labels ...string)

	// RecordGauge sets the named gauge.
	RecordGauge(name string, value float64, labels ...string)

	// StartTimer measures a duration reported under name.
	StartTimer(name string) Timer
}

// Timer measures one duration.
type Timer interface {
	// Stop returns the elapsed seconds. Later calls return the same value.
	Stop() float64
}

// NoOpCollector discards everything; its timers still measure so callers
// that log durations keep working.
type NoOpCollector struct{}

// NewNoOpCollector returns a collector used when metrics.enabled is false.
func NewNoOpCollector() Collector {
	return &NoOpCollector{}
}

func (n *NoOpCollector) IncrementCounter(name string, labels ...string)               {}
func (n *NoOpCollector) RecordHistogram(name string, value float64, labels ...string) {}
func (n *NoOpCollector) RecordGauge(name string, value float64, labels ...string)     {}

// StartTimer returns a stopwatch that records nowhere.
func (n *NoOpCollector) StartTimer(name string) Timer {
	return newStopwatch(nil)
}

// stopwatch is the Timer behind both collectors. onStop, when set, receives
// the elapsed seconds on the first Stop.
type stopwatch struct {
	start   time.Time
	onStop  func(seconds float64)
	once    sync.Once
	elapsed float64
}

func newStopwatch(onStop func(seconds float64)) *stopwatch {
	return &stopwatch{start: time.Now(), onStop: onStop}
}

func (s *stopwatch) Stop() float64 {
	s.once.Do(func() {
		s.elapsed = time.Since(s.start).Seconds()
		if s.onStop != nil {
			s.onStop(s.elapsed)
		}
	})
	return s.elapsed
}
