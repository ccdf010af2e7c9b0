package main

import (
	"bytes"
	stderrors "errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"

	"github.com/TFMV/sqlgate/pkg/infrastructure/metrics"
)

func TestServiceLoggerAdapter(t *testing.T) {
	var buf bytes.Buffer
	l := &serviceLoggerAdapter{logger: zerolog.New(&buf).Level(zerolog.InfoLevel)}

	l.Debug("hidden")
	assert.Empty(t, buf.String())

	l.Warn("Handler execution failed", "handler", "read", "error", stderrors.New("boom"), "rows", 3, "dangling")
	out := buf.String()
	assert.Contains(t, out, `"level":"warn"`)
	assert.Contains(t, out, `"handler":"read"`)
	assert.Contains(t, out, `"error":"boom"`)
	assert.Contains(t, out, `"rows":3`)
	assert.Contains(t, out, `"message":"Handler execution failed"`)
	assert.NotContains(t, out, "dangling")
}

type recordingCollector struct {
	metrics.NoOpCollector
	counters []string
	seconds  float64
}

func (c *recordingCollector) IncrementCounter(name string, labels ...string) {
	c.counters = append(c.counters, name)
}

func (c *recordingCollector) StartTimer(name string) metrics.Timer {
	return fixedTimer(c.seconds)
}

type fixedTimer float64

func (t fixedTimer) Stop() float64 { return float64(t) }

func TestServiceMetricsAdapter(t *testing.T) {
	c := &recordingCollector{seconds: 1.5}
	m := &serviceMetricsAdapter{collector: c}

	m.IncrementCounter("queries_analyzed", "kind", "read")
	assert.Equal(t, []string{"queries_analyzed"}, c.counters)

	assert.Equal(t, 1500*time.Millisecond, m.StartTimer("dispatch_duration").Stop())
}
