package domain

import (
	"fmt"
	"strconv"
)

// Metric names a telemetry counter family.
type Metric string

const (
	// MetricAttempts counts every Pin on a level.
	MetricAttempts Metric = "attempts"
	// MetricSuccesses counts Pins whose guess matched the level code.
	MetricSuccesses Metric = "successes"
)

// Metrics lists every known metric in summary order.
var Metrics = []Metric{MetricAttempts, MetricSuccesses}

// CounterKey addresses one counter: a metric on a level.
type CounterKey struct {
	Metric Metric
	Level  int
}

// String renders the key as "metric:level", the form used by durable backends.
func (k CounterKey) String() string {
	return string(k.Metric) + ":" + strconv.Itoa(k.Level)
}

// Validate checks that the key names a known metric and a valid level.
func (k CounterKey) Validate() error {
	switch k.Metric {
	case MetricAttempts, MetricSuccesses:
	default:
		return fmt.Errorf("unknown metric %q", k.Metric)
	}
	if !ValidLevel(k.Level) {
		return fmt.Errorf("level %d out of range", k.Level)
	}
	return nil
}

// Summary aggregates every counter. Index 0 holds level 1.
type Summary struct {
	Attempts  []int `json:"attempts"`
	Successes []int `json:"successes"`
}
