package aggregates

import "time"

// Hooks receives one event per aggregate write plus conflict and retry counts.
type Hooks interface {
	ObserveOperation(op, status string, dur time.Duration)
	IncConflict(op string)
	IncRetry(op string)
}

type noopHooks struct{}

func (noopHooks) ObserveOperation(string, string, time.Duration) {}
func (noopHooks) IncConflict(string)                             {}
func (noopHooks) IncRetry(string)                                {}

// MetricsRecorder is the subset of the metrics registry used by aggregates.
type MetricsRecorder interface {
	ObserveAggregateOperation(operation, status string, dur time.Duration)
	IncAggregateConflict(operation string)
	IncAggregateRetry(operation string)
}

type metricsHooks struct {
	rec MetricsRecorder
}

// NewMetricsHooks forwards write events to rec. A nil rec yields no-op hooks.
func NewMetricsHooks(rec MetricsRecorder) Hooks {
	if rec == nil {
		return noopHooks{}
	}
	return metricsHooks{rec: rec}
}

func (h metricsHooks) ObserveOperation(op, status string, dur time.Duration) {
	h.rec.ObserveAggregateOperation(op, status, dur)
}

func (h metricsHooks) IncConflict(op string) { h.rec.IncAggregateConflict(op) }

func (h metricsHooks) IncRetry(op string) { h.rec.IncAggregateRetry(op) }
