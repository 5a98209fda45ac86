package usecase

import "time"

// Metrics receives pipeline events. *metrics.Recorder implements it.
type Metrics interface {
	BackendAttempt(model, transport, outcome string, elapsed time.Duration)
	Recognition(mode, outcome string)
	ImageResolution(strategy string)
	Reconciliation(outcome string)
}

type nopMetrics struct{}

func (nopMetrics) BackendAttempt(string, string, string, time.Duration) {}
func (nopMetrics) Recognition(string, string)                           {}
func (nopMetrics) ImageResolution(string)                               {}
func (nopMetrics) Reconciliation(string)                                {}

func metricsOrNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
