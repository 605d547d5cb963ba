// Copyright (C) 2019-2025, Lux Industries, Inc. All rights reserved.
// See the file LICENSE for licensing terms.

package remoting

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Outcome summarizes one finished call for diagnostics.
type Outcome struct {
	// Name is "CALL <serviceURL> <method>".
	Name    string
	CallID  string
	Method  string
	Elapsed time.Duration
	Success bool
	Result  any
	Err     error
}

// Summary is a short human readable description of the outcome.
func (o *Outcome) Summary() string {
	switch {
	case o.Err != nil:
		return "error: " + o.Err.Error()
	case o.Result == nil:
		return "ok"
	default:
		return fmt.Sprintf("ok: %T", o.Result)
	}
}

// Reporter receives call outcomes when diagnostics are enabled for a call.
// Implementations must be safe for concurrent use.
type Reporter interface {
	Report(o *Outcome)
}

// Reporters fans an outcome out to several reporters.
type Reporters []Reporter

func (rs Reporters) Report(o *Outcome) {
	for _, r := range rs {
		r.Report(o)
	}
}

// LogReporter writes one debug line per call.
type LogReporter struct {
	Logger *logrus.Logger
}

func (r LogReporter) Report(o *Outcome) {
	logger := r.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if !logger.IsLevelEnabled(logrus.DebugLevel) {
		return
	}
	logger.WithFields(logrus.Fields{
		"call_id": o.CallID,
		"elapsed": o.Elapsed,
		"success": o.Success,
	}).Debugf("%s: %s", o.Name, o.Summary())
}

// MetricsReporter records call counts and latencies.
type MetricsReporter struct {
	calls    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetricsReporter registers the client collectors with reg.
func NewMetricsReporter(reg prometheus.Registerer) (*MetricsReporter, error) {
	m := &MetricsReporter{
		calls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "remoting",
				Subsystem: "client",
				Name:      "calls_total",
				Help:      "Total number of remote calls by outcome.",
			},
			[]string{"method", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "remoting",
				Subsystem: "client",
				Name:      "call_duration_seconds",
				Help:      "Duration of remote calls.",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14), // 1ms to ~8s
			},
			[]string{"method"},
		),
	}
	for _, c := range []prometheus.Collector{m.calls, m.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *MetricsReporter) Report(o *Outcome) {
	outcome := "success"
	if !o.Success {
		outcome = "failure"
	}
	m.calls.WithLabelValues(o.Method, outcome).Inc()
	m.duration.WithLabelValues(o.Method).Observe(o.Elapsed.Seconds())
}

// diagnostic is the timer of one call. A nil *diagnostic is disabled.
type diagnostic struct {
	reporter Reporter
	outcome  Outcome
	start    time.Time
}

func startDiagnostic(r Reporter, serviceURL, method, callID string) *diagnostic {
	if r == nil {
		return nil
	}
	return &diagnostic{
		reporter: r,
		outcome: Outcome{
			Name:   "CALL " + serviceURL + " " + method,
			CallID: callID,
			Method: method,
		},
		start: time.Now(),
	}
}

func (d *diagnostic) finish(result any, err error) {
	if d == nil {
		return
	}
	d.outcome.Elapsed = time.Since(d.start)
	d.outcome.Result = result
	d.outcome.Err = err
	d.outcome.Success = err == nil
	d.reporter.Report(&d.outcome)
}
