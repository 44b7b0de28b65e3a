// Copyright (C) 2019-2025, Lux Industries Inc All rights reserved.
// See the file LICENSE for licensing terms.

package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	messageKind = "message"
	profileKind = "profile"
)

type Metrics struct {
	submissionCount          *prometheus.CounterVec
	failedSubmissionCount    *prometheus.CounterVec
	confirmedSubmissionCount *prometheus.CounterVec
	stageLatencySeconds      *prometheus.HistogramVec
}

func NewMetrics(registerer prometheus.Registerer) *Metrics {
	m := Metrics{
		submissionCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submissions_total",
				Help: "Number of submissions started",
			},
			[]string{"kind"},
		),
		failedSubmissionCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submission_failures_total",
				Help: "Number of submissions that ended in failure",
			},
			[]string{"kind", "failure_reason"},
		),
		confirmedSubmissionCount: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "submission_confirmations_total",
				Help: "Number of submissions confirmed on chain",
			},
			[]string{"kind"},
		),
		stageLatencySeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "submission_stage_latency_seconds",
				Help:    "Time spent in each submission stage",
				Buckets: []float64{.01, .05, .1, .5, 1, 2, 5, 10, 30, 60, 120},
			},
			[]string{"stage"},
		),
	}

	registerer.MustRegister(m.submissionCount)
	registerer.MustRegister(m.failedSubmissionCount)
	registerer.MustRegister(m.confirmedSubmissionCount)
	registerer.MustRegister(m.stageLatencySeconds)

	return &m
}

func (m *Metrics) started(kind string) {
	m.submissionCount.WithLabelValues(kind).Inc()
}

func (m *Metrics) failed(kind, reason string) {
	m.failedSubmissionCount.WithLabelValues(kind, reason).Inc()
}

func (m *Metrics) confirmed(kind string) {
	m.confirmedSubmissionCount.WithLabelValues(kind).Inc()
}

func (m *Metrics) observeStage(stage Stage, d time.Duration) {
	m.stageLatencySeconds.WithLabelValues(stage.String()).Observe(d.Seconds())
}
