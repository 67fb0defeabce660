// Copyright 2026 The Go Authors. All rights reserved.
// Use of this source code is governed by a BSD-style
// license that can be found in the LICENSE file.

package explore

import (
	"github.com/aclements/weavemc/amb"
	"github.com/aclements/weavemc/report"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics counts what an exploration does. A nil *Metrics records
// nothing. Metrics may be shared by parallel explorations.
type Metrics struct {
	Executions *prometheus.CounterVec
	Bugs       *prometheus.CounterVec
	Choices    *prometheus.CounterVec
	Events     prometheus.Histogram
}

// NewMetrics creates the exploration metrics and registers them with
// reg, if it is not nil.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Executions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weavemc",
			Name:      "executions_total",
			Help:      "Executions explored, by outcome.",
		}, []string{"status"}),
		Bugs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weavemc",
			Name:      "bugs_total",
			Help:      "Buggy executions, by bug category.",
		}, []string{"category"}),
		Choices: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "weavemc",
			Name:      "choices_total",
			Help:      "Choice points visited, by kind.",
		}, []string{"kind"}),
		Events: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "weavemc",
			Name:      "execution_events",
			Help:      "Number of events in each execution graph.",
			Buckets:   prometheus.ExponentialBuckets(4, 2, 12),
		}),
	}
	if reg != nil {
		reg.MustRegister(m.Executions, m.Bugs, m.Choices, m.Events)
	}
	return m
}

func (m *Metrics) execution(e *report.Execution) {
	if m == nil {
		return
	}
	m.Executions.WithLabelValues(e.Status.String()).Inc()
	if e.Bug != nil {
		m.Bugs.WithLabelValues(e.Bug.Category().String()).Inc()
	}
	m.Events.Observe(float64(e.Events))
}

func (m *Metrics) choice(kind amb.ChoiceKind) {
	if m == nil {
		return
	}
	m.Choices.WithLabelValues(kind.String()).Inc()
}
