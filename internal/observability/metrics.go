// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Gatekeep Contributors

package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels the result of an auth operation.
type Outcome string

// Auth operation outcomes.
const (
	OutcomeOK       Outcome = "ok"
	OutcomeRejected Outcome = "rejected"
	OutcomeError    Outcome = "error"
)

// Metrics contains the Prometheus metrics for gatekeep.
type Metrics struct {
	AuthOperations       *prometheus.CounterVec
	NotificationFailures prometheus.Counter
}

// NewMetrics creates and registers gatekeep metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AuthOperations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gatekeep_auth_operations_total",
				Help: "Total number of auth operations by operation and outcome",
			},
			[]string{"operation", "outcome"},
		),
		NotificationFailures: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gatekeep_notifications_failed_total",
				Help: "Total number of reset emails that could not be delivered",
			},
		),
	}

	reg.MustRegister(m.AuthOperations)
	reg.MustRegister(m.NotificationFailures)

	return m
}

// RecordAuthOperation counts one auth operation.
func (m *Metrics) RecordAuthOperation(operation string, outcome Outcome) {
	m.AuthOperations.WithLabelValues(operation, string(outcome)).Inc()
}

// RecordNotificationFailure counts one failed delivery. Its signature
// matches notify.WithFailureHook.
func (m *Metrics) RecordNotificationFailure(error) {
	m.NotificationFailures.Inc()
}
