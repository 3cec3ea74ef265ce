package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "agencyops"

// Metrics holds the billing engine counters. A nil *Metrics is valid and records nothing.
type Metrics struct {
	installmentsGenerated *prometheus.CounterVec
	installmentFailures   *prometheus.CounterVec
	cascadeExecutions     *prometheus.CounterVec
	cascadeStepFailures   *prometheus.CounterVec
}

func NewRegisterer() prometheus.Registerer {
	return prometheus.DefaultRegisterer
}

func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		installmentsGenerated: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "installment",
				Name:      "generated_total",
				Help:      "Installments generated at subscription creation by item type",
			},
			[]string{"item_type"},
		),
		installmentFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "installment",
				Name:      "generation_failures_total",
				Help:      "Subscriptions persisted without installments",
			},
			[]string{"item_type"},
		),
		cascadeExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "cascade",
				Name:      "executions_total",
				Help:      "Cascade executions by target, action, decision and outcome",
			},
			[]string{"target", "action", "decision", "outcome"},
		),
		cascadeStepFailures: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Subsystem: "cascade",
				Name:      "step_failures_total",
				Help:      "Cascade steps that failed mid-sequence by stage",
			},
			[]string{"stage"},
		),
	}

	for _, c := range []prometheus.Collector{
		m.installmentsGenerated,
		m.installmentFailures,
		m.cascadeExecutions,
		m.cascadeStepFailures,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) InstallmentsGenerated(itemType string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.installmentsGenerated.WithLabelValues(sanitizeLabel(itemType)).Add(float64(n))
}

func (m *Metrics) InstallmentGenerationFailed(itemType string) {
	if m == nil {
		return
	}
	m.installmentFailures.WithLabelValues(sanitizeLabel(itemType)).Inc()
}

func (m *Metrics) CascadeExecuted(target, action, decision, outcome string) {
	if m == nil {
		return
	}
	m.cascadeExecutions.WithLabelValues(
		sanitizeLabel(target),
		sanitizeLabel(action),
		sanitizeLabel(decision),
		sanitizeLabel(outcome),
	).Inc()
}

func (m *Metrics) CascadeStepFailed(stage string) {
	if m == nil {
		return
	}
	m.cascadeStepFailures.WithLabelValues(sanitizeLabel(stage)).Inc()
}

func sanitizeLabel(s string) string {
	if s == "" {
		return "unknown"
	}
	return s
}
