// Package metrics exposes the engine's prometheus instruments.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/fx"
)

type Metrics struct {
	AccumulationsApplied prometheus.Counter
	CASConflicts         prometheus.Counter
	RetriesExhausted     prometheus.Counter
	PartialSuccesses     prometheus.Counter
	Recalculations       *prometheus.CounterVec
	AuditFailures        prometheus.Counter
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		AccumulationsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "limits_accumulations_applied_total",
			Help: "Usage deltas committed to a snapshot.",
		}),
		CASConflicts: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "limits_cas_conflicts_total",
			Help: "Conditional snapshot writes rejected and retried.",
		}),
		RetriesExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "limits_retries_exhausted_total",
			Help: "Accumulations that gave up after the conflict retry bound.",
		}),
		PartialSuccesses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "limits_partial_successes_total",
			Help: "Committed mutations whose audit emission failed.",
		}),
		Recalculations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "limits_recalculations_total",
			Help: "Snapshot rebuilds from the usage ledger.",
		}, []string{"result"}),
		AuditFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "limits_audit_failures_total",
			Help: "Audit records that could not be written.",
		}),
	}
	reg.MustRegister(
		m.AccumulationsApplied,
		m.CASConflicts,
		m.RetriesExhausted,
		m.PartialSuccesses,
		m.Recalculations,
		m.AuditFailures,
	)
	return m
}

func provide() *Metrics {
	return New(prometheus.DefaultRegisterer)
}

var Module = fx.Module("metrics",
	fx.Provide(provide),
)
