// Package metrics holds the Prometheus collectors shared across the
// ingestion and evaluation pipeline.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	SpansIngested = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_spans_ingested_total",
		Help: "Spans accepted by the ingestion endpoint.",
	})

	SpansRejected = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_spans_rejected_total",
		Help: "Malformed spans rejected at the ingestion boundary.",
	})

	TracesEvaluated = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_traces_evaluated_total",
		Help: "Completed traces handed to rule evaluation.",
	})

	SignalsEmitted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_signals_emitted_total",
		Help: "Signals recorded from rule matches.",
	})

	RuleTimeouts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_rule_timeouts_total",
		Help: "Rule evaluations aborted by the step or time budget.",
	})

	AuditBuffered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_audit_buffered_total",
		Help: "Audit transfers buffered because the ledger was unavailable.",
	})

	AuditDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_audit_dropped_total",
		Help: "Buffered audit transfers dropped oldest-first on overflow.",
	})

	PipelineDropped = promauto.NewCounter(prometheus.CounterOpts{
		Name: "betrace_pipeline_dropped_total",
		Help: "Completed traces dropped because the evaluation queue was full.",
	})
)
