package businessflow

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	outcomeApplied  = "applied"
	outcomeReplayed = "replayed"
	outcomeConflict = "conflict"
	outcomeDenied   = "denied"
	outcomeFailed   = "failed"
)

var (
	// Workflow transitions partitioned by entity, action, and outcome
	workflowTransitionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "workflow_transitions_total",
			Help: "Total number of workflow transition attempts",
		},
		[]string{"entity", "action", "outcome"},
	)

	// Price estimates partitioned by outcome
	quoteEstimatesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quote_estimates_total",
			Help: "Total number of quote price estimates",
		},
		[]string{"outcome"},
	)
)

func transitionOutcome(err error, replayed bool) string {
	switch {
	case err == nil && replayed:
		return outcomeReplayed
	case err == nil:
		return outcomeApplied
	case IsStateConflict(err):
		return outcomeConflict
	case IsForbidden(err) || IsUnauthenticated(err):
		return outcomeDenied
	default:
		return outcomeFailed
	}
}

func observeEstimate(err error) {
	outcome := "ok"
	switch {
	case err == nil:
	case IsValidation(err):
		outcome = "invalid"
	default:
		outcome = "error"
	}
	quoteEstimatesTotal.WithLabelValues(outcome).Inc()
}
