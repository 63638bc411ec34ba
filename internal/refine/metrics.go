package refine

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// refineRequestsTotal counts refinements by outcome (boosted, unboosted, rejected).
	refineRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermadx",
		Subsystem: "refine",
		Name:      "requests_total",
		Help:      "Refinement requests by outcome",
	}, []string{"outcome"})

	// refineBoostSkippedTotal counts refinements that ran without the index.
	refineBoostSkippedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermadx",
		Subsystem: "refine",
		Name:      "boost_skipped_total",
		Help:      "Refinements that skipped the symptom boost, by reason",
	}, []string{"reason"})

	refineUnresolvedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "dermadx",
		Subsystem: "refine",
		Name:      "unresolved_candidates_total",
		Help:      "Candidates the index had no entry for",
	})
)
