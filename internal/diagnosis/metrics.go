package diagnosis

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	classifyCacheTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "dermadx",
			Subsystem: "classify",
			Name:      "cache_total",
			Help:      "Classification cache lookups by result (hit, miss, error).",
		},
		[]string{"result"},
	)

	fallbackConditionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "dermadx",
			Subsystem: "classify",
			Name:      "fallback_conditions_total",
			Help:      "Predicted classes reported without a stored condition record.",
		},
	)
)
