package symptomindex

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// indexLoadsTotal counts index loads by trigger (lazy, reload) and status (ok, error).
	indexLoadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermadx",
		Subsystem: "symptom_index",
		Name:      "loads_total",
		Help:      "Disease-symptom index loads by trigger and status",
	}, []string{"trigger", "status"})

	indexConditions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dermadx",
		Subsystem: "symptom_index",
		Name:      "conditions",
		Help:      "Conditions in the current index snapshot",
	})

	indexAssociations = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "dermadx",
		Subsystem: "symptom_index",
		Name:      "associations",
		Help:      "Condition-symptom associations in the current index snapshot",
	})
)

func recordLoad(trigger string, snap *Snapshot, err error) {
	if err != nil {
		indexLoadsTotal.WithLabelValues(trigger, "error").Inc()
		return
	}
	indexLoadsTotal.WithLabelValues(trigger, "ok").Inc()
	conditions, associations := snap.Size()
	indexConditions.Set(float64(conditions))
	indexAssociations.Set(float64(associations))
}
