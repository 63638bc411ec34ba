package classifier

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// classifierInferenceSeconds measures single predictor calls.
	// Labels: model, status (ok, error)
	classifierInferenceSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "dermadx",
		Subsystem: "classifier",
		Name:      "inference_seconds",
		Help:      "Classifier inference latency per attempt",
		Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
	}, []string{"model", "status"})

	classifierRetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "dermadx",
		Subsystem: "classifier",
		Name:      "retries_total",
		Help:      "Classifier calls retried after a transient failure",
	}, []string{"model"})
)

func recordInference(model string, d time.Duration, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	classifierInferenceSeconds.WithLabelValues(model, status).Observe(d.Seconds())
}
