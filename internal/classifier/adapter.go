package classifier

import (
	"fmt"
	"math"
	"sort"
)

// DefaultTopK is the number of candidates returned when none is configured.
const DefaultTopK = 5

// Prediction is one class of the classifier output with its probability.
type Prediction struct {
	Class       int
	Probability float64
}

// Adapter turns raw classifier output into ranked predictions.
type Adapter struct {
	numClasses int
	k          int
}

// NewAdapter builds an adapter for a model with numClasses outputs. A
// non-positive k falls back to DefaultTopK.
func NewAdapter(numClasses, k int) *Adapter {
	if k <= 0 {
		k = DefaultTopK
	}
	return &Adapter{numClasses: numClasses, k: k}
}

// NumClasses returns the expected vector length.
func (a *Adapter) NumClasses() int {
	return a.numClasses
}

// TopK returns the k most probable classes, highest first, ties broken by the
// lower class index. The vector must have exactly NumClasses finite,
// non-negative entries.
func (a *Adapter) TopK(probs []float32) ([]Prediction, error) {
	if len(probs) != a.numClasses {
		return nil, &InvalidVectorError{
			Reason: fmt.Sprintf("length %d, want %d", len(probs), a.numClasses),
		}
	}

	preds := make([]Prediction, len(probs))
	for i, p := range probs {
		v := float64(p)
		switch {
		case math.IsNaN(v):
			return nil, &InvalidVectorError{Reason: fmt.Sprintf("NaN at index %d", i)}
		case math.IsInf(v, 0):
			return nil, &InvalidVectorError{Reason: fmt.Sprintf("infinite value at index %d", i)}
		case v < 0:
			return nil, &InvalidVectorError{Reason: fmt.Sprintf("negative value %g at index %d", v, i)}
		}
		preds[i] = Prediction{Class: i, Probability: v}
	}

	sort.SliceStable(preds, func(i, j int) bool {
		return preds[i].Probability > preds[j].Probability
	})

	if len(preds) > a.k {
		preds = preds[:a.k]
	}
	return preds, nil
}
