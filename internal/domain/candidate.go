package domain

// Candidate is a condition under consideration together with its confidence.
type Candidate struct {
	Disease    Condition `json:"disease"`
	Confidence float64   `json:"confidence" binding:"gte=0,lte=1"`

	// MatchedSymptoms lists the canonical symptoms that boosted this
	// candidate during refinement.
	MatchedSymptoms []string `json:"matched_symptoms,omitempty"`
}

// SumConfidence adds up the confidences of the given candidates.
func SumConfidence(candidates []Candidate) float64 {
	total := 0.0
	for _, c := range candidates {
		total += c.Confidence
	}
	return total
}
