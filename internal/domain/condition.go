package domain

import "strings"

// FallbackOverview is reported for class labels the store has no row for.
const FallbackOverview = "No details in DB"

// ClassLabels maps classifier output index to the canonical English condition name.
// The order is fixed by the trained model (DermaMNIST) and must not change
// without retraining.
var ClassLabels = []string{
	"Actinic keratoses and intraepithelial carcinoma / Bowen's disease",
	"basal cell carcinoma",
	"benign keratosis-like lesions",
	"dermatofibroma",
	"melanoma",
	"melanocytic nevi",
	"vascular lesions",
}

// Condition is a skin condition the classifier can predict.
type Condition struct {
	ID       string `json:"id" validate:"required"`
	Name     string `json:"name"`
	NameEN   string `json:"name_en" validate:"required"`
	Overview string `json:"overview"`
}

// FallbackCondition builds the placeholder used when the store has no record
// for a class label.
func FallbackCondition(label string) Condition {
	return Condition{
		Name:     label,
		NameEN:   label,
		Overview: FallbackOverview,
	}
}

// NameKey is the lookup key used for matching conditions by English name.
func NameKey(nameEN string) string {
	return strings.ToLower(strings.TrimSpace(nameEN))
}

// Symptom is a symptom record as listed by the store.
type Symptom struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	NameEN     string `json:"name_en"`
	CategoryID string `json:"category_id,omitempty"`
}
