// Package validation combines independent pass/fail validation layers
// into one pipeline verdict.
//
// Layers are AND-combined: a single failing layer fails the whole
// validation phase. All layers always run and all are reported, so
// operators see the full diagnostic picture rather than the first
// failure.
package validation

import "math"

// Layer is one independent pass/fail check contributing to the verdict.
// Layers are never persisted beyond one validation run.
type Layer struct {
	Name   string `json:"name"`
	Passed bool   `json:"passed"`
	Detail string `json:"detail,omitempty"`
}

// Verdict values for a validation summary.
const (
	StatusSuccess = "success"
	StatusFailure = "failure"

	// StatusSkipped is the verdict for an empty layer set. An empty set
	// is deliberately not a vacuous pass: nothing was checked, and
	// reporting that honestly beats implying the change was validated.
	StatusSkipped = "skipped"
)

// Summary is the aggregate of one validation run.
type Summary struct {
	Passed      int     `json:"passed"`
	Failed      int     `json:"failed"`
	Total       int     `json:"total"`
	SuccessRate float64 `json:"success_rate"`
	Status      string  `json:"status"`
	Layers      []Layer `json:"layers"`
}

// Aggregate tallies layers into a summary.
//
// Aggregate is a pure function: the tallies are threaded through a local
// accumulator and returned, never held in shared state, so concurrent
// pipeline runs cannot interfere with each other. SuccessRate is rounded
// to two decimal digits; an empty layer set yields rate 0 and
// StatusSkipped, never a divide-by-zero.
func Aggregate(layers []Layer) Summary {
	summary := Summary{
		Total:  len(layers),
		Layers: layers,
	}

	if summary.Total == 0 {
		summary.Status = StatusSkipped
		return summary
	}

	for _, layer := range layers {
		if layer.Passed {
			summary.Passed++
		} else {
			summary.Failed++
		}
	}

	summary.SuccessRate = math.Round(float64(summary.Passed)/float64(summary.Total)*100) / 100

	if summary.Failed == 0 {
		summary.Status = StatusSuccess
	} else {
		summary.Status = StatusFailure
	}

	return summary
}
