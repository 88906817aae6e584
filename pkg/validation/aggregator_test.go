package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAggregate_AllPassing(t *testing.T) {
	summary := Aggregate([]Layer{
		{Name: "syntax", Passed: true},
		{Name: "tests", Passed: true},
		{Name: "governance", Passed: true},
		{Name: "security", Passed: true},
	})

	assert.Equal(t, 4, summary.Passed)
	assert.Equal(t, 0, summary.Failed)
	assert.Equal(t, 4, summary.Total)
	assert.Equal(t, 1.0, summary.SuccessRate)
	assert.Equal(t, StatusSuccess, summary.Status)
}

// A single failing layer fails the whole run; layers are AND-combined,
// not weighted.
func TestAggregate_SingleFailureFailsVerdict(t *testing.T) {
	summary := Aggregate([]Layer{
		{Name: "syntax", Passed: true},
		{Name: "tests", Passed: false, Detail: "2 tests failed"},
		{Name: "governance", Passed: true},
	})

	assert.Equal(t, StatusFailure, summary.Status)
	assert.Equal(t, 2, summary.Passed)
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 0.67, summary.SuccessRate)
}

func TestAggregate_SuccessRateRounding(t *testing.T) {
	tests := []struct {
		name   string
		layers []Layer
		want   float64
	}{
		{
			name: "one of three",
			layers: []Layer{
				{Passed: true}, {Passed: false}, {Passed: false},
			},
			want: 0.33,
		},
		{
			name: "five of six",
			layers: []Layer{
				{Passed: true}, {Passed: true}, {Passed: true},
				{Passed: true}, {Passed: true}, {Passed: false},
			},
			want: 0.83,
		},
		{
			name:   "half",
			layers: []Layer{{Passed: true}, {Passed: false}},
			want:   0.5,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Aggregate(tt.layers).SuccessRate)
		})
	}
}

// Empty layer set policy: nothing was checked, so the verdict is
// "skipped" rather than a vacuous pass, and the rate is 0 with no
// divide-by-zero fault.
func TestAggregate_EmptyLayerSetIsSkipped(t *testing.T) {
	summary := Aggregate(nil)

	assert.Equal(t, 0, summary.Total)
	assert.Equal(t, 0.0, summary.SuccessRate)
	assert.Equal(t, StatusSkipped, summary.Status)
}

// Order of layers must not change the verdict, and every layer must be
// reported regardless of outcome.
func TestAggregate_OrderInsensitiveAndFullyReported(t *testing.T) {
	forward := []Layer{
		{Name: "a", Passed: false, Detail: "broken"},
		{Name: "b", Passed: true},
	}
	reversed := []Layer{forward[1], forward[0]}

	first := Aggregate(forward)
	second := Aggregate(reversed)

	assert.Equal(t, first.Status, second.Status)
	assert.Equal(t, first.SuccessRate, second.SuccessRate)
	assert.Len(t, first.Layers, 2)
	assert.Len(t, second.Layers, 2)
}
