package grading

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		score  float64
		want   Level
		wantOk bool
	}{
		{name: "top", score: 100, want: Excellent, wantOk: true},
		{name: "excellent lower bound", score: 90, want: Excellent, wantOk: true},
		{name: "good upper bound", score: 89, want: Good, wantOk: true},
		{name: "fraction between bands", score: 89.5, want: Good, wantOk: true},
		{name: "average upper bound", score: 64, want: Average, wantOk: true},
		{name: "fairly good lower bound", score: 65, want: FairlyGood, wantOk: true},
		{name: "weak", score: 35, want: Weak, wantOk: true},
		{name: "poor upper bound", score: 34, want: Poor, wantOk: true},
		{name: "zero", score: 0, want: Poor, wantOk: true},
		{name: "above range clamps", score: 101, want: Excellent, wantOk: true},
		{name: "negative", score: -1, wantOk: false},
		{name: "nan", score: math.NaN(), wantOk: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Classify(tt.score)
			assert.Equal(t, tt.wantOk, ok)
			if tt.wantOk {
				assert.Equal(t, tt.want, got.Level)
			}
		})
	}
}

func TestClassifyEveryInteger(t *testing.T) {
	for s := 0; s <= 100; s++ {
		hits := 0
		for _, g := range Scale() {
			if float64(s) >= g.MinScore && float64(s) <= g.MaxScore {
				hits++
			}
		}
		assert.Equalf(t, 1, hits, "score %d", s)

		got, ok := Classify(float64(s))
		assert.True(t, ok)
		assert.True(t, float64(s) >= got.MinScore && float64(s) <= got.MaxScore, "score %d in %s", s, got.Level)
	}
}

func TestClassifyPtr(t *testing.T) {
	_, ok := ClassifyPtr(nil)
	assert.False(t, ok)

	v := 72.0
	assert.Equal(t, "Khá", Label(&v))
	assert.Equal(t, "", Label(nil))
}
