// Package grading maps a training-point total to its grade band.
package grading

import "math"

type Level string

const (
	Excellent  Level = "EXCELLENT"
	Good       Level = "GOOD"
	FairlyGood Level = "FAIRLY_GOOD"
	Average    Level = "AVERAGE"
	Weak       Level = "WEAK"
	Poor       Level = "POOR"
)

// Grade is one band of the scale. MaxScore is the nominal integer top of
// the band and is only used for display.
type Grade struct {
	Level    Level   `json:"level"`
	Label    string  `json:"label"`
	MinScore float64 `json:"min_score"`
	MaxScore float64 `json:"max_score"`
}

// highest first
var scale = []Grade{
	{Excellent, "Xuất sắc", 90, 100},
	{Good, "Giỏi", 80, 89},
	{FairlyGood, "Khá", 65, 79},
	{Average, "Trung bình", 50, 64},
	{Weak, "Yếu", 35, 49},
	{Poor, "Kém", 0, 34},
}

// Scale returns a copy of the band table, highest band first.
func Scale() []Grade {
	out := make([]Grade, len(scale))
	copy(out, scale)
	return out
}

// Classify returns the band containing score. Negative and NaN scores have no
// grade; anything above 100 is clamped into the top band.
func Classify(score float64) (Grade, bool) {
	if math.IsNaN(score) || score < 0 {
		return Grade{}, false
	}
	for _, g := range scale {
		if score >= g.MinScore {
			return g, true
		}
	}
	return Grade{}, false
}

func ClassifyPtr(score *float64) (Grade, bool) {
	if score == nil {
		return Grade{}, false
	}
	return Classify(*score)
}

// Label is a convenience for reports: the band label or "" when ungraded.
func Label(score *float64) string {
	g, ok := ClassifyPtr(score)
	if !ok {
		return ""
	}
	return g.Label
}
