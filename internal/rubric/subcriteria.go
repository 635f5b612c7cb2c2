package rubric

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

// headerPrefix opens a description ("contains the following").
const headerPrefix = "Bao gồm:"

type SubCriterion struct {
	ID          string  `json:"id"`
	Label       string  `json:"name"`
	Description string  `json:"description"`
	MaxPoints   float64 `json:"max_points"`
	// Penalty is set when the source line carries a negative point value.
	Penalty bool `json:"penalty,omitempty"`
}

var (
	subLineFull    = regexp.MustCompile(`^(\d+\.\d+)\.\s*(.+?):\s*([-\d.]+)\s*điểm(?:\s*cơ\s*bản)?(?:\s*\((.+?)\))?`)
	subLineReduced = regexp.MustCompile(`^(\d+\.\d+)\.\s*(.+?):\s*([-\d.]+)\s*điểm`)
	leadingNumber  = regexp.MustCompile(`^[-+]?(\d+\.?\d*|\.\d+)`)
)

// ExtractSubCriteria parses a criterion description line by line. Lines that
// do not look like "<major>.<minor>. <label>: <points> điểm [cơ bản] [(<note>)]"
// are skipped; the result keeps source order and is not deduplicated.
func ExtractSubCriteria(description string) []SubCriterion {
	var out []SubCriterion
	for _, line := range strings.Split(description, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, headerPrefix) {
			continue
		}

		var id, label, points, note string
		if m := subLineFull.FindStringSubmatch(line); m != nil {
			id, label, points, note = m[1], m[2], m[3], m[4]
		} else if m := subLineReduced.FindStringSubmatch(line); m != nil {
			id, label, points = m[1], m[2], m[3]
		} else {
			continue
		}

		v, ok := parseLeadingFloat(points)
		if !ok {
			continue
		}
		out = append(out, SubCriterion{
			ID:          id,
			Label:       strings.TrimSpace(label),
			Description: strings.TrimSpace(note),
			MaxPoints:   math.Abs(v),
			Penalty:     v < 0,
		})
	}
	return out
}

// parseLeadingFloat reads the longest numeric prefix of s, so "3." and
// "1.5.2" still yield a value while "-" and "." do not.
func parseLeadingFloat(s string) (float64, bool) {
	num := leadingNumber.FindString(s)
	if num == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Bounds is the score interval a sub-criterion accepts.
func Bounds(sub SubCriterion) (lo, hi float64) {
	if sub.Penalty {
		return -sub.MaxPoints, sub.MaxPoints
	}
	return 0, sub.MaxPoints
}

// Total sums the scores recorded for subs; missing ids count as zero and ids
// outside subs are ignored.
func Total(subs []SubCriterion, scores map[string]float64) float64 {
	var total float64
	for _, sub := range subs {
		total += scores[sub.ID]
	}
	return total
}

// CapMismatch reports a criterion whose sub-criterion caps add up to more
// than the criterion cap. Rubric text is human authored and such rubrics are
// accepted as is.
type CapMismatch struct {
	CriterionID int64   `json:"criterion_id"`
	MaxPoints   float64 `json:"max_points"`
	SubTotal    float64 `json:"sub_total"`
}

func CheckCaps(c Criterion, subs []SubCriterion) *CapMismatch {
	var sum float64
	for _, sub := range subs {
		sum += sub.MaxPoints
	}
	if sum <= c.MaxPoints {
		return nil
	}
	return &CapMismatch{CriterionID: c.ID, MaxPoints: c.MaxPoints, SubTotal: sum}
}
