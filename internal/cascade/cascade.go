// Package cascade seeds an approver's working scores from the scores recorded
// at the previous level. Seeds are starting points; nothing here commits a
// score.
package cascade

import (
	"fmt"
	"math"

	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
)

// SubScore is one sub-criterion score of a single criterion.
type SubScore struct {
	ID    string
	Score float64
}

// Key is the working-score key of a sub-criterion: "<criterionId>_<subId>".
func Key(criterionID int64, subID string) string {
	return fmt.Sprintf("%d_%s", criterionID, subID)
}

// AdvisorScore averages the self and class monitor scores. A fractional
// average rounds toward the monitor score. Nil counts as zero.
func AdvisorScore(self, monitor *float64) float64 {
	var s, m float64
	if self != nil {
		s = *self
	}
	if monitor != nil {
		m = *monitor
	}

	avg := (s + m) / 2
	intPart := math.Floor(avg)
	if avg == intPart {
		return intPart
	}
	switch {
	case m > s:
		return math.Ceil(avg)
	case m < s:
		return math.Floor(avg)
	}
	return intPart
}

// SeedMonitorScores copies the student's self scores unchanged.
func SeedMonitorScores(criterionID int64, subs []SubScore) map[string]float64 {
	out := make(map[string]float64, len(subs))
	for _, sub := range subs {
		out[Key(criterionID, sub.ID)] = sub.Score
	}
	return out
}

// SeedAdvisorScores copies the class monitor scores for the sub-criteria in
// subs; a sub-criterion the monitor did not score starts at zero.
func SeedAdvisorScores(criterionID int64, subs []SubScore, monitor map[string]float64) map[string]float64 {
	return SeedFrom(criterionID, subs, monitor)
}

// SeedFrom carries prior-level scores forward for exactly the sub-criteria in
// subs.
func SeedFrom(criterionID int64, subs []SubScore, prior map[string]float64) map[string]float64 {
	out := make(map[string]float64, len(subs))
	for _, sub := range subs {
		k := Key(criterionID, sub.ID)
		out[k] = prior[k]
	}
	return out
}

// FromBlob lists the sub-criteria of a decoded field with their scores,
// unscored entries counting as zero.
func FromBlob(b evidence.Blob) []SubScore {
	entries := b.Entries()
	out := make([]SubScore, 0, len(entries))
	for _, e := range entries {
		var v float64
		if e.Score != nil {
			v = *e.Score
		}
		out = append(out, SubScore{ID: e.SubCriteriaID, Score: v})
	}
	return out
}

// Keyed turns a decoded field into working-score keys.
func Keyed(criterionID int64, b evidence.Blob) map[string]float64 {
	return SeedMonitorScores(criterionID, FromBlob(b))
}

// Unkey picks the scores of one criterion out of a working-score map and
// returns them by sub-criterion id.
func Unkey(criterionID int64, scores map[string]float64) map[string]float64 {
	prefix := fmt.Sprintf("%d_", criterionID)
	out := make(map[string]float64)
	for k, v := range scores {
		if len(k) > len(prefix) && k[:len(prefix)] == prefix {
			out[k[len(prefix):]] = v
		}
	}
	return out
}

// Message is the hint shown next to seeded scores.
func Message(fromSelf bool) string {
	if fromSelf {
		return "Điểm đã được tự động điền từ điểm tự chấm của sinh viên. Bạn có thể chỉnh sửa nếu cần."
	}
	return "Điểm đã được tự động điền từ điểm lớp trưởng. Bạn có thể chỉnh sửa nếu cần."
}
