// Package advisor produces advisory scores for uploaded evidence. A
// suggestion is shown next to the approver's own scores and is never
// written into an evaluation.
package advisor

import (
	"context"
	"math"
	"time"

	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

type Status string

const (
	Acceptable Status = "ACCEPTABLE"
	Uncertain  Status = "UNCERTAIN"
	Reject     Status = "REJECT"
)

const (
	defaultConfidence = 30
	defaultMaxScore   = 10
)

type Request struct {
	EvaluationID    int64                 `json:"evaluation_id"`
	CriteriaID      int64                 `json:"criteria_id"`
	SubCriteriaID   string                `json:"sub_criteria_id,omitempty"`
	SubCriteria     []rubric.SubCriterion `json:"sub_criteria,omitempty"`
	EvidenceFileIDs []int64               `json:"evidence_file_ids"`
	MaxScore        float64               `json:"max_score"`
}

type Suggestion struct {
	ID             int64     `json:"id,omitempty" db:"id"`
	EvaluationID   int64     `json:"evaluation_id" db:"evaluation_id"`
	CriteriaID     int64     `json:"criteria_id" db:"criteria_id"`
	SubCriteriaID  string    `json:"sub_criteria_id,omitempty" db:"sub_criteria_id"`
	SuggestedScore int       `json:"suggested_score" db:"suggested_score"`
	MaxScore       float64   `json:"max_score" db:"max_score"`
	Confidence     int       `json:"confidence" db:"confidence"`
	Status         Status    `json:"status" db:"status"`
	Reason         string    `json:"reason" db:"reason"`
	ProcessingMs   int64     `json:"processing_time_ms" db:"processing_time_ms"`
	CreatedAt      time.Time `json:"created_at" db:"created_at"`
}

// Advisor is implemented by every scoring backend.
type Advisor interface {
	Suggest(ctx context.Context, req Request) (*Suggestion, error)
}

// Error is a failure the caller can show to the user and retry.
type Error struct {
	Reason string
	Err    error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return e.Reason
	}
	return e.Reason + ": " + e.Err.Error()
}

func (e *Error) Cause() error { return e.Err }

func fail(reason string, err error) error {
	return &Error{Reason: reason, Err: err}
}

// IsError reports whether err, or any error it wraps, is an *Error.
func IsError(err error) bool {
	for err != nil {
		if _, ok := err.(*Error); ok {
			return true
		}
		c, ok := err.(interface{ Cause() error })
		if !ok {
			return false
		}
		err = c.Cause()
	}
	return false
}

// Classify maps a score percentage and the derived score to a status.
func Classify(pct float64, suggested int) Status {
	switch {
	case pct >= 70:
		return Acceptable
	case pct <= 40 || suggested == 0:
		return Reject
	}
	return Uncertain
}

// FromPercent turns a model reply into a suggestion. Missing values default
// to a zero percentage and a confidence of 30.
func FromPercent(pct, confidence *float64, maxScore float64, reason string) Suggestion {
	p := 0.0
	if pct != nil {
		p = clamp(*pct)
	}
	c := float64(defaultConfidence)
	if confidence != nil {
		c = clamp(*confidence)
	}
	suggested := int(math.Round(p / 100 * maxScore))
	return Suggestion{
		SuggestedScore: suggested,
		MaxScore:       maxScore,
		Confidence:     int(math.Round(c)),
		Status:         Classify(p, suggested),
		Reason:         reason,
	}
}

func clamp(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return math.Max(0, math.Min(100, v))
}

// Validate checks a request before any file is loaded.
func (r Request) Validate() error {
	if len(r.EvidenceFileIDs) == 0 {
		return fail("Không có file minh chứng để phân tích", nil)
	}
	return nil
}

func (r Request) maxScore() float64 {
	if r.MaxScore <= 0 {
		return defaultMaxScore
	}
	return r.MaxScore
}
