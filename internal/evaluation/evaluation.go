// Package evaluation holds the training-point evaluation record and the
// state machine that walks it through the approver chain.
package evaluation

import (
	"time"

	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
)

type Evaluation struct {
	ID                 int64      `json:"id"`
	StudentCode        string     `json:"student_code"`
	RubricID           int64      `json:"rubric_id"`
	Semester           string     `json:"semester"`
	AcademicYear       string     `json:"academic_year,omitempty"`
	Status             Status     `json:"status"`
	Details            []Detail   `json:"details"`
	Approvals          []Approval `json:"approvals,omitempty"`
	ResubmissionCount  int        `json:"resubmission_count"`
	LastRejectionLevel Level      `json:"last_rejection_level,omitempty"`
	RejectionReason    string     `json:"rejection_reason,omitempty"`
	CreatedBy          int64      `json:"created_by"`
	SubmittedAt        *time.Time `json:"submitted_at,omitempty"`
	ApprovedAt         *time.Time `json:"approved_at,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// Detail is the record of one criterion. Evidence carries the student's own
// scores and files in the codec format; Scores holds the scores recorded by
// each approval level in the same format.
type Detail struct {
	CriterionID int64            `json:"criterion_id"`
	Evidence    string           `json:"evidence"`
	Note        string           `json:"note,omitempty"`
	Scores      map[Level]string `json:"scores,omitempty"`
}

// Approval marks a level passed in the current review round.
type Approval struct {
	Level        Level     `json:"level"`
	ApproverID   int64     `json:"approver_id"`
	ApproverName string    `json:"approver_name"`
	Comment      string    `json:"comment,omitempty"`
	At           time.Time `json:"at"`
}

// Event describes one applied transition.
type Event struct {
	EvaluationID int64     `json:"evaluation_id"`
	StudentCode  string    `json:"student_code"`
	Semester     string    `json:"semester"`
	Action       Action    `json:"action"`
	From         Status    `json:"from"`
	To           Status    `json:"to"`
	Level        Level     `json:"level,omitempty"`
	ActorID      int64     `json:"actor_id"`
	ActorName    string    `json:"actor_name"`
	Comment      string    `json:"comment,omitempty"`
	At           time.Time `json:"at"`
}

func (ev *Evaluation) Detail(criterionID int64) (*Detail, bool) {
	for i := range ev.Details {
		if ev.Details[i].CriterionID == criterionID {
			return &ev.Details[i], true
		}
	}
	return nil, false
}

func (d Detail) Self() evidence.Blob {
	return evidence.Parse(d.Evidence)
}

// At returns the scores level l recorded, if any.
func (d Detail) At(l Level) (evidence.Blob, bool) {
	s, ok := d.Scores[l]
	if !ok || s == "" {
		return evidence.Blob{}, false
	}
	return evidence.Parse(s), true
}

// Prior returns the most recent scores recorded before level l, falling back
// to the student's self scores. fromSelf reports the fallback.
func (d Detail) Prior(l Level) (b evidence.Blob, fromSelf bool) {
	for i := levelIndex(l) - 1; i >= 0; i-- {
		if b, ok := d.At(Levels[i]); ok {
			return b, false
		}
	}
	return d.Self(), true
}

// Effective is the latest recorded view of the criterion.
func (d Detail) Effective() evidence.Blob {
	b, _ := d.Prior(Level(""))
	return b
}

// Total sums the effective scores of every criterion.
func (ev *Evaluation) Total() float64 {
	var total float64
	for _, d := range ev.Details {
		for _, v := range d.Effective().Scores {
			total += v
		}
	}
	return total
}

func (ev *Evaluation) clone() *Evaluation {
	cp := *ev
	cp.Details = make([]Detail, len(ev.Details))
	for i, d := range ev.Details {
		cp.Details[i] = d
		if d.Scores != nil {
			cp.Details[i].Scores = make(map[Level]string, len(d.Scores))
			for k, v := range d.Scores {
				cp.Details[i].Scores[k] = v
			}
		}
	}
	cp.Approvals = append([]Approval(nil), ev.Approvals...)
	return &cp
}
