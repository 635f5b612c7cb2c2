// Package appeal lets a student contest a faculty-approved evaluation and a
// reviewer decide on it. An accepted appeal reopens the evaluation.
package appeal

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
)

const entity = "appeal"

type Status string

const (
	Pending   Status = "PENDING"
	Reviewing Status = "REVIEWING"
	Accepted  Status = "ACCEPTED"
	Rejected  Status = "REJECTED"
)

func (s Status) Open() bool {
	return s == Pending || s == Reviewing
}

type Decision string

const (
	Accept Decision = "ACCEPT"
	Reject Decision = "REJECT"
)

type Appeal struct {
	ID            int64      `json:"id" db:"id"`
	EvaluationID  int64      `json:"evaluation_id" db:"evaluation_id"`
	StudentCode   string     `json:"student_code" db:"student_code"`
	Semester      string     `json:"semester" db:"semester"`
	CriteriaIDs   []int64    `json:"criteria_ids" db:"-"` // empty means the whole evaluation
	FileIDs       []int64    `json:"file_ids" db:"-"`
	Reason        string     `json:"reason" db:"reason"`
	Status        Status     `json:"status" db:"status"`
	ReviewerID    *int64     `json:"reviewer_id,omitempty" db:"reviewer_id"`
	ReviewerName  string     `json:"reviewer_name,omitempty" db:"reviewer_name"`
	ReviewComment string     `json:"review_comment,omitempty" db:"review_comment"`
	ReviewedAt    *time.Time `json:"reviewed_at,omitempty" db:"reviewed_at"`
	CreatedAt     time.Time  `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at" db:"updated_at"`
}

// Request is what the appellant submits.
type Request struct {
	EvaluationID int64
	CriteriaIDs  []int64
	FileIDs      []int64
	Reason       string
}

type Action string

const (
	ActionOpen   Action = "OPENED"
	ActionReview Action = "REVIEWING"
	ActionAccept Action = "ACCEPTED"
	ActionReject Action = "REJECTED"
)

// Event describes an applied appeal transition.
type Event struct {
	AppealID     int64     `json:"appeal_id"`
	EvaluationID int64     `json:"evaluation_id"`
	StudentCode  string    `json:"student_code"`
	Action       Action    `json:"action"`
	ActorID      int64     `json:"actor_id"`
	ActorName    string    `json:"actor_name"`
	Comment      string    `json:"comment,omitempty"`
	At           time.Time `json:"at"`
}

type Authorizer interface {
	CanAppeal(a auth.Actor, studentCode string) bool
	CanReview(a auth.Actor) bool
}

type Machine struct {
	Auth Authorizer
	Now  func() time.Time // mockable
}

func NewMachine(authz Authorizer) *Machine {
	return &Machine{Auth: authz, Now: time.Now}
}

// Eligible reports whether the evaluation can be appealed by actor now. A
// nil deadline never expires.
func (m *Machine) Eligible(ev *evaluation.Evaluation, actor auth.Actor, deadline *time.Time) bool {
	return m.check(ev, actor, deadline) == nil
}

func (m *Machine) check(ev *evaluation.Evaluation, actor auth.Actor, deadline *time.Time) error {
	if ev.Status != evaluation.FacultyApproved {
		return apperr.Transition(entity, string(ev.Status), "open", "only faculty-approved evaluations can be appealed")
	}
	if !m.Auth.CanAppeal(actor, ev.StudentCode) {
		return apperr.Forbidden("only the student can appeal this evaluation")
	}
	if deadline != nil && m.Now().After(*deadline) {
		return apperr.Transition(entity, string(ev.Status), "open", fmt.Sprintf("appeal deadline %s has passed", deadline.Format("2006-01-02")))
	}
	return nil
}

// Open creates a pending appeal against ev.
func (m *Machine) Open(ev *evaluation.Evaluation, actor auth.Actor, req Request, deadline *time.Time) (*Appeal, Event, error) {
	if err := m.check(ev, actor, deadline); err != nil {
		return nil, Event{}, err
	}
	reason := strings.TrimSpace(req.Reason)
	if reason == "" {
		return nil, Event{}, apperr.Required("reason")
	}

	criteria := unique(req.CriteriaIDs)
	var fields []apperr.FieldError
	for _, id := range criteria {
		if _, ok := ev.Detail(id); !ok {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("criteria_ids.%d", id), Error: "criterion is not part of this evaluation"})
		}
	}
	if len(fields) > 0 {
		return nil, Event{}, apperr.NewValidationError(errors.New("appeal criteria are invalid"), fields...)
	}

	now := m.Now()
	a := &Appeal{
		EvaluationID: ev.ID,
		StudentCode:  ev.StudentCode,
		Semester:     ev.Semester,
		CriteriaIDs:  criteria,
		FileIDs:      unique(req.FileIDs),
		Reason:       reason,
		Status:       Pending,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	return a, m.event(a, actor, ActionOpen, ""), nil
}

// StartReview claims a pending appeal for the reviewer.
func (m *Machine) StartReview(a *Appeal, actor auth.Actor) (Event, error) {
	if a.Status != Pending {
		return Event{}, apperr.Transition(entity, string(a.Status), "start review", "only pending appeals can be picked up")
	}
	if !m.Auth.CanReview(actor) {
		return Event{}, apperr.Forbidden("not allowed to review appeals")
	}
	now := m.Now()
	a.Status = Reviewing
	a.ReviewerID = &actor.ID
	a.ReviewerName = actor.Name
	a.UpdatedAt = now
	return m.event(a, actor, ActionReview, ""), nil
}

// Decide closes an open appeal. The returned reopen flag tells the caller to
// send the evaluation back for review.
func (m *Machine) Decide(a *Appeal, actor auth.Actor, d Decision, comment string) (e Event, reopen bool, err error) {
	if !a.Status.Open() {
		return Event{}, false, apperr.Transition(entity, string(a.Status), "decide", "appeal is already closed")
	}
	if !m.Auth.CanReview(actor) {
		return Event{}, false, apperr.Forbidden("not allowed to review appeals")
	}
	var to Status
	var action Action
	switch d {
	case Accept:
		to, action = Accepted, ActionAccept
	case Reject:
		to, action = Rejected, ActionReject
	default:
		return Event{}, false, apperr.NewValidationError(errors.Errorf("unknown decision %q", d), apperr.FieldError{Field: "decision", Error: "must be ACCEPT or REJECT"})
	}
	comment = strings.TrimSpace(comment)
	if comment == "" {
		return Event{}, false, apperr.Required("comment")
	}

	now := m.Now()
	a.Status = to
	a.ReviewerID = &actor.ID
	a.ReviewerName = actor.Name
	a.ReviewComment = comment
	a.ReviewedAt = &now
	a.UpdatedAt = now
	return m.event(a, actor, action, comment), to == Accepted, nil
}

func (m *Machine) event(a *Appeal, actor auth.Actor, action Action, comment string) Event {
	return Event{
		AppealID:     a.ID,
		EvaluationID: a.EvaluationID,
		StudentCode:  a.StudentCode,
		Action:       action,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		Comment:      comment,
		At:           m.Now(),
	}
}

func unique(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]bool, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
