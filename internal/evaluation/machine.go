package evaluation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
)

const entity = "evaluation"

// Authorizer decides what an actor may do; the machine only checks the shape
// of a move.
type Authorizer interface {
	CanSubmit(a auth.Actor, studentCode string) bool
	CanApprove(a auth.Actor, level Level, studentCode string) bool
}

// Machine applies transitions to an Evaluation. Every method validates
// first and mutates only when the whole move is valid.
type Machine struct {
	Chain Chain
	Auth  Authorizer
	Now   func() time.Time // mockable
}

func NewMachine(chain Chain, authz Authorizer) *Machine {
	return &Machine{Chain: chain, Auth: authz, Now: time.Now}
}

// ApproveInput carries the approver's scores per criterion id, keyed by
// sub-criterion id.
type ApproveInput struct {
	Comment string
	Scores  map[int64]map[string]float64
}

func (m *Machine) Submit(ev *Evaluation, actor auth.Actor, criteria []int64) (Event, error) {
	if ev.Status != Draft {
		return Event{}, apperr.Transition(entity, string(ev.Status), "submit", "only drafts can be submitted")
	}
	if !m.Auth.CanSubmit(actor, ev.StudentCode) {
		return Event{}, apperr.Forbidden("only the student can submit this evaluation")
	}
	if err := ValidateDetails(ev.Details, criteria, false); err != nil {
		return Event{}, err
	}

	now := m.Now()
	e := m.event(ev, actor, ActionSubmit, Submitted, "", "", now)
	ev.Status = Submitted
	ev.SubmittedAt = &now
	ev.UpdatedAt = now
	return e, nil
}

func (m *Machine) Approve(ev *Evaluation, actor auth.Actor, in ApproveInput) (Event, error) {
	level, ok := m.Chain.Pending(ev.Status)
	if !ok {
		return Event{}, apperr.Transition(entity, string(ev.Status), "approve", "no approval is pending")
	}
	next, _ := m.Chain.Next(ev.Status)
	if !m.Auth.CanApprove(actor, level, ev.StudentCode) {
		return Event{}, apperr.Forbidden(fmt.Sprintf("not allowed to approve at %s level", level))
	}

	var fields []apperr.FieldError
	for id := range in.Scores {
		if _, ok := ev.Detail(id); !ok {
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("scores.%d", id), Error: "criterion is not part of this evaluation"})
		}
	}
	if level == LevelClass {
		for _, d := range ev.Details {
			if _, ok := in.Scores[d.CriterionID]; !ok {
				fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("scores.%d", d.CriterionID), Error: "class approval needs a score for every criterion"})
			}
		}
	}
	if len(fields) > 0 {
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return Event{}, apperr.NewValidationError(errors.New("approval scores are incomplete"), fields...)
	}

	now := m.Now()
	e := m.event(ev, actor, ActionApprove, next, level, in.Comment, now)
	for id, scores := range in.Scores {
		d, _ := ev.Detail(id)
		if d.Scores == nil {
			d.Scores = make(map[Level]string)
		}
		d.Scores[level] = evidence.Blob{Scores: scores}.String()
	}
	ev.Approvals = append(ev.Approvals, Approval{
		Level:        level,
		ApproverID:   actor.ID,
		ApproverName: actor.Name,
		Comment:      in.Comment,
		At:           now,
	})
	ev.Status = next
	if next.Terminal() {
		ev.ApprovedAt = &now
	}
	ev.UpdatedAt = now
	return e, nil
}

func (m *Machine) Reject(ev *Evaluation, actor auth.Actor, reason string) (Event, error) {
	level, ok := m.Chain.Pending(ev.Status)
	if !ok {
		return Event{}, apperr.Transition(entity, string(ev.Status), "reject", "no approval is pending")
	}
	if !m.Auth.CanApprove(actor, level, ev.StudentCode) {
		return Event{}, apperr.Forbidden(fmt.Sprintf("not allowed to reject at %s level", level))
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return Event{}, apperr.Required("reason")
	}

	now := m.Now()
	e := m.event(ev, actor, ActionReject, Rejected, level, reason, now)
	ev.Status = Rejected
	ev.LastRejectionLevel = level
	ev.RejectionReason = reason
	ev.Approvals = nil
	for i := range ev.Details {
		ev.Details[i].Scores = nil
	}
	ev.UpdatedAt = now
	return e, nil
}

// Resubmit replaces the details of a rejected evaluation and sends it back
// to the start of the chain.
func (m *Machine) Resubmit(ev *Evaluation, actor auth.Actor, details []Detail, criteria []int64, comment string) (Event, error) {
	if ev.Status != Rejected {
		return Event{}, apperr.Transition(entity, string(ev.Status), "resubmit", "only rejected evaluations can be resubmitted")
	}
	if !m.Auth.CanSubmit(actor, ev.StudentCode) {
		return Event{}, apperr.Forbidden("only the student can resubmit this evaluation")
	}
	if err := ValidateDetails(details, criteria, false); err != nil {
		return Event{}, err
	}

	now := m.Now()
	e := m.event(ev, actor, ActionResubmit, Submitted, "", comment, now)
	ev.Details = append([]Detail(nil), details...)
	ev.Status = Submitted
	ev.ResubmissionCount++
	ev.RejectionReason = ""
	ev.SubmittedAt = &now
	ev.UpdatedAt = now
	return e, nil
}

// Reopen sends a faculty-approved evaluation back for review after an
// accepted appeal. Recorded level scores stay as seeds for the new round.
func (m *Machine) Reopen(ev *Evaluation, actor auth.Actor, reason string) (Event, error) {
	if ev.Status != FacultyApproved {
		return Event{}, apperr.Transition(entity, string(ev.Status), "reopen", "only faculty-approved evaluations can be reopened")
	}
	if !m.Auth.CanApprove(actor, LevelFaculty, ev.StudentCode) {
		return Event{}, apperr.Forbidden("not allowed to reopen this evaluation")
	}

	now := m.Now()
	e := m.event(ev, actor, ActionReopen, Submitted, LevelFaculty, reason, now)
	ev.Status = Submitted
	ev.Approvals = nil
	ev.UpdatedAt = now
	return e, nil
}

func (m *Machine) event(ev *Evaluation, actor auth.Actor, action Action, to Status, level Level, comment string, at time.Time) Event {
	return Event{
		EvaluationID: ev.ID,
		StudentCode:  ev.StudentCode,
		Semester:     ev.Semester,
		Action:       action,
		From:         ev.Status,
		To:           to,
		Level:        level,
		ActorID:      actor.ID,
		ActorName:    actor.Name,
		Comment:      comment,
		At:           at,
	}
}

// ValidateDetails checks details against the rubric criteria. Unknown or
// repeated criteria are always rejected; missing ones only when the details
// are not an incomplete draft.
func ValidateDetails(details []Detail, criteria []int64, asDraft bool) error {
	known := make(map[int64]bool, len(criteria))
	for _, id := range criteria {
		known[id] = true
	}

	var fields []apperr.FieldError
	seen := make(map[int64]bool, len(details))
	for _, d := range details {
		switch {
		case !known[d.CriterionID]:
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("details.%d", d.CriterionID), Error: "criterion is not part of the rubric"})
		case seen[d.CriterionID]:
			fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("details.%d", d.CriterionID), Error: "criterion appears more than once"})
		}
		seen[d.CriterionID] = true
	}
	if !asDraft {
		for _, id := range criteria {
			if !seen[id] {
				fields = append(fields, apperr.FieldError{Field: fmt.Sprintf("details.%d", id), Error: "criterion has no detail"})
			}
		}
	}
	if len(fields) > 0 {
		return apperr.NewValidationError(errors.New("evaluation details are invalid"), fields...)
	}
	return nil
}
