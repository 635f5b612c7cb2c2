package evaluation

import (
	"context"
	"fmt"
	"sort"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/cascade"
	"github.com/Haole1945/drl-platform-sub001/internal/draft"
	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

type Repository interface {
	Get(ctx context.Context, id int64) (*Evaluation, error)
	// Create stores a new evaluation, assigns its id and records events.
	Create(ctx context.Context, ev *Evaluation, events ...Event) error
	// Save stores the evaluation state and appends events to its history
	// in one transaction.
	Save(ctx context.Context, ev *Evaluation, events ...Event) error
	History(ctx context.Context, id int64) ([]Event, error)
	ListBySemester(ctx context.Context, semester string) ([]Evaluation, error)
	// ListByStatus returns evaluations in any of statuses, oldest submission
	// first.
	ListByStatus(ctx context.Context, statuses ...Status) ([]Evaluation, error)
	// ListByStudent returns a student's evaluations, newest first. An empty
	// semester matches every semester.
	ListByStudent(ctx context.Context, studentCode, semester string) ([]Evaluation, error)
	Delete(ctx context.Context, id int64) error
}

type Rubrics interface {
	Rubric(ctx context.Context, id int64) (*rubric.Rubric, error)
}

// Notifier receives applied transitions. Delivery is best effort.
type Notifier interface {
	Notify(ctx context.Context, e Event) error
}

// Policy extends Authorizer with read access.
type Policy interface {
	Authorizer
	CanView(a auth.Actor, studentCode string) bool
}

type Deps struct {
	Repo     Repository
	Rubrics  Rubrics
	Machine  *Machine
	Drafts   *draft.Cache
	Notifier Notifier
	Policy   Policy
	Log      logging.Logger
}

type Service struct {
	repo     Repository
	rubrics  Rubrics
	machine  *Machine
	drafts   *draft.Cache
	notifier Notifier
	policy   Policy
	log      logging.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		repo:     d.Repo,
		rubrics:  d.Rubrics,
		machine:  d.Machine,
		drafts:   d.Drafts,
		notifier: d.Notifier,
		policy:   d.Policy,
		log:      d.Log,
	}
}

type CreateInput struct {
	StudentCode  string
	RubricID     int64
	Semester     string
	AcademicYear string
	Details      []Detail
	AsDraft      bool
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, in CreateInput) (*Evaluation, error) {
	if in.StudentCode == "" {
		in.StudentCode = actor.StudentCode
	}
	if !s.policy.CanSubmit(actor, in.StudentCode) {
		return nil, apperr.Forbidden("not allowed to create an evaluation for this student")
	}
	r, err := s.rubrics.Rubric(ctx, in.RubricID)
	if err != nil {
		return nil, err
	}
	if err := ValidateDetails(in.Details, r.IDs(), true); err != nil {
		return nil, err
	}
	if err := checkScores(r, "details", selfScores(in.Details)); err != nil {
		return nil, err
	}

	now := s.machine.Now()
	ev := &Evaluation{
		StudentCode:  in.StudentCode,
		RubricID:     in.RubricID,
		Semester:     in.Semester,
		AcademicYear: in.AcademicYear,
		Status:       Draft,
		Details:      in.Details,
		CreatedBy:    actor.ID,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	var events []Event
	if !in.AsDraft {
		e, err := s.machine.Submit(ev, actor, r.IDs())
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := s.repo.Create(ctx, ev, events...); err != nil {
		return nil, errors.Wrap(err, "creating evaluation")
	}
	for _, e := range events {
		e.EvaluationID = ev.ID
		s.notify(ctx, e)
	}
	return ev, nil
}

func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*Evaluation, error) {
	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.policy.CanView(actor, ev.StudentCode) {
		return nil, apperr.Forbidden("not allowed to view this evaluation")
	}
	return ev, nil
}

// Update replaces the details of a draft. With asDraft false the draft is
// submitted in the same call.
func (s *Service) Update(ctx context.Context, actor auth.Actor, id int64, details []Detail, asDraft bool) (*Evaluation, error) {
	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if ev.Status != Draft {
		return nil, apperr.Transition(entity, string(ev.Status), "edit", "only drafts can be edited")
	}
	if !s.policy.CanSubmit(actor, ev.StudentCode) {
		return nil, apperr.Forbidden("only the student can edit this evaluation")
	}
	r, err := s.rubrics.Rubric(ctx, ev.RubricID)
	if err != nil {
		return nil, err
	}
	if err := ValidateDetails(details, r.IDs(), true); err != nil {
		return nil, err
	}
	if err := checkScores(r, "details", selfScores(details)); err != nil {
		return nil, err
	}

	ev.Details = details
	ev.UpdatedAt = s.machine.Now()
	var events []Event
	if !asDraft {
		e, err := s.machine.Submit(ev, actor, r.IDs())
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	if err := s.repo.Save(ctx, ev, events...); err != nil {
		return nil, errors.Wrapf(err, "saving evaluation %d", id)
	}
	for _, e := range events {
		s.notify(ctx, e)
	}
	return ev, nil
}

func (s *Service) Submit(ctx context.Context, actor auth.Actor, id int64) (*Evaluation, error) {
	return s.apply(ctx, id, func(ev *Evaluation, r *rubric.Rubric) (Event, error) {
		return s.machine.Submit(ev, actor, r.IDs())
	})
}

func (s *Service) Approve(ctx context.Context, actor auth.Actor, id int64, in ApproveInput) (*Evaluation, error) {
	var level Level
	ev, err := s.apply(ctx, id, func(ev *Evaluation, r *rubric.Rubric) (Event, error) {
		if err := checkScores(r, "scores", in.Scores); err != nil {
			return Event{}, err
		}
		e, err := s.machine.Approve(ev, actor, in)
		level = e.Level
		return e, err
	})
	if err != nil {
		return nil, err
	}
	if role, ok := draftRole(level); ok {
		if err := s.drafts.Clear(ctx, id, role); err != nil {
			s.log.Warn("draft not cleared after approval", err, actor)
		}
	}
	return ev, nil
}

func (s *Service) Reject(ctx context.Context, actor auth.Actor, id int64, reason string) (*Evaluation, error) {
	ev, err := s.apply(ctx, id, func(ev *Evaluation, _ *rubric.Rubric) (Event, error) {
		return s.machine.Reject(ev, actor, reason)
	})
	if err != nil {
		return nil, err
	}
	if err := s.drafts.ClearEvaluation(ctx, id); err != nil {
		s.log.Warn("drafts not cleared after rejection", err, actor)
	}
	return ev, nil
}

func (s *Service) Resubmit(ctx context.Context, actor auth.Actor, id int64, details []Detail, comment string) (*Evaluation, error) {
	return s.apply(ctx, id, func(ev *Evaluation, r *rubric.Rubric) (Event, error) {
		if err := checkScores(r, "details", selfScores(details)); err != nil {
			return Event{}, err
		}
		return s.machine.Resubmit(ev, actor, details, r.IDs(), comment)
	})
}

// Reopen is fired when an appeal against the evaluation is accepted.
func (s *Service) Reopen(ctx context.Context, actor auth.Actor, id int64, reason string) (*Evaluation, error) {
	return s.apply(ctx, id, func(ev *Evaluation, _ *rubric.Rubric) (Event, error) {
		return s.machine.Reopen(ev, actor, reason)
	})
}

func (s *Service) History(ctx context.Context, actor auth.Actor, id int64) ([]Event, error) {
	if _, err := s.Get(ctx, actor, id); err != nil {
		return nil, err
	}
	return s.repo.History(ctx, id)
}

// Delete removes a draft the actor owns together with its staged scores.
func (s *Service) Delete(ctx context.Context, actor auth.Actor, id int64) error {
	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return err
	}
	if !s.policy.CanSubmit(actor, ev.StudentCode) {
		return apperr.Forbidden("only the student can delete this evaluation")
	}
	if ev.Status != Draft {
		return apperr.Transition(entity, string(ev.Status), "delete", "only drafts can be deleted")
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return errors.Wrapf(err, "deleting evaluation %d", id)
	}
	if err := s.drafts.ClearEvaluation(ctx, id); err != nil {
		s.log.Warn("drafts not cleared after deletion", err, actor)
	}
	s.log.Info("evaluation deleted", map[string]interface{}{"evaluation_id": id}, actor)
	return nil
}

// Pending is the work queue of an approver: evaluations waiting at level,
// or at every level the actor approves when level is empty. Evaluations the
// actor may not approve, such as their own, are left out.
func (s *Service) Pending(ctx context.Context, actor auth.Actor, level Level) ([]Evaluation, error) {
	levels := Levels
	if level != "" {
		if levelIndex(level) == len(Levels) {
			return nil, apperr.NewValidationError(errors.Errorf("unknown level %q", level),
				apperr.FieldError{Field: "level", Error: "must be one of CLASS, ADVISOR, FACULTY, CTSV"})
		}
		levels = []Level{level}
	}

	byStatus := make(map[Status]Level)
	var statuses []Status
	for _, l := range levels {
		st, ok := s.machine.Chain.Awaiting(l)
		if !ok || !s.policy.CanApprove(actor, l, "") {
			continue
		}
		byStatus[st] = l
		statuses = append(statuses, st)
	}
	if len(statuses) == 0 {
		if level != "" {
			return nil, apperr.Forbidden(fmt.Sprintf("not allowed to approve at %s level", level))
		}
		return []Evaluation{}, nil
	}

	evs, err := s.repo.ListByStatus(ctx, statuses...)
	if err != nil {
		return nil, errors.Wrap(err, "listing pending evaluations")
	}
	out := make([]Evaluation, 0, len(evs))
	for _, ev := range evs {
		if s.policy.CanApprove(actor, byStatus[ev.Status], ev.StudentCode) {
			out = append(out, ev)
		}
	}
	return out, nil
}

// ByStudent lists a student's evaluations, optionally for one semester.
func (s *Service) ByStudent(ctx context.Context, actor auth.Actor, studentCode, semester string) ([]Evaluation, error) {
	if !s.policy.CanView(actor, studentCode) {
		return nil, apperr.Forbidden("not allowed to view evaluations of this student")
	}
	evs, err := s.repo.ListByStudent(ctx, studentCode, semester)
	if err != nil {
		return nil, errors.Wrapf(err, "listing evaluations of %s", studentCode)
	}
	if evs == nil {
		evs = []Evaluation{}
	}
	return evs, nil
}

// apply loads the evaluation, runs one transition on it and persists the
// result. Nothing is written when the transition fails.
func (s *Service) apply(ctx context.Context, id int64, fn func(ev *Evaluation, r *rubric.Rubric) (Event, error)) (*Evaluation, error) {
	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	r, err := s.rubrics.Rubric(ctx, ev.RubricID)
	if err != nil {
		return nil, err
	}
	e, err := fn(ev, r)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Save(ctx, ev, e); err != nil {
		return nil, errors.Wrapf(err, "saving evaluation %d", id)
	}
	s.notify(ctx, e)
	return ev, nil
}

func (s *Service) notify(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, e); err != nil {
		s.log.Error("notification not queued", err, map[string]interface{}{"evaluation_id": e.EvaluationID, "action": e.Action})
	}
}

// WorkingScores is an approver's starting point for a level, keyed
// "<criterionId>_<subId>".
type WorkingScores struct {
	Level   Level              `json:"level"`
	Source  string             `json:"source"` // "draft" or "seed"
	Scores  map[string]float64 `json:"scores"`
	Message string             `json:"message,omitempty"`
	// Averaged is the self/monitor average offered at advisor level.
	Averaged map[string]float64 `json:"averaged,omitempty"`
}

func (s *Service) WorkingScores(ctx context.Context, actor auth.Actor, id int64, role string) (*WorkingScores, error) {
	ev, level, err := s.draftTarget(ctx, actor, id, role)
	if err != nil {
		return nil, err
	}

	scores, ok, err := s.drafts.Load(ctx, id, role)
	if err != nil {
		s.log.Warn("draft unavailable, seeding instead", err, actor)
	}
	if ok {
		return &WorkingScores{Level: level, Source: "draft", Scores: scores}, nil
	}

	r, err := s.rubrics.Rubric(ctx, ev.RubricID)
	if err != nil {
		return nil, err
	}

	out := &WorkingScores{Level: level, Source: "seed", Scores: make(map[string]float64)}
	fromSelfAll := true
	for _, d := range ev.Details {
		self := d.Self()
		prior, fromSelf := d.Prior(level)
		fromSelfAll = fromSelfAll && fromSelf
		ids := seedIDs(r, d.CriterionID, self, prior)

		var seeded map[string]float64
		if fromSelf {
			seeded = cascade.SeedMonitorScores(d.CriterionID, scored(ids, prior))
		} else {
			seeded = cascade.SeedAdvisorScores(d.CriterionID, scored(ids, self), cascade.Keyed(d.CriterionID, prior))
		}
		for k, v := range seeded {
			out.Scores[k] = v
		}

		if level == LevelAdvisor {
			if monitor, ok := d.At(LevelClass); ok {
				if out.Averaged == nil {
					out.Averaged = make(map[string]float64)
				}
				for _, id := range ids {
					sv, sok := self.Score(id)
					mv, mok := monitor.Score(id)
					out.Averaged[cascade.Key(d.CriterionID, id)] = cascade.AdvisorScore(ptr(sv, sok), ptr(mv, mok))
				}
			}
		}
	}
	out.Message = cascade.Message(fromSelfAll)
	return out, nil
}

// seedIDs lists the sub-criteria a criterion is scored on: the ones parsed
// from the rubric, or the ids recorded in the blobs when the description
// yields none.
func seedIDs(r *rubric.Rubric, criterionID int64, blobs ...evidence.Blob) []string {
	if c, ok := r.CriterionByID(criterionID); ok {
		if subs := c.SubCriteria(); len(subs) > 0 {
			ids := make([]string, len(subs))
			for i, sub := range subs {
				ids[i] = sub.ID
			}
			return ids
		}
	}
	seen := make(map[string]bool)
	var ids []string
	for _, b := range blobs {
		for _, e := range b.Entries() {
			if !seen[e.SubCriteriaID] {
				seen[e.SubCriteriaID] = true
				ids = append(ids, e.SubCriteriaID)
			}
		}
	}
	sort.Slice(ids, func(i, j int) bool { return evidence.LessID(ids[i], ids[j]) })
	return ids
}

// scored pairs ids with their scores in b; unscored ids count as zero.
func scored(ids []string, b evidence.Blob) []cascade.SubScore {
	out := make([]cascade.SubScore, len(ids))
	for i, id := range ids {
		v, _ := b.Score(id)
		out[i] = cascade.SubScore{ID: id, Score: v}
	}
	return out
}

func (s *Service) SaveDraft(ctx context.Context, actor auth.Actor, id int64, role string, scores map[string]float64) error {
	if _, _, err := s.draftTarget(ctx, actor, id, role); err != nil {
		return err
	}
	return s.drafts.Save(ctx, id, role, scores)
}

func (s *Service) ClearDraft(ctx context.Context, actor auth.Actor, id int64, role string) error {
	if _, _, err := s.draftTarget(ctx, actor, id, role); err != nil {
		return err
	}
	return s.drafts.Clear(ctx, id, role)
}

// draftTarget loads the evaluation and checks that role's level is the one
// pending and that the actor may act on it.
func (s *Service) draftTarget(ctx context.Context, actor auth.Actor, id int64, role string) (*Evaluation, Level, error) {
	level, ok := roleLevel(role)
	if !ok {
		return nil, "", apperr.NewValidationError(errors.Errorf("unknown draft role %q", role), apperr.FieldError{Field: "role", Error: "must be CLASS_MONITOR or ADVISOR"})
	}
	ev, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, "", err
	}
	if pending, ok := s.machine.Chain.Pending(ev.Status); !ok || pending != level {
		return nil, "", apperr.Transition(entity, string(ev.Status), "stage scores", fmt.Sprintf("%s approval is not pending", level))
	}
	if !s.policy.CanApprove(actor, level, ev.StudentCode) {
		return nil, "", apperr.Forbidden(fmt.Sprintf("not allowed to score at %s level", level))
	}
	return ev, level, nil
}

// Totals returns the effective total of every evaluation of a semester.
func (s *Service) Totals(ctx context.Context, semester string) ([]Total, error) {
	evs, err := s.repo.ListBySemester(ctx, semester)
	if err != nil {
		return nil, errors.Wrapf(err, "listing semester %s", semester)
	}
	out := make([]Total, 0, len(evs))
	for i := range evs {
		out = append(out, Total{StudentCode: evs[i].StudentCode, Status: evs[i].Status, Score: evs[i].Total()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StudentCode < out[j].StudentCode })
	return out, nil
}

type Total struct {
	StudentCode string
	Status      Status
	Score       float64
}

func draftRole(l Level) (string, bool) {
	switch l {
	case LevelClass:
		return draft.ClassMonitor, true
	case LevelAdvisor:
		return draft.Advisor, true
	}
	return "", false
}

func roleLevel(role string) (Level, bool) {
	switch role {
	case draft.ClassMonitor:
		return LevelClass, true
	case draft.Advisor:
		return LevelAdvisor, true
	}
	return "", false
}

func selfScores(details []Detail) map[int64]map[string]float64 {
	out := make(map[int64]map[string]float64, len(details))
	for _, d := range details {
		out[d.CriterionID] = d.Self().Scores
	}
	return out
}

// checkScores holds scores to the caps of the sub-criteria parsed from the
// rubric. Criteria whose description yields no sub-criteria are not checked.
func checkScores(r *rubric.Rubric, field string, scores map[int64]map[string]float64) error {
	var fields []apperr.FieldError
	for _, c := range r.Criteria {
		got, ok := scores[c.ID]
		if !ok {
			continue
		}
		subs := c.SubCriteria()
		if len(subs) == 0 {
			continue
		}
		byID := make(map[string]rubric.SubCriterion, len(subs))
		for _, sub := range subs {
			byID[sub.ID] = sub
		}
		for id, v := range got {
			name := fmt.Sprintf("%s.%d.%s", field, c.ID, id)
			sub, ok := byID[id]
			if !ok {
				fields = append(fields, apperr.FieldError{Field: name, Error: "unknown sub-criterion"})
				continue
			}
			if lo, hi := rubric.Bounds(sub); v < lo || v > hi {
				fields = append(fields, apperr.FieldError{Field: name, Error: fmt.Sprintf("must be between %g and %g", lo, hi)})
			}
		}
	}
	if len(fields) > 0 {
		sort.Slice(fields, func(i, j int) bool { return fields[i].Field < fields[j].Field })
		return apperr.NewValidationError(errors.New("scores are out of range"), fields...)
	}
	return nil
}

func ptr(v float64, ok bool) *float64 {
	if !ok {
		return nil
	}
	return &v
}

