package appeal

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
)

type Repository interface {
	Create(ctx context.Context, a *Appeal) error
	Get(ctx context.Context, id int64) (*Appeal, error)
	Update(ctx context.Context, a *Appeal) error
	ListPending(ctx context.Context) ([]Appeal, error)
	ListByStudent(ctx context.Context, studentCode string) ([]Appeal, error)
	CountByStudent(ctx context.Context, studentCode string) (int, error)
}

// Evaluations is the part of the evaluation service appeals depend on.
type Evaluations interface {
	Get(ctx context.Context, actor auth.Actor, id int64) (*evaluation.Evaluation, error)
	Reopen(ctx context.Context, actor auth.Actor, id int64, reason string) (*evaluation.Evaluation, error)
}

type Deadlines interface {
	// AppealDeadline returns nil when the semester sets no deadline.
	AppealDeadline(ctx context.Context, semester string) (*time.Time, error)
}

type Notifier interface {
	NotifyAppeal(ctx context.Context, e Event) error
}

type Deps struct {
	Repo        Repository
	Evaluations Evaluations
	Deadlines   Deadlines
	Machine     *Machine
	Notifier    Notifier
	Log         logging.Logger
}

type Service struct {
	repo        Repository
	evaluations Evaluations
	deadlines   Deadlines
	machine     *Machine
	notifier    Notifier
	log         logging.Logger
}

func NewService(d Deps) *Service {
	return &Service{
		repo:        d.Repo,
		evaluations: d.Evaluations,
		deadlines:   d.Deadlines,
		machine:     d.Machine,
		notifier:    d.Notifier,
		log:         d.Log,
	}
}

func (s *Service) Create(ctx context.Context, actor auth.Actor, req Request) (*Appeal, error) {
	ev, err := s.evaluations.Get(ctx, actor, req.EvaluationID)
	if err != nil {
		return nil, err
	}
	deadline, err := s.deadlines.AppealDeadline(ctx, ev.Semester)
	if err != nil {
		return nil, errors.Wrapf(err, "loading appeal deadline for %s", ev.Semester)
	}
	a, e, err := s.machine.Open(ev, actor, req, deadline)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Create(ctx, a); err != nil {
		return nil, errors.Wrap(err, "creating appeal")
	}
	e.AppealID = a.ID
	s.notify(ctx, e)
	return a, nil
}

// Get returns an appeal to its student or to a reviewer.
func (s *Service) Get(ctx context.Context, actor auth.Actor, id int64) (*Appeal, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !s.machine.Auth.CanReview(actor) && !s.machine.Auth.CanAppeal(actor, a.StudentCode) {
		return nil, apperr.Forbidden("not allowed to view this appeal")
	}
	return a, nil
}

// CanAppeal reports whether actor may appeal the evaluation right now.
func (s *Service) CanAppeal(ctx context.Context, actor auth.Actor, evaluationID int64) (bool, error) {
	ev, err := s.evaluations.Get(ctx, actor, evaluationID)
	if err != nil {
		return false, err
	}
	deadline, err := s.deadlines.AppealDeadline(ctx, ev.Semester)
	if err != nil {
		return false, errors.Wrapf(err, "loading appeal deadline for %s", ev.Semester)
	}
	return s.machine.Eligible(ev, actor, deadline), nil
}

func (s *Service) StartReview(ctx context.Context, actor auth.Actor, id int64) (*Appeal, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e, err := s.machine.StartReview(a, actor)
	if err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, a); err != nil {
		return nil, errors.Wrapf(err, "updating appeal %d", id)
	}
	s.notify(ctx, e)
	return a, nil
}

// Review decides an appeal. On acceptance the evaluation is reopened before
// the appeal is stored; a failed reopen leaves the appeal open.
func (s *Service) Review(ctx context.Context, actor auth.Actor, id int64, d Decision, comment string) (*Appeal, error) {
	a, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	e, reopen, err := s.machine.Decide(a, actor, d, comment)
	if err != nil {
		return nil, err
	}
	if reopen {
		if _, err := s.evaluations.Reopen(ctx, actor, a.EvaluationID, a.ReviewComment); err != nil {
			return nil, errors.Wrapf(err, "reopening evaluation %d", a.EvaluationID)
		}
	}
	if err := s.repo.Update(ctx, a); err != nil {
		if reopen {
			s.log.Error("evaluation reopened but appeal not stored", err, actor, map[string]interface{}{"appeal_id": id})
		}
		return nil, errors.Wrapf(err, "updating appeal %d", id)
	}
	s.notify(ctx, e)
	return a, nil
}

func (s *Service) ListPending(ctx context.Context, actor auth.Actor) ([]Appeal, error) {
	if !s.machine.Auth.CanReview(actor) {
		return nil, apperr.Forbidden("not allowed to review appeals")
	}
	return s.repo.ListPending(ctx)
}

func (s *Service) ListByStudent(ctx context.Context, actor auth.Actor, studentCode string) ([]Appeal, error) {
	if !s.machine.Auth.CanReview(actor) && !s.machine.Auth.CanAppeal(actor, studentCode) {
		return nil, apperr.Forbidden("not allowed to list these appeals")
	}
	return s.repo.ListByStudent(ctx, studentCode)
}

func (s *Service) CountByStudent(ctx context.Context, actor auth.Actor, studentCode string) (int, error) {
	if !s.machine.Auth.CanReview(actor) && !s.machine.Auth.CanAppeal(actor, studentCode) {
		return 0, apperr.Forbidden("not allowed to count these appeals")
	}
	return s.repo.CountByStudent(ctx, studentCode)
}

func (s *Service) notify(ctx context.Context, e Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyAppeal(ctx, e); err != nil {
		s.log.Error("appeal notification not queued", err, map[string]interface{}{"appeal_id": e.AppealID, "action": e.Action})
	}
}
