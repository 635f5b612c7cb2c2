package worker

import (
	"context"
	"encoding/json"

	"github.com/hibiken/asynq"
	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
)

const (
	TypeSuggest         = "ai:suggest"
	TypeEvaluationEvent = "evaluation:event"
	TypeAppealEvent     = "appeal:event"
)

// TaskClient is the part of *asynq.Client the enqueuer needs.
type TaskClient interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// Enqueuer hands work to the worker. It is the notifier of both services.
type Enqueuer struct {
	client TaskClient
}

var (
	_ evaluation.Notifier = (*Enqueuer)(nil)
	_ appeal.Notifier     = (*Enqueuer)(nil)
)

func NewEnqueuer(c TaskClient) *Enqueuer {
	return &Enqueuer{client: c}
}

func newTask(typ string, v interface{}) (*asynq.Task, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrapf(err, "encoding %s payload", typ)
	}
	return asynq.NewTask(typ, b), nil
}

func (e *Enqueuer) enqueue(ctx context.Context, typ string, v interface{}, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	task, err := newTask(typ, v)
	if err != nil {
		return nil, err
	}
	info, err := e.client.EnqueueContext(ctx, task, opts...)
	if err != nil {
		return nil, errors.Wrapf(err, "enqueueing %s", typ)
	}
	return info, nil
}

// Suggest queues an AI suggestion and returns the task id.
func (e *Enqueuer) Suggest(ctx context.Context, req advisor.Request) (string, error) {
	if err := req.Validate(); err != nil {
		return "", err
	}
	info, err := e.enqueue(ctx, TypeSuggest, req, asynq.MaxRetry(0))
	if err != nil {
		return "", err
	}
	return info.ID, nil
}

func (e *Enqueuer) Notify(ctx context.Context, ev evaluation.Event) error {
	_, err := e.enqueue(ctx, TypeEvaluationEvent, ev, asynq.MaxRetry(3))
	return err
}

func (e *Enqueuer) NotifyAppeal(ctx context.Context, ev appeal.Event) error {
	_, err := e.enqueue(ctx, TypeAppealEvent, ev, asynq.MaxRetry(3))
	return err
}
