// Package worker runs the background tasks: AI suggestions and in-app
// notifications for evaluation and appeal events.
package worker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/hibiken/asynq"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/config"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
)

type SuggestionStore interface {
	Create(ctx context.Context, s *advisor.Suggestion) error
}

type NotificationStore interface {
	Create(ctx context.Context, n *db.Notification) error
}

type Server struct {
	Advisor       advisor.Advisor
	Suggestions   SuggestionStore
	Notifications NotificationStore
	Reminders     *Reminders
	Log           logging.Logger
}

func (s *Server) mux() *asynq.ServeMux {
	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeSuggest, s.handleSuggest)
	mux.HandleFunc(TypeEvaluationEvent, s.handleEvaluationEvent)
	mux.HandleFunc(TypeAppealEvent, s.handleAppealEvent)
	if s.Reminders != nil {
		mux.HandleFunc(TypePeriodReminder, s.handlePeriodReminder)
	}
	return mux
}

func (s *Server) handleSuggest(ctx context.Context, t *asynq.Task) error {
	var req advisor.Request
	if err := json.Unmarshal(t.Payload(), &req); err != nil {
		return fmt.Errorf("decoding %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	s.Log.Info("running AI suggestion", map[string]interface{}{
		"evaluation_id": req.EvaluationID, "criteria_id": req.CriteriaID, "files": len(req.EvidenceFileIDs),
	})
	sug, err := s.Advisor.Suggest(ctx, req)
	if err != nil {
		if advisor.IsError(err) {
			// reported to the caller, not retried
			s.Log.Warn("AI suggestion failed", err)
			return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
		}
		return err
	}
	if err := s.Suggestions.Create(ctx, sug); err != nil {
		return err
	}
	s.Log.Info("stored AI suggestion", map[string]interface{}{
		"id": sug.ID, "status": sug.Status, "score": sug.SuggestedScore, "processing_ms": sug.ProcessingMs,
	})
	return nil
}

func (s *Server) handleEvaluationEvent(ctx context.Context, t *asynq.Task) error {
	var e evaluation.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("decoding %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	n := evaluationNotice(e)
	return s.Notifications.Create(ctx, &n)
}

func (s *Server) handleAppealEvent(ctx context.Context, t *asynq.Task) error {
	var e appeal.Event
	if err := json.Unmarshal(t.Payload(), &e); err != nil {
		return fmt.Errorf("decoding %s: %v: %w", t.Type(), err, asynq.SkipRetry)
	}
	n := appealNotice(e)
	return s.Notifications.Create(ctx, &n)
}

func (s *Server) handlePeriodReminder(ctx context.Context, _ *asynq.Task) error {
	sent, err := s.Reminders.Run(ctx)
	if err != nil {
		return err
	}
	s.Log.Info("period reminders sent", map[string]interface{}{"count": sent})
	return nil
}

// Run serves tasks until the process is signalled. With reminders set, a
// scheduler enqueues the daily reminder task alongside.
func Run(cfg config.Config, s *Server) error {
	redis := asynq.RedisClientOpt{Addr: cfg.RedisAddr}
	if s.Reminders != nil {
		scheduler := asynq.NewScheduler(redis, &asynq.SchedulerOpts{Location: cfg.ReminderLocation})
		if _, err := scheduler.Register(cfg.ReminderCron, asynq.NewTask(TypePeriodReminder, nil), asynq.MaxRetry(3)); err != nil {
			return fmt.Errorf("registering %s: %w", TypePeriodReminder, err)
		}
		if err := scheduler.Start(); err != nil {
			return fmt.Errorf("starting scheduler: %w", err)
		}
		defer scheduler.Shutdown()
	}
	srv := asynq.NewServer(redis, asynq.Config{Concurrency: cfg.WorkerConcurrency})
	return srv.Run(s.mux())
}
