// Package http is the JSON API in front of the evaluation and appeal
// services. Callers are authenticated by the gateway, which forwards a
// shared token and the caller's identity headers.
package http

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	m "github.com/go-chi/chi/v5/middleware"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/auth"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/logging"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
)

type EvaluationService interface {
	Create(ctx context.Context, actor auth.Actor, in evaluation.CreateInput) (*evaluation.Evaluation, error)
	Get(ctx context.Context, actor auth.Actor, id int64) (*evaluation.Evaluation, error)
	Update(ctx context.Context, actor auth.Actor, id int64, details []evaluation.Detail, asDraft bool) (*evaluation.Evaluation, error)
	Submit(ctx context.Context, actor auth.Actor, id int64) (*evaluation.Evaluation, error)
	Approve(ctx context.Context, actor auth.Actor, id int64, in evaluation.ApproveInput) (*evaluation.Evaluation, error)
	Reject(ctx context.Context, actor auth.Actor, id int64, reason string) (*evaluation.Evaluation, error)
	Resubmit(ctx context.Context, actor auth.Actor, id int64, details []evaluation.Detail, comment string) (*evaluation.Evaluation, error)
	History(ctx context.Context, actor auth.Actor, id int64) ([]evaluation.Event, error)
	WorkingScores(ctx context.Context, actor auth.Actor, id int64, role string) (*evaluation.WorkingScores, error)
	SaveDraft(ctx context.Context, actor auth.Actor, id int64, role string, scores map[string]float64) error
	ClearDraft(ctx context.Context, actor auth.Actor, id int64, role string) error
	Delete(ctx context.Context, actor auth.Actor, id int64) error
	Pending(ctx context.Context, actor auth.Actor, level evaluation.Level) ([]evaluation.Evaluation, error)
	ByStudent(ctx context.Context, actor auth.Actor, studentCode, semester string) ([]evaluation.Evaluation, error)
}

type AppealService interface {
	Create(ctx context.Context, actor auth.Actor, req appeal.Request) (*appeal.Appeal, error)
	Get(ctx context.Context, actor auth.Actor, id int64) (*appeal.Appeal, error)
	CanAppeal(ctx context.Context, actor auth.Actor, evaluationID int64) (bool, error)
	StartReview(ctx context.Context, actor auth.Actor, id int64) (*appeal.Appeal, error)
	Review(ctx context.Context, actor auth.Actor, id int64, d appeal.Decision, comment string) (*appeal.Appeal, error)
	ListPending(ctx context.Context, actor auth.Actor) ([]appeal.Appeal, error)
	ListByStudent(ctx context.Context, actor auth.Actor, studentCode string) ([]appeal.Appeal, error)
	CountByStudent(ctx context.Context, actor auth.Actor, studentCode string) (int, error)
}

type Criteria interface {
	Criterion(ctx context.Context, id int64) (*rubric.Criterion, error)
}

type FileStore interface {
	Create(ctx context.Context, f *db.EvidenceFile) error
	Get(ctx context.Context, id int64) (*db.EvidenceFile, error)
}

type BlobStore interface {
	PutEvidence(ctx context.Context, name, contentType string, body io.Reader, size int64) (string, error)
	Open(ctx context.Context, ref string) (io.ReadCloser, string, error)
}

type Suggestions interface {
	List(ctx context.Context, evaluationID int64) ([]advisor.Suggestion, error)
}

type SuggestionQueue interface {
	Suggest(ctx context.Context, req advisor.Request) (string, error)
}

type Notifications interface {
	List(ctx context.Context, recipient string, unreadOnly bool) ([]db.Notification, error)
	MarkRead(ctx context.Context, recipient string, id int64) error
}

type Pinger interface {
	PingContext(ctx context.Context) error
}

type Deps struct {
	Addr           string
	APIToken       string
	UploadMaxBytes int64

	Evaluations   EvaluationService
	Appeals       AppealService
	Criteria      Criteria
	Files         FileStore
	Blobs         BlobStore
	Suggestions   Suggestions
	Queue         SuggestionQueue
	Notifications Notifications
	Health        Pinger
	Log           logging.Logger
}

type Server struct {
	evaluations   EvaluationService
	appeals       AppealService
	criteria      Criteria
	files         FileStore
	blobs         BlobStore
	suggestions   Suggestions
	queue         SuggestionQueue
	notifications Notifications
	health        Pinger
	log           logging.Logger

	apiToken       string
	uploadMaxBytes int64
}

func NewServer(d Deps) *http.Server {
	s := &Server{
		evaluations:    d.Evaluations,
		appeals:        d.Appeals,
		criteria:       d.Criteria,
		files:          d.Files,
		blobs:          d.Blobs,
		suggestions:    d.Suggestions,
		queue:          d.Queue,
		notifications:  d.Notifications,
		health:         d.Health,
		log:            d.Log,
		apiToken:       d.APIToken,
		uploadMaxBytes: d.UploadMaxBytes,
	}
	return &http.Server{Addr: d.Addr, Handler: s.routes(), ReadHeaderTimeout: 10 * time.Second}
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(m.RequestID, m.RealIP, m.Logger, m.Recoverer)

	r.Get("/healthz", s.healthz)

	r.Group(func(r chi.Router) {
		r.Use(RequireAPIToken(s.apiToken))

		r.Get("/grades", s.grade)
		r.Get("/grades/scale", s.gradeScale)
		r.Post("/rubrics/sub-criteria/parse", s.parseSubCriteria)
		r.Get("/criteria/{id}/sub-criteria", s.criterionSubCriteria)

		r.Group(func(r chi.Router) {
			r.Use(Identity)

			r.Post("/evaluations", s.createEvaluation)
			r.Get("/evaluations/pending", s.pendingEvaluations)
			r.Route("/evaluations/{id}", func(r chi.Router) {
				r.Get("/", s.getEvaluation)
				r.Put("/", s.updateEvaluation)
				r.Delete("/", s.deleteEvaluation)
				r.Post("/submit", s.submitEvaluation)
				r.Post("/approve", s.approveEvaluation)
				r.Post("/reject", s.rejectEvaluation)
				r.Post("/resubmit", s.resubmitEvaluation)
				r.Get("/history", s.evaluationHistory)
				r.Get("/working-scores", s.workingScores)
				r.Put("/drafts/{role}", s.saveDraft)
				r.Delete("/drafts/{role}", s.clearDraft)
				r.Get("/can-appeal", s.canAppeal)
				r.Post("/ai-suggestions", s.requestSuggestion)
				r.Get("/ai-suggestions", s.listSuggestions)
			})

			r.Post("/appeals", s.createAppeal)
			r.Get("/appeals/pending", s.pendingAppeals)
			r.Get("/appeals/{id}", s.getAppeal)
			r.Post("/appeals/{id}/review/start", s.startAppealReview)
			r.Post("/appeals/{id}/review", s.reviewAppeal)
			r.Get("/students/{code}/evaluations", s.studentEvaluations)
			r.Get("/students/{code}/appeals", s.studentAppeals)
			r.Get("/students/{code}/appeals/count", s.studentAppealCount)

			r.Post("/files/evidence", s.uploadEvidence)
			r.Get("/files/evidence/{id}/{name}", s.downloadEvidence)

			r.Get("/notifications", s.listNotifications)
			r.Post("/notifications/{id}/read", s.markNotificationRead)
		})
	})
	return r
}

func (s *Server) healthz(w http.ResponseWriter, r *http.Request) {
	if err := s.health.PingContext(r.Context()); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"status": "db error"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
