package http

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Haole1945/drl-platform-sub001/internal/evaluation"
	"github.com/Haole1945/drl-platform-sub001/internal/schemas"
)

func (s *Server) createEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateEvaluation
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err := s.evaluations.Create(r.Context(), actorFrom(r), evaluation.CreateInput{
		StudentCode:  req.StudentCode,
		RubricID:     req.RubricID,
		Semester:     req.Semester,
		AcademicYear: req.AcademicYear,
		Details:      schemas.Details(req.Details),
		AsDraft:      req.AsDraft,
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, ev)
}

// evaluationAction runs fn on the evaluation named in the path and writes
// the result.
func (s *Server) evaluationAction(w http.ResponseWriter, r *http.Request, fn func(id int64) (*evaluation.Evaluation, error)) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err := fn(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ev)
}

func (s *Server) getEvaluation(w http.ResponseWriter, r *http.Request) {
	s.evaluationAction(w, r, func(id int64) (*evaluation.Evaluation, error) {
		return s.evaluations.Get(r.Context(), actorFrom(r), id)
	})
}

func (s *Server) updateEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.UpdateEvaluation
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.evaluationAction(w, r, func(id int64) (*evaluation.Evaluation, error) {
		return s.evaluations.Update(r.Context(), actorFrom(r), id, schemas.Details(req.Details), req.AsDraft)
	})
}

func (s *Server) deleteEvaluation(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.evaluations.Delete(r.Context(), actorFrom(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// pendingEvaluations is the approver work queue; ?level narrows it to one
// level.
func (s *Server) pendingEvaluations(w http.ResponseWriter, r *http.Request) {
	level := evaluation.Level(strings.ToUpper(r.URL.Query().Get("level")))
	out, err := s.evaluations.Pending(r.Context(), actorFrom(r), level)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilEvaluations(out))
}

func (s *Server) studentEvaluations(w http.ResponseWriter, r *http.Request) {
	out, err := s.evaluations.ByStudent(r.Context(), actorFrom(r), chi.URLParam(r, "code"), r.URL.Query().Get("semester"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilEvaluations(out))
}

func nonNilEvaluations(in []evaluation.Evaluation) []evaluation.Evaluation {
	if in == nil {
		return []evaluation.Evaluation{}
	}
	return in
}

func (s *Server) submitEvaluation(w http.ResponseWriter, r *http.Request) {
	s.evaluationAction(w, r, func(id int64) (*evaluation.Evaluation, error) {
		return s.evaluations.Submit(r.Context(), actorFrom(r), id)
	})
}

func (s *Server) approveEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.Approve
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.evaluationAction(w, r, func(id int64) (*evaluation.Evaluation, error) {
		return s.evaluations.Approve(r.Context(), actorFrom(r), id, req.Input())
	})
}

func (s *Server) rejectEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.Reject
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.evaluationAction(w, r, func(id int64) (*evaluation.Evaluation, error) {
		return s.evaluations.Reject(r.Context(), actorFrom(r), id, req.Reason)
	})
}

func (s *Server) resubmitEvaluation(w http.ResponseWriter, r *http.Request) {
	var req schemas.Resubmit
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.evaluationAction(w, r, func(id int64) (*evaluation.Evaluation, error) {
		return s.evaluations.Resubmit(r.Context(), actorFrom(r), id, schemas.Details(req.Details), req.Comment)
	})
}

func (s *Server) evaluationHistory(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	events, err := s.evaluations.History(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if events == nil {
		events = []evaluation.Event{}
	}
	writeJSON(w, http.StatusOK, events)
}

func (s *Server) workingScores(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ws, err := s.evaluations.WorkingScores(r.Context(), actorFrom(r), id, r.URL.Query().Get("role"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ws)
}

func (s *Server) saveDraft(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req schemas.Draft
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.evaluations.SaveDraft(r.Context(), actorFrom(r), id, chi.URLParam(r, "role"), req.Scores); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) clearDraft(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.evaluations.ClearDraft(r.Context(), actorFrom(r), id, chi.URLParam(r, "role")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) canAppeal(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	ok, err := s.appeals.CanAppeal(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, schemas.CanAppeal{CanAppeal: ok})
}
