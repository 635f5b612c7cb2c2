package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/Haole1945/drl-platform-sub001/internal/appeal"
	"github.com/Haole1945/drl-platform-sub001/internal/schemas"
)

func (s *Server) createAppeal(w http.ResponseWriter, r *http.Request) {
	var req schemas.CreateAppeal
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := s.appeals.Create(r.Context(), actorFrom(r), req.Request())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (s *Server) appealAction(w http.ResponseWriter, r *http.Request, fn func(id int64) (*appeal.Appeal, error)) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, err := fn(id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) getAppeal(w http.ResponseWriter, r *http.Request) {
	s.appealAction(w, r, func(id int64) (*appeal.Appeal, error) {
		return s.appeals.Get(r.Context(), actorFrom(r), id)
	})
}

func (s *Server) startAppealReview(w http.ResponseWriter, r *http.Request) {
	s.appealAction(w, r, func(id int64) (*appeal.Appeal, error) {
		return s.appeals.StartReview(r.Context(), actorFrom(r), id)
	})
}

func (s *Server) reviewAppeal(w http.ResponseWriter, r *http.Request) {
	var req schemas.ReviewAppeal
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.appealAction(w, r, func(id int64) (*appeal.Appeal, error) {
		return s.appeals.Review(r.Context(), actorFrom(r), id, appeal.Decision(req.Decision), req.Comment)
	})
}

func (s *Server) pendingAppeals(w http.ResponseWriter, r *http.Request) {
	out, err := s.appeals.ListPending(r.Context(), actorFrom(r))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilAppeals(out))
}

func (s *Server) studentAppeals(w http.ResponseWriter, r *http.Request) {
	out, err := s.appeals.ListByStudent(r.Context(), actorFrom(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, nonNilAppeals(out))
}

func (s *Server) studentAppealCount(w http.ResponseWriter, r *http.Request) {
	n, err := s.appeals.CountByStudent(r.Context(), actorFrom(r), chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"count": n})
}

func nonNilAppeals(in []appeal.Appeal) []appeal.Appeal {
	if in == nil {
		return []appeal.Appeal{}
	}
	return in
}
