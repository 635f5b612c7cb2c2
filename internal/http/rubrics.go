package http

import (
	"net/http"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/grading"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
	"github.com/Haole1945/drl-platform-sub001/internal/schemas"
)

func (s *Server) grade(w http.ResponseWriter, r *http.Request) {
	score, err := strconv.ParseFloat(r.URL.Query().Get("score"), 64)
	if err != nil {
		s.writeError(w, r, apperr.NewValidationError(errors.New("invalid score"), apperr.FieldError{Field: "score", Error: "must be a number"}))
		return
	}
	out := schemas.Grade{Score: score}
	if g, ok := grading.Classify(score); ok {
		out.Grade = &g
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) gradeScale(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, grading.Scale())
}

func (s *Server) parseSubCriteria(w http.ResponseWriter, r *http.Request) {
	var req schemas.ParseSubCriteria
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	subs := rubric.ExtractSubCriteria(req.Description)
	out := schemas.SubCriteria{SubCriteria: nonNilSubs(subs)}
	if req.MaxPoints > 0 {
		out.Mismatch = rubric.CheckCaps(rubric.Criterion{MaxPoints: req.MaxPoints}, subs)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) criterionSubCriteria(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.criteria.Criterion(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	subs := c.SubCriteria()
	writeJSON(w, http.StatusOK, schemas.SubCriteria{SubCriteria: nonNilSubs(subs), Mismatch: rubric.CheckCaps(*c, subs)})
}

func nonNilSubs(subs []rubric.SubCriterion) []rubric.SubCriterion {
	if subs == nil {
		return []rubric.SubCriterion{}
	}
	return subs
}
