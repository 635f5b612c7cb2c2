package http

import (
	"net/http"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/advisor"
	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/rubric"
	"github.com/Haole1945/drl-platform-sub001/internal/schemas"
)

func (s *Server) requestSuggestion(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	var req schemas.Suggest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	ev, err := s.evaluations.Get(r.Context(), actorFrom(r), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	c, err := s.criteria.Criterion(r.Context(), req.CriteriaID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if c.RubricID != ev.RubricID {
		s.writeError(w, r, apperr.NewValidationError(errors.Errorf("criterion %d is not part of rubric %d", c.ID, ev.RubricID),
			apperr.FieldError{Field: "criteria_id", Error: "not part of the evaluation's rubric"}))
		return
	}
	subs := c.SubCriteria()
	taskID, err := s.queue.Suggest(r.Context(), advisor.Request{
		EvaluationID:    id,
		CriteriaID:      c.ID,
		SubCriteriaID:   req.SubCriteriaID,
		SubCriteria:     subs,
		EvidenceFileIDs: req.EvidenceFileIDs,
		MaxScore:        suggestionMax(req, *c, subs),
	})
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, schemas.Queued{TaskID: taskID, Status: "queued"})
}

// suggestionMax picks the scale of a suggestion: the requested one, else the
// cap of the sub-criterion, else the criterion cap.
func suggestionMax(req schemas.Suggest, c rubric.Criterion, subs []rubric.SubCriterion) float64 {
	if req.MaxScore > 0 {
		return req.MaxScore
	}
	if req.SubCriteriaID != "" {
		for _, sub := range subs {
			if sub.ID == req.SubCriteriaID && sub.MaxPoints > 0 {
				return sub.MaxPoints
			}
		}
	}
	return c.MaxPoints
}

func (s *Server) listSuggestions(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if _, err := s.evaluations.Get(r.Context(), actorFrom(r), id); err != nil {
		s.writeError(w, r, err)
		return
	}
	out, err := s.suggestions.List(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if out == nil {
		out = []advisor.Suggestion{}
	}
	writeJSON(w, http.StatusOK, out)
}
