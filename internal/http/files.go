package http

import (
	"fmt"
	"io"
	"net/http"
	"path"
	"strconv"

	"github.com/pkg/errors"

	"github.com/Haole1945/drl-platform-sub001/internal/apperr"
	"github.com/Haole1945/drl-platform-sub001/internal/db"
	"github.com/Haole1945/drl-platform-sub001/internal/evidence"
	"github.com/Haole1945/drl-platform-sub001/internal/schemas"
)

// uploadEvidence stores a multipart "file" and answers with the URL the
// evidence codec links to.
func (s *Server) uploadEvidence(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	r.Body = http.MaxBytesReader(w, r.Body, s.uploadMaxBytes)
	if err := r.ParseMultipartForm(s.uploadMaxBytes); err != nil {
		s.writeError(w, r, apperr.NewValidationError(errors.Wrap(err, "invalid upload"),
			apperr.FieldError{Field: "file", Error: fmt.Sprintf("must be a file of at most %d bytes", s.uploadMaxBytes)}))
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		s.writeError(w, r, apperr.Required("file"))
		return
	}
	defer file.Close()

	f := &db.EvidenceFile{
		FileName:      path.Base(header.Filename),
		ContentType:   header.Header.Get("Content-Type"),
		Size:          header.Size,
		SubCriteriaID: r.FormValue("sub_criteria_id"),
		UploadedBy:    actor.ID,
	}
	if f.EvaluationID, err = optionalID(r, "evaluation_id"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.CriteriaID, err = optionalID(r, "criteria_id"); err != nil {
		s.writeError(w, r, err)
		return
	}
	if f.EvaluationID != nil {
		if _, err := s.evaluations.Get(r.Context(), actor, *f.EvaluationID); err != nil {
			s.writeError(w, r, err)
			return
		}
	}

	f.ObjectRef, err = s.blobs.PutEvidence(r.Context(), f.FileName, f.ContentType, file, f.Size)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.files.Create(r.Context(), f); err != nil {
		s.writeError(w, r, err)
		return
	}
	s.log.Info("evidence uploaded", map[string]interface{}{"id": f.ID, "size": f.Size}, actor)
	writeJSON(w, http.StatusCreated, schemas.Upload{ID: f.ID, URL: evidence.FileURL(f.ID, f.FileName)})
}

func optionalID(r *http.Request, name string) (*int64, error) {
	v := r.FormValue(name)
	if v == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperr.NewValidationError(errors.Errorf("invalid %s", name), apperr.FieldError{Field: name, Error: "must be a positive integer"})
	}
	return &id, nil
}

func (s *Server) downloadEvidence(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	f, err := s.files.Get(r.Context(), id)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	switch {
	case f.EvaluationID != nil:
		if _, err := s.evaluations.Get(r.Context(), actor, *f.EvaluationID); err != nil {
			s.writeError(w, r, err)
			return
		}
	case f.UploadedBy != actor.ID && !actor.IsAdmin():
		s.writeError(w, r, apperr.Forbidden("not allowed to read this file"))
		return
	}
	body, ct, err := s.blobs.Open(r.Context(), f.ObjectRef)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	defer body.Close()
	if f.ContentType != "" {
		ct = f.ContentType
	}
	if ct == "" {
		ct = "application/octet-stream"
	}
	w.Header().Set("Content-Type", ct)
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", f.FileName))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		s.log.Warn("evidence download interrupted", err, map[string]interface{}{"id": f.ID})
	}
}
