package http

import (
	"net/http"

	"github.com/Haole1945/drl-platform-sub001/internal/db"
)

func (s *Server) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor := actorFrom(r)
	out := []db.Notification{}
	if actor.StudentCode != "" {
		got, err := s.notifications.List(r.Context(), actor.StudentCode, r.URL.Query().Get("unread") == "true")
		if err != nil {
			s.writeError(w, r, err)
			return
		}
		if got != nil {
			out = got
		}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	id, err := idParam(r, "id")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	if err := s.notifications.MarkRead(r.Context(), actorFrom(r).StudentCode, id); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
