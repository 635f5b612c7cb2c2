package http

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/Haole1945/drl-platform-sub001/internal/auth"
)

type ctxKey int

const actorKey ctxKey = iota

// RequireAPIToken admits requests carrying the gateway's shared secret.
func RequireAPIToken(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			got := r.Header.Get("Authorization")
			if len(got) < 8 || got[:7] != "Bearer " || !auth.TokenEqual(got[7:], token) {
				writeJSON(w, http.StatusUnauthorized, errResp{Error: "unauthorized"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// Identity reads the caller forwarded by the gateway.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(r.Header.Get("X-User-Id"), 10, 64)
		if err != nil || id <= 0 {
			writeJSON(w, http.StatusUnauthorized, errResp{Error: "missing caller identity"})
			return
		}
		a := auth.Actor{
			ID:          id,
			Name:        r.Header.Get("X-User-Name"),
			StudentCode: strings.TrimSpace(r.Header.Get("X-Student-Code")),
			Roles:       auth.ParseRoles(r.Header.Get("X-User-Roles")),
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), actorKey, a)))
	})
}

func actorFrom(r *http.Request) auth.Actor {
	a, _ := r.Context().Value(actorKey).(auth.Actor)
	return a
}
