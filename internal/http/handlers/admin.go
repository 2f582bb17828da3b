package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
)

// RequireAdmin gates the admin routes. The shared token authenticates the
// caller; the permission cache decides whether the named principal still
// holds admin rights without hitting the database on every request.
func (a *App) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.Cfg == nil || a.Cfg.AdminToken == "" {
			a.error(w, http.StatusForbidden, "forbidden", "admin API disabled")
			return
		}
		if r.Header.Get("X-Admin-Token") != a.Cfg.AdminToken {
			a.error(w, http.StatusUnauthorized, "unauthorized", "invalid admin token")
			return
		}
		principal := strings.TrimSpace(r.Header.Get("X-Admin-Principal"))
		if principal == "" {
			a.error(w, http.StatusUnauthorized, "unauthorized", "missing admin principal")
			return
		}
		if a.AdminPerms != nil {
			allowed, err := a.AdminPerms.Allowed(r.Context(), principal)
			if err != nil {
				a.Logger.Error().Err(err).Str("principal", principal).Msg("admin: permission lookup failed")
				a.error(w, http.StatusServiceUnavailable, "unavailable", "permission lookup failed")
				return
			}
			if !allowed {
				a.error(w, http.StatusForbidden, "forbidden", "not an admin")
				return
			}
		}
		next.ServeHTTP(w, r)
	})
}

type resyncRequest struct {
	ProviderJobID string `json:"provider_job_id"`
}

// AdminJobResync manually re-links a job against the provider's current
// result. Used when the automatic webhook/poll sync has stalled.
func (a *App) AdminJobResync(w http.ResponseWriter, r *http.Request) {
	jobID := chi.URLParam(r, "jobId")

	var req resyncRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			a.error(w, http.StatusBadRequest, "bad_request", "invalid payload")
			return
		}
	}

	job, err := a.Reconciler.Resync(r.Context(), jobID, strings.TrimSpace(req.ProviderJobID))
	if err != nil {
		a.Logger.Error().Err(err).Str("job_id", jobID).Msg("admin: resync failed")
		a.json(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	a.json(w, http.StatusOK, map[string]any{"job": a.view(job)})
}
