package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"clinic/m/domain"
	"clinic/m/internal/audit"
)

func (h *Handler) listAudit(w http.ResponseWriter, r *http.Request) {
	if !h.requireRole(w, r, domain.RoleAdmin) {
		return
	}
	q := r.URL.Query()
	f := audit.Filter{EntityType: q.Get("entity_type"), EntityID: q.Get("entity_id")}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			respondError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		f.Limit = n
	}
	records, err := h.audit.List(r.Context(), f)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r)
	unread, _ := strconv.ParseBool(r.URL.Query().Get("unread"))
	items, err := h.notifications.ListFor(r.Context(), actor.UserID, actor.Role, unread)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, items)
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	actor := actorFromContext(r)
	if err := h.notifications.MarkRead(r.Context(), chi.URLParam(r, "id"), actor.UserID, actor.Role); err != nil {
		h.writeError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "read"})
}
