package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/listingform/internal/activity"
	"github.com/matthewbaird/listingform/internal/types"
)

// ActivityHandler serves the per-wizard activity log.
type ActivityHandler struct {
	store activity.Store
}

// NewActivityHandler creates a new ActivityHandler.
func NewActivityHandler(store activity.Store) *ActivityHandler {
	return &ActivityHandler{store: store}
}

// Register mounts the activity routes.
func (h *ActivityHandler) Register(r chi.Router) {
	r.Get("/v1/wizards/{id}/activity", h.HandleGetWizardActivity)
}

// HandleGetWizardActivity returns the newest-first activity feed of a wizard.
// GET /v1/wizards/{id}/activity
func (h *ActivityHandler) HandleGetWizardActivity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	opts := activity.DefaultQueryOptions()
	q := r.URL.Query()
	if s := q.Get("since"); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			opts.Since = &t
		}
	}
	if ts := q.Get("types"); ts != "" {
		opts.EventTypes = strings.Split(ts, ",")
	}
	if l := q.Get("limit"); l != "" {
		if n, err := strconv.Atoi(l); err == nil && n > 0 {
			if n > 500 {
				n = 500
			}
			opts.Limit = n
		}
	}
	opts.Cursor = q.Get("cursor")

	entries, nextCursor, total, err := h.store.QueryByWizard(r.Context(), id, opts)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "QUERY_FAILED", err.Error())
		return
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, struct {
		Activities []types.ActivityEntry `json:"activities"`
		NextCursor string                `json:"next_cursor,omitempty"`
		TotalCount int                   `json:"total_count"`
	}{entries, nextCursor, total})
}
