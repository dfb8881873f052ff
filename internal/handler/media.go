package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/listingform/internal/attachment"
)

// MediaSource serves persisted media bodies by key.
type MediaSource interface {
	Media(ctx context.Context, key string) (contentType string, body []byte, err error)
}

// MediaHandler streams transient previews and, when a MediaSource is
// configured, persisted listing media.
type MediaHandler struct {
	previews *attachment.Previews
	source   MediaSource
}

// NewMediaHandler creates a MediaHandler. source may be nil.
func NewMediaHandler(previews *attachment.Previews, source MediaSource) *MediaHandler {
	return &MediaHandler{previews: previews, source: source}
}

// Register mounts the media routes.
func (h *MediaHandler) Register(r chi.Router) {
	r.Get("/v1/previews/{token}", h.GetPreview)
	if h.source != nil {
		r.Get("/v1/media/{key}", h.GetMedia)
	}
}

// GetPreview streams an uploaded file that has not been persisted yet.
// GET /v1/previews/{token}
func (h *MediaHandler) GetPreview(w http.ResponseWriter, r *http.Request) {
	token := chi.URLParam(r, "token")
	p, ok := h.previews.Get(token)
	if !ok {
		writeError(w, http.StatusNotFound, "PREVIEW_NOT_FOUND", "preview not found")
		return
	}
	w.Header().Set("Cache-Control", "no-store")
	writeBody(w, p.ContentType, p.Body)
}

// GetMedia streams a persisted image or document.
// GET /v1/media/{key}
func (h *MediaHandler) GetMedia(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	ct, body, err := h.source.Media(r.Context(), key)
	if err != nil {
		if isNotFound(err) {
			writeError(w, http.StatusNotFound, "MEDIA_NOT_FOUND", "media not found")
			return
		}
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
		return
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	writeBody(w, ct, body)
}

func writeBody(w http.ResponseWriter, contentType string, body []byte) {
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(http.StatusOK)
	w.Write(body)
}
