package handler

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/listingform/internal/backend"
	"github.com/matthewbaird/listingform/internal/collect"
	"github.com/matthewbaird/listingform/internal/store"
	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/wizard"
)

// maxMultipartMemory bounds the in-memory part of a multipart upload.
const maxMultipartMemory = 32 << 20

// writeJSON marshals v as JSON and writes it with the given status code.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("writeJSON encode error", "err", err)
	}
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{
		"error": message,
		"code":  code,
	})
}

// decodeJSON decodes the request body into v.
func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// parseIndex extracts a non-negative list index path parameter.
func parseIndex(w http.ResponseWriter, r *http.Request, paramName string) (int, bool) {
	raw := chi.URLParam(r, paramName)
	i, err := strconv.Atoi(raw)
	if err != nil || i < 0 {
		writeError(w, http.StatusBadRequest, "INVALID_INDEX", "invalid index: "+raw)
		return 0, false
	}
	return i, true
}

// readFiles loads every file part named field into memory.
func readFiles(r *http.Request, field string) ([]*types.File, error) {
	if err := r.ParseMultipartForm(maxMultipartMemory); err != nil {
		return nil, err
	}
	headers := r.MultipartForm.File[field]
	files := make([]*types.File, 0, len(headers))
	for _, fh := range headers {
		f, err := readFile(fh)
		if err != nil {
			return nil, err
		}
		files = append(files, f)
	}
	return files, nil
}

func readFile(fh *multipart.FileHeader) (*types.File, error) {
	src, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer src.Close()
	body, err := io.ReadAll(src)
	if err != nil {
		return nil, err
	}
	return &types.File{
		Name:    fh.Filename,
		Type:    fh.Header.Get("Content-Type"),
		Size:    fh.Size,
		Content: body,
	}, nil
}

// isNotFound reports whether a lookup failed because the listing or media
// does not exist in either persistence collaborator.
func isNotFound(err error) bool {
	if errors.Is(err, store.ErrNotFound) {
		return true
	}
	var be *backend.Error
	return errors.As(err, &be) && be.Status == http.StatusNotFound
}

// wizardErrorToHTTP maps wizard operation errors to HTTP responses.
func wizardErrorToHTTP(w http.ResponseWriter, err error) {
	var se *wizard.SubmitError
	switch {
	case errors.Is(err, wizard.ErrSubmitting):
		writeError(w, http.StatusConflict, "SUBMITTING", err.Error())
	case errors.Is(err, wizard.ErrReservedField):
		writeError(w, http.StatusBadRequest, "RESERVED_FIELD", err.Error())
	case errors.Is(err, wizard.ErrUnknownAmenity):
		writeError(w, http.StatusNotFound, "UNKNOWN_AMENITY", err.Error())
	case errors.Is(err, wizard.ErrContract):
		slog.Error("payload contract", "err", err)
		writeError(w, http.StatusUnprocessableEntity, "INVALID_PAYLOAD", "listing data could not be prepared for submission")
	case errors.Is(err, collect.ErrIndexOutOfRange):
		writeError(w, http.StatusNotFound, "INDEX_OUT_OF_RANGE", err.Error())
	case errors.As(err, &se):
		writeError(w, http.StatusBadGateway, "SUBMIT_FAILED", se.Message)
	default:
		slog.Error("internal error", "err", err)
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "internal server error")
	}
}
