package handler

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/listingform/internal/attachment"
	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/collect"
	"github.com/matthewbaird/listingform/internal/event"
	"github.com/matthewbaird/listingform/internal/form"
	"github.com/matthewbaird/listingform/internal/session"
	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/validate"
	"github.com/matthewbaird/listingform/internal/wizard"
)

// Loader fetches a stored listing for edit-mode hydration.
type Loader interface {
	Get(ctx context.Context, id string) (types.PropertyRecord, error)
}

// WizardDeps groups the collaborators of WizardHandler.
type WizardDeps struct {
	Catalog       *catalog.Catalog
	Sessions      *session.Manager
	Previews      *attachment.Previews
	Submitter     wizard.Submitter
	Loader        Loader
	Recorder      event.Recorder
	Logger        *slog.Logger
	MaxUploadSize int64

	// OriginPatterns lists the hosts allowed to open the live channel.
	OriginPatterns []string
}

// WizardHandler implements the HTTP surface of the listing wizard.
type WizardHandler struct {
	WizardDeps
}

// NewWizardHandler creates a WizardHandler and subscribes it to session
// evictions.
func NewWizardHandler(deps WizardDeps) *WizardHandler {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.MaxUploadSize <= 0 {
		deps.MaxUploadSize = attachment.DefaultMaxSize
	}
	h := &WizardHandler{WizardDeps: deps}
	deps.Sessions.OnEvict(h.evicted)
	return h
}

// Register mounts the wizard routes.
func (h *WizardHandler) Register(r chi.Router) {
	r.Route("/v1/wizards", func(r chi.Router) {
		r.Post("/", h.CreateWizard)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.GetWizard)
			r.Patch("/", h.UpdateWizard)
			r.Delete("/", h.DeleteWizard)
			r.Post("/touch", h.TouchFields)
			r.Get("/fields", h.GetFields)
			r.Post("/next", h.Next)
			r.Post("/back", h.Back)
			r.Post("/submit", h.Submit)
			r.Get("/ws", h.ServeWS)
			r.Post("/amenities/{amenityId}/toggle", h.ToggleAmenity)
			r.Post("/nearby-places", h.AddNearbyPlace)
			r.Put("/nearby-places/{index}", h.EditNearbyPlace)
			r.Delete("/nearby-places/{index}", h.RemoveNearbyPlace)
			r.Post("/images", h.UploadImages)
			r.Patch("/images/{index}", h.UpdateImage)
			r.Delete("/images/{index}", h.RemoveImage)
			r.Post("/images/{index}/cover", h.SetCoverImage)
			r.Post("/documents", h.UploadDocuments)
			r.Delete("/documents/{index}", h.RemoveDocument)
		})
	})
}

// wizardState is the client view of a wizard.
type wizardState struct {
	ID           string                     `json:"id"`
	PropertyID   string                     `json:"propertyId,omitempty"`
	Phase        wizard.Phase               `json:"phase"`
	Step         validate.Step              `json:"step"`
	StepName     string                     `json:"stepName"`
	Values       map[string]any             `json:"values"`
	Amenities    []string                   `json:"amenities"`
	NearbyPlaces []types.NearbyPlace        `json:"nearbyPlaces"`
	Images       []types.ImageAttachment    `json:"images"`
	Documents    []types.DocumentAttachment `json:"documents"`
	Errors       map[string]string          `json:"errors"`
}

func stateOf(wz *wizard.Wizard) wizardState {
	snap := wz.Snapshot()
	return wizardState{
		ID:           wz.ID(),
		PropertyID:   wz.PropertyID(),
		Phase:        wz.Phase(),
		Step:         wz.Step(),
		StepName:     wz.Step().String(),
		Values:       snap.Values(),
		Amenities:    nonNilSlice(snap.Amenities.IDs()),
		NearbyPlaces: nonNilSlice(snap.NearbyPlaces.List()),
		Images:       nonNilSlice(wz.Images()),
		Documents:    nonNilSlice(wz.Documents()),
		Errors:       wz.Result().Visible(),
	}
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}

// fieldsView is the render plan of the current category.
type fieldsView struct {
	Step     validate.Step     `json:"step"`
	StepName string            `json:"stepName"`
	Fields   []form.Field      `json:"fields"`
	Errors   map[string]string `json:"errors"`
}

func fieldsOf(wz *wizard.Wizard) fieldsView {
	return fieldsView{
		Step:     wz.Step(),
		StepName: wz.Step().String(),
		Fields:   nonNilSlice(wz.Plan()),
		Errors:   wz.Result().Visible(),
	}
}

// CreateWizard starts a wizard, optionally hydrated from a stored listing.
// POST /v1/wizards
func (h *WizardHandler) CreateWizard(w http.ResponseWriter, r *http.Request) {
	var req struct {
		PropertyID string `json:"propertyId"`
	}
	if err := decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}

	wz := wizard.New(h.Catalog, wizard.WithPreviews(h.Previews), wizard.WithMaxUploadSize(h.MaxUploadSize))
	if req.PropertyID != "" {
		rec, err := h.Loader.Get(r.Context(), req.PropertyID)
		if err != nil {
			if isNotFound(err) {
				writeError(w, http.StatusNotFound, "LISTING_NOT_FOUND", "listing not found: "+req.PropertyID)
				return
			}
			h.Logger.Error("load listing", "property", req.PropertyID, "err", err)
			writeError(w, http.StatusBadGateway, "LOAD_FAILED", "could not load listing")
			return
		}
		if err := wz.Hydrate(rec); err != nil {
			wizardErrorToHTTP(w, err)
			return
		}
	}

	h.Sessions.Add(wz)
	h.record(r.Context(), event.NewWizardStarted(event.WizardStartedPayload{
		WizardID:   wz.ID(),
		PropertyID: req.PropertyID,
	}))
	writeJSON(w, http.StatusCreated, stateOf(wz))
}

func (h *WizardHandler) GetWizard(w http.ResponseWriter, r *http.Request) {
	h.mutate(w, r, func(*wizard.Wizard) error { return nil })
}

// UpdateWizard merges a partial set of field values.
// PATCH /v1/wizards/{id}
func (h *WizardHandler) UpdateWizard(w http.ResponseWriter, r *http.Request) {
	var partial map[string]any
	if err := decodeJSON(r, &partial); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var (
		resp struct {
			Purged []string    `json:"purged"`
			State  wizardState `json:"state"`
		}
		changed *event.DomainEvent
	)
	err := sess.Do(func(wz *wizard.Wizard) error {
		evt, purged, err := applyUpdate(wz, partial)
		if err != nil {
			return err
		}
		changed = evt
		resp.Purged = nonNilSlice(purged)
		resp.State = stateOf(wz)
		return nil
	})
	if err != nil {
		wizardErrorToHTTP(w, err)
		return
	}
	if changed != nil {
		h.record(r.Context(), *changed)
	}
	writeJSON(w, http.StatusOK, resp)
}

// applyUpdate runs Update and builds a category change event when the
// taxonomy selection moved.
func applyUpdate(wz *wizard.Wizard, partial map[string]any) (*event.DomainEvent, []string, error) {
	before := wz.Snapshot()
	purged, err := wz.Update(partial)
	if err != nil {
		return nil, nil, err
	}
	after := wz.Snapshot()
	if before.PropertyType() == after.PropertyType() && before.SubType() == after.SubType() {
		return nil, purged, nil
	}
	evt := event.NewCategoryChanged(event.CategoryChangedPayload{
		WizardID:     wz.ID(),
		PropertyType: after.PropertyType(),
		SubType:      after.SubType(),
		Purged:       purged,
	})
	return &evt, purged, nil
}

// DeleteWizard tears a wizard down and releases its previews.
// DELETE /v1/wizards/{id}
func (h *WizardHandler) DeleteWizard(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !h.Sessions.Remove(id) {
		writeError(w, http.StatusNotFound, "WIZARD_NOT_FOUND", "wizard not found: "+id)
		return
	}
	h.record(r.Context(), event.NewWizardClosed(event.WizardClosedPayload{WizardID: id, Reason: "deleted"}))
	w.WriteHeader(http.StatusNoContent)
}

func (h *WizardHandler) TouchFields(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Fields []string `json:"fields"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error {
		wz.Touch(req.Fields...)
		return nil
	})
}

// GetFields returns the render plan for the wizard's category.
// GET /v1/wizards/{id}/fields
func (h *WizardHandler) GetFields(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var view fieldsView
	_ = sess.Do(func(wz *wizard.Wizard) error {
		view = fieldsOf(wz)
		return nil
	})
	writeJSON(w, http.StatusOK, view)
}

type transitionView struct {
	Transition wizard.Transition `json:"transition"`
	State      wizardState       `json:"state"`
}

func (h *WizardHandler) Next(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*wizard.Wizard).Next)
}

func (h *WizardHandler) Back(w http.ResponseWriter, r *http.Request) {
	h.navigate(w, r, (*wizard.Wizard).Back)
}

func (h *WizardHandler) navigate(w http.ResponseWriter, r *http.Request, move func(*wizard.Wizard) (wizard.Transition, error)) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var (
		view transitionView
		evt  *event.DomainEvent
	)
	err := sess.Do(func(wz *wizard.Wizard) error {
		tr, e, err := applyMove(wz, move)
		if err != nil {
			return err
		}
		view = transitionView{Transition: tr, State: stateOf(wz)}
		evt = e
		return nil
	})
	if err != nil {
		wizardErrorToHTTP(w, err)
		return
	}
	if evt != nil {
		h.record(r.Context(), *evt)
	}
	writeJSON(w, http.StatusOK, view)
}

// applyMove runs a navigation and builds the matching step event, if any.
func applyMove(wz *wizard.Wizard, move func(*wizard.Wizard) (wizard.Transition, error)) (wizard.Transition, *event.DomainEvent, error) {
	from := wz.Step()
	tr, err := move(wz)
	if err != nil {
		return tr, nil, err
	}
	p := event.StepPayload{WizardID: wz.ID(), From: from.String(), To: tr.Step.String()}
	switch {
	case tr.Step != from:
		evt := event.NewStepAdvanced(p)
		return tr, &evt, nil
	case len(tr.Errors) > 0:
		p.Fields = slices.Sorted(maps.Keys(tr.Errors))
		evt := event.NewStepBlocked(p)
		return tr, &evt, nil
	}
	return tr, nil, nil
}

// Submit validates the whole listing and hands it to the persistence
// collaborator. Validation failures are a normal outcome; a collaborator
// failure is a 502 carrying the collaborator's message.
// POST /v1/wizards/{id}/submit
func (h *WizardHandler) Submit(w http.ResponseWriter, r *http.Request) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	out, p, err := sess.Submit(r.Context(), h.Submitter)
	var se *wizard.SubmitError
	if errors.As(err, &se) {
		sp := event.SubmissionPayload{WizardID: sess.ID(), Error: se.Message}
		if p != nil {
			sp.PropertyID = p.PropertyID
			sp.Images, sp.Documents = len(p.Images), len(p.Documents)
		}
		h.record(r.Context(), event.NewSubmissionFailed(sp))
	}
	if err != nil {
		wizardErrorToHTTP(w, err)
		return
	}
	if out.Submitted {
		h.record(r.Context(), event.NewListingSubmitted(event.SubmissionPayload{
			WizardID:   sess.ID(),
			PropertyID: out.Receipt.PropertyID,
			Created:    out.Receipt.Created,
			Images:     len(p.Images),
			Documents:  len(p.Documents),
		}))
	}

	var state wizardState
	_ = sess.Do(func(wz *wizard.Wizard) error {
		state = stateOf(wz)
		return nil
	})
	writeJSON(w, http.StatusOK, struct {
		wizard.SubmitOutcome
		State wizardState `json:"state"`
	}{out, state})
}

func (h *WizardHandler) ToggleAmenity(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "amenityId")
	h.mutate(w, r, func(wz *wizard.Wizard) error {
		_, err := wz.ToggleAmenity(id)
		return err
	})
}

func (h *WizardHandler) AddNearbyPlace(w http.ResponseWriter, r *http.Request) {
	var place types.NearbyPlace
	if err := decodeJSON(r, &place); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error {
		_, err := wz.AddNearbyPlace(place)
		return err
	})
}

func (h *WizardHandler) EditNearbyPlace(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	var place types.NearbyPlace
	if err := decodeJSON(r, &place); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error { return wz.EditNearbyPlace(i, place) })
}

func (h *WizardHandler) RemoveNearbyPlace(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error { return wz.RemoveNearbyPlace(i) })
}

// UploadImages accepts a multipart form with one or more "files" parts.
// Files that fail intake are reported per file; the rest are appended.
// POST /v1/wizards/{id}/images
func (h *WizardHandler) UploadImages(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, (*wizard.Wizard).UploadImages)
}

// UploadDocuments accepts a multipart form with one or more "files" parts.
// POST /v1/wizards/{id}/documents
func (h *WizardHandler) UploadDocuments(w http.ResponseWriter, r *http.Request) {
	h.upload(w, r, (*wizard.Wizard).UploadDocuments)
}

func (h *WizardHandler) upload(w http.ResponseWriter, r *http.Request, add func(*wizard.Wizard, []*types.File) ([]attachment.IntakeError, error)) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxMultipartMemory+h.MaxUploadSize*maxFilesPerUpload)
	files, err := readFiles(r, "files")
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_UPLOAD", err.Error())
		return
	}
	var resp struct {
		Rejected []attachment.IntakeError `json:"rejected"`
		State    wizardState              `json:"state"`
	}
	err = sess.Do(func(wz *wizard.Wizard) error {
		rejected, err := add(wz, files)
		if err != nil {
			return err
		}
		resp.Rejected = nonNilSlice(rejected)
		resp.State = stateOf(wz)
		return nil
	})
	if err != nil {
		wizardErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

// maxFilesPerUpload bounds the request body of a single upload call.
const maxFilesPerUpload = 20

// UpdateImage edits one image: caption, floor-plan flag, or position.
// PATCH /v1/wizards/{id}/images/{index}
func (h *WizardHandler) UpdateImage(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	var req struct {
		Caption     *string `json:"caption"`
		IsFloorPlan *bool   `json:"isFloorPlan"`
		MoveTo      *int    `json:"moveTo"`
	}
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_JSON", err.Error())
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error {
		n := len(wz.Images())
		if i >= n || (req.MoveTo != nil && (*req.MoveTo < 0 || *req.MoveTo >= n)) {
			return collect.ErrIndexOutOfRange
		}
		if req.Caption != nil {
			if err := wz.UpdateImageCaption(i, *req.Caption); err != nil {
				return err
			}
		}
		if req.IsFloorPlan != nil {
			if err := wz.SetFloorPlan(i, *req.IsFloorPlan); err != nil {
				return err
			}
		}
		if req.MoveTo != nil {
			return wz.MoveImage(i, *req.MoveTo)
		}
		return nil
	})
}

func (h *WizardHandler) RemoveImage(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error { return wz.RemoveImage(i) })
}

func (h *WizardHandler) SetCoverImage(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error { return wz.SetCoverImage(i) })
}

func (h *WizardHandler) RemoveDocument(w http.ResponseWriter, r *http.Request) {
	i, ok := parseIndex(w, r, "index")
	if !ok {
		return
	}
	h.mutate(w, r, func(wz *wizard.Wizard) error { return wz.RemoveDocument(i) })
}

// session resolves the {id} path parameter to a live session, writing a
// 404 when there is none.
func (h *WizardHandler) session(w http.ResponseWriter, r *http.Request) (*session.Session, bool) {
	id := chi.URLParam(r, "id")
	sess := h.Sessions.Get(id)
	if sess == nil {
		writeError(w, http.StatusNotFound, "WIZARD_NOT_FOUND", "wizard not found: "+id)
		return nil, false
	}
	return sess, true
}

// mutate applies fn under the session lock and answers with the new state.
func (h *WizardHandler) mutate(w http.ResponseWriter, r *http.Request, fn func(*wizard.Wizard) error) {
	sess, ok := h.session(w, r)
	if !ok {
		return
	}
	var state wizardState
	err := sess.Do(func(wz *wizard.Wizard) error {
		if err := fn(wz); err != nil {
			return err
		}
		state = stateOf(wz)
		return nil
	})
	if err != nil {
		wizardErrorToHTTP(w, err)
		return
	}
	writeJSON(w, http.StatusOK, state)
}

func (h *WizardHandler) record(ctx context.Context, evt event.DomainEvent) {
	if h.Recorder == nil {
		return
	}
	if err := h.Recorder.Record(ctx, evt); err != nil {
		h.Logger.Warn("record event", "type", evt.EventType, "wizard", evt.WizardID, "err", err)
	}
}

func (h *WizardHandler) evicted(id string) {
	h.record(context.Background(), event.NewWizardClosed(event.WizardClosedPayload{WizardID: id, Reason: "expired"}))
}
