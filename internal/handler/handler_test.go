package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matthewbaird/listingform/internal/activity"
	"github.com/matthewbaird/listingform/internal/attachment"
	"github.com/matthewbaird/listingform/internal/backend"
	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/event"
	"github.com/matthewbaird/listingform/internal/session"
	"github.com/matthewbaird/listingform/internal/store"
	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/validate"
	"github.com/matthewbaird/listingform/internal/wizard"
)

type fakeSubmitter struct {
	payloads []*wizard.Payload
	err      error
}

func (f *fakeSubmitter) Submit(_ context.Context, p *wizard.Payload) (wizard.Receipt, error) {
	f.payloads = append(f.payloads, p)
	if f.err != nil {
		return wizard.Receipt{}, f.err
	}
	id := p.PropertyID
	if id == "" {
		id = "prop-1"
	}
	return wizard.Receipt{PropertyID: id, Created: p.PropertyID == ""}, nil
}

type fakeLoader map[string]types.PropertyRecord

func (f fakeLoader) Get(_ context.Context, id string) (types.PropertyRecord, error) {
	rec, ok := f[id]
	if !ok {
		return types.PropertyRecord{}, fmt.Errorf("listing %s: %w", id, store.ErrNotFound)
	}
	return rec, nil
}

type testEnv struct {
	router    chi.Router
	sessions  *session.Manager
	previews  *attachment.Previews
	submitter *fakeSubmitter
	log       *activity.MemoryStore
}

func newEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		router:    chi.NewRouter(),
		sessions:  session.NewManager(time.Hour, time.Hour),
		previews:  attachment.NewPreviews(),
		submitter: &fakeSubmitter{},
		log:       activity.NewMemoryStore(0),
	}
	loader := fakeLoader{
		"prop-9": {
			ID: "prop-9",
			Fields: map[string]any{
				"title":            "Renovated Villa With Garden",
				"propertyTypeName": "RESIDENTIAL",
				"subTypeName":      "VILLA",
			},
			Images: []types.PersistedImage{
				{URL: "/v1/media/a", Key: "a", Order: 0},
				{URL: "/v1/media/b", Key: "b", Order: 1, IsCover: true},
			},
			Amenities: []string{"gym"},
		},
	}
	NewCatalogHandler(catalog.MustLoad()).Register(env.router)
	NewWizardHandler(WizardDeps{
		Catalog:   catalog.MustLoad(),
		Sessions:  env.sessions,
		Previews:  env.previews,
		Submitter: env.submitter,
		Loader:    loader,
		Recorder:  event.NewActivityRecorder(env.log),
	}).Register(env.router)
	NewMediaHandler(env.previews, nil).Register(env.router)
	NewActivityHandler(env.log).Register(env.router)
	return env
}

func (e *testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) upload(t *testing.T, path string, files map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for name, ct := range files {
		h := make(textproto.MIMEHeader)
		h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="files"; filename=%q`, name))
		h.Set("Content-Type", ct)
		part, err := mw.CreatePart(h)
		require.NoError(t, err)
		_, err = part.Write([]byte("body of " + name))
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func (e *testEnv) create(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/v1/wizards", nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[wizardState](t, rec).ID
}

func (e *testEnv) fill(t *testing.T, id string) {
	t.Helper()
	base := "/v1/wizards/" + id
	rec := e.do(t, http.MethodPatch, base, map[string]any{
		"title":            "Spacious 3BR Apartment Downtown",
		"description":      strings.Repeat("Sunny corner unit with city views. ", 3),
		"price":            250000,
		"listingType":      "Sale",
		"address":          "12 MG Road",
		"city":             "Bengaluru",
		"latitude":         12.9716,
		"longitude":        77.5946,
		"propertyTypeName": "RESIDENTIAL",
		"subTypeName":      "APARTMENT",
		"bedrooms":         3,
		"bathrooms":        2,
		"area":             map[string]any{"value": 1450.0, "unit": "sqft"},
		"furnishingStatus": "Furnished",
		"possessionStatus": "Ready to Move",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, base+"/amenities/gym/toggle", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.do(t, http.MethodPost, base+"/nearby-places", types.NearbyPlace{Name: "Metro Station", Distance: "400m", Category: "Transit"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	rec = e.upload(t, base+"/images", map[string]string{"a.jpg": "image/jpeg", "b.png": "image/png", "c.webp": "image/webp"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}

func eventTypes(t *testing.T, e *testEnv, id string) []string {
	t.Helper()
	rec := e.do(t, http.MethodGet, "/v1/wizards/"+id+"/activity", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	feed := decode[struct {
		Activities []types.ActivityEntry `json:"activities"`
	}](t, rec)
	var out []string
	for _, a := range feed.Activities {
		out = append(out, a.EventType)
	}
	return out
}

func TestCatalogRoutes(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodGet, "/v1/catalog/property-types", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "RESIDENTIAL")

	rec = env.do(t, http.MethodGet, "/v1/catalog/fields?type=RESIDENTIAL&subType=APARTMENT", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"name":"bedrooms"`)

	rec = env.do(t, http.MethodGet, "/v1/catalog/fields?type=SPACESHIP&subType=APARTMENT", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/catalog/cities/Atlantis/localities", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizard_NextBlockedThenAdvances(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)

	rec := env.do(t, http.MethodPost, "/v1/wizards/"+id+"/next", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	view := decode[transitionView](t, rec)
	assert.False(t, view.Transition.Advanced)
	assert.Equal(t, "Title is required", view.Transition.Errors["title"])
	assert.Equal(t, view.Transition.Errors, view.State.Errors)

	env.fill(t, id)
	for i := 1; i < validate.StepCount; i++ {
		rec = env.do(t, http.MethodPost, "/v1/wizards/"+id+"/next", nil)
		require.Equal(t, http.StatusOK, rec.Code)
		view = decode[transitionView](t, rec)
		require.True(t, view.Transition.Advanced, "step %d: %v", i, view.Transition.Errors)
	}
	assert.Equal(t, "documents", view.State.StepName)

	rec = env.do(t, http.MethodPost, "/v1/wizards/"+id+"/back", nil)
	assert.Equal(t, "media", decode[transitionView](t, rec).State.StepName)

	seen := eventTypes(t, env, id)
	assert.Contains(t, seen, event.TypeStepBlocked)
	assert.Contains(t, seen, event.TypeStepAdvanced)
	assert.Contains(t, seen, event.TypeCategoryChanged)
	assert.Equal(t, event.TypeWizardStarted, seen[len(seen)-1])
}

func TestWizard_SubmitHandsOffPayload(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)
	env.fill(t, id)

	rec := env.do(t, http.MethodPost, "/v1/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	out := decode[struct {
		Submitted bool           `json:"submitted"`
		Receipt   wizard.Receipt `json:"receipt"`
		State     wizardState    `json:"state"`
	}](t, rec)
	assert.True(t, out.Submitted)
	assert.Equal(t, "prop-1", out.Receipt.PropertyID)
	assert.Equal(t, wizard.PhaseSubmitted, out.State.Phase)

	require.Len(t, env.submitter.payloads, 1)
	p := env.submitter.payloads[0]
	assert.Len(t, p.Images, 3)
	assert.Len(t, p.ImageFiles, 3)
	assert.Equal(t, []string{"gym"}, p.Amenities)
	assert.Contains(t, eventTypes(t, env, id), event.TypeListingSubmitted)
}

func TestWizard_SubmitJumpsToFirstInvalidStep(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)
	env.fill(t, id)
	env.do(t, http.MethodDelete, "/v1/wizards/"+id+"/images/0", nil)

	rec := env.do(t, http.MethodPost, "/v1/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	out := decode[struct {
		Submitted  bool              `json:"submitted"`
		Transition wizard.Transition `json:"transition"`
	}](t, rec)
	assert.False(t, out.Submitted)
	assert.Equal(t, validate.StepMedia, out.Transition.Step)
	assert.Empty(t, env.submitter.payloads)
}

func TestWizard_SubmitFailureSurfacesServerMessage(t *testing.T) {
	env := newEnv(t)
	env.submitter.err = &backend.Error{Status: http.StatusUnprocessableEntity, Message: "Price looks wrong"}
	id := env.create(t)
	env.fill(t, id)

	rec := env.do(t, http.MethodPost, "/v1/wizards/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, "Price looks wrong", decode[map[string]string](t, rec)["error"])

	state := decode[wizardState](t, env.do(t, http.MethodGet, "/v1/wizards/"+id, nil))
	assert.Equal(t, wizard.PhaseEditing, state.Phase)
	assert.Len(t, state.Images, 3)
	assert.Contains(t, eventTypes(t, env, id), event.TypeSubmissionFailed)
}

func TestWizard_UpdateErrors(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)

	rec := env.do(t, http.MethodPatch, "/v1/wizards/"+id, map[string]any{"images": []string{}})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "RESERVED_FIELD", decode[map[string]string](t, rec)["code"])

	rec = env.do(t, http.MethodPost, "/v1/wizards/"+id+"/amenities/teleporter/toggle", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/wizards/"+id+"/nearby-places/4", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodDelete, "/v1/wizards/"+id+"/nearby-places/x", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodGet, "/v1/wizards/missing", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizard_ImageUploadAndPreview(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)

	rec := env.upload(t, "/v1/wizards/"+id+"/images", map[string]string{"a.jpg": "image/jpeg", "notes.txt": "text/plain"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[struct {
		Rejected []attachment.IntakeError `json:"rejected"`
		State    wizardState              `json:"state"`
	}](t, rec)
	require.Len(t, resp.Rejected, 1)
	assert.Equal(t, "notes.txt", resp.Rejected[0].File)
	require.Len(t, resp.State.Images, 1)
	assert.True(t, resp.State.Images[0].IsCover)

	rec = env.do(t, http.MethodGet, "/v1/previews/"+resp.State.Images[0].Preview, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/jpeg", rec.Header().Get("Content-Type"))
	assert.Equal(t, "body of a.jpg", rec.Body.String())

	rec = env.do(t, http.MethodPatch, "/v1/wizards/"+id+"/images/0", map[string]any{"caption": "Living room", "isFloorPlan": true})
	require.Equal(t, http.StatusOK, rec.Code)
	img := decode[wizardState](t, rec).Images[0]
	assert.Equal(t, "Living room", img.Caption)
	assert.True(t, img.IsFloorPlan)

	rec = env.do(t, http.MethodDelete, "/v1/wizards/"+id, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, 0, env.previews.Len())
	rec = env.do(t, http.MethodGet, "/v1/previews/"+resp.State.Images[0].Preview, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Contains(t, eventTypes(t, env, id), event.TypeWizardClosed)
}

func TestWizard_UpdateImageOutOfRangeMoveChangesNothing(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)
	env.fill(t, id)

	rec := env.do(t, http.MethodPatch, "/v1/wizards/"+id+"/images/0", map[string]any{"caption": "Kitchen", "moveTo": 7})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, "INDEX_OUT_OF_RANGE", decode[map[string]string](t, rec)["code"])

	state := decode[wizardState](t, env.do(t, http.MethodGet, "/v1/wizards/"+id, nil))
	require.Len(t, state.Images, 3)
	assert.Empty(t, state.Images[0].Caption)

	rec = env.do(t, http.MethodPatch, "/v1/wizards/"+id+"/images/0", map[string]any{"caption": "Kitchen", "moveTo": 2})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "Kitchen", decode[wizardState](t, rec).Images[2].Caption)
}

func TestWizard_SubmitTrimsPaddedTitle(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)
	env.fill(t, id)
	title := strings.Repeat("x", validate.TitleMax)
	rec := env.do(t, http.MethodPatch, "/v1/wizards/"+id, map[string]any{"title": title + " "})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodPost, "/v1/wizards/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, env.submitter.payloads, 1)
	assert.Equal(t, title, env.submitter.payloads[0].Fields["title"])
}

func TestWizard_CreateInEditMode(t *testing.T) {
	env := newEnv(t)

	rec := env.do(t, http.MethodPost, "/v1/wizards", map[string]string{"propertyId": "prop-9"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	state := decode[wizardState](t, rec)
	assert.Equal(t, "prop-9", state.PropertyID)
	assert.Equal(t, "Renovated Villa With Garden", state.Values["title"])
	assert.Equal(t, []string{"gym"}, state.Amenities)
	require.Len(t, state.Images, 2)
	assert.True(t, state.Images[0].IsCover != state.Images[1].IsCover)

	rec = env.do(t, http.MethodPost, "/v1/wizards", map[string]string{"propertyId": "nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestWizard_WebSocket(t *testing.T) {
	env := newEnv(t)
	id := env.create(t)
	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")+"/v1/wizards/"+id+"/ws", nil)
	require.NoError(t, err)
	defer conn.CloseNow()

	var msg struct {
		Type      string          `json:"type"`
		RequestID string          `json:"request_id"`
		Data      json.RawMessage `json:"data"`
	}
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "state", msg.Type)

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "ping", ID: "1"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "pong", msg.Type)
	assert.Equal(t, "1", msg.RequestID)

	data, _ := json.Marshal(map[string]any{"title": "Sunny two bedroom flat"})
	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "update", ID: "2", Data: data}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, "updated", msg.Type)
	var updated UpdatedData
	require.NoError(t, json.Unmarshal(msg.Data, &updated))
	assert.Equal(t, "Sunny two bedroom flat", updated.State.Values["title"])

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "next", ID: "3"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	require.Equal(t, "transition", msg.Type)
	var tv transitionView
	require.NoError(t, json.Unmarshal(msg.Data, &tv))
	assert.False(t, tv.Transition.Advanced)
	assert.Contains(t, tv.Transition.Errors, "description")

	require.NoError(t, wsjson.Write(ctx, conn, ClientMessage{Type: "warp", ID: "4"}))
	require.NoError(t, wsjson.Read(ctx, conn, &msg))
	assert.Equal(t, "error", msg.Type)
}
