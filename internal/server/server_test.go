package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/matthewbaird/listingform/internal/activity"
	"github.com/matthewbaird/listingform/internal/attachment"
	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/event"
	"github.com/matthewbaird/listingform/internal/session"
	"github.com/matthewbaird/listingform/internal/types"
	"github.com/matthewbaird/listingform/internal/wizard"
)

type nopCollaborator struct{}

func (nopCollaborator) Submit(context.Context, *wizard.Payload) (wizard.Receipt, error) {
	return wizard.Receipt{PropertyID: "p-1", Created: true}, nil
}

func (nopCollaborator) Get(context.Context, string) (types.PropertyRecord, error) {
	return types.PropertyRecord{}, nil
}

func testConfig() Config {
	log := activity.NewMemoryStore(0)
	return Config{
		AllowedOrigins: []string{"http://localhost:5173"},
		Catalog:        catalog.MustLoad(),
		Sessions:       session.NewManager(time.Hour, time.Hour),
		Previews:       attachment.NewPreviews(),
		Submitter:      nopCollaborator{},
		Loader:         nopCollaborator{},
		Recorder:       event.NewActivityRecorder(log),
		Activity:       log,
	}
}

func TestRouter_HealthAndCORS(t *testing.T) {
	r := NewRouter(testConfig())

	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())

	req := httptest.NewRequest(http.MethodOptions, "/v1/wizards", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:5173", rec.Header().Get("Access-Control-Allow-Origin"))

	rec = httptest.NewRecorder()
	r.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/media/anything", nil))
	assert.Equal(t, http.StatusNotFound, rec.Code, "media route is absent without a media source")
}

func TestRun_StopsOnCancel(t *testing.T) {
	cfg := testConfig()
	cfg.Port = 0
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- Run(ctx, cfg) }()

	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestOriginPatterns(t *testing.T) {
	assert.Equal(t, []string{"localhost:5173", "*.example.com"},
		originPatterns([]string{"http://localhost:5173", "*.example.com"}))
}
