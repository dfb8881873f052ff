package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/matthewbaird/listingform/internal/catalog"
	"github.com/matthewbaird/listingform/internal/form"
)

// CatalogHandler serves the read-only listing catalog: taxonomy, amenities,
// cities and the field plan of a category.
type CatalogHandler struct {
	catalog *catalog.Catalog
}

func NewCatalogHandler(c *catalog.Catalog) *CatalogHandler {
	return &CatalogHandler{catalog: c}
}

// Register mounts the catalog routes.
func (h *CatalogHandler) Register(r chi.Router) {
	r.Route("/v1/catalog", func(r chi.Router) {
		r.Get("/property-types", h.ListPropertyTypes)
		r.Get("/amenities", h.ListAmenities)
		r.Get("/cities", h.ListCities)
		r.Get("/cities/{city}/localities", h.ListLocalities)
		r.Get("/fields", h.ListFields)
	})
}

func (h *CatalogHandler) ListPropertyTypes(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"propertyTypes": h.catalog.PropertyTypes()})
}

func (h *CatalogHandler) ListAmenities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"amenities":  h.catalog.Amenities(),
		"categories": h.catalog.AmenityCategories(),
	})
}

func (h *CatalogHandler) ListCities(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"cities": h.catalog.Cities()})
}

func (h *CatalogHandler) ListLocalities(w http.ResponseWriter, r *http.Request) {
	city := chi.URLParam(r, "city")
	localities, ok := h.catalog.Localities(city)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_CITY", "unknown city: "+city)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"city": city, "localities": localities})
}

// ListFields returns the category-specific fields of a property type and
// sub-type with their controls.
// GET /v1/catalog/fields?type=RESIDENTIAL&subType=APARTMENT
func (h *CatalogHandler) ListFields(w http.ResponseWriter, r *http.Request) {
	pt, st := r.URL.Query().Get("type"), r.URL.Query().Get("subType")
	if !h.catalog.HasCategory(pt, st) {
		writeError(w, http.StatusNotFound, "UNKNOWN_CATEGORY", "unknown property type or sub-type")
		return
	}
	empty := form.NewSnapshot()
	names := h.catalog.Resolve(pt, st)
	fields := make([]form.Field, 0, len(names))
	for _, name := range names {
		fields = append(fields, form.Describe(h.catalog, name, empty))
	}
	writeJSON(w, http.StatusOK, map[string]any{"fields": fields})
}
