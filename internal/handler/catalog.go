package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/agrodata/agroadmin/internal/formdef"
	"github.com/agrodata/agroadmin/internal/types"
)

// CatalogHandler serves the static metadata the UI renders forms from.
type CatalogHandler struct {
	forms *formdef.Registry
}

// NewCatalogHandler creates a new CatalogHandler.
func NewCatalogHandler(forms *formdef.Registry) *CatalogHandler {
	return &CatalogHandler{forms: forms}
}

// Enums returns every enumeration.
// GET /v1/enums
func (h *CatalogHandler) Enums(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, types.Enums)
}

// Forms returns the compiled schema of every form.
// GET /v1/forms
func (h *CatalogHandler) Forms(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.forms.UISchemas())
}

// Form returns one form schema.
// GET /v1/forms/{form}
func (h *CatalogHandler) Form(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "form")
	def, ok := h.forms.Get(name)
	if !ok {
		writeError(w, http.StatusNotFound, "UNKNOWN_FORM", "unknown form: "+name)
		return
	}
	writeJSON(w, http.StatusOK, def.UISchema())
}
