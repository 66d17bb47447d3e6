package openapi

import (
	"encoding/json"
	"net/http"
	"sync"

	"github.com/go-chi/chi/v5"
	"gopkg.in/yaml.v3"
)

// Handler serves the API document as JSON and YAML. The document is
// static, so both renderings are built once and reused.
type Handler struct {
	spec *Spec

	buildOnce sync.Once
	specJSON  []byte
	specYAML  []byte
}

// NewHandler creates a handler for the given document.
func NewHandler(spec *Spec) *Handler {
	return &Handler{spec: spec}
}

// RegisterRoutes mounts the document routes on a chi router.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/openapi.json", h.ServeJSON)
	r.Get("/openapi.yaml", h.ServeYAML)
}

func (h *Handler) build() {
	h.buildOnce.Do(func() {
		h.specJSON, _ = json.MarshalIndent(h.spec, "", "  ")
		h.specYAML, _ = yaml.Marshal(h.spec)
	})
}

// ServeJSON serves the document as JSON.
func (h *Handler) ServeJSON(w http.ResponseWriter, r *http.Request) {
	h.build()

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(h.specJSON)
}

// ServeYAML serves the document as YAML.
func (h *Handler) ServeYAML(w http.ResponseWriter, r *http.Request) {
	h.build()

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(h.specYAML)
}
