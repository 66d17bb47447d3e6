package handlers

import (
	"io"
	"net/http"

	"github.com/ruletree/ruletree/internal/api/types"
	"github.com/ruletree/ruletree/internal/tree"
)

// ValidateDocument handles POST /validate. The body is the raw
// document, a single tree or a batch. Findings come back as data with
// status 200; only an unreadable request is an HTTP error.
func (h *Handler) ValidateDocument(w http.ResponseWriter, r *http.Request) {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "reading request body failed")
		return
	}
	if len(data) == 0 {
		h.respondError(w, http.StatusBadRequest, "request body is required")
		return
	}

	doc, err := tree.Decode(data)
	if err != nil {
		h.metrics.Core().RecordValidation(false)
		h.metrics.Core().RecordValidationError("malformed")
		h.respondJSON(w, http.StatusOK, types.ValidateResponse{
			Errors: []types.NodeError{types.NodeErrorFromDecode(err)},
		})
		return
	}

	resp := types.ValidateResponse{
		Valid:        true,
		Trees:        len(doc.Trees),
		Deprecations: types.DeprecationsFromDecode(doc.Deprecations),
	}
	for _, root := range doc.Trees {
		if ve := h.validateTree(root); ve != nil {
			resp.Valid = false
			resp.Errors = append(resp.Errors, types.NodeErrorsFromValidate(ve)...)
		}
	}
	h.respondJSON(w, http.StatusOK, resp)
}
