package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ruletree/ruletree/internal/api/types"
	"github.com/ruletree/ruletree/internal/pagination"
	"github.com/ruletree/ruletree/internal/store"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/tree"
)

// CreateRuleSet handles POST /rulesets. The document must be a single
// valid tree; batches are stored one rule set each.
func (h *Handler) CreateRuleSet(w http.ResponseWriter, r *http.Request) {
	var req types.CreateRuleSetRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	root, err := tree.DecodeTree(req.Document)
	if err != nil {
		h.respondMalformed(w, err)
		return
	}
	if ve := h.validateTree(root); ve != nil {
		h.respondTreeErrors(w, ve)
		return
	}

	rs := &store.RuleSet{
		Name:        req.Name,
		Description: req.Description,
		Document:    req.Document,
		Disabled:    req.Disabled,
	}
	if err := h.store.Create(r.Context(), rs); err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	h.warm(r.Context(), rs)
	h.respondJSON(w, http.StatusCreated, types.RuleSetFromModel(rs))
}

// GetRuleSet handles GET /rulesets/{id}.
func (h *Handler) GetRuleSet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid rule set id")
		return
	}

	rs, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	h.respondJSON(w, http.StatusOK, types.RuleSetFromModel(rs))
}

// ListRuleSets handles GET /rulesets. Disabled rule sets stay hidden
// unless include_disabled=true.
func (h *Handler) ListRuleSets(w http.ResponseWriter, r *http.Request) {
	page := pagination.Parse(r)

	// One row past the page boundary tells us whether a next page exists.
	sets, err := h.store.List(r.Context(), store.ListOptions{
		Limit:           page.ProbeLimit(),
		Offset:          page.Offset,
		IncludeDisabled: r.URL.Query().Get("include_disabled") == "true",
	})
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	h.respondJSON(w, http.StatusOK, pagination.NewPage(types.RuleSetsFromModels(sets), page))
}

// UpdateRuleSet handles PUT /rulesets/{id}. Omitted fields keep their
// stored values; a new document is validated before it replaces the
// old one.
func (h *Handler) UpdateRuleSet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid rule set id")
		return
	}

	var req types.UpdateRuleSetRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	rs, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	if req.Name != nil {
		rs.Name = *req.Name
	}
	if req.Description != nil {
		rs.Description = *req.Description
	}
	if req.Disabled != nil {
		rs.Disabled = *req.Disabled
	}
	if len(req.Document) > 0 {
		root, err := tree.DecodeTree(req.Document)
		if err != nil {
			h.respondMalformed(w, err)
			return
		}
		if ve := h.validateTree(root); ve != nil {
			h.respondTreeErrors(w, ve)
			return
		}
		rs.Document = req.Document
	}

	if err := h.store.Update(r.Context(), rs); err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	h.warm(r.Context(), rs)
	h.respondJSON(w, http.StatusOK, types.RuleSetFromModel(rs))
}

// DeleteRuleSet handles DELETE /rulesets/{id}.
func (h *Handler) DeleteRuleSet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid rule set id")
		return
	}

	if err := h.store.Delete(r.Context(), id); err != nil {
		h.respondStoreError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CompileRuleSet handles POST /rulesets/{id}/compile. An empty body
// compiles to sql with the server defaults. The stored document is
// revalidated first; the schema may have moved under it since the
// write.
func (h *Handler) CompileRuleSet(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		h.respondError(w, http.StatusBadRequest, "invalid rule set id")
		return
	}

	var req types.CompileRuleSetRequest
	if err := h.decodeJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
		h.respondError(w, http.StatusBadRequest, "invalid input")
		return
	}
	if err := h.validateRequest(&req); err != nil {
		h.respondValidationError(w, err)
		return
	}
	if req.Target == "" {
		req.Target = target.SQL
	}

	rs, err := h.store.Get(r.Context(), id)
	if err != nil {
		h.respondStoreError(w, r, err)
		return
	}

	root, err := tree.DecodeTree(rs.Document)
	if err != nil {
		h.respondMalformed(w, err)
		return
	}
	if ve := h.validateTree(root); ve != nil {
		h.respondTreeErrors(w, ve)
		return
	}

	opts := h.requestOptions(req.Options)
	res, cached, err := h.compileCached(r.Context(), root, req.Target, opts)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	h.respondJSON(w, http.StatusOK, types.CompileFromResult(res, cached))
}
