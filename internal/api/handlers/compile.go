package handlers

import (
	"net/http"

	"github.com/ruletree/ruletree/internal/api/types"
	"github.com/ruletree/ruletree/internal/ruleql"
	"github.com/ruletree/ruletree/internal/tree"
)

// CompileDocument handles POST /compile. The document arrives either
// as a tree or as a ruleql expression; it is validated before it is
// compiled, so compile failures past this point are target problems,
// not grammar problems.
func (h *Handler) CompileDocument(w http.ResponseWriter, r *http.Request) {
	var req types.CompileRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	root, ok := h.treeFromRequest(w, req)
	if !ok {
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

// treeFromRequest resolves the request's document into a root node,
// writing the error response itself when it cannot.
func (h *Handler) treeFromRequest(w http.ResponseWriter, req types.CompileRequest) (tree.Node, bool) {
	switch {
	case len(req.Tree) > 0 && req.RuleQL != "":
		h.respondError(w, http.StatusBadRequest, "provide either tree or ruleql, not both")
		return nil, false
	case len(req.Tree) > 0:
		root, err := tree.DecodeTree(req.Tree)
		if err != nil {
			h.respondMalformed(w, err)
			return nil, false
		}
		return root, true
	case req.RuleQL != "":
		root, err := ruleql.ParseWithSchema(req.RuleQL, h.options.Schema)
		if err != nil {
			h.respondJSON(w, http.StatusUnprocessableEntity, types.ErrorResponse{
				Error: "ruleql parse failed: " + err.Error(),
			})
			return nil, false
		}
		return root, true
	default:
		h.respondError(w, http.StatusBadRequest, "tree or ruleql is required")
		return nil, false
	}
}
