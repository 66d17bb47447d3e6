package handlers

import (
	"net/http"

	"github.com/ruletree/ruletree/internal/api/types"
	"github.com/ruletree/ruletree/internal/target"
	"github.com/ruletree/ruletree/internal/target/evalgen"
	"github.com/ruletree/ruletree/internal/tree"
)

// EvaluateDocument handles POST /evaluate. The tree runs in process
// against every row; rows may omit fields the tree names, those
// comparisons come out false rather than failing the row.
func (h *Handler) EvaluateDocument(w http.ResponseWriter, r *http.Request) {
	var req types.EvaluateRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		h.respondValidationError(w, err)
		return
	}

	root, err := tree.DecodeTree(req.Tree)
	if err != nil {
		h.respondMalformed(w, err)
		return
	}
	if ve := h.validateTree(root); ve != nil {
		h.respondTreeErrors(w, ve)
		return
	}

	res, _, err := h.compileCached(r.Context(), root, target.Eval, h.options)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	pred, err := evalgen.Compile(res.Expression)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "compiled program rejected", "error", err)
		h.respondError(w, http.StatusInternalServerError, "internal error")
		return
	}

	results, err := pred.EvalRows(req.Rows)
	if err != nil {
		h.respondError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}

	matched := 0
	for _, hit := range results {
		if hit {
			matched++
		}
	}
	h.respondJSON(w, http.StatusOK, types.EvaluateResponse{Results: results, Matched: matched})
}
