package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/shaiso/ppdb-chunks/internal/promote"
)

// PromoteChunks промоутит очередную партию chunks.
// POST /promote_chunks?dry_run=true
func (h *Handler) PromoteChunks(w http.ResponseWriter, r *http.Request) {
	dryRun := false
	if v := r.URL.Query().Get("dry_run"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			BadRequest(w, "invalid dry_run")
			return
		}
		dryRun = b
	}

	res, err := h.promoter.Promote(r.Context(), dryRun)
	if err != nil && !errors.Is(err, promote.ErrNoPromotableChunks) {
		h.logger.Error("error during chunk promotion", "error", err)
	}

	status, body := promote.NewResponse(res, err)
	JSON(w, status, body)
}
