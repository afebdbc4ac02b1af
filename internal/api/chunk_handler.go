package api

import (
	"net/http"
	"strconv"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/repo"
)

// ListChunks возвращает список chunks.
// GET /api/v1/chunks?status=...&limit=...&offset=...
func (h *Handler) ListChunks(w http.ResponseWriter, r *http.Request) {
	filter := repo.ChunkFilter{Limit: 50}
	q := r.URL.Query()

	if s := q.Get("status"); s != "" {
		status, err := domain.ParseChunkStatus(s)
		if err != nil {
			BadRequest(w, "invalid status")
			return
		}
		filter.Status = status
	}

	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			BadRequest(w, "invalid limit")
			return
		}
		filter.Limit = n
	}

	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			BadRequest(w, "invalid offset")
			return
		}
		filter.Offset = n
	}

	chunks, err := h.chunks.List(r.Context(), filter)
	if HandleRepoError(w, h.logger, err, "") {
		return
	}

	result := make([]ChunkResponse, len(chunks))
	for i, c := range chunks {
		result[i] = ChunkFromDomain(c)
	}

	List(w, result, len(result))
}

// GetChunk возвращает chunk по ID.
// GET /api/v1/chunks/{id}
func (h *Handler) GetChunk(w http.ResponseWriter, r *http.Request) {
	id, err := domain.ParseChunkID(r.PathValue("id"))
	if err != nil {
		BadRequest(w, "invalid chunk id")
		return
	}

	chunk, err := h.chunks.GetByID(r.Context(), id)
	if HandleRepoError(w, h.logger, err, "chunk not found") {
		return
	}

	Success(w, ChunkFromDomain(*chunk))
}
