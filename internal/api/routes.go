package api

import (
	"net/http"

	"github.com/shaiso/ppdb-chunks/internal/mq"
)

// RegisterRoutes регистрирует маршруты API.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	// Middleware chain
	chain := Chain(
		Recovery(h.logger),
		Logging(h.logger),
	)

	// Push-подписки
	if h.stage != nil {
		mux.Handle("POST /stage_chunk", chain(h.Push(mq.TopicStageChunk, h.stage)))
	}
	if h.track != nil {
		mux.Handle("POST /track_chunk", chain(h.Push(mq.TopicTrackChunk, h.track)))
	}

	// Промоушен (Cloud Scheduler)
	if h.promoter != nil {
		promote := chain
		if h.requireAuth {
			promote = Chain(chain, RequireBearer())
		}
		mux.Handle("POST /promote_chunks", promote(http.HandlerFunc(h.PromoteChunks)))
	}

	// Chunks
	if h.chunks != nil {
		mux.Handle("GET /api/v1/chunks", chain(http.HandlerFunc(h.ListChunks)))
		mux.Handle("GET /api/v1/chunks/{id}", chain(http.HandlerFunc(h.GetChunk)))
	}
}
