package api

import (
	"time"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

// ChunkResponse — ответ с chunk.
type ChunkResponse struct {
	ID             domain.ChunkID     `json:"apdb_replica_chunk"`
	Status         domain.ChunkStatus `json:"status"`
	Directory      string             `json:"directory,omitempty"`
	UniqueID       string             `json:"unique_id,omitempty"`
	LastUpdateTime *time.Time         `json:"last_update_time,omitempty"`
	ExportedAt     *time.Time         `json:"exported_at,omitempty"`
	StagedAt       *time.Time         `json:"staged_at,omitempty"`
	PromotedAt     *time.Time         `json:"promoted_at,omitempty"`
	CreatedAt      time.Time          `json:"created_at"`
	UpdatedAt      time.Time          `json:"updated_at"`
}

// ChunkFromDomain конвертирует domain.ReplicaChunk в ChunkResponse.
func ChunkFromDomain(c domain.ReplicaChunk) ChunkResponse {
	resp := ChunkResponse{
		ID:             c.ID,
		Status:         c.Status,
		Directory:      c.Directory,
		LastUpdateTime: c.LastUpdateTime,
		ExportedAt:     c.ExportedAt,
		StagedAt:       c.StagedAt,
		PromotedAt:     c.PromotedAt,
		CreatedAt:      c.CreatedAt,
		UpdatedAt:      c.UpdatedAt,
	}
	if c.UniqueID != nil {
		resp.UniqueID = c.UniqueID.String()
	}
	return resp
}

// PushResponse — ответ на push-доставку сообщения.
type PushResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}
