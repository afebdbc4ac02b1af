package domain

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ChunkID — идентификатор replica chunk (apdb_replica_chunk).
//
// Идентификаторы монотонно растут: chunk с большим ID содержит
// более поздние изменения APDB.
type ChunkID int64

// String возвращает десятичное представление ID.
func (id ChunkID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// ParseChunkID парсит ID chunk из строки.
func ParseChunkID(s string) (ChunkID, error) {
	v, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidChunkID, s)
	}
	return ChunkID(v), nil
}

// ReplicaChunk — запись о chunk в трекинговой БД PPDB.
type ReplicaChunk struct {
	// ID — идентификатор chunk.
	ID ChunkID `json:"apdb_replica_chunk"`

	// Status — текущий статус.
	Status ChunkStatus `json:"status"`

	// Directory — GCS-префикс с файлами chunk,
	// например gs://bucket/data/tmp/2025/01/02/1735776000.
	Directory string `json:"directory,omitempty"`

	// UniqueID — уникальный идентификатор экспорта chunk.
	UniqueID *uuid.UUID `json:"unique_id,omitempty"`

	// LastUpdateTime — время последнего изменения данных в APDB.
	LastUpdateTime *time.Time `json:"last_update_time,omitempty"`

	// ExportedAt — время выгрузки из APDB.
	ExportedAt *time.Time `json:"exported_at,omitempty"`

	// StagedAt — время загрузки в staging.
	StagedAt *time.Time `json:"staged_at,omitempty"`

	// PromotedAt — время переноса в production.
	PromotedAt *time.Time `json:"promoted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsPromoted возвращает true, если chunk уже перенесён в production.
func (c *ReplicaChunk) IsPromoted() bool {
	return c.Status == ChunkStatusPromoted
}

// PromotableBatch выбирает chunks, которые можно перенести в production.
//
// На вход подаются все непромоутнутые chunks. Результат — начальный отрезок
// chunks в статусе STAGED, упорядоченных по ID. Первый же chunk в другом
// статусе (exported, uploaded, failed) обрывает отрезок: chunks с большими
// ID нельзя промоутить раньше него.
func PromotableBatch(pending []ReplicaChunk) []ChunkID {
	sorted := make([]ReplicaChunk, 0, len(pending))
	for _, c := range pending {
		if c.IsPromoted() {
			continue
		}
		sorted = append(sorted, c)
	}
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var batch []ChunkID
	for _, c := range sorted {
		if c.Status != ChunkStatusStaged {
			break
		}
		batch = append(batch, c.ID)
	}
	return batch
}

// StagingTableName возвращает имя staging-таблицы для production-таблицы.
// Соглашение: "_" + имя + "_staging".
func StagingTableName(table string) string {
	return "_" + table + "_staging"
}
