package domain

import (
	"fmt"
	"path"
	"strings"
	"time"
)

// StageRequest — сообщение в stage-chunk-topic.
//
// Публикуется после загрузки файлов chunk в bucket:
//
//	{"bucket": "ppdb-prod", "name": "data/tmp/2025/01/02/1735776000", "dataset": "ppdb_prod"}
type StageRequest struct {
	// Bucket — имя GCS bucket.
	Bucket string `json:"bucket"`

	// Name — префикс объекта внутри bucket. Последний сегмент — ID chunk.
	Name string `json:"name"`

	// Dataset — целевой dataset хранилища ("project:dataset" или "dataset").
	Dataset string `json:"dataset"`
}

// Validate проверяет наличие обязательных полей.
func (r *StageRequest) Validate() error {
	switch {
	case r.Bucket == "":
		return fmt.Errorf("%w: bucket", ErrMissingField)
	case r.Name == "":
		return fmt.Errorf("%w: name", ErrMissingField)
	case r.Dataset == "":
		return fmt.Errorf("%w: dataset", ErrMissingField)
	}
	return nil
}

// InputPath возвращает полный GCS-путь к папке chunk.
func (r *StageRequest) InputPath() string {
	return fmt.Sprintf("gs://%s/%s", r.Bucket, strings.TrimSuffix(r.Name, "/"))
}

// ChunkName возвращает последний сегмент префикса.
func (r *StageRequest) ChunkName() string {
	return path.Base(strings.TrimSuffix(r.Name, "/"))
}

// ChunkID парсит ID chunk из последнего сегмента префикса.
func (r *StageRequest) ChunkID() (ChunkID, error) {
	return ParseChunkID(r.ChunkName())
}

// JobName формирует имя Dataflow-задачи: stage-chunk-<chunk>-<YYYYMMDDHHMMSS>.
// Время берётся в UTC.
func (r *StageRequest) JobName(now time.Time) string {
	return fmt.Sprintf("stage-chunk-%s-%s", sanitizeJobSegment(r.ChunkName()), now.UTC().Format("20060102150405"))
}

// sanitizeJobSegment приводит сегмент к алфавиту имён Dataflow: [a-z0-9-].
func sanitizeJobSegment(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			b.WriteRune(r)
			continue
		}
		b.WriteRune('-')
	}
	return b.String()
}

// TrackOperation — операция над записью chunk.
type TrackOperation string

const (
	TrackOperationInsert TrackOperation = "insert"
	TrackOperationUpdate TrackOperation = "update"
)

// TrackMessage — сообщение в track-chunk-topic.
//
//	{"operation": "update", "apdb_replica_chunk": 1735776000, "values": {"status": "staged"}}
type TrackMessage struct {
	Operation TrackOperation `json:"operation"`
	ChunkID   *ChunkID       `json:"apdb_replica_chunk"`
	Values    map[string]any `json:"values"`
}

// Validate проверяет сообщение в том же порядке, в каком
// обработчик читает поля: operation, values, apdb_replica_chunk.
func (m *TrackMessage) Validate() error {
	if m.Operation == "" {
		return ErrMissingOperation
	}
	if m.Operation != TrackOperationInsert && m.Operation != TrackOperationUpdate {
		return fmt.Errorf("%w: %s", ErrUnsupportedOperation, m.Operation)
	}
	if len(m.Values) == 0 {
		return ErrMissingValues
	}
	if m.ChunkID == nil {
		return ErrMissingChunkID
	}
	return nil
}

// NewStagedUpdate формирует сообщение о завершении staging chunk.
func NewStagedUpdate(id ChunkID) TrackMessage {
	return TrackMessage{
		Operation: TrackOperationUpdate,
		ChunkID:   &id,
		Values:    map[string]any{"status": string(ChunkStatusStaged)},
	}
}
