// Package promote переносит staged chunks из staging-таблиц в production.
//
// Промоутится только непрерывный префикс: staged chunks, перед которыми
// все chunks уже промоутнуты.
package promote

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// ErrNoPromotableChunks — нет chunks, готовых к промоушену.
var ErrNoPromotableChunks = errors.New("no promotable chunks")

// Режимы запуска.
const (
	ModeExecute = "execute"
	ModeDryRun  = "dry_run"
)

const defaultBatchLimit = 1000

// ChunkStore — трекинговая БД chunks.
type ChunkStore interface {
	ListPending(ctx context.Context, limit int) ([]domain.ReplicaChunk, error)
	MarkPromoted(ctx context.Context, ids []domain.ChunkID) (int64, error)
}

// Warehouse переносит строки chunks из staging в production.
type Warehouse interface {
	Promote(ctx context.Context, dataset string, ids []domain.ChunkID) error
}

// Result — итог запуска.
type Result struct {
	Mode     string
	ChunkIDs []domain.ChunkID
	Promoted int64
}

// Service выполняет промоушен.
type Service struct {
	chunks    ChunkStore
	warehouse Warehouse
	dataset   string
	logger    *slog.Logger

	// BatchLimit — сколько непромоутнутых chunks читать за запуск.
	BatchLimit int

	// mu не даёт двум запускам в одном процессе промоутить одни и те же chunks.
	mu sync.Mutex
}

// NewService создаёт Service для dataset.
func NewService(chunks ChunkStore, wh Warehouse, dataset string, logger *slog.Logger) *Service {
	return &Service{
		chunks:     chunks,
		warehouse:  wh,
		dataset:    dataset,
		logger:     telemetry.WithComponent(logger, "promote_chunks"),
		BatchLimit: defaultBatchLimit,
	}
}

// Promote промоутит очередную партию chunks.
// В режиме dryRun только вычисляет партию.
func (s *Service) Promote(ctx context.Context, dryRun bool) (*Result, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	start := time.Now()
	defer func() {
		telemetry.PromotionDuration.Observe(time.Since(start).Seconds())
	}()

	pending, err := s.chunks.ListPending(ctx, s.BatchLimit)
	if err != nil {
		return nil, fmt.Errorf("get promotable chunks: %w", err)
	}

	batch := domain.PromotableBatch(pending)
	if len(batch) == 0 {
		return nil, ErrNoPromotableChunks
	}

	logger := s.logger.With("chunks", len(batch), "first", batch[0], "last", batch[len(batch)-1])

	if dryRun {
		logger.Info("dry run, chunks not promoted")
		return &Result{Mode: ModeDryRun, ChunkIDs: batch}, nil
	}

	logger.Info("promoting chunks")
	if err := s.warehouse.Promote(ctx, s.dataset, batch); err != nil {
		return nil, fmt.Errorf("promote chunks: %w", err)
	}

	n, err := s.chunks.MarkPromoted(ctx, batch)
	if err != nil {
		return nil, fmt.Errorf("mark chunks promoted: %w", err)
	}
	telemetry.ChunksPromoted.Add(float64(n))

	logger.Info("chunks promoted", "marked", n)
	return &Result{Mode: ModeExecute, ChunkIDs: batch, Promoted: n}, nil
}

// Response — JSON-ответ promote_chunks.
type Response struct {
	OK             bool             `json:"ok"`
	Mode           string           `json:"mode,omitempty"`
	Message        string           `json:"message,omitempty"`
	Error          string           `json:"error,omitempty"`
	ChunksPromoted int64            `json:"chunks_promoted"`
	ChunkIDs       []domain.ChunkID `json:"chunk_ids,omitempty"`
}

// NewResponse переводит результат запуска в HTTP-статус и тело ответа.
func NewResponse(res *Result, err error) (int, Response) {
	switch {
	case errors.Is(err, ErrNoPromotableChunks):
		return http.StatusOK, Response{OK: true, Message: "No promotable chunks found"}
	case err != nil:
		return http.StatusInternalServerError, Response{OK: false, Error: err.Error()}
	case res.Mode == ModeDryRun:
		return http.StatusOK, Response{OK: true, Mode: ModeDryRun, ChunkIDs: res.ChunkIDs}
	default:
		return http.StatusOK, Response{OK: true, Mode: ModeExecute, ChunksPromoted: res.Promoted}
	}
}
