// Package track ведёт учёт состояния chunks по сообщениям track-chunk-topic.
package track

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/repo"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// ChunkStore — запись состояния chunks.
type ChunkStore interface {
	Insert(ctx context.Context, id domain.ChunkID, values map[string]any) error
	Update(ctx context.Context, id domain.ChunkID, values map[string]any) error
}

// Tracker обрабатывает сообщения track-chunk-topic.
type Tracker struct {
	store  ChunkStore
	logger *slog.Logger
}

// NewTracker создаёт Tracker.
func NewTracker(store ChunkStore, logger *slog.Logger) *Tracker {
	return &Tracker{
		store:  store,
		logger: telemetry.WithComponent(logger, "track_chunk"),
	}
}

// Handle применяет insert или update к записи chunk.
//
// Невалидные сообщения, неизвестные колонки и недопустимые переходы
// статуса — Permanent. Повторный insert того же chunk подтверждается.
// Ошибки БД возвращаются для повтора.
func (t *Tracker) Handle(ctx context.Context, msg *event.Message) error {
	logger := telemetry.WithEventID(t.logger, msg.ID)

	m, err := event.DecodeJSON[domain.TrackMessage](msg)
	if err != nil {
		return err
	}
	logger.Info("received message", "operation", m.Operation, "values", m.Values)

	if err := m.Validate(); err != nil {
		return event.Permanent(err)
	}

	id := *m.ChunkID
	logger = telemetry.WithChunkID(logger, id)

	switch m.Operation {
	case domain.TrackOperationInsert:
		err = t.store.Insert(ctx, id, m.Values)
	case domain.TrackOperationUpdate:
		err = t.store.Update(ctx, id, m.Values)
	}

	switch {
	case err == nil:
		telemetry.ChunkUpdates.WithLabelValues(string(m.Operation)).Inc()
		logger.Info("chunk record written", "operation", m.Operation)
		return nil
	case errors.Is(err, repo.ErrAlreadyExists):
		logger.Warn("chunk already tracked, ignoring insert")
		return nil
	case errors.Is(err, repo.ErrNotFound),
		errors.Is(err, repo.ErrInvalidState),
		errors.Is(err, repo.ErrUnknownColumn),
		errors.Is(err, repo.ErrInvalidValue):
		return event.Permanent(fmt.Errorf("%s chunk %s: %w", m.Operation, id, err))
	default:
		return fmt.Errorf("%s chunk %s: %w", m.Operation, id, err)
	}
}
