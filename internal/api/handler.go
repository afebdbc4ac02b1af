package api

import (
	"context"
	"log/slog"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/promote"
	"github.com/shaiso/ppdb-chunks/internal/repo"
)

// EventHandler обрабатывает сообщение топика (stage.Trigger.Handle, track.Tracker.Handle).
type EventHandler func(ctx context.Context, msg *event.Message) error

// Promoter выполняет промоушен chunks.
type Promoter interface {
	Promote(ctx context.Context, dryRun bool) (*promote.Result, error)
}

// ChunkReader читает состояние chunks.
type ChunkReader interface {
	GetByID(ctx context.Context, id domain.ChunkID) (*domain.ReplicaChunk, error)
	List(ctx context.Context, filter repo.ChunkFilter) ([]domain.ReplicaChunk, error)
}

// Handler — главный обработчик API с зависимостями.
//
// Каждый сервис поднимает только свою часть: маршрут регистрируется,
// если задана его зависимость.
type Handler struct {
	stage       EventHandler
	track       EventHandler
	promoter    Promoter
	chunks      ChunkReader
	requireAuth bool
	logger      *slog.Logger
}

// Config — конфигурация для создания Handler.
type Config struct {
	Stage    EventHandler
	Track    EventHandler
	Promoter Promoter
	Chunks   ChunkReader

	// RequireAuth — требовать Bearer-токен (OIDC Cloud Scheduler) для /promote_chunks.
	RequireAuth bool

	Logger *slog.Logger
}

// NewHandler создаёт новый Handler.
func NewHandler(cfg Config) *Handler {
	return &Handler{
		stage:       cfg.Stage,
		track:       cfg.Track,
		promoter:    cfg.Promoter,
		chunks:      cfg.Chunks,
		requireAuth: cfg.RequireAuth,
		logger:      cfg.Logger,
	}
}
