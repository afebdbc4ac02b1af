package repo

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

// newIntegrationRepo подключается к DB_URL и создаёт таблицу трекинга
// в отдельной схеме, которая удаляется после теста.
func newIntegrationRepo(t *testing.T) *ChunkRepo {
	t.Helper()

	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		t.Skip("DB_URL not set, skipping PostgreSQL integration test")
	}
	ctx := context.Background()

	schema := "ppdb_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")

	admin, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(admin.Close)
	if _, err := admin.Exec(ctx, `CREATE SCHEMA `+schema); err != nil {
		t.Fatalf("create schema: %v", err)
	}
	t.Cleanup(func() {
		admin.Exec(context.Background(), `DROP SCHEMA `+schema+` CASCADE`)
	})

	cfg, err := pgxpool.ParseConfig(dbURL)
	if err != nil {
		t.Fatalf("parse DB_URL: %v", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		t.Fatalf("connect: %v", err)
	}
	t.Cleanup(pool.Close)

	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	// повторный вызов не должен падать
	if err := EnsureSchema(ctx, pool); err != nil {
		t.Fatalf("ensure schema twice: %v", err)
	}

	repo := NewChunkRepo(pool)
	repo.now = func() time.Time { return time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC) }
	return repo
}

func insertChunk(t *testing.T, r *ChunkRepo, id domain.ChunkID, status domain.ChunkStatus) {
	t.Helper()
	if err := r.Insert(context.Background(), id, map[string]any{"status": string(status)}); err != nil {
		t.Fatalf("insert %d: %v", id, err)
	}
}

func TestChunkRepo_Insert_Conflict(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()

	values := map[string]any{"status": "exported", "directory": "gs://b/data/1"}
	if err := r.Insert(ctx, 1, values); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := r.Insert(ctx, 1, values); !errors.Is(err, ErrAlreadyExists) {
		t.Errorf("expected ErrAlreadyExists on redelivery, got %v", err)
	}

	got, err := r.GetByID(ctx, 1)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Status != domain.ChunkStatusExported || got.Directory != "gs://b/data/1" {
		t.Errorf("unexpected chunk: %+v", got)
	}
}

func TestChunkRepo_Update_Transitions(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()

	insertChunk(t, r, 10, domain.ChunkStatusUploaded)

	if err := r.Update(ctx, 10, map[string]any{"status": "staged"}); err != nil {
		t.Fatalf("uploaded -> staged: %v", err)
	}
	got, err := r.GetByID(ctx, 10)
	if err != nil {
		t.Fatal(err)
	}
	if got.Status != domain.ChunkStatusStaged || got.StagedAt == nil {
		t.Errorf("expected staged with staged_at, got %+v", got)
	}

	err = r.Update(ctx, 10, map[string]any{"status": "uploaded"})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("staged -> uploaded: expected ErrInvalidState, got %v", err)
	}

	err = r.Update(ctx, 999, map[string]any{"status": "staged"})
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("missing chunk: expected ErrNotFound, got %v", err)
	}

	// статус не изменился после отклонённого перехода
	got, _ = r.GetByID(ctx, 10)
	if got.Status != domain.ChunkStatusStaged {
		t.Errorf("rejected transition must not change status, got %s", got.Status)
	}
}

func TestChunkRepo_Update_PromotedIsTerminal(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()

	insertChunk(t, r, 20, domain.ChunkStatusStaged)
	if _, err := r.MarkPromoted(ctx, []domain.ChunkID{20}); err != nil {
		t.Fatal(err)
	}

	err := r.Update(ctx, 20, map[string]any{"status": "failed"})
	if !errors.Is(err, ErrInvalidState) {
		t.Errorf("promoted -> failed: expected ErrInvalidState, got %v", err)
	}
}

func TestChunkRepo_MarkPromoted_OnlyStaged(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()

	insertChunk(t, r, 1, domain.ChunkStatusStaged)
	insertChunk(t, r, 2, domain.ChunkStatusUploaded)
	insertChunk(t, r, 3, domain.ChunkStatusStaged)

	n, err := r.MarkPromoted(ctx, []domain.ChunkID{1, 2, 3})
	if err != nil {
		t.Fatalf("mark promoted: %v", err)
	}
	if n != 2 {
		t.Errorf("expected 2 rows promoted, got %d", n)
	}

	for id, want := range map[domain.ChunkID]domain.ChunkStatus{
		1: domain.ChunkStatusPromoted,
		2: domain.ChunkStatusUploaded,
		3: domain.ChunkStatusPromoted,
	} {
		got, err := r.GetByID(ctx, id)
		if err != nil {
			t.Fatal(err)
		}
		if got.Status != want {
			t.Errorf("chunk %d: status %s, want %s", id, got.Status, want)
		}
		if want == domain.ChunkStatusPromoted && got.PromotedAt == nil {
			t.Errorf("chunk %d: promoted_at not set", id)
		}
	}

	// повторный промоушен ничего не меняет
	n, err = r.MarkPromoted(ctx, []domain.ChunkID{1, 3})
	if err != nil || n != 0 {
		t.Errorf("second mark promoted: n=%d err=%v", n, err)
	}
}

func TestChunkRepo_ListPending_Order(t *testing.T) {
	r := newIntegrationRepo(t)
	ctx := context.Background()

	insertChunk(t, r, 30, domain.ChunkStatusStaged)
	insertChunk(t, r, 10, domain.ChunkStatusUploaded)
	insertChunk(t, r, 20, domain.ChunkStatusStaged)
	insertChunk(t, r, 5, domain.ChunkStatusStaged)
	if _, err := r.MarkPromoted(ctx, []domain.ChunkID{5}); err != nil {
		t.Fatal(err)
	}

	pending, err := r.ListPending(ctx, 10)
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}

	var ids []domain.ChunkID
	for _, c := range pending {
		ids = append(ids, c.ID)
	}
	want := []domain.ChunkID{10, 20, 30}
	if len(ids) != len(want) {
		t.Fatalf("pending = %v, want %v", ids, want)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Errorf("pending = %v, want %v", ids, want)
			break
		}
	}

	limited, err := r.ListPending(ctx, 2)
	if err != nil {
		t.Fatal(err)
	}
	if len(limited) != 2 || limited[0].ID != 10 {
		t.Errorf("limit must keep the oldest chunks first, got %v", limited)
	}
}

func TestChunkRepo_Insert_InvalidStatus(t *testing.T) {
	r := newIntegrationRepo(t)

	err := r.Insert(context.Background(), 40, map[string]any{"status": "bogus"})
	if !errors.Is(err, ErrInvalidValue) {
		t.Errorf("expected ErrInvalidValue, got %v", err)
	}
}
