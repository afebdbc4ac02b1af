package repo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shaiso/ppdb-chunks/internal/domain"
)

const chunkColumns = `apdb_replica_chunk, status, directory, unique_id, last_update_time,
		       exported_at, staged_at, promoted_at, created_at, updated_at`

// ChunkRepo — репозиторий трекинговой таблицы ppdb_replica_chunk.
type ChunkRepo struct {
	pool *pgxpool.Pool
	now  func() time.Time
}

// NewChunkRepo создаёт новый ChunkRepo.
func NewChunkRepo(pool *pgxpool.Pool) *ChunkRepo {
	return &ChunkRepo{pool: pool, now: time.Now}
}

// Insert создаёт запись о chunk.
// Если запись уже есть, возвращает ErrAlreadyExists (повторная доставка).
func (r *ChunkRepo) Insert(ctx context.Context, id domain.ChunkID, values map[string]any) error {
	assignments, err := BuildAssignments(values, r.now().UTC())
	if err != nil {
		return err
	}

	cols := []string{"apdb_replica_chunk"}
	args := []any{int64(id)}
	for _, a := range assignments {
		cols = append(cols, a.Column)
		args = append(args, a.Value)
	}

	query := fmt.Sprintf(`
		INSERT INTO ppdb_replica_chunk (%s)
		VALUES (%s)
		ON CONFLICT (apdb_replica_chunk) DO NOTHING
	`, strings.Join(cols, ", "), placeholders(1, len(args)))

	result, err := r.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("insert chunk: %w", translatePgError(err))
	}
	if result.RowsAffected() == 0 {
		return ErrAlreadyExists
	}
	return nil
}

// Update изменяет колонки chunk.
//
// Если в values есть status, переход проверяется через domain.CanTransition
// под блокировкой строки: недопустимый переход — ErrInvalidState.
func (r *ChunkRepo) Update(ctx context.Context, id domain.ChunkID, values map[string]any) error {
	assignments, err := BuildAssignments(values, r.now().UTC())
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	var current domain.ChunkStatus
	err = tx.QueryRow(ctx,
		`SELECT status FROM ppdb_replica_chunk WHERE apdb_replica_chunk = $1 FOR UPDATE`,
		int64(id),
	).Scan(&current)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock chunk: %w", err)
	}

	if next, ok := statusOf(assignments); ok && !domain.CanTransition(current, next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidState, current, next)
	}

	sets := make([]string, 0, len(assignments)+1)
	args := []any{int64(id)}
	for _, a := range assignments {
		args = append(args, a.Value)
		sets = append(sets, fmt.Sprintf("%s = $%d", a.Column, len(args)))
	}
	sets = append(sets, "updated_at = now()")

	query := fmt.Sprintf(`UPDATE ppdb_replica_chunk SET %s WHERE apdb_replica_chunk = $1`, strings.Join(sets, ", "))
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("update chunk: %w", translatePgError(err))
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

// GetByID возвращает chunk по ID.
func (r *ChunkRepo) GetByID(ctx context.Context, id domain.ChunkID) (*domain.ReplicaChunk, error) {
	query := `SELECT ` + chunkColumns + ` FROM ppdb_replica_chunk WHERE apdb_replica_chunk = $1`
	return scanChunk(r.pool.QueryRow(ctx, query, int64(id)))
}

// ChunkFilter — параметры фильтрации chunks.
type ChunkFilter struct {
	Status domain.ChunkStatus
	Limit  int
	Offset int
}

// List возвращает chunks, упорядоченные по ID по убыванию.
func (r *ChunkRepo) List(ctx context.Context, filter ChunkFilter) ([]domain.ReplicaChunk, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `
		SELECT ` + chunkColumns + `
		FROM ppdb_replica_chunk
		WHERE ($1::text IS NULL OR status = $1)
		ORDER BY apdb_replica_chunk DESC
		LIMIT $2 OFFSET $3
	`
	rows, err := r.pool.Query(ctx, query, nullString(string(filter.Status)), limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("list chunks: %w", err)
	}
	return collectChunks(rows)
}

// ListPending возвращает непромоутнутые chunks по возрастанию ID.
func (r *ChunkRepo) ListPending(ctx context.Context, limit int) ([]domain.ReplicaChunk, error) {
	query := `
		SELECT ` + chunkColumns + `
		FROM ppdb_replica_chunk
		WHERE status <> 'promoted'
		ORDER BY apdb_replica_chunk ASC
		LIMIT $1
	`
	rows, err := r.pool.Query(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list pending chunks: %w", err)
	}
	return collectChunks(rows)
}

// MarkPromoted переводит chunks из STAGED в PROMOTED.
// Возвращает число обновлённых записей.
func (r *ChunkRepo) MarkPromoted(ctx context.Context, ids []domain.ChunkID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	raw := make([]int64, len(ids))
	for i, id := range ids {
		raw[i] = int64(id)
	}

	query := `
		UPDATE ppdb_replica_chunk
		SET status = 'promoted', promoted_at = now(), updated_at = now()
		WHERE apdb_replica_chunk = ANY($1) AND status = 'staged'
	`
	result, err := r.pool.Exec(ctx, query, raw)
	if err != nil {
		return 0, fmt.Errorf("mark chunks promoted: %w", err)
	}
	return result.RowsAffected(), nil
}

// --- Helpers ---

func collectChunks(rows pgx.Rows) ([]domain.ReplicaChunk, error) {
	defer rows.Close()

	var chunks []domain.ReplicaChunk
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		chunks = append(chunks, *c)
	}
	return chunks, rows.Err()
}

// scanChunk сканирует одну строку в ReplicaChunk.
func scanChunk(row pgx.Row) (*domain.ReplicaChunk, error) {
	var c domain.ReplicaChunk
	var id int64
	var directory *string

	err := row.Scan(
		&id,
		&c.Status,
		&directory,
		&c.UniqueID,
		&c.LastUpdateTime,
		&c.ExportedAt,
		&c.StagedAt,
		&c.PromotedAt,
		&c.CreatedAt,
		&c.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan chunk: %w", err)
	}

	c.ID = domain.ChunkID(id)
	if directory != nil {
		c.Directory = *directory
	}
	return &c, nil
}

// placeholders возвращает "$from, $from+1, ..." для n аргументов.
func placeholders(from, n int) string {
	ph := make([]string, n)
	for i := range ph {
		ph[i] = fmt.Sprintf("$%d", from+i)
	}
	return strings.Join(ph, ", ")
}

// translatePgError превращает нарушения ограничений в ошибки репозитория.
func translatePgError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23505":
		return fmt.Errorf("%w: %s", ErrAlreadyExists, pgErr.Message)
	case "23514", "22P02":
		return fmt.Errorf("%w: %s", ErrInvalidValue, pgErr.Message)
	}
	return err
}

// nullString возвращает nil для пустой строки (для NULL в БД).
func nullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
