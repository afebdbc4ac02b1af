// Package warehouse — аналитическое хранилище PPDB: BigQuery в GCP,
// DuckDB локально.
//
// Dataset соответствует dataset BigQuery или схеме DuckDB. Для каждой production-таблицы T
// существует staging-таблица _T_staging с теми же колонками, включая
// apdb_replica_chunk. Staging-задача дописывает строки chunk в staging,
// промоушен переносит их в T одной транзакцией.
package warehouse

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "github.com/duckdb/duckdb-go/v2"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

// DefaultTables — production-таблицы PPDB.
var DefaultTables = []string{"DiaObject", "DiaSource", "DiaForcedSource"}

// Ошибки хранилища.
var (
	// ErrTableNotFound — целевая таблица не существует (таблицы не создаются автоматически).
	ErrTableNotFound = errors.New("table not found")

	// ErrInvalidIdentifier — имя dataset или таблицы недопустимо.
	ErrInvalidIdentifier = errors.New("invalid identifier")
)

var identRe = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Store — хранилище на DuckDB.
type Store struct {
	db           *sql.DB
	tables       []string
	logger       *slog.Logger
	QueryTimeout time.Duration
}

// Config — параметры Store.
type Config struct {
	// Path — файл базы. Пустая строка — база в памяти.
	Path string

	// Tables — production-таблицы для промоушена. По умолчанию DefaultTables.
	Tables []string

	Logger       *slog.Logger
	QueryTimeout time.Duration
}

// ConfigFromEnv читает WAREHOUSE_PATH и WAREHOUSE_TABLES (через запятую).
func ConfigFromEnv(logger *slog.Logger) Config {
	cfg := Config{
		Path:   os.Getenv("WAREHOUSE_PATH"),
		Logger: logger,
	}
	if v := os.Getenv("WAREHOUSE_TABLES"); v != "" {
		for _, t := range strings.Split(v, ",") {
			if t = strings.TrimSpace(t); t != "" {
				cfg.Tables = append(cfg.Tables, t)
			}
		}
	}
	return cfg
}

// NewStore открывает (или создаёт) базу DuckDB.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
			return nil, fmt.Errorf("create warehouse dir: %w", err)
		}
	}

	tables := cfg.Tables
	if len(tables) == 0 {
		tables = DefaultTables
	}
	for _, t := range tables {
		if err := validateIdent(t); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open("duckdb", cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("open duckdb: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	qt := cfg.QueryTimeout
	if qt <= 0 {
		qt = 10 * time.Minute
	}

	return &Store{db: db, tables: tables, logger: logger, QueryTimeout: qt}, nil
}

// Close закрывает соединение.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB возвращает *sql.DB для прямых запросов.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Tables возвращает список production-таблиц.
func (s *Store) Tables() []string {
	return append([]string(nil), s.tables...)
}

// LoadParquet дописывает строки Parquet-файла в staging-таблицу _<table>_staging.
// Таблица должна существовать. Возвращает число загруженных строк.
func (s *Store) LoadParquet(ctx context.Context, dataset, table, path string) (int64, error) {
	staging := domain.StagingTableName(table)
	target, err := qualified(dataset, staging)
	if err != nil {
		return 0, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	if err := s.requireTable(ctx, s.db, dataset, staging); err != nil {
		return 0, err
	}

	query := fmt.Sprintf(`INSERT INTO %s BY NAME SELECT * FROM read_parquet(%s)`, target, quoteLiteral(path))
	res, err := s.db.ExecContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("load %s into %s: %w", path, target, err)
	}

	rows, _ := res.RowsAffected()
	s.logger.Info("loaded parquet into staging",
		"table", target,
		"path", path,
		"rows", rows,
	)
	return rows, nil
}

// Promote переносит строки chunks из staging во все production-таблицы
// и удаляет их из staging. Всё выполняется в одной транзакции.
func (s *Store) Promote(ctx context.Context, dataset string, ids []domain.ChunkID) error {
	if len(ids) == 0 {
		return nil
	}
	if err := validateIdent(dataset); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, s.QueryTimeout)
	defer cancel()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	in, args := inClause(ids)

	for _, table := range s.tables {
		staging := domain.StagingTableName(table)
		if err := s.requireTable(ctx, tx, dataset, table); err != nil {
			return err
		}
		if err := s.requireTable(ctx, tx, dataset, staging); err != nil {
			return err
		}

		prod, _ := qualified(dataset, table)
		stg, _ := qualified(dataset, staging)

		copyQuery := fmt.Sprintf(`INSERT INTO %s BY NAME SELECT * FROM %s WHERE apdb_replica_chunk IN (%s)`, prod, stg, in)
		res, err := tx.ExecContext(ctx, copyQuery, args...)
		if err != nil {
			return fmt.Errorf("promote into %s: %w", prod, err)
		}
		copied, _ := res.RowsAffected()

		deleteQuery := fmt.Sprintf(`DELETE FROM %s WHERE apdb_replica_chunk IN (%s)`, stg, in)
		if _, err := tx.ExecContext(ctx, deleteQuery, args...); err != nil {
			return fmt.Errorf("clean %s: %w", stg, err)
		}

		s.logger.Info("promoted table", "table", prod, "rows", copied, "chunks", len(ids))
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

type querier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// requireTable проверяет существование таблицы.
func (s *Store) requireTable(ctx context.Context, q querier, dataset, table string) error {
	var n int
	err := q.QueryRowContext(ctx,
		`SELECT count(*) FROM information_schema.tables WHERE table_schema = ? AND table_name = ?`,
		dataset, table,
	).Scan(&n)
	if err != nil {
		return fmt.Errorf("lookup table %s.%s: %w", dataset, table, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s.%s", ErrTableNotFound, dataset, table)
	}
	return nil
}

// SplitDataset разбирает "project:dataset". Без проекта возвращает defaultProject.
func SplitDataset(datasetID, defaultProject string) (project, dataset string) {
	if p, d, ok := strings.Cut(datasetID, ":"); ok {
		return p, d
	}
	return defaultProject, datasetID
}

func validateIdent(name string) error {
	if !identRe.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidIdentifier, name)
	}
	return nil
}

// qualified возвращает "dataset"."table" после проверки имён.
func qualified(dataset, table string) (string, error) {
	if err := validateIdent(dataset); err != nil {
		return "", err
	}
	if err := validateIdent(table); err != nil {
		return "", err
	}
	return fmt.Sprintf(`"%s"."%s"`, dataset, table), nil
}

// quoteLiteral экранирует строковый литерал SQL.
func quoteLiteral(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// inClause возвращает "?, ?, ..." и аргументы для списка chunks.
func inClause(ids []domain.ChunkID) (string, []any) {
	ph := make([]string, len(ids))
	args := make([]any, len(ids))
	for i, id := range ids {
		ph[i] = "?"
		args[i] = int64(id)
	}
	return strings.Join(ph, ", "), args
}
