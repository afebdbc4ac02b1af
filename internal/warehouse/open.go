package warehouse

import (
	"context"
	"fmt"
	"os"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

// Реализации хранилища.
const (
	BackendBigQuery = "bigquery"
	BackendDuckDB   = "duckdb"
)

// Warehouse — операции хранилища, общие для BigQuery и DuckDB.
type Warehouse interface {
	LoadParquet(ctx context.Context, dataset, table, path string) (int64, error)
	Promote(ctx context.Context, dataset string, ids []domain.ChunkID) error
	Close() error
}

// BackendFromEnv читает WAREHOUSE. По умолчанию BigQuery, если проект
// известен, иначе DuckDB.
func BackendFromEnv(project string) string {
	if v := os.Getenv("WAREHOUSE"); v != "" {
		return v
	}
	if project != "" {
		return BackendBigQuery
	}
	return BackendDuckDB
}

// Open открывает хранилище backend. project нужен только BigQuery.
func Open(ctx context.Context, backend, project string, cfg Config) (Warehouse, error) {
	switch backend {
	case BackendBigQuery:
		if project == "" {
			return nil, fmt.Errorf("bigquery warehouse requires a project")
		}
		bq, err := NewBigQuery(ctx, project, cfg)
		if err != nil {
			return nil, err
		}
		return bq, nil
	case BackendDuckDB:
		s, err := NewStore(cfg)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown warehouse %q", backend)
	}
}
