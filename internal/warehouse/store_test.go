package warehouse

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()

	s, err := NewStore(Config{Tables: []string{"DiaObject"}})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	ddl := []string{
		`CREATE SCHEMA ppdb`,
		`CREATE TABLE ppdb."DiaObject" (apdb_replica_chunk BIGINT, id BIGINT, ra DOUBLE)`,
		`CREATE TABLE ppdb."_DiaObject_staging" (apdb_replica_chunk BIGINT, id BIGINT, ra DOUBLE)`,
	}
	for _, q := range ddl {
		if _, err := s.DB().Exec(q); err != nil {
			t.Fatalf("%s: %v", q, err)
		}
	}
	return s
}

func count(t *testing.T, s *Store, table string) int {
	t.Helper()
	var n int
	if err := s.DB().QueryRow(`SELECT count(*) FROM ppdb."` + table + `"`).Scan(&n); err != nil {
		t.Fatalf("count %s: %v", table, err)
	}
	return n
}

func writeParquet(t *testing.T, s *Store, path string, chunk int64, rows int) {
	t.Helper()
	q := `COPY (SELECT ` + itoa(chunk) + `::BIGINT AS apdb_replica_chunk, i::BIGINT AS id, 1.5::DOUBLE AS ra
		FROM range(` + itoa(int64(rows)) + `) t(i)) TO ` + quoteLiteral(path) + ` (FORMAT PARQUET)`
	if _, err := s.DB().Exec(q); err != nil {
		t.Fatalf("write parquet: %v", err)
	}
}

func itoa(n int64) string {
	return domain.ChunkID(n).String()
}

func TestLoadParquet_AndPromote(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	dir := t.TempDir()

	p1 := filepath.Join(dir, "c1.parquet")
	p2 := filepath.Join(dir, "c2.parquet")
	writeParquet(t, s, p1, 1, 3)
	writeParquet(t, s, p2, 2, 2)

	n, err := s.LoadParquet(ctx, "ppdb", "DiaObject", p1)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if n != 3 {
		t.Errorf("expected 3 rows, got %d", n)
	}
	if _, err := s.LoadParquet(ctx, "ppdb", "DiaObject", p2); err != nil {
		t.Fatalf("load: %v", err)
	}

	if got := count(t, s, "_DiaObject_staging"); got != 5 {
		t.Fatalf("expected 5 staged rows, got %d", got)
	}

	if err := s.Promote(ctx, "ppdb", []domain.ChunkID{1}); err != nil {
		t.Fatalf("promote: %v", err)
	}

	if got := count(t, s, "DiaObject"); got != 3 {
		t.Errorf("expected 3 promoted rows, got %d", got)
	}
	if got := count(t, s, "_DiaObject_staging"); got != 2 {
		t.Errorf("expected chunk 2 to stay in staging, got %d rows", got)
	}
}

func TestLoadParquet_MissingTable(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadParquet(context.Background(), "ppdb", "DiaSource", "/nonexistent.parquet")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestLoadParquet_InvalidIdentifier(t *testing.T) {
	s := newTestStore(t)

	_, err := s.LoadParquet(context.Background(), "ppdb", `x"; DROP TABLE y; --`, "/a.parquet")
	if !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

func TestPromote_Empty(t *testing.T) {
	s := newTestStore(t)
	if err := s.Promote(context.Background(), "ppdb", nil); err != nil {
		t.Errorf("empty promote should be a no-op, got %v", err)
	}
}

func TestSplitDataset(t *testing.T) {
	tests := []struct {
		in, project, dataset string
	}{
		{"myproj:ppdb", "myproj", "ppdb"},
		{"ppdb", "default", "ppdb"},
	}

	for _, tt := range tests {
		p, d := SplitDataset(tt.in, "default")
		if p != tt.project || d != tt.dataset {
			t.Errorf("SplitDataset(%q) = %q, %q", tt.in, p, d)
		}
	}
}

func TestQuoteLiteral(t *testing.T) {
	if got := quoteLiteral("it's"); got != "'it''s'" {
		t.Errorf("unexpected literal: %s", got)
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("WAREHOUSE_PATH", "/var/lib/ppdb/warehouse.duckdb")
	t.Setenv("WAREHOUSE_TABLES", "DiaObject, DiaSource,,")

	cfg := ConfigFromEnv(nil)
	if cfg.Path != "/var/lib/ppdb/warehouse.duckdb" {
		t.Errorf("unexpected path: %q", cfg.Path)
	}
	if len(cfg.Tables) != 2 || cfg.Tables[0] != "DiaObject" || cfg.Tables[1] != "DiaSource" {
		t.Errorf("unexpected tables: %v", cfg.Tables)
	}
}
