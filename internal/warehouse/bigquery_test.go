package warehouse

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"google.golang.org/api/option"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

func TestPromoteScript(t *testing.T) {
	got, err := promoteScript("myproj", "ppdb", []string{"DiaObject", "DiaSource"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "BEGIN TRANSACTION;\n" +
		"INSERT INTO `myproj.ppdb.DiaObject` SELECT * FROM `myproj.ppdb._DiaObject_staging` WHERE apdb_replica_chunk IN UNNEST(@ids);\n" +
		"DELETE FROM `myproj.ppdb._DiaObject_staging` WHERE apdb_replica_chunk IN UNNEST(@ids);\n" +
		"INSERT INTO `myproj.ppdb.DiaSource` SELECT * FROM `myproj.ppdb._DiaSource_staging` WHERE apdb_replica_chunk IN UNNEST(@ids);\n" +
		"DELETE FROM `myproj.ppdb._DiaSource_staging` WHERE apdb_replica_chunk IN UNNEST(@ids);\n" +
		"COMMIT TRANSACTION;\n"
	if got != want {
		t.Errorf("script mismatch:\n got: %s\nwant: %s", got, want)
	}
}

func TestPromoteScript_InvalidIdentifier(t *testing.T) {
	if _, err := promoteScript("p", "ppdb; DROP", []string{"DiaObject"}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
	if _, err := promoteScript("p", "ppdb", []string{"Dia`Object"}); !errors.Is(err, ErrInvalidIdentifier) {
		t.Errorf("expected ErrInvalidIdentifier, got %v", err)
	}
}

// newFakeBigQuery отвечает на jobs.insert и jobs.get одним и тем же описанием задачи.
func newFakeBigQuery(t *testing.T, job string, inserted *map[string]any) *BigQuery {
	t.Helper()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodPost && strings.HasSuffix(r.URL.Path, "/projects/myproj/jobs"):
			body, _ := io.ReadAll(r.Body)
			if err := json.Unmarshal(body, inserted); err != nil {
				t.Errorf("decode job: %v", err)
			}
		case r.Method == http.MethodGet && strings.Contains(r.URL.Path, "/projects/myproj/jobs/"):
		default:
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(job))
	}))
	t.Cleanup(srv.Close)

	bq, err := NewBigQuery(context.Background(), "myproj",
		Config{Tables: []string{"DiaObject"}, Logger: slog.New(slog.NewTextHandler(io.Discard, nil))},
		option.WithEndpoint(srv.URL+"/bigquery/v2/"),
		option.WithoutAuthentication(),
	)
	if err != nil {
		t.Fatalf("create client: %v", err)
	}
	t.Cleanup(func() { bq.Close() })
	return bq
}

func TestBigQuery_LoadParquet(t *testing.T) {
	var inserted map[string]any
	bq := newFakeBigQuery(t, `{
		"jobReference": {"projectId": "myproj", "jobId": "load-1", "location": "US"},
		"configuration": {"load": {}},
		"status": {"state": "DONE"},
		"statistics": {"load": {"outputRows": "42"}}
	}`, &inserted)

	rows, err := bq.LoadParquet(context.Background(), "ppdb", "DiaObject", "gs://b/data/1/DiaObject.parquet")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rows != 42 {
		t.Errorf("rows = %d, want 42", rows)
	}

	load := inserted["configuration"].(map[string]any)["load"].(map[string]any)
	if load["writeDisposition"] != "WRITE_APPEND" || load["createDisposition"] != "CREATE_NEVER" {
		t.Errorf("unexpected dispositions: %v / %v", load["writeDisposition"], load["createDisposition"])
	}
	if load["sourceFormat"] != "PARQUET" {
		t.Errorf("unexpected source format: %v", load["sourceFormat"])
	}
	dest := load["destinationTable"].(map[string]any)
	if dest["datasetId"] != "ppdb" || dest["tableId"] != "_DiaObject_staging" {
		t.Errorf("unexpected destination: %v", dest)
	}
}

func TestBigQuery_LoadParquet_MissingTable(t *testing.T) {
	var inserted map[string]any
	bq := newFakeBigQuery(t, `{
		"jobReference": {"projectId": "myproj", "jobId": "load-2", "location": "US"},
		"configuration": {"load": {}},
		"status": {
			"state": "DONE",
			"errorResult": {"reason": "notFound", "message": "Not found: Table myproj:ppdb._DiaObject_staging"}
		}
	}`, &inserted)

	_, err := bq.LoadParquet(context.Background(), "ppdb", "DiaObject", "gs://b/data/1/DiaObject.parquet")
	if !errors.Is(err, ErrTableNotFound) {
		t.Errorf("expected ErrTableNotFound, got %v", err)
	}
}

func TestBigQuery_PromoteEmpty(t *testing.T) {
	bq := &BigQuery{tables: []string{"DiaObject"}}
	if err := bq.Promote(context.Background(), "ppdb", []domain.ChunkID{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestOpen_UnknownBackend(t *testing.T) {
	if _, err := Open(context.Background(), "sqlite", "p", Config{}); err == nil {
		t.Error("expected error for unknown backend")
	}
	if _, err := Open(context.Background(), BackendBigQuery, "", Config{}); err == nil {
		t.Error("expected error for bigquery without project")
	}
}

func TestBackendFromEnv(t *testing.T) {
	t.Setenv("WAREHOUSE", "")
	if got := BackendFromEnv("myproj"); got != BackendBigQuery {
		t.Errorf("with project = %s", got)
	}
	if got := BackendFromEnv(""); got != BackendDuckDB {
		t.Errorf("without project = %s", got)
	}
	t.Setenv("WAREHOUSE", BackendDuckDB)
	if got := BackendFromEnv("myproj"); got != BackendDuckDB {
		t.Errorf("env = %s", got)
	}
}
