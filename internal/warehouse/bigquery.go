package warehouse

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/shaiso/ppdb-chunks/internal/domain"
)

// BigQuery — хранилище PPDB в BigQuery. Dataset соответствует dataset
// BigQuery в проекте клиента.
type BigQuery struct {
	client *bigquery.Client
	tables []string
	logger *slog.Logger
}

// NewBigQuery создаёт клиент BigQuery для project.
func NewBigQuery(ctx context.Context, project string, cfg Config, opts ...option.ClientOption) (*BigQuery, error) {
	tables := cfg.Tables
	if len(tables) == 0 {
		tables = DefaultTables
	}
	for _, t := range tables {
		if err := validateIdent(t); err != nil {
			return nil, err
		}
	}

	client, err := bigquery.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create bigquery client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &BigQuery{client: client, tables: tables, logger: logger}, nil
}

// Close закрывает клиент.
func (b *BigQuery) Close() error {
	return b.client.Close()
}

// LoadParquet запускает load job из gs:// URI в _<table>_staging.
// Строки дописываются, таблица не создаётся.
func (b *BigQuery) LoadParquet(ctx context.Context, dataset, table, uri string) (int64, error) {
	staging := domain.StagingTableName(table)
	if _, err := qualified(dataset, staging); err != nil {
		return 0, err
	}

	ref := bigquery.NewGCSReference(uri)
	ref.SourceFormat = bigquery.Parquet

	loader := b.client.Dataset(dataset).Table(staging).LoaderFrom(ref)
	loader.WriteDisposition = bigquery.WriteAppend
	loader.CreateDisposition = bigquery.CreateNever

	status, err := b.wait(ctx, func() (*bigquery.Job, error) { return loader.Run(ctx) })
	if err != nil {
		return 0, fmt.Errorf("load %s into %s.%s: %w", uri, dataset, staging, mapNotFound(err, dataset, staging))
	}

	var rows int64
	if stats, ok := status.Statistics.Details.(*bigquery.LoadStatistics); ok {
		rows = stats.OutputRows
	}
	b.logger.Info("loaded parquet into staging",
		"table", dataset+"."+staging,
		"path", uri,
		"rows", rows,
	)
	return rows, nil
}

// Promote переносит строки chunks из staging в production-таблицы одним
// многооператорным скриптом в транзакции.
func (b *BigQuery) Promote(ctx context.Context, dataset string, ids []domain.ChunkID) error {
	if len(ids) == 0 {
		return nil
	}

	script, err := promoteScript(b.client.Project(), dataset, b.tables)
	if err != nil {
		return err
	}

	params := make([]int64, len(ids))
	for i, id := range ids {
		params[i] = int64(id)
	}

	q := b.client.Query(script)
	q.Parameters = []bigquery.QueryParameter{{Name: "ids", Value: params}}

	if _, err := b.wait(ctx, func() (*bigquery.Job, error) { return q.Run(ctx) }); err != nil {
		return fmt.Errorf("promote %s: %w", dataset, mapNotFound(err, dataset, ""))
	}

	b.logger.Info("promoted chunks", "dataset", dataset, "tables", b.tables, "chunks", len(ids))
	return nil
}

// wait запускает задачу и ждёт её завершения.
func (b *BigQuery) wait(ctx context.Context, run func() (*bigquery.Job, error)) (*bigquery.JobStatus, error) {
	job, err := run()
	if err != nil {
		return nil, err
	}
	status, err := job.Wait(ctx)
	if err != nil {
		return nil, err
	}
	if err := status.Err(); err != nil {
		return nil, err
	}
	return status, nil
}

// promoteScript строит скрипт INSERT ... SELECT / DELETE для всех таблиц.
// Список chunks передаётся параметром @ids.
func promoteScript(project, dataset string, tables []string) (string, error) {
	if err := validateIdent(dataset); err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("BEGIN TRANSACTION;\n")
	for _, table := range tables {
		staging := domain.StagingTableName(table)
		if _, err := qualified(dataset, staging); err != nil {
			return "", err
		}
		prod := fmt.Sprintf("`%s.%s.%s`", project, dataset, table)
		stg := fmt.Sprintf("`%s.%s.%s`", project, dataset, staging)

		fmt.Fprintf(&sb, "INSERT INTO %s SELECT * FROM %s WHERE apdb_replica_chunk IN UNNEST(@ids);\n", prod, stg)
		fmt.Fprintf(&sb, "DELETE FROM %s WHERE apdb_replica_chunk IN UNNEST(@ids);\n", stg)
	}
	sb.WriteString("COMMIT TRANSACTION;\n")
	return sb.String(), nil
}

// mapNotFound переводит notFound BigQuery в ErrTableNotFound.
func mapNotFound(err error, dataset, table string) error {
	var bqErr *bigquery.Error
	if errors.As(err, &bqErr) && bqErr.Reason == "notFound" {
		return fmt.Errorf("%w: %s", ErrTableNotFound, bqErr.Message)
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusNotFound {
		if table == "" {
			return fmt.Errorf("%w: %s: %v", ErrTableNotFound, dataset, err)
		}
		return fmt.Errorf("%w: %s.%s: %v", ErrTableNotFound, dataset, table, err)
	}
	return err
}
