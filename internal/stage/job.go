package stage

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/shaiso/ppdb-chunks/internal/blob"
	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

// Loader дописывает Parquet-файл в staging-таблицу.
type Loader interface {
	LoadParquet(ctx context.Context, dataset, table, path string) (int64, error)
}

// Publisher публикует сообщение в топик и ждёт подтверждения.
type Publisher interface {
	PublishJSON(ctx context.Context, topic mq.Topic, payload any) error
}

// JobParams — параметры staging-задачи.
type JobParams struct {
	// Project — проект по умолчанию, если DatasetID без префикса "project:".
	Project string

	DatasetID    string
	Folder       string
	ChunkID      domain.ChunkID
	TopicName    mq.Topic
	TempLocation string
}

// Job — тело staging-задачи.
type Job struct {
	blobs     blob.Store
	loader    Loader
	publisher Publisher
	logger    *slog.Logger

	// Concurrency — сколько таблиц загружается одновременно.
	Concurrency int
}

// NewJob создаёт Job.
func NewJob(blobs blob.Store, loader Loader, publisher Publisher, logger *slog.Logger) *Job {
	return &Job{
		blobs:       blobs,
		loader:      loader,
		publisher:   publisher,
		logger:      telemetry.WithComponent(logger, "stage_chunk_job"),
		Concurrency: 4,
	}
}

// Run загружает таблицы chunk в staging и публикует статус staged.
//
// Таблицы с row_count = 0 пропускаются. Статус публикуется только
// после загрузки всех таблиц.
func (j *Job) Run(ctx context.Context, p JobParams) error {
	if p.TempLocation == "" {
		return ErrMissingTempLocation
	}
	if _, _, err := blob.ParseGCSURL(p.Folder); err != nil {
		return err
	}

	project, dataset := warehouse.SplitDataset(p.DatasetID, p.Project)
	logger := telemetry.WithChunkID(j.logger, p.ChunkID).With(
		"folder", p.Folder,
		"project", project,
		"dataset", dataset,
		"topic", p.TopicName,
	)
	logger.Info("staging chunk")

	manifestURI := blob.Join(p.Folder, domain.ManifestName(p.ChunkID))
	raw, err := j.blobs.Read(ctx, manifestURI)
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}
	manifest, err := domain.ParseManifest(raw)
	if err != nil {
		return fmt.Errorf("manifest %s: %w", manifestURI, err)
	}

	tables := manifest.NonEmptyTables()
	logger.Info("loading table files", "tables", tables, "skipped", len(manifest.TableData)-len(tables))

	g, gctx := errgroup.WithContext(ctx)
	if j.Concurrency > 0 {
		g.SetLimit(j.Concurrency)
	}
	for _, table := range tables {
		g.Go(func() error {
			path, err := j.blobs.Resolve(gctx, blob.Join(p.Folder, domain.ParquetFileName(table)))
			if err != nil {
				return err
			}
			rows, err := j.loader.LoadParquet(gctx, dataset, table, path)
			if err != nil {
				return fmt.Errorf("stage table %s: %w", table, err)
			}
			telemetry.TablesStaged.Inc()
			logger.Info("table staged", "table", table, "rows", rows)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	if err := j.publisher.PublishJSON(ctx, p.TopicName, domain.NewStagedUpdate(p.ChunkID)); err != nil {
		logger.Error("failed to publish chunk status update", "error", err)
		return fmt.Errorf("publish status: %w", err)
	}

	logger.Info("published chunk status update")
	return nil
}
