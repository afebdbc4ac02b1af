// ppdb-stager — staging-задача chunk (контейнер Flex Template).
//
// Читает manifest chunk, дописывает непустые таблицы в staging-таблицы
// хранилища и публикует статус staged в топик.
//
// Использование:
//
//	ppdb-stager --folder gs://bucket/path --chunk_id 1735776000 \
//	    --dataset_id project:ppdb --topic_name track-chunk-topic \
//	    --temp_location gs://bucket/dataflow/temp
//
// Если проект известен (--project, PROJECT_ID или префикс dataset_id),
// задача читает GCS, грузит в BigQuery и публикует в Pub/Sub. Иначе
// используются локальные реализации: файлы под BLOB_ROOT, DuckDB и
// RabbitMQ. Флаги --blob, --warehouse и --publisher выбирают их явно.
//
// Неизвестные флаги (их добавляет Dataflow) игнорируются.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/stage"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

func main() {
	var (
		params    stage.JobParams
		chunkID   int64
		topic     string
		inputPath string
		selected  backends
	)

	cmd := &cobra.Command{
		Use:           "ppdb-stager",
		Short:         "Load a replica chunk into staging tables",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := telemetry.SetupLogger()

			params.ChunkID = domain.ChunkID(chunkID)
			params.TopicName = mq.Topic(topic)
			if params.Folder == "" {
				// input_path — папка chunk со слешем на конце
				params.Folder = inputPath
			}
			if params.Folder == "" || !cmd.Flags().Changed("chunk_id") || params.DatasetID == "" || topic == "" {
				return fmt.Errorf("%w: --folder, --chunk_id, --dataset_id and --topic_name are required", stage.ErrMissingParameter)
			}

			project, _ := warehouse.SplitDataset(params.DatasetID, params.Project)
			selected.defaults(project)
			logger.Info("stager backends",
				"blob", selected.Blob,
				"warehouse", selected.Warehouse,
				"publisher", selected.Publisher,
				"project", project,
			)

			deps, err := selected.open(cmd.Context(), project, logger)
			if err != nil {
				return err
			}
			defer deps.close()

			job := stage.NewJob(deps.blobs, deps.warehouse, deps.publisher, logger)
			return job.Run(cmd.Context(), params)
		},
	}

	cmd.FParseErrWhitelist.UnknownFlags = true

	f := cmd.Flags()
	f.StringVar(&params.Folder, "folder", "", "Chunk folder (gs://bucket/path)")
	f.StringVar(&inputPath, "input_path", "", "Chunk folder with trailing slash")
	f.Int64Var(&chunkID, "chunk_id", 0, "Replica chunk ID")
	f.StringVar(&params.DatasetID, "dataset_id", "", "Target dataset ([project:]dataset)")
	f.StringVar(&topic, "topic_name", string(mq.TopicTrackChunk), "Topic for the staged status update")
	f.StringVar(&params.TempLocation, "temp_location", os.Getenv("TEMP_LOCATION"), "Temporary location (gs://...)")
	f.StringVar(&params.Project, "project", os.Getenv("PROJECT_ID"), "Default project for dataset_id")
	f.StringVar(&selected.Blob, "blob", os.Getenv("STAGER_BLOB"), "Chunk file store: gcs or fs")
	f.StringVar(&selected.Warehouse, "warehouse", os.Getenv("WAREHOUSE"), "Warehouse: bigquery or duckdb")
	f.StringVar(&selected.Publisher, "publisher", os.Getenv("STAGER_PUBLISHER"), "Status publisher: pubsub or amqp")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := cmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
