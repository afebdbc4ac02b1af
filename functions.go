// Package ppdbchunks содержит точки входа Cloud Functions (2nd gen)
// конвейера: StageChunk и TrackChunk (CloudEvent от топика Pub/Sub) и
// PromoteChunks (HTTP). Функции регистрируются в functions-framework.
//
// Зависимости создаются при первом вызове и переиспользуются экземпляром
// функции.
package ppdbchunks

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"

	"github.com/GoogleCloudPlatform/functions-framework-go/functions"
	cloudevents "github.com/cloudevents/sdk-go/v2/event"

	"github.com/shaiso/ppdb-chunks/internal/api"
	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/promote"
	"github.com/shaiso/ppdb-chunks/internal/repo"
	"github.com/shaiso/ppdb-chunks/internal/stage"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
	"github.com/shaiso/ppdb-chunks/internal/track"
	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

func init() {
	functions.CloudEvent("StageChunk", StageChunk)
	functions.CloudEvent("TrackChunk", TrackChunk)
	functions.HTTP("PromoteChunks", PromoteChunks)
}

var (
	logger = sync.OnceValue(func() *slog.Logger {
		return telemetry.NewLogger(os.Stdout, "gcp")
	})

	stageHandler = sync.OnceValues(func() (api.EventHandler, error) {
		cfg, err := stage.TriggerConfigFromEnv()
		if err != nil {
			return nil, err
		}
		launcher, err := stage.NewDataflowLauncher(context.Background(), cfg.Project, cfg.Region)
		if err != nil {
			return nil, err
		}
		return stage.NewTrigger(cfg, launcher, logger()).Handle, nil
	})

	trackHandler = sync.OnceValues(func() (api.EventHandler, error) {
		pool, err := repo.NewPool(context.Background(), repo.DBConfigFromEnv())
		if err != nil {
			return nil, err
		}
		return track.NewTracker(repo.NewChunkRepo(pool), logger()).Handle, nil
	})

	promoteHandler = sync.OnceValues(func() (*api.Handler, error) {
		datasetID := os.Getenv("DATASET_ID")
		if datasetID == "" {
			return nil, fmt.Errorf("DATASET_ID is required")
		}
		project, dataset := warehouse.SplitDataset(datasetID, os.Getenv("PROJECT_ID"))

		pool, err := repo.NewPool(context.Background(), repo.DBConfigFromEnv())
		if err != nil {
			return nil, err
		}
		wh, err := warehouse.Open(context.Background(), warehouse.BackendFromEnv(project), project, warehouse.ConfigFromEnv(logger()))
		if err != nil {
			pool.Close()
			return nil, err
		}

		svc := promote.NewService(repo.NewChunkRepo(pool), wh, dataset, logger())
		return api.NewHandler(api.Config{Promoter: svc, Logger: logger()}), nil
	})
)

// StageChunk запускает staging-задачу для chunk из stage-chunk-topic.
func StageChunk(ctx context.Context, e cloudevents.Event) error {
	h, err := stageHandler()
	if err != nil {
		logger().Error("stage_chunk is not configured", "error", err)
		return err
	}
	return deliver(ctx, h, e)
}

// TrackChunk записывает статус chunk из track-chunk-topic.
func TrackChunk(ctx context.Context, e cloudevents.Event) error {
	h, err := trackHandler()
	if err != nil {
		logger().Error("track_chunk is not configured", "error", err)
		return err
	}
	return deliver(ctx, h, e)
}

// PromoteChunks промоутит staged chunks.
func PromoteChunks(w http.ResponseWriter, r *http.Request) {
	h, err := promoteHandler()
	if err != nil {
		logger().Error("promote_chunks is not configured", "error", err)
		status, body := promote.NewResponse(nil, err)
		api.JSON(w, status, body)
		return
	}
	h.PromoteChunks(w, r)
}

// deliver разбирает сообщение Pub/Sub из CloudEvent и передаёт его
// обработчику. Permanent-ошибки подтверждаются.
func deliver(ctx context.Context, h api.EventHandler, e cloudevents.Event) error {
	msg, err := event.DecodePush(e.Data())
	if err == nil {
		if msg.ID == "" {
			msg.ID = e.ID()
		}
		if msg.PublishTime.IsZero() {
			msg.PublishTime = e.Time()
		}
		err = h(ctx, msg)
	}

	if event.IsPermanent(err) {
		logger().Error("message dropped", "event_id", e.ID(), "error", err)
		return nil
	}
	return err
}
