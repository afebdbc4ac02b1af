// Package stage запускает staging chunk: триггер на stage-chunk-topic
// отправляет Flex Template задачу, задача загружает Parquet-файлы chunk
// в staging-таблицы и сообщает о результате в track-chunk-topic.
package stage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// Параметры запуска задачи.
const (
	ParamInputPath = "input_path"
	ParamFolder    = "folder"
	ParamChunkID   = "chunk_id"
	ParamDatasetID = "dataset_id"
	ParamTopicName = "topic_name"
)

// LaunchRequest — тело запроса flexTemplates:launch.
type LaunchRequest struct {
	LaunchParameter LaunchParameter `json:"launchParameter"`
}

// LaunchParameter — описание запускаемой задачи.
type LaunchParameter struct {
	JobName              string            `json:"jobName"`
	ContainerSpecGcsPath string            `json:"containerSpecGcsPath"`
	Parameters           map[string]string `json:"parameters"`
	Environment          Environment       `json:"environment"`
}

// Environment — окружение задачи.
type Environment struct {
	ServiceAccountEmail string `json:"serviceAccountEmail"`
	TempLocation        string `json:"tempLocation"`
}

// LaunchResult — запущенная задача.
type LaunchResult struct {
	JobID   string
	JobName string
}

// Launcher запускает staging-задачу.
//
// Ошибки с ErrLaunchRejected или ErrNoJob не повторяются,
// остальные считаются временными.
type Launcher interface {
	Launch(ctx context.Context, req LaunchRequest) (*LaunchResult, error)
}

// TriggerConfig — параметры триггера.
type TriggerConfig struct {
	Project        string
	Region         string
	TemplatePath   string
	ServiceAccount string
	TempLocation   string

	// TrackTopic — топик, куда задача публикует статус chunk.
	TrackTopic mq.Topic
}

// TriggerConfigFromEnv читает конфигурацию из окружения.
// Все переменные, кроме TRACK_TOPIC, обязательны.
func TriggerConfigFromEnv() (TriggerConfig, error) {
	cfg := TriggerConfig{
		TrackTopic: mq.TopicTrackChunk,
	}
	if v := os.Getenv("TRACK_TOPIC"); v != "" {
		cfg.TrackTopic = mq.Topic(v)
	}

	for _, f := range []struct {
		name string
		dst  *string
	}{
		{"PROJECT_ID", &cfg.Project},
		{"DATAFLOW_TEMPLATE_PATH", &cfg.TemplatePath},
		{"REGION", &cfg.Region},
		{"SERVICE_ACCOUNT_EMAIL", &cfg.ServiceAccount},
		{"TEMP_LOCATION", &cfg.TempLocation},
	} {
		v := os.Getenv(f.name)
		if v == "" {
			return cfg, fmt.Errorf("%w: %s", ErrMissingConfig, f.name)
		}
		*f.dst = v
	}
	return cfg, nil
}

// Trigger обрабатывает сообщения stage-chunk-topic.
type Trigger struct {
	cfg      TriggerConfig
	launcher Launcher
	logger   *slog.Logger
	now      func() time.Time
}

// NewTrigger создаёт Trigger.
func NewTrigger(cfg TriggerConfig, launcher Launcher, logger *slog.Logger) *Trigger {
	return &Trigger{
		cfg:      cfg,
		launcher: launcher,
		logger:   telemetry.WithComponent(logger, "stage_chunk"),
		now:      time.Now,
	}
}

// BuildLaunchRequest формирует запрос на запуск задачи для chunk.
func (t *Trigger) BuildLaunchRequest(req domain.StageRequest, id domain.ChunkID) LaunchRequest {
	input := req.InputPath()
	return LaunchRequest{
		LaunchParameter: LaunchParameter{
			JobName:              req.JobName(t.now()),
			ContainerSpecGcsPath: t.cfg.TemplatePath,
			Parameters: map[string]string{
				ParamInputPath: input,
				ParamFolder:    input,
				ParamChunkID:   strconv.FormatInt(int64(id), 10),
				ParamDatasetID: req.Dataset,
				ParamTopicName: string(t.cfg.TrackTopic),
			},
			Environment: Environment{
				ServiceAccountEmail: t.cfg.ServiceAccount,
				TempLocation:        t.cfg.TempLocation,
			},
		},
	}
}

// Handle разбирает StageRequest и запускает задачу.
//
// Ошибки сообщения — Permanent. Отказ API и ответ без job логируются,
// сообщение подтверждается. Временные ошибки возвращаются для повтора.
func (t *Trigger) Handle(ctx context.Context, msg *event.Message) error {
	logger := telemetry.WithEventID(t.logger, msg.ID)

	req, err := event.DecodeJSON[domain.StageRequest](msg)
	if err != nil {
		return err
	}
	if err := req.Validate(); err != nil {
		return event.Permanent(fmt.Errorf("missing required key in message: %w", err))
	}
	id, err := req.ChunkID()
	if err != nil {
		return event.Permanent(err)
	}

	logger = telemetry.WithChunkID(logger, id)
	launch := t.BuildLaunchRequest(req, id)

	logger.Info("launching staging job",
		"job_name", launch.LaunchParameter.JobName,
		"input_path", req.InputPath(),
		"dataset", req.Dataset,
	)

	res, err := t.launcher.Launch(ctx, launch)
	switch {
	case err == nil:
		logger.Info("staging job launched", "job_id", res.JobID)
		return nil
	case isFinal(err):
		logger.Error("staging job not launched", "error", err)
		return nil
	default:
		logger.Warn("retryable launch error", "error", err)
		return err
	}
}

// isFinal — ошибка запуска, которую не исправит повторная доставка.
func isFinal(err error) bool {
	return errors.Is(err, ErrNoJob) || errors.Is(err, ErrLaunchRejected)
}
