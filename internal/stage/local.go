package stage

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// LocalLauncher выполняет staging-задачу в текущем процессе.
// Используется локально вместо Dataflow.
type LocalLauncher struct {
	job     *Job
	project string
	logger  *slog.Logger

	wg sync.WaitGroup
}

// NewLocalLauncher создаёт LocalLauncher.
func NewLocalLauncher(job *Job, project string, logger *slog.Logger) *LocalLauncher {
	return &LocalLauncher{
		job:     job,
		project: project,
		logger:  logger,
	}
}

// Launch проверяет параметры и запускает задачу в фоне.
// Задача не зависит от отмены ctx вызывающего.
func (l *LocalLauncher) Launch(ctx context.Context, launch LaunchRequest) (*LaunchResult, error) {
	params, err := JobParamsFromLaunch(launch.LaunchParameter, l.project)
	if err != nil {
		telemetry.JobsLaunched.WithLabelValues("local", telemetry.ResultDropped).Inc()
		return nil, fmt.Errorf("%w: %v", ErrLaunchRejected, err)
	}

	res := &LaunchResult{
		JobID:   uuid.NewString(),
		JobName: launch.LaunchParameter.JobName,
	}

	jobCtx := context.WithoutCancel(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		logger := l.logger.With("job_id", res.JobID, "job_name", res.JobName)
		if err := l.job.Run(jobCtx, params); err != nil {
			logger.Error("staging job failed", "error", err)
			return
		}
		logger.Info("staging job finished")
	}()

	telemetry.JobsLaunched.WithLabelValues("local", telemetry.ResultOK).Inc()
	return res, nil
}

// Wait ждёт завершения запущенных задач.
func (l *LocalLauncher) Wait() {
	l.wg.Wait()
}

// JobParamsFromLaunch восстанавливает параметры задачи из запроса на запуск.
func JobParamsFromLaunch(p LaunchParameter, project string) (JobParams, error) {
	get := func(key string) (string, error) {
		v := p.Parameters[key]
		if v == "" {
			return "", fmt.Errorf("%w: %s", ErrMissingParameter, key)
		}
		return v, nil
	}

	folder, err := get(ParamFolder)
	if err != nil {
		return JobParams{}, err
	}
	rawID, err := get(ParamChunkID)
	if err != nil {
		return JobParams{}, err
	}
	dataset, err := get(ParamDatasetID)
	if err != nil {
		return JobParams{}, err
	}
	topic, err := get(ParamTopicName)
	if err != nil {
		return JobParams{}, err
	}

	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return JobParams{}, fmt.Errorf("%w: chunk_id %q", domain.ErrInvalidChunkID, rawID)
	}

	return JobParams{
		Project:      project,
		DatasetID:    dataset,
		Folder:       folder,
		ChunkID:      domain.ChunkID(id),
		TopicName:    mq.Topic(topic),
		TempLocation: p.Environment.TempLocation,
	}, nil
}
