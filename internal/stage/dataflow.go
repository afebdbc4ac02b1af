package stage

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	dataflow "google.golang.org/api/dataflow/v1b3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// DataflowLauncher запускает Flex Template через Dataflow API.
type DataflowLauncher struct {
	svc     *dataflow.Service
	project string
	region  string
}

// NewDataflowLauncher создаёт клиент Dataflow API. Без opts используются
// учётные данные по умолчанию (сервисный аккаунт функции).
func NewDataflowLauncher(ctx context.Context, project, region string, opts ...option.ClientOption) (*DataflowLauncher, error) {
	svc, err := dataflow.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create dataflow client: %w", err)
	}
	return &DataflowLauncher{svc: svc, project: project, region: region}, nil
}

// Launch отправляет запрос на запуск задачи.
func (l *DataflowLauncher) Launch(ctx context.Context, launch LaunchRequest) (*LaunchResult, error) {
	res, err := l.launch(ctx, launch)
	result := telemetry.ResultOK
	if err != nil {
		result = telemetry.ResultRetry
		if isFinal(err) {
			result = telemetry.ResultDropped
		}
	}
	telemetry.JobsLaunched.WithLabelValues("dataflow", result).Inc()
	return res, err
}

func (l *DataflowLauncher) launch(ctx context.Context, launch LaunchRequest) (*LaunchResult, error) {
	p := launch.LaunchParameter
	req := &dataflow.LaunchFlexTemplateRequest{
		LaunchParameter: &dataflow.LaunchFlexTemplateParameter{
			JobName:              p.JobName,
			ContainerSpecGcsPath: p.ContainerSpecGcsPath,
			Parameters:           p.Parameters,
			Environment: &dataflow.FlexTemplateRuntimeEnvironment{
				ServiceAccountEmail: p.Environment.ServiceAccountEmail,
				TempLocation:        p.Environment.TempLocation,
			},
		},
	}

	resp, err := l.svc.Projects.Locations.FlexTemplates.Launch(l.project, l.region, req).Context(ctx).Do()
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) && !Retryable(err) {
			return nil, fmt.Errorf("%w: %w", ErrLaunchRejected, err)
		}
		return nil, fmt.Errorf("launch flex template: %w", err)
	}
	if resp.Job == nil {
		return nil, ErrNoJob
	}

	id := resp.Job.Id
	if id == "" {
		id = "unknown"
	}
	name := resp.Job.Name
	if name == "" {
		name = p.JobName
	}
	return &LaunchResult{JobID: id, JobName: name}, nil
}

// Retryable сообщает, вернул ли Dataflow API 429, 500 или 503.
func Retryable(err error) bool {
	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	switch apiErr.Code {
	case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusServiceUnavailable:
		return true
	}
	return false
}
