package stage

import "errors"

var (
	// ErrMissingConfig — не задана обязательная переменная окружения.
	ErrMissingConfig = errors.New("missing required environment variable")

	// ErrMissingTempLocation — у задачи нет temp location.
	ErrMissingTempLocation = errors.New("GCP temp_location must be set in pipeline options")

	// ErrMissingParameter — в параметрах запуска нет обязательного поля.
	ErrMissingParameter = errors.New("missing launch parameter")

	// ErrLaunchRejected — API отклонил запуск без возможности повтора.
	ErrLaunchRejected = errors.New("launch rejected")

	// ErrNoJob — ответ API не содержит поля job.
	ErrNoJob = errors.New("launch response missing 'job' field")
)
