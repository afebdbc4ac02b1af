package domain

import "errors"

// Ошибки валидации доменных объектов.
var (
	// ErrInvalidStatus — неизвестный статус chunk.
	ErrInvalidStatus = errors.New("invalid chunk status")

	// ErrInvalidTransition — недопустимый переход статуса.
	ErrInvalidTransition = errors.New("invalid status transition")

	// ErrMissingOperation — в сообщении нет поля operation.
	ErrMissingOperation = errors.New("missing 'operation' key in message")

	// ErrUnsupportedOperation — operation не insert и не update.
	ErrUnsupportedOperation = errors.New("unsupported operation")

	// ErrMissingValues — в сообщении нет values или они пустые.
	ErrMissingValues = errors.New("no 'values' key found in message")

	// ErrMissingChunkID — в сообщении нет apdb_replica_chunk.
	ErrMissingChunkID = errors.New("missing 'apdb_replica_chunk' in message")

	// ErrMissingField — в запросе на staging нет обязательного поля.
	ErrMissingField = errors.New("missing required key in message")

	// ErrEmptyManifest — в манифесте нет table_data.
	ErrEmptyManifest = errors.New("manifest is missing 'table_data' key or it is empty")

	// ErrInvalidChunkID — id chunk не является целым числом.
	ErrInvalidChunkID = errors.New("invalid chunk id")
)
