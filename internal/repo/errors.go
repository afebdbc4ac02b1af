package repo

import "errors"

// Общие ошибки репозиториев.
var (
	// ErrNotFound — запись не найдена в БД.
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — запись уже существует (конфликт уникальности).
	ErrAlreadyExists = errors.New("already exists")

	// ErrInvalidState — операция невозможна в текущем состоянии.
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidValue — значение колонки не прошло валидацию.
	ErrInvalidValue = errors.New("invalid value")

	// ErrUnknownColumn — колонка не входит в список изменяемых.
	ErrUnknownColumn = errors.New("unknown or read-only column")

	// ErrMissingConfig — не задан обязательный параметр подключения.
	ErrMissingConfig = errors.New("missing required environment variable")
)
