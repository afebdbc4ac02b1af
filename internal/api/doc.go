// Package api содержит HTTP-поверхность сервисов конвейера.
//
// Структура:
//   - handler.go         — Handler с DI (обработчики событий, promoter, чтение chunks)
//   - routes.go          — регистрация маршрутов
//   - middleware.go      — middleware (logging, recovery, bearer)
//   - response.go        — унифицированные JSON-ответы и обработка ошибок
//   - dto.go             — Data Transfer Objects
//   - push_handler.go    — POST /stage_chunk, /track_chunk (push-подписки)
//   - promote_handler.go — POST /promote_chunks
//   - chunk_handler.go   — GET /api/v1/chunks
package api
