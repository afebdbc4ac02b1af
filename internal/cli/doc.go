// Package cli реализует ppdbctl — инструмент командной строки конвейера PPDB.
//
// # Обзор
//
// CLI решает две задачи:
//   - развёртывание и удаление ресурсов GCP (deploy, teardown,
//     template build, image build) через планы пакета deploy;
//   - работа с запущенными сервисами по HTTP (chunk list/show/stage, promote).
//
// # Ключевые компоненты
//
// ## Client
//
// HTTP-клиент для API сервисов. Разбирает ответы DataResponse, ListResponse
// и ErrorResponse, ответы /promote_chunks и push-эндпоинтов.
//
//	client := cli.NewClient("http://localhost:8080", token)
//	chunks, err := client.ListChunks(cli.ListChunksOpts{Status: "staged"})
//
// ## Output
//
// Форматирование вывода. Поддерживает два режима:
//   - Таблицы (text/tabwriter) — по умолчанию
//   - JSON (json.MarshalIndent) — с флагом --json
//
// Данные выводятся в stdout, сообщения (Success/Error) — в stderr.
// Это позволяет использовать pipe: ppdbctl chunk list --json | jq .
//
// ## Commands
//
// Каждая группа создаётся фабричной функцией (NewChunkCmd, NewDeployCmd
// и т.д.), принимающей замыкания для ленивого создания Client, Output
// и deploy.Config после парсинга PersistentFlags.
package cli
