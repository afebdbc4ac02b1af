// Package mq предоставляет транспорт сообщений конвейера: RabbitMQ локально,
// публикацию в Pub/Sub в GCP.
//
// Структура:
//   - connection.go — соединение с брокером (reconnect, publisher confirms)
//   - topology.go   — exchanges, очереди топиков, DLQ
//   - publisher.go  — публикация JSON в топик
//   - consumer.go   — потребление с ручным ack/nack
//   - pubsub.go     — публикация JSON в топик Pub/Sub
//
// Топики повторяют имена Pub/Sub из развёртывания в GCP:
//   - stage-chunk-topic — запросы на staging chunk (потребитель: stage_chunk)
//   - track-chunk-topic — изменения статуса chunk (потребитель: track_chunk)
//
// Тело сообщения — JSON без конверта, как поле data у Pub/Sub.
package mq
