package mq

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Topic — имя топика. Совпадает с именем очереди и ключом маршрутизации,
// чтобы имена из конфигурации Pub/Sub работали без перевода.
type Topic string

// Топики конвейера.
const (
	TopicStageChunk Topic = "stage-chunk-topic"
	TopicTrackChunk Topic = "track-chunk-topic"
)

const (
	// ExchangeChunks — direct exchange для сообщений о chunks.
	ExchangeChunks = "ppdb.chunks"

	// ExchangeDLQ — exchange для сообщений, которые не удалось обработать.
	ExchangeDLQ = "ppdb.dlq"

	// QueueDLQ — очередь неразобранных сообщений (ручной разбор).
	QueueDLQ = "dlq.chunks"

	dlqRoutingKey = "chunks"
)

// Topics возвращает все топики конвейера.
func Topics() []Topic {
	return []Topic{TopicStageChunk, TopicTrackChunk}
}

// SetupTopology объявляет exchanges, очереди топиков и DLQ.
//
//	ppdb.chunks (direct)
//	├── stage-chunk-topic [routing: stage-chunk-topic] → DLQ
//	└── track-chunk-topic [routing: track-chunk-topic] → DLQ
//	ppdb.dlq (direct)
//	└── dlq.chunks [routing: chunks]
func SetupTopology(ctx context.Context, conn *Connection) error {
	return conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		for _, ex := range []string{ExchangeChunks, ExchangeDLQ} {
			if err := ch.ExchangeDeclare(ex, "direct", true, false, false, false, nil); err != nil {
				return fmt.Errorf("declare exchange %s: %w", ex, err)
			}
		}

		if _, err := ch.QueueDeclare(QueueDLQ, true, false, false, false, nil); err != nil {
			return fmt.Errorf("declare queue %s: %w", QueueDLQ, err)
		}
		if err := ch.QueueBind(QueueDLQ, dlqRoutingKey, ExchangeDLQ, false, nil); err != nil {
			return fmt.Errorf("bind queue %s: %w", QueueDLQ, err)
		}

		dlqArgs := amqp.Table{
			"x-dead-letter-exchange":    ExchangeDLQ,
			"x-dead-letter-routing-key": dlqRoutingKey,
		}

		for _, topic := range Topics() {
			name := string(topic)
			if _, err := ch.QueueDeclare(name, true, false, false, false, dlqArgs); err != nil {
				return fmt.Errorf("declare queue %s: %w", name, err)
			}
			if err := ch.QueueBind(name, name, ExchangeChunks, false, nil); err != nil {
				return fmt.Errorf("bind queue %s: %w", name, err)
			}
		}

		return nil
	})
}
