package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher публикует сообщения в топики конвейера.
//
// Тело сообщения — JSON полезной нагрузки без конверта, так же как
// data в сообщении Pub/Sub. Это позволяет одинаково обрабатывать
// сообщения из RabbitMQ и из push-подписок.
type Publisher struct {
	conn   *Connection
	logger *slog.Logger
}

// NewPublisher создаёт новый Publisher.
func NewPublisher(conn *Connection, logger *slog.Logger) *Publisher {
	return &Publisher{
		conn:   conn,
		logger: logger,
	}
}

// Publish отправляет body в топик и ждёт подтверждения брокера.
// Возвращает ID сообщения.
func (p *Publisher) Publish(ctx context.Context, topic Topic, body []byte) (string, error) {
	msgID := uuid.New().String()

	err := p.conn.WithChannel(ctx, func(ch *amqp.Channel) error {
		confirm, err := ch.PublishWithDeferredConfirmWithContext(
			ctx,
			ExchangeChunks,
			string(topic),
			true, // mandatory: сообщение без очереди вернётся как ошибка маршрутизации
			false,
			amqp.Publishing{
				ContentType:  "application/json",
				DeliveryMode: amqp.Persistent,
				MessageId:    msgID,
				Timestamp:    time.Now(),
				Body:         body,
			},
		)
		if err != nil {
			return fmt.Errorf("publish to %s: %w", topic, err)
		}

		if confirm == nil {
			return nil
		}
		acked, err := confirm.WaitContext(ctx)
		if err != nil {
			return fmt.Errorf("wait confirm for %s: %w", topic, err)
		}
		if !acked {
			return fmt.Errorf("publish to %s: broker nacked message %s", topic, msgID)
		}
		return nil
	})
	if err != nil {
		return "", err
	}

	p.logger.Debug("published message",
		"topic", topic,
		"message_id", msgID,
		"bytes", len(body),
	)
	return msgID, nil
}

// PublishJSON сериализует payload и публикует его в топик.
func (p *Publisher) PublishJSON(ctx context.Context, topic Topic, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = p.Publish(ctx, topic, body)
	return err
}
