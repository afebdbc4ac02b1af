package mq

import (
	"context"
	"fmt"
	"log/slog"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// Handler — функция обработки сообщения.
//
// nil — сообщение подтверждается (ack).
// Ошибка, помеченная event.Permanent, — сообщение уходит в DLQ.
// Любая другая ошибка — сообщение возвращается в очередь для повтора.
type Handler func(ctx context.Context, msg *event.Message) error

// Consumer потребляет сообщения из очереди топика.
type Consumer struct {
	conn     *Connection
	logger   *slog.Logger
	topic    Topic
	handler  Handler
	prefetch int

	cancelFunc context.CancelFunc
}

// ConsumerConfig — конфигурация consumer.
type ConsumerConfig struct {
	// Topic — топик (он же имя очереди).
	Topic Topic

	// Handler — обработчик сообщений.
	Handler Handler

	// Prefetch — количество сообщений для предварительной загрузки.
	Prefetch int
}

// NewConsumer создаёт новый Consumer.
func NewConsumer(conn *Connection, logger *slog.Logger, cfg ConsumerConfig) *Consumer {
	prefetch := cfg.Prefetch
	if prefetch <= 0 {
		prefetch = 1
	}

	return &Consumer{
		conn:     conn,
		logger:   logger.With("topic", cfg.Topic),
		topic:    cfg.Topic,
		handler:  cfg.Handler,
		prefetch: prefetch,
	}
}

// Start блокирует до отмены ctx, переживая переподключения брокера.
func (c *Consumer) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel

	for {
		deliveries, err := c.setupConsume()
		if err != nil {
			c.logger.Error("failed to setup consume", "error", err)
		} else {
			c.logger.Info("consumer started")
			c.processDeliveries(ctx, deliveries)
		}

		if ctx.Err() != nil {
			return ctx.Err()
		}

		c.logger.Warn("deliveries channel closed, waiting for reconnect")
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.conn.ReconnectNotify():
		}
	}
}

// setupConsume настраивает prefetch и начинает потребление.
func (c *Consumer) setupConsume() (<-chan amqp.Delivery, error) {
	ch := c.conn.Channel()
	if ch == nil {
		return nil, ErrNoChannel
	}

	if err := ch.Qos(c.prefetch, 0, false); err != nil {
		return nil, fmt.Errorf("set qos: %w", err)
	}

	deliveries, err := ch.Consume(
		string(c.topic), // queue
		"",              // consumer tag (auto-generated)
		false,           // auto-ack (мы ack вручную)
		false,           // exclusive
		false,           // no-local
		false,           // no-wait
		nil,             // args
	)
	if err != nil {
		return nil, fmt.Errorf("consume: %w", err)
	}
	return deliveries, nil
}

// processDeliveries обрабатывает сообщения, пока канал открыт.
func (c *Consumer) processDeliveries(ctx context.Context, deliveries <-chan amqp.Delivery) {
	for {
		select {
		case <-ctx.Done():
			return
		case raw, ok := <-deliveries:
			if !ok {
				return
			}
			c.handleDelivery(ctx, raw)
		}
	}
}

// handleDelivery вызывает обработчик и подтверждает сообщение по результату.
func (c *Consumer) handleDelivery(ctx context.Context, raw amqp.Delivery) {
	msg := &event.Message{
		ID:          raw.MessageId,
		Data:        raw.Body,
		PublishTime: raw.Timestamp,
		Redelivered: raw.Redelivered,
	}

	err := c.handler(ctx, msg)
	outcome := classify(err)

	switch outcome {
	case telemetry.ResultOK:
		raw.Ack(false)
	case telemetry.ResultPermanent:
		c.logger.Error("message rejected", "message_id", msg.ID, "error", err)
		raw.Nack(false, false)
	default:
		c.logger.Warn("handler failed, requeueing", "message_id", msg.ID, "error", err)
		raw.Nack(false, true)
	}

	telemetry.MessagesProcessed.WithLabelValues(string(c.topic), outcome).Inc()
}

// classify классифицирует результат обработчика.
func classify(err error) string {
	switch {
	case err == nil:
		return telemetry.ResultOK
	case event.IsPermanent(err):
		return telemetry.ResultPermanent
	default:
		return telemetry.ResultRetry
	}
}

// Stop останавливает consumer.
func (c *Consumer) Stop() {
	if c.cancelFunc != nil {
		c.cancelFunc()
	}
}
