package mq

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"

	"cloud.google.com/go/pubsub"
	"google.golang.org/api/option"
)

// PubSubPublisher публикует сообщения в топики Pub/Sub проекта.
// Имена топиков те же, что у очередей RabbitMQ.
type PubSubPublisher struct {
	client *pubsub.Client
	logger *slog.Logger

	mu     sync.Mutex
	topics map[Topic]*pubsub.Topic
}

// NewPubSubPublisher создаёт клиент Pub/Sub для project.
func NewPubSubPublisher(ctx context.Context, project string, logger *slog.Logger, opts ...option.ClientOption) (*PubSubPublisher, error) {
	client, err := pubsub.NewClient(ctx, project, opts...)
	if err != nil {
		return nil, fmt.Errorf("create pubsub client: %w", err)
	}
	return &PubSubPublisher{
		client: client,
		logger: logger,
		topics: make(map[Topic]*pubsub.Topic),
	}, nil
}

func (p *PubSubPublisher) topic(name Topic) *pubsub.Topic {
	p.mu.Lock()
	defer p.mu.Unlock()

	t, ok := p.topics[name]
	if !ok {
		t = p.client.Topic(string(name))
		p.topics[name] = t
	}
	return t
}

// Publish отправляет body в топик и ждёт ID сообщения от сервера.
func (p *PubSubPublisher) Publish(ctx context.Context, topic Topic, body []byte) (string, error) {
	res := p.topic(topic).Publish(ctx, &pubsub.Message{Data: body})
	msgID, err := res.Get(ctx)
	if err != nil {
		return "", fmt.Errorf("publish to %s: %w", topic, err)
	}

	p.logger.Debug("published message",
		"topic", topic,
		"message_id", msgID,
		"bytes", len(body),
	)
	return msgID, nil
}

// PublishJSON сериализует payload и публикует его в топик.
func (p *PubSubPublisher) PublishJSON(ctx context.Context, topic Topic, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	_, err = p.Publish(ctx, topic, body)
	return err
}

// Close останавливает топики и закрывает клиент.
func (p *PubSubPublisher) Close() error {
	p.mu.Lock()
	for _, t := range p.topics {
		t.Stop()
	}
	p.mu.Unlock()
	return p.client.Close()
}
