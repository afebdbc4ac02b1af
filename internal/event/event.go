// Package event описывает входящие сообщения конвейера независимо от
// транспорта: очередь RabbitMQ, push-подписка Pub/Sub, CloudEvent функции
// 2nd gen (data в формате push-конверта) или событие background-функции.
package event

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Ошибки декодирования.
var (
	// ErrMalformedPayload — нет поля data или оно не base64/UTF-8.
	ErrMalformedPayload = errors.New("malformed or missing Pub/Sub data payload")

	// ErrInvalidJSON — data не является JSON.
	ErrInvalidJSON = errors.New("failed to decode JSON from Pub/Sub message")
)

// Message — сообщение, доставленное обработчику.
type Message struct {
	// ID — идентификатор сообщения у брокера (messageId / eventId).
	ID string

	// Data — декодированное тело сообщения (JSON).
	Data []byte

	// Attributes — атрибуты Pub/Sub, если есть.
	Attributes map[string]string

	// PublishTime — время публикации.
	PublishTime time.Time

	// Redelivered — сообщение доставляется повторно.
	Redelivered bool
}

// pushEnvelope — тело запроса push-подписки Pub/Sub.
type pushEnvelope struct {
	Message *pubsubMessage `json:"message"`

	// Subscription — полное имя подписки.
	Subscription string `json:"subscription"`
}

// pubsubMessage — PubsubMessage в JSON-представлении.
// Pub/Sub присылает ID в двух написаниях.
type pubsubMessage struct {
	Data        *string           `json:"data"`
	Attributes  map[string]string `json:"attributes"`
	MessageID   string            `json:"messageId"`
	MessageID2  string            `json:"message_id"`
	PublishTime time.Time         `json:"publishTime"`
}

// backgroundEvent — событие background-функции с триггером по топику.
type backgroundEvent struct {
	Data       *string           `json:"data"`
	Attributes map[string]string `json:"attributes"`
	EventID    string            `json:"eventId"`
}

// DecodePush разбирает HTTP-тело push-подписки или background-события.
//
// Форматы:
//
//	{"message": {"data": "<base64>", "messageId": "1"}, "subscription": "..."}
//	{"data": "<base64>", "eventId": "1"}
//
// Ошибки разбора помечены Permanent: повторная доставка их не исправит.
func DecodePush(body []byte) (*Message, error) {
	var envelope pushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, Permanent(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}

	if envelope.Message != nil {
		data, err := decodeData(envelope.Message.Data)
		if err != nil {
			return nil, err
		}
		id := envelope.Message.MessageID
		if id == "" {
			id = envelope.Message.MessageID2
		}
		return &Message{
			ID:          id,
			Data:        data,
			Attributes:  envelope.Message.Attributes,
			PublishTime: envelope.Message.PublishTime,
		}, nil
	}

	var bg backgroundEvent
	if err := json.Unmarshal(body, &bg); err != nil {
		return nil, Permanent(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	data, err := decodeData(bg.Data)
	if err != nil {
		return nil, err
	}
	return &Message{
		ID:         bg.EventID,
		Data:       data,
		Attributes: bg.Attributes,
	}, nil
}

// decodeData декодирует base64-поле data.
func decodeData(data *string) ([]byte, error) {
	if data == nil {
		return nil, Permanent(fmt.Errorf("%w: no data field", ErrMalformedPayload))
	}
	raw, err := base64.StdEncoding.DecodeString(*data)
	if err != nil {
		return nil, Permanent(fmt.Errorf("%w: %v", ErrMalformedPayload, err))
	}
	if !isUTF8(raw) {
		return nil, Permanent(fmt.Errorf("%w: data is not UTF-8", ErrMalformedPayload))
	}
	return raw, nil
}

// DecodeJSON разбирает Data сообщения в T.
// Ошибка разбора помечена Permanent.
func DecodeJSON[T any](msg *Message) (T, error) {
	var result T
	if err := json.Unmarshal(msg.Data, &result); err != nil {
		return result, Permanent(fmt.Errorf("%w: %v", ErrInvalidJSON, err))
	}
	return result, nil
}

// Encode упаковывает data в push-конверт Pub/Sub. Используется CLI и тестами.
func Encode(id string, data []byte) ([]byte, error) {
	encoded := base64.StdEncoding.EncodeToString(data)
	return json.Marshal(pushEnvelope{
		Message: &pubsubMessage{
			Data:        &encoded,
			MessageID:   id,
			PublishTime: time.Now().UTC(),
		},
	})
}
