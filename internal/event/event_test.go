package event

import (
	"encoding/base64"
	"errors"
	"fmt"
	"testing"
)

func TestDecodePush_Envelope(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"bucket":"b"}`))
	body := []byte(fmt.Sprintf(`{"message":{"data":%q,"message_id":"42","attributes":{"k":"v"}},"subscription":"projects/p/subscriptions/s"}`, data))

	msg, err := DecodePush(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "42" {
		t.Errorf("expected id 42, got %q", msg.ID)
	}
	if string(msg.Data) != `{"bucket":"b"}` {
		t.Errorf("unexpected data: %s", msg.Data)
	}
	if msg.Attributes["k"] != "v" {
		t.Errorf("attributes not decoded: %v", msg.Attributes)
	}
}

func TestDecodePush_BackgroundEvent(t *testing.T) {
	data := base64.StdEncoding.EncodeToString([]byte(`{"operation":"update"}`))
	body := []byte(fmt.Sprintf(`{"data":%q,"eventId":"e-1"}`, data))

	msg, err := DecodePush(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "e-1" {
		t.Errorf("expected id e-1, got %q", msg.ID)
	}
	if string(msg.Data) != `{"operation":"update"}` {
		t.Errorf("unexpected data: %s", msg.Data)
	}
}

func TestDecodePush_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `nope`},
		{"missing data", `{"eventId":"1"}`},
		{"bad base64", `{"data":"***"}`},
		{"envelope without data", `{"message":{"messageId":"1"}}`},
		{"invalid utf8", fmt.Sprintf(`{"data":%q}`, base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe}))},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodePush([]byte(tt.body))
			if !errors.Is(err, ErrMalformedPayload) {
				t.Errorf("expected ErrMalformedPayload, got %v", err)
			}
			if !IsPermanent(err) {
				t.Error("decode errors must be permanent")
			}
		})
	}
}

func TestEncode_RoundTrip(t *testing.T) {
	body, err := Encode("7", []byte(`{"a":1}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	msg, err := DecodePush(body)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.ID != "7" || string(msg.Data) != `{"a":1}` {
		t.Errorf("unexpected message: %+v", msg)
	}
}

func TestDecodeJSON(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	got, err := DecodeJSON[payload](&Message{Data: []byte(`{"name":"x"}`)})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "x" {
		t.Errorf("unexpected payload: %+v", got)
	}

	_, err = DecodeJSON[payload](&Message{Data: []byte(`{`)})
	if !errors.Is(err, ErrInvalidJSON) || !IsPermanent(err) {
		t.Errorf("expected permanent ErrInvalidJSON, got %v", err)
	}
}

func TestPermanent(t *testing.T) {
	if Permanent(nil) != nil {
		t.Error("Permanent(nil) must be nil")
	}

	base := errors.New("boom")
	p := Permanent(base)
	if !errors.Is(p, base) {
		t.Error("permanent error must unwrap to the original")
	}
	if Permanent(p) != p {
		t.Error("double wrapping is not expected")
	}
	if IsPermanent(base) {
		t.Error("plain error must not be permanent")
	}
}
