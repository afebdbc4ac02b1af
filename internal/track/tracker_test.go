package track

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/ppdb-chunks/internal/domain"
	"github.com/shaiso/ppdb-chunks/internal/event"
	"github.com/shaiso/ppdb-chunks/internal/repo"
)

type call struct {
	op     string
	id     domain.ChunkID
	values map[string]any
}

type fakeStore struct {
	calls []call
	err   error
}

func (f *fakeStore) Insert(_ context.Context, id domain.ChunkID, values map[string]any) error {
	f.calls = append(f.calls, call{"insert", id, values})
	return f.err
}

func (f *fakeStore) Update(_ context.Context, id domain.ChunkID, values map[string]any) error {
	f.calls = append(f.calls, call{"update", id, values})
	return f.err
}

func newTracker(store ChunkStore) *Tracker {
	return NewTracker(store, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func msg(data string) *event.Message {
	return &event.Message{ID: "1", Data: []byte(data)}
}

func TestTracker_Handle(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		wantOp string
	}{
		{
			name:   "update",
			data:   `{"operation":"update","apdb_replica_chunk":1735776000,"values":{"status":"staged"}}`,
			wantOp: "update",
		},
		{
			name:   "insert",
			data:   `{"operation":"insert","apdb_replica_chunk":1735776000,"values":{"status":"exported","directory":"gs://b/data/1735776000"}}`,
			wantOp: "insert",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			if err := newTracker(store).Handle(context.Background(), msg(tt.data)); err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(store.calls) != 1 {
				t.Fatalf("expected 1 call, got %d", len(store.calls))
			}
			c := store.calls[0]
			if c.op != tt.wantOp || c.id != 1735776000 {
				t.Errorf("unexpected call: %+v", c)
			}
		})
	}
}

func TestTracker_Handle_InvalidMessages(t *testing.T) {
	tests := []struct {
		name string
		data string
		want error
	}{
		{"bad json", `nope`, event.ErrInvalidJSON},
		{"no operation", `{"apdb_replica_chunk":1,"values":{"status":"staged"}}`, domain.ErrMissingOperation},
		{"unsupported", `{"operation":"delete","apdb_replica_chunk":1,"values":{"status":"staged"}}`, domain.ErrUnsupportedOperation},
		{"no values", `{"operation":"update","apdb_replica_chunk":1}`, domain.ErrMissingValues},
		{"empty values", `{"operation":"update","apdb_replica_chunk":1,"values":{}}`, domain.ErrMissingValues},
		{"no chunk", `{"operation":"update","values":{"status":"staged"}}`, domain.ErrMissingChunkID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &fakeStore{}
			err := newTracker(store).Handle(context.Background(), msg(tt.data))
			if !errors.Is(err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, err)
			}
			if !event.IsPermanent(err) {
				t.Error("expected permanent error")
			}
			if len(store.calls) != 0 {
				t.Error("store must not be called")
			}
		})
	}
}

func TestTracker_Handle_StoreErrors(t *testing.T) {
	update := `{"operation":"update","apdb_replica_chunk":1,"values":{"status":"staged"}}`
	insert := `{"operation":"insert","apdb_replica_chunk":1,"values":{"status":"exported"}}`

	tests := []struct {
		name          string
		data          string
		err           error
		wantNil       bool
		wantPermanent bool
	}{
		{"duplicate insert", insert, repo.ErrAlreadyExists, true, false},
		{"unknown chunk", update, repo.ErrNotFound, false, true},
		{"bad transition", update, fmt.Errorf("%w: promoted -> staged", repo.ErrInvalidState), false, true},
		{"unknown column", update, repo.ErrUnknownColumn, false, true},
		{"bad value", update, repo.ErrInvalidValue, false, true},
		{"db down", update, errors.New("connection refused"), false, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := newTracker(&fakeStore{err: tt.err}).Handle(context.Background(), msg(tt.data))
			if tt.wantNil {
				if err != nil {
					t.Errorf("expected ack, got %v", err)
				}
				return
			}
			if err == nil {
				t.Fatal("expected error")
			}
			if event.IsPermanent(err) != tt.wantPermanent {
				t.Errorf("permanent = %v, want %v (%v)", event.IsPermanent(err), tt.wantPermanent, err)
			}
		})
	}
}
