package main

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

func TestBackends_Defaults(t *testing.T) {
	tests := []struct {
		name    string
		given   backends
		project string
		want    backends
	}{
		{"gcp", backends{}, "myproj", backends{blobGCS, warehouse.BackendBigQuery, publisherPubSub}},
		{"local", backends{}, "", backends{blobFS, warehouse.BackendDuckDB, publisherAMQP}},
		{"explicit wins", backends{Publisher: publisherAMQP}, "myproj", backends{blobGCS, warehouse.BackendBigQuery, publisherAMQP}},
	}

	t.Setenv("WAREHOUSE", "")

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.given
			got.defaults(tt.project)
			if got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestBackends_OpenRejectsFSWithBigQuery(t *testing.T) {
	b := backends{Blob: blobFS, Warehouse: warehouse.BackendBigQuery, Publisher: publisherPubSub}
	if _, err := b.open(context.Background(), "myproj", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("expected error: bigquery cannot load local files")
	}
}

func TestBackends_OpenUnknown(t *testing.T) {
	b := backends{Blob: "s3", Warehouse: warehouse.BackendDuckDB, Publisher: publisherAMQP}
	if _, err := b.open(context.Background(), "", slog.New(slog.NewTextHandler(io.Discard, nil))); err == nil {
		t.Error("expected error for unknown blob store")
	}
}
