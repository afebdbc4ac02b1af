package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/shaiso/ppdb-chunks/internal/blob"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/stage"
	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

const (
	blobGCS = "gcs"
	blobFS  = "fs"

	publisherPubSub = "pubsub"
	publisherAMQP   = "amqp"
)

// backends — выбранные реализации хранилищ и транспорта.
type backends struct {
	Blob      string
	Warehouse string
	Publisher string
}

// defaults заполняет невыбранные реализации: GCP при известном проекте,
// локальные иначе.
func (b *backends) defaults(project string) {
	gcp := project != ""
	if b.Blob == "" {
		b.Blob = pick(gcp, blobGCS, blobFS)
	}
	if b.Warehouse == "" {
		b.Warehouse = warehouse.BackendFromEnv(project)
	}
	if b.Publisher == "" {
		b.Publisher = pick(gcp, publisherPubSub, publisherAMQP)
	}
}

func pick(gcp bool, remote, local string) string {
	if gcp {
		return remote
	}
	return local
}

// deps — открытые зависимости задачи.
type deps struct {
	blobs     blob.Store
	warehouse warehouse.Warehouse
	publisher stage.Publisher

	closers []func() error
}

func (d *deps) close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

// open создаёт зависимости. При ошибке уже открытые закрываются.
func (b backends) open(ctx context.Context, project string, logger *slog.Logger) (_ *deps, err error) {
	d := &deps{}
	defer func() {
		if err != nil {
			d.close()
		}
	}()

	switch b.Blob {
	case blobGCS:
		store, err := blob.NewGCSStore(ctx)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, store.Close)
		if b.Warehouse == warehouse.BackendDuckDB {
			// DuckDB читает только локальные файлы
			dir, err := os.MkdirTemp("", "ppdb-stager-")
			if err != nil {
				return nil, fmt.Errorf("create download dir: %w", err)
			}
			store.LocalDir = dir
			d.closers = append(d.closers, func() error { return os.RemoveAll(dir) })
		}
		d.blobs = store
	case blobFS:
		if b.Warehouse == warehouse.BackendBigQuery {
			return nil, errors.New("bigquery warehouse loads from gs:// and needs --blob=gcs")
		}
		d.blobs = blob.NewFSStore(blob.RootFromEnv())
	default:
		return nil, fmt.Errorf("unknown blob store %q", b.Blob)
	}

	wh, err := warehouse.Open(ctx, b.Warehouse, project, warehouse.ConfigFromEnv(logger))
	if err != nil {
		return nil, err
	}
	d.closers = append(d.closers, wh.Close)
	d.warehouse = wh

	switch b.Publisher {
	case publisherPubSub:
		if project == "" {
			return nil, errors.New("pubsub publisher requires --project")
		}
		pub, err := mq.NewPubSubPublisher(ctx, project, logger)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, pub.Close)
		d.publisher = pub
	case publisherAMQP:
		conn, err := mq.NewConnection(mq.URLFromEnv(), logger)
		if err != nil {
			return nil, err
		}
		d.closers = append(d.closers, conn.Close)
		d.publisher = mq.NewPublisher(conn, logger)
	default:
		return nil, fmt.Errorf("unknown publisher %q", b.Publisher)
	}

	return d, nil
}
