package blob

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

// GCSStore — Store поверх Cloud Storage.
type GCSStore struct {
	client *storage.Client

	// LocalDir — куда Resolve скачивает объекты. Пустая строка — Resolve
	// возвращает gs:// URI без скачивания (BigQuery читает GCS сам).
	LocalDir string
}

// NewGCSStore создаёт клиент Cloud Storage с учётными данными по умолчанию.
func NewGCSStore(ctx context.Context, opts ...option.ClientOption) (*GCSStore, error) {
	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create gcs client: %w", err)
	}
	return &GCSStore{client: client}, nil
}

// Close закрывает клиент.
func (s *GCSStore) Close() error {
	return s.client.Close()
}

// Read читает объект целиком.
func (s *GCSStore) Read(ctx context.Context, uri string) ([]byte, error) {
	r, err := s.open(ctx, uri)
	if err != nil {
		return nil, err
	}
	defer r.Close()

	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return data, nil
}

// Resolve скачивает объект в LocalDir и возвращает путь к файлу.
// Без LocalDir возвращает uri.
func (s *GCSStore) Resolve(ctx context.Context, uri string) (string, error) {
	bucket, object, err := ParseGCSURL(uri)
	if err != nil {
		return "", err
	}
	if s.LocalDir == "" {
		return uri, nil
	}

	dst := filepath.Join(s.LocalDir, bucket, filepath.FromSlash(path.Clean("/"+object)))
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}

	r, err := s.open(ctx, uri)
	if err != nil {
		return "", err
	}
	defer r.Close()

	f, err := os.Create(dst)
	if err != nil {
		return "", fmt.Errorf("create %s: %w", dst, err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		return "", fmt.Errorf("download %s: %w", uri, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("close %s: %w", dst, err)
	}
	return dst, nil
}

func (s *GCSStore) open(ctx context.Context, uri string) (*storage.Reader, error) {
	bucket, object, err := ParseGCSURL(uri)
	if err != nil {
		return nil, err
	}

	r, err := s.client.Bucket(bucket).Object(object).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) || errors.Is(err, storage.ErrBucketNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", uri, err)
	}
	return r, nil
}
