// Package blob читает объекты chunks из bucket.
//
// Объекты адресуются как gs://bucket/path. В GCP их читает GCSStore,
// локально — FSStore: gs://bucket/path → <root>/bucket/path.
package blob

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
)

// ErrInvalidURL — путь не является gs://bucket/object.
var ErrInvalidURL = errors.New("invalid GCS folder")

// ErrNotFound — объект не найден.
var ErrNotFound = errors.New("object not found")

// Store — источник объектов.
type Store interface {
	// Read возвращает содержимое объекта.
	Read(ctx context.Context, uri string) ([]byte, error)

	// Resolve возвращает путь, по которому объект может прочитать хранилище:
	// локальный файл для DuckDB read_parquet или gs:// URI для BigQuery.
	Resolve(ctx context.Context, uri string) (string, error)
}

// ParseGCSURL разбирает gs://bucket/prefix в bucket и prefix без
// ведущих и завершающих слешей.
func ParseGCSURL(uri string) (bucket, object string, err error) {
	u, err := url.Parse(uri)
	if err != nil {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, uri)
	}
	if u.Scheme != "gs" {
		return "", "", fmt.Errorf("%w: folder must start with 'gs://': %s", ErrInvalidURL, uri)
	}

	bucket = u.Host
	object = strings.Trim(u.Path, "/")
	if bucket == "" || object == "" {
		return "", "", fmt.Errorf("%w: %s", ErrInvalidURL, uri)
	}
	return bucket, object, nil
}

// Join добавляет имя объекта к папке gs://bucket/prefix.
func Join(folder, name string) string {
	return strings.TrimRight(folder, "/") + "/" + name
}

// FSStore — Store поверх локальной файловой системы.
type FSStore struct {
	root string
}

// DefaultRoot — корень FSStore, если BLOB_ROOT не задан.
const DefaultRoot = "./data/buckets"

// RootFromEnv возвращает BLOB_ROOT или DefaultRoot.
func RootFromEnv() string {
	if v := os.Getenv("BLOB_ROOT"); v != "" {
		return v
	}
	return DefaultRoot
}

// NewFSStore создаёт FSStore с корнем root. Каждый bucket — подкаталог root.
func NewFSStore(root string) *FSStore {
	return &FSStore{root: root}
}

// Resolve возвращает локальный путь объекта.
func (s *FSStore) Resolve(_ context.Context, uri string) (string, error) {
	return s.localPath(uri)
}

func (s *FSStore) localPath(uri string) (string, error) {
	bucket, object, err := ParseGCSURL(uri)
	if err != nil {
		return "", err
	}
	clean := path.Clean("/" + object)
	return filepath.Join(s.root, bucket, filepath.FromSlash(clean)), nil
}

// Read читает объект с диска.
func (s *FSStore) Read(ctx context.Context, uri string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := s.localPath(uri)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, uri)
	}
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", uri, err)
	}
	return data, nil
}
