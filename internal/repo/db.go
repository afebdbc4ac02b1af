package repo

import (
	"context"
	_ "embed"
	"fmt"
	"net"
	"net/url"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

//go:embed schema.sql
var schemaSQL string

// DBConfig — параметры подключения к трекинговой БД PPDB.
type DBConfig struct {
	// URL — полный DSN. Если задан, Host/User/Name игнорируются.
	URL string

	Host     string
	Port     string
	User     string
	Password string
	Name     string

	// Schema — схема PPDB (search_path).
	Schema string

	MaxConns int32
}

// DBConfigFromEnv читает параметры из переменных окружения:
// DB_URL или PPDB_DB_HOST, PPDB_DB_PORT, PPDB_DB_USER, PPDB_DB_PASSWORD,
// PPDB_DB_NAME и PPDB_SCHEMA_NAME.
func DBConfigFromEnv() DBConfig {
	cfg := DBConfig{
		URL:      os.Getenv("DB_URL"),
		Host:     os.Getenv("PPDB_DB_HOST"),
		Port:     os.Getenv("PPDB_DB_PORT"),
		User:     os.Getenv("PPDB_DB_USER"),
		Password: os.Getenv("PPDB_DB_PASSWORD"),
		Name:     os.Getenv("PPDB_DB_NAME"),
		Schema:   os.Getenv("PPDB_SCHEMA_NAME"),
		MaxConns: 10,
	}
	if cfg.Port == "" {
		cfg.Port = "5432"
	}
	return cfg
}

// DSN собирает строку подключения.
func (c DBConfig) DSN() (string, error) {
	if c.URL != "" {
		return c.URL, nil
	}

	switch {
	case c.Host == "":
		return "", fmt.Errorf("%w: PPDB_DB_HOST", ErrMissingConfig)
	case c.User == "":
		return "", fmt.Errorf("%w: PPDB_DB_USER", ErrMissingConfig)
	case c.Name == "":
		return "", fmt.Errorf("%w: PPDB_DB_NAME", ErrMissingConfig)
	}

	u := url.URL{
		Scheme: "postgresql",
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.Name,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else {
		u.User = url.User(c.User)
	}
	return u.String(), nil
}

// NewPool создаёт пул соединений и проверяет доступность БД.
func NewPool(ctx context.Context, dbCfg DBConfig) (*pgxpool.Pool, error) {
	dsn, err := dbCfg.DSN()
	if err != nil {
		return nil, err
	}

	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	cfg.MaxConns = 10
	if dbCfg.MaxConns > 0 {
		cfg.MaxConns = dbCfg.MaxConns
	}
	cfg.HealthCheckPeriod = 30 * time.Second
	if dbCfg.Schema != "" {
		cfg.ConnConfig.RuntimeParams["search_path"] = dbCfg.Schema
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("new pool: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := pool.Ping(pingCtx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return pool, nil
}

// EnsureSchema создаёт таблицу трекинга chunks, если её ещё нет.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}
