// ppdb-track — сервис track_chunk.
//
// Получает сообщения track-chunk-topic (RabbitMQ или push-эндпоинт
// POST /track_chunk) и записывает статус chunk в трекинговую БД PPDB.
// Также отдаёт состояние chunks: GET /api/v1/chunks.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/ppdb-chunks/internal/api"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/repo"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
	"github.com/shaiso/ppdb-chunks/internal/track"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting ppdb-track")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// DB pool
	pool, err := repo.NewPool(ctx, repo.DBConfigFromEnv())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	if os.Getenv("PPDB_BOOTSTRAP_SCHEMA") == "true" {
		if err := repo.EnsureSchema(ctx, pool); err != nil {
			logger.Error("failed to apply schema", "error", err)
			os.Exit(1)
		}
	}

	chunks := repo.NewChunkRepo(pool)
	tracker := track.NewTracker(chunks, logger)

	// RabbitMQ
	var consumer *mq.Consumer
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in push-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}

		consumer = mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Topic:    mq.TopicTrackChunk,
			Handler:  tracker.Handle,
			Prefetch: 10,
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(api.Config{
		Track:  tracker.Handle,
		Chunks: chunks,
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8082"
	if v := os.Getenv("PORT"); v != "" {
		addr = ":" + v
	}

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		logger.Info("listening", "addr", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			cancel()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	if consumer != nil {
		consumer.Stop()
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}

	logger.Info("ppdb-track stopped")
}
