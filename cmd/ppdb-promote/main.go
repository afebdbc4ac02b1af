// ppdb-promote — сервис promote_chunks.
//
// Переносит staged chunks из staging-таблиц в production одной
// транзакцией и отмечает их promoted в трекинговой БД. Хранилище —
// BigQuery, если проект известен (DATASET_ID=project:dataset или
// PROJECT_ID), иначе DuckDB; WAREHOUSE выбирает явно.
//
// Запуск:
//   - POST /promote_chunks[?dry_run=true] (Cloud Scheduler, ppdbctl promote)
//   - встроенное расписание PROMOTE_CRON (по умолчанию 0 12 * * *,
//     America/Santiago); при нескольких экземплярах промоушен выполняет
//     только лидер (pg advisory lock)
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
	_ "time/tzdata"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/shaiso/ppdb-chunks/internal/api"
	"github.com/shaiso/ppdb-chunks/internal/promote"
	"github.com/shaiso/ppdb-chunks/internal/repo"
	"github.com/shaiso/ppdb-chunks/internal/scheduler"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger()
	logger.Info("starting ppdb-promote")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	datasetID := os.Getenv("DATASET_ID")
	if datasetID == "" {
		logger.Error("DATASET_ID is required")
		os.Exit(1)
	}
	project, dataset := warehouse.SplitDataset(datasetID, os.Getenv("PROJECT_ID"))

	// DB pool
	pool, err := repo.NewPool(ctx, repo.DBConfigFromEnv())
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer pool.Close()
	logger.Info("database connected")

	backend := warehouse.BackendFromEnv(project)
	wh, err := warehouse.Open(ctx, backend, project, warehouse.ConfigFromEnv(logger))
	if err != nil {
		logger.Error("failed to open warehouse", "error", err)
		os.Exit(1)
	}
	defer wh.Close()
	logger.Info("warehouse opened", "backend", backend, "dataset", dataset)

	chunks := repo.NewChunkRepo(pool)
	svc := promote.NewService(chunks, wh, dataset, logger)

	// Встроенное расписание
	schedDone := make(chan struct{})
	if os.Getenv("PROMOTE_SCHEDULE") != "off" {
		sched, err := scheduler.New(scheduler.Config{
			Promoter: svc,
			Locker:   scheduler.NewAdvisoryLock(pool, scheduler.PromoteLockKey),
			Logger:   logger,
			Spec:     os.Getenv("PROMOTE_CRON"),
			Timezone: os.Getenv("PROMOTE_TIMEZONE"),
		})
		if err != nil {
			logger.Error("invalid schedule", "error", err)
			os.Exit(1)
		}
		go func() {
			defer close(schedDone)
			if err := sched.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("scheduler stopped", "error", err)
			}
		}()
	} else {
		close(schedDone)
	}

	handler := api.NewHandler(api.Config{
		Promoter:    svc,
		Chunks:      chunks,
		RequireAuth: os.Getenv("PROMOTE_REQUIRE_AUTH") == "true",
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8083"
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

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown error", "error", err)
	}
	<-schedDone

	logger.Info("ppdb-promote stopped")
}
