// ppdb-stage — сервис stage_chunk.
//
// Сервис:
//   - Получает запросы на staging из stage-chunk-topic (RabbitMQ) и через
//     push-эндпоинт POST /stage_chunk
//   - Запускает staging-задачу: Flex Template в Dataflow или, при
//     STAGE_LAUNCHER=local, в текущем процессе
//
// Staging-задача после загрузки публикует статус в track-chunk-topic.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/option"

	"github.com/shaiso/ppdb-chunks/internal/api"
	"github.com/shaiso/ppdb-chunks/internal/blob"
	"github.com/shaiso/ppdb-chunks/internal/mq"
	"github.com/shaiso/ppdb-chunks/internal/stage"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
	"github.com/shaiso/ppdb-chunks/internal/warehouse"
)

var startTime = time.Now()

func main() {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting ppdb-stage")

	// graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := stage.TriggerConfigFromEnv()
	if err != nil {
		logger.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	// RabbitMQ
	var publisher *mq.Publisher
	mqConn, err := mq.NewConnection(mq.URLFromEnv(), logger)
	if err != nil {
		logger.Warn("RabbitMQ not available, running in push-only mode", "error", err)
	} else {
		defer mqConn.Close()
		if err := mq.SetupTopology(ctx, mqConn); err != nil {
			logger.Warn("failed to setup topology", "error", err)
		}
		publisher = mq.NewPublisher(mqConn, logger)
	}

	launcher, closeLauncher, err := newLauncher(ctx, cfg, publisher, logger)
	if err != nil {
		logger.Error("failed to create launcher", "error", err)
		os.Exit(1)
	}
	defer closeLauncher()

	trigger := stage.NewTrigger(cfg, launcher, logger)

	var consumer *mq.Consumer
	if mqConn != nil {
		consumer = mq.NewConsumer(mqConn, logger, mq.ConsumerConfig{
			Topic:   mq.TopicStageChunk,
			Handler: trigger.Handle,
		})
		go func() {
			if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("consumer stopped", "error", err)
			}
		}()
	}

	handler := api.NewHandler(api.Config{
		Stage:  trigger.Handle,
		Logger: logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	addr := ":8081"
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

	// Ожидаем сигнал завершения
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

	logger.Info("ppdb-stage stopped")
}

// newLauncher выбирает launcher по STAGE_LAUNCHER: "dataflow" (по умолчанию) или "local".
func newLauncher(ctx context.Context, cfg stage.TriggerConfig, publisher *mq.Publisher, logger *slog.Logger) (stage.Launcher, func(), error) {
	switch os.Getenv("STAGE_LAUNCHER") {
	case "", "dataflow":
		var opts []option.ClientOption
		if v := os.Getenv("DATAFLOW_ENDPOINT"); v != "" {
			opts = append(opts, option.WithEndpoint(v), option.WithoutAuthentication())
		}
		l, err := stage.NewDataflowLauncher(ctx, cfg.Project, cfg.Region, opts...)
		if err != nil {
			return nil, nil, err
		}
		return l, func() {}, nil

	case "local":
		if publisher == nil {
			return nil, nil, errors.New("local launcher requires RabbitMQ to publish chunk status")
		}
		wh, err := warehouse.NewStore(warehouse.ConfigFromEnv(logger))
		if err != nil {
			return nil, nil, err
		}
		job := stage.NewJob(blob.NewFSStore(blob.RootFromEnv()), wh, publisher, logger)
		l := stage.NewLocalLauncher(job, cfg.Project, logger)
		return l, func() {
			l.Wait()
			wh.Close()
		}, nil

	default:
		return nil, nil, fmt.Errorf("unknown STAGE_LAUNCHER %q", os.Getenv("STAGE_LAUNCHER"))
	}
}
