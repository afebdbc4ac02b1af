// ppdbctl — инструмент командной строки конвейера PPDB.
//
// Использование:
//
//	ppdbctl [--config FILE] [--api-url URL] [--token TOKEN] [--json] <command> [flags]
//
// Команды:
//
//	deploy    Развернуть ресурс (topics, image, template, stage, track, promote, all)
//	teardown  Удалить ресурс
//	template  Собрать Flex Template
//	image     Собрать и опубликовать образ staging-задачи
//	config    Показать конфигурацию развёртывания
//	chunk     Просмотр и отправка chunks
//	promote   Запустить промоушен
//
// Код выхода — код упавшей дочерней команды (gcloud, docker), 1 для
// остальных ошибок.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/shaiso/ppdb-chunks/internal/cli"
	"github.com/shaiso/ppdb-chunks/internal/deploy"
	"github.com/shaiso/ppdb-chunks/internal/telemetry"
)

// version задаётся через ldflags при сборке.
var version = "dev"

func main() {
	var (
		apiURL     string
		token      string
		jsonOutput bool
		configPath string
	)

	rootCmd := &cobra.Command{
		Use:           "ppdbctl",
		Short:         "ppdbctl — PPDB chunk pipeline tool",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&apiURL, "api-url", envOr("PPDB_API_URL", "http://localhost:8080"), "API server URL")
	rootCmd.PersistentFlags().StringVar(&token, "token", os.Getenv("PPDB_API_TOKEN"), "Bearer token for the API")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "Output in JSON format")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("PPDB_DEPLOY_CONFIG"), "Deploy configuration file (YAML)")

	clientFn := func() *cli.Client { return cli.NewClient(apiURL, token) }
	outputFn := func() *cli.Output { return cli.NewOutput(jsonOutput) }
	configFn := func() (*deploy.Config, error) { return deploy.Load(configPath) }
	runnerFn := func(dryRun bool) *deploy.Runner {
		return deploy.NewRunner(telemetry.NewLogger(os.Stderr, envOr("LOG_FORMAT", "text")), dryRun)
	}

	rootCmd.AddCommand(
		cli.NewDeployCmd(configFn, runnerFn),
		cli.NewTeardownCmd(configFn, runnerFn),
		cli.NewTemplateCmd(configFn, runnerFn),
		cli.NewImageCmd(configFn, runnerFn),
		cli.NewConfigCmd(configFn, outputFn),
		cli.NewChunkCmd(clientFn, outputFn),
		cli.NewPromoteCmd(clientFn, outputFn),
	)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()

	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(deploy.ExitCode(err))
	}
}

func envOr(name, def string) string {
	if v := os.Getenv(name); v != "" {
		return v
	}
	return def
}
