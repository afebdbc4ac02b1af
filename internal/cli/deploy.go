package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/shaiso/ppdb-chunks/internal/deploy"
)

// ConfigFunc загружает конфигурацию развёртывания после парсинга флагов.
type ConfigFunc func() (*deploy.Config, error)

// RunnerFunc создаёт исполнителя планов.
type RunnerFunc func(dryRun bool) *deploy.Runner

// NewDeployCmd создаёт команду deploy.
func NewDeployCmd(configFn ConfigFunc, runnerFn RunnerFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "deploy <topics|image|template|stage|track|promote|all>",
		Short: "Deploy pipeline resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			plans, err := deploy.DeployPlans(cfg, args[0])
			if err != nil {
				return err
			}
			return runnerFn(dryRun).Run(cmd.Context(), plans...)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print commands without running them")
	return cmd
}

// NewTeardownCmd создаёт команду teardown.
func NewTeardownCmd(configFn ConfigFunc, runnerFn RunnerFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "teardown <topics|image|template|stage|track|promote|all>",
		Short: "Delete pipeline resources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			plans, err := deploy.TeardownPlans(cfg, args[0])
			if err != nil {
				return err
			}
			return runnerFn(dryRun).Run(cmd.Context(), plans...)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print commands without running them")
	return cmd
}

// NewTemplateCmd создаёт группу команд template.
func NewTemplateCmd(configFn ConfigFunc, runnerFn RunnerFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "template",
		Short: "Manage the staging Flex Template",
	}
	cmd.AddCommand(buildCmd("template", "Build the Flex Template spec in the bucket", configFn, runnerFn))
	return cmd
}

// NewImageCmd создаёт группу команд image.
func NewImageCmd(configFn ConfigFunc, runnerFn RunnerFunc) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "image",
		Short: "Manage the staging job container image",
	}
	cmd.AddCommand(buildCmd("image", "Build and push the staging job image", configFn, runnerFn))
	return cmd
}

// buildCmd — "build" для одного ресурса: его план развёртывания.
func buildCmd(resource, short string, configFn ConfigFunc, runnerFn RunnerFunc) *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "build",
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			r, err := deploy.Lookup(resource)
			if err != nil {
				return err
			}
			plan, err := r.DeployPlan(cfg)
			if err != nil {
				return err
			}
			return runnerFn(dryRun).Run(cmd.Context(), plan)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print commands without running them")
	return cmd
}

// NewConfigCmd создаёт группу команд config.
func NewConfigCmd(configFn ConfigFunc, outputFn func() *Output) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect deploy configuration",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Show resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configFn()
			if err != nil {
				return err
			}
			data, err := cfg.YAML()
			if err != nil {
				return err
			}
			out := outputFn()
			if f := cfg.File(); f != "" {
				out.Success("Config file: " + f)
			}
			_, err = fmt.Fprint(out.Writer(), string(data))
			return err
		},
	})

	return cmd
}
