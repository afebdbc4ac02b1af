package deploy

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"strings"
)

// Действия плана.
const (
	ActionDeploy   = "deploy"
	ActionTeardown = "teardown"
)

// Command — вызов внешней программы.
type Command struct {
	Name string
	Args []string
}

// Argv возвращает полный argv.
func (c Command) Argv() []string {
	return append([]string{c.Name}, c.Args...)
}

// String возвращает команду в виде строки shell.
func (c Command) String() string {
	argv := c.Argv()
	quoted := make([]string, len(argv))
	for i, a := range argv {
		quoted[i] = shellQuote(a)
	}
	return strings.Join(quoted, " ")
}

// Plan — последовательность команд для одного ресурса.
type Plan struct {
	Resource string
	Action   string
	Commands []Command

	// Region — регион команд плана.
	Region string

	// RegionDefaulted — регион не задан в конфигурации.
	RegionDefaulted bool
}

// Executor выполняет одну команду.
type Executor interface {
	Execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) error
}

// ExecExecutor запускает команды через os/exec.
type ExecExecutor struct{}

// Execute запускает команду и ждёт её завершения.
func (ExecExecutor) Execute(ctx context.Context, cmd Command, stdout, stderr io.Writer) error {
	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Stdout = stdout
	c.Stderr = stderr
	c.Env = os.Environ()

	err := c.Run()
	if err == nil {
		return nil
	}

	code := 1
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() > 0 {
		code = exitErr.ExitCode()
	}
	return &CommandError{Command: cmd, ExitCode: code, Err: err}
}

// Runner выполняет планы по порядку и останавливается на первой ошибке.
type Runner struct {
	Executor Executor
	Stdout   io.Writer
	Stderr   io.Writer
	Logger   *slog.Logger

	// DryRun — только печатать команды.
	DryRun bool
}

// NewRunner создаёт Runner, который пишет в stdout/stderr процесса.
func NewRunner(logger *slog.Logger, dryRun bool) *Runner {
	return &Runner{
		Executor: ExecExecutor{},
		Stdout:   os.Stdout,
		Stderr:   os.Stderr,
		Logger:   logger,
		DryRun:   dryRun,
	}
}

// Run выполняет планы. Ошибка — *CommandError упавшей команды.
func (r *Runner) Run(ctx context.Context, plans ...Plan) error {
	for _, p := range plans {
		if p.RegionDefaulted {
			r.Logger.Info("region not configured, using default",
				"region", p.Region,
				"env", EnvRegion,
			)
			break
		}
	}

	for _, p := range plans {
		logger := r.Logger.With("resource", p.Resource, "action", p.Action)
		logger.Info("running plan", "commands", len(p.Commands), "dry_run", r.DryRun)

		for _, cmd := range p.Commands {
			if r.DryRun {
				fmt.Fprintln(r.Stdout, cmd.String())
				continue
			}

			logger.Debug("exec", "command", cmd.String())
			if err := r.Executor.Execute(ctx, cmd, r.Stdout, r.Stderr); err != nil {
				logger.Error("command failed", "command", cmd.String(), "error", err)
				return err
			}
		}
	}
	return nil
}

// shellQuote экранирует аргумент для POSIX shell.
func shellQuote(s string) string {
	if s == "" {
		return "''"
	}
	if strings.IndexFunc(s, needsQuote) < 0 {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}

func needsQuote(r rune) bool {
	switch {
	case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
		return false
	}
	return !strings.ContainsRune("-_./:=,@%+", r)
}
