package deploy

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownResource — ресурс с таким именем не описан.
var ErrUnknownResource = errors.New("unknown resource")

// MissingEnvError — не задана обязательная переменная окружения.
type MissingEnvError struct {
	Name string
}

func (e *MissingEnvError) Error() string {
	return fmt.Sprintf("missing required environment variable: %s", e.Name)
}

// CommandError — внешняя команда завершилась с ненулевым кодом.
type CommandError struct {
	Command  Command
	ExitCode int
	Err      error
}

func (e *CommandError) Error() string {
	return fmt.Sprintf("%s exited with code %d: %v", e.Command.Name, e.ExitCode, e.Err)
}

func (e *CommandError) Unwrap() error { return e.Err }

// ExitCode возвращает код завершения процесса для ошибки:
// 0 — успех, 1 — ошибка конфигурации, иначе код упавшей команды.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	var cmdErr *CommandError
	if errors.As(err, &cmdErr) && cmdErr.ExitCode > 0 {
		return cmdErr.ExitCode
	}
	return 1
}

// resourceNames — список имён для сообщений об ошибке.
func resourceNames() string {
	names := make([]string, len(resources))
	for i, r := range resources {
		names[i] = r.Name
	}
	return strings.Join(names, ", ")
}
