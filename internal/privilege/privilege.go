// Package privilege проверяет права администратора и повышает их
// для команд, помеченных Elevate.
package privilege

import (
	"errors"
	"os"
	"os/exec"
	"strings"

	"sysconsole/internal/executor"
)

// ErrNotElevated процесс запущен без прав администратора и не может быть перезапущен.
var ErrNotElevated = errors.New("administrator/root privileges are required")

// ErrRelaunched текущий процесс передал управление повышенной копии и должен завершиться.
var ErrRelaunched = errors.New("relaunched with elevated privileges")

// IsElevated сообщает, выполняется ли процесс с правами администратора/root.
func IsElevated() bool { return isElevated() }

// Ensure проверяет права; без них пытается перезапустить процесс (Windows)
// или возвращает ErrNotElevated с инструкцией (Linux).
func Ensure() error {
	if isElevated() {
		return nil
	}
	return relaunch(os.Args)
}

// Hint подсказка оператору, как перезапустить программу с правами.
func Hint(args []string) string {
	return hint(args)
}

// Elevator возвращает преобразование команд для executor.
// Уже повышенный процесс исполняет команды без изменений.
func Elevator() executor.Elevator {
	return newElevator(isElevated(), lookPath)
}

var lookPath = exec.LookPath

func newElevator(elevated bool, look func(string) (string, error)) executor.Elevator {
	return func(cmd executor.Command) executor.Command {
		if elevated || !needsSudo() {
			return cmd
		}
		if _, err := look("sudo"); err != nil {
			return cmd
		}
		cmd.Args = append([]string{"-n", cmd.Program}, cmd.Args...)
		cmd.Program = "sudo"
		return cmd
	}
}

func quoteArgs(args []string) string {
	quoted := make([]string, 0, len(args))
	for _, a := range args {
		if strings.ContainsAny(a, " \t\"") {
			a = `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
		}
		quoted = append(quoted, a)
	}
	return strings.Join(quoted, " ")
}
