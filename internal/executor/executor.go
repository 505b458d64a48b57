package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os/exec"
	"strings"
	"time"
)

const (
	// ExitNotFound возвращается, если программа не найдена в PATH.
	ExitNotFound = 127
	// ExitSpawnFailed возвращается, если процесс не удалось запустить.
	ExitSpawnFailed = -1
	// ExitTimeout возвращается при истечении таймаута исполнения.
	ExitTimeout = 124
)

// Command описывает вызов внешней программы в виде argv.
type Command struct {
	Program string
	Args    []string
	Elevate bool
	// Stdin передается процессу на стандартный ввод (пароль для chpasswd); в String не выводится.
	Stdin string
	// Redact аргументы, которые String заменяет на "****" (пароль в argv net user).
	Redact []string
}

// String возвращает командную строку для отображения оператору.
func (c Command) String() string {
	parts := make([]string, 0, len(c.Args)+1)
	parts = append(parts, quoteArg(c.Program))
	for _, a := range c.Args {
		if c.redacted(a) {
			a = masked
		}
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

const masked = "****"

func (c Command) redacted(arg string) bool {
	if arg == "" {
		return false
	}
	for _, r := range c.Redact {
		if r == arg {
			return true
		}
	}
	return false
}

func quoteArg(a string) string {
	if a == "" {
		return `""`
	}
	if strings.ContainsAny(a, " \t\"'") {
		return `"` + strings.ReplaceAll(a, `"`, `\"`) + `"`
	}
	return a
}

// Result результат одного вызова: объединенный вывод и код завершения.
type Result struct {
	Text     string
	ExitCode int
}

// OK сообщает, завершилась ли команда успешно.
func (r Result) OK() bool { return r.ExitCode == 0 }

// Runner абстрагирует исполнение команд (для тестов подставляется fake).
type Runner interface {
	Run(ctx context.Context, cmd Command) Result
}

// Elevator преобразует команду, требующую повышенных прав.
type Elevator func(cmd Command) Command

// Option настраивает Executor.
type Option func(*Executor)

// WithTimeout ограничивает время исполнения каждой команды; 0 отключает лимит.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) { e.timeout = d }
}

// WithElevator задает обработку команд с Elevate=true.
func WithElevator(el Elevator) Option {
	return func(e *Executor) { e.elevate = el }
}

// Executor запускает команды ОС напрямую, без shell.
type Executor struct {
	timeout time.Duration
	elevate Elevator
}

// New создает Executor.
func New(opts ...Option) *Executor {
	e := &Executor{}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run блокируется до завершения процесса и возвращает (текст, код).
func (e *Executor) Run(ctx context.Context, cmd Command) Result {
	if strings.TrimSpace(cmd.Program) == "" {
		return Result{Text: "empty command", ExitCode: ExitSpawnFailed}
	}
	if cmd.Elevate && e.elevate != nil {
		cmd = e.elevate(cmd)
	}

	runCtx := ctx
	if e.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	c := exec.CommandContext(runCtx, cmd.Program, cmd.Args...)
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}
	var out bytes.Buffer
	c.Stdout = &out
	c.Stderr = &out

	err := c.Run()
	text := out.String()
	if err == nil {
		return Result{Text: text, ExitCode: 0}
	}

	if runCtx.Err() != nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) && e.timeout > 0 {
		return Result{Text: withFallback(text, fmt.Sprintf("command timed out after %v", e.timeout)), ExitCode: ExitTimeout}
	}

	var exitErr *exec.ExitError
	switch {
	case errors.As(err, &exitErr):
		// -1 для процесса, убитого сигналом
		return Result{Text: withFallback(text, err.Error()), ExitCode: exitErr.ExitCode()}
	case errors.Is(err, exec.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		return Result{Text: fmt.Sprintf("%s: command not found", cmd.Program), ExitCode: ExitNotFound}
	default:
		return Result{Text: withFallback(text, err.Error()), ExitCode: ExitSpawnFailed}
	}
}

func withFallback(text, fallback string) string {
	if strings.TrimSpace(text) == "" {
		return fallback
	}
	return text
}
