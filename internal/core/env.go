package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"sysconsole/internal/console"
	"sysconsole/internal/executor"
	"sysconsole/internal/platform"
)

// LogEntry тройка журнала действий.
type LogEntry struct {
	Component string
	Action    string
	Outcome   string
}

// Env окружение одного действия: канал вывода, исполнитель команд и журнал.
type Env struct {
	Out  *console.Session
	Exec executor.Runner

	mu      sync.Mutex
	entries []LogEntry
}

// NewEnv создает окружение действия.
func NewEnv(out *console.Session, exec executor.Runner) *Env {
	return &Env{Out: out, Exec: exec}
}

// Log фиксирует итог действия.
func (e *Env) Log(component, action, outcome string) {
	e.mu.Lock()
	e.entries = append(e.entries, LogEntry{Component: component, Action: action, Outcome: outcome})
	e.mu.Unlock()
	slog.Info("action", "component", component, "action", action, "outcome", outcome)
}

// Entries возвращает записанные тройки.
func (e *Env) Entries() []LogEntry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]LogEntry(nil), e.entries...)
}

// Arg берет i-й аргумент или запрашивает его у оператора.
func (e *Env) Arg(args []string, i int, prompt string) (string, error) {
	if i < len(args) && strings.TrimSpace(args[i]) != "" {
		return strings.TrimSpace(args[i]), nil
	}
	return e.Out.Prompt(prompt)
}

// OptionalArg как Arg, но отсутствие заготовленного ответа дает пустую строку.
func (e *Env) OptionalArg(args []string, i int, prompt string) (string, error) {
	if i < len(args) {
		return strings.TrimSpace(args[i]), nil
	}
	v, err := e.Out.Prompt(prompt)
	if errors.Is(err, console.ErrNoAnswer) {
		return "", nil
	}
	return v, err
}

// OptionalSecret как OptionalArg, но запрос не показывает введенное значение.
func (e *Env) OptionalSecret(args []string, i int, prompt string) (string, error) {
	if i < len(args) {
		return strings.TrimSpace(args[i]), nil
	}
	v, err := e.Out.PromptSecret(prompt)
	if errors.Is(err, console.ErrNoAnswer) {
		return "", nil
	}
	return v, err
}

// Confirm запрашивает подтверждение; аргумент i, если передан, считается ответом.
func (e *Env) Confirm(args []string, i int, question string) (bool, error) {
	if i < len(args) && strings.TrimSpace(args[i]) != "" {
		return console.IsYes(args[i]), nil
	}
	return e.Out.Confirm(question)
}

// Run показывает команду оператору и выполняет ее.
func (e *Env) Run(ctx context.Context, cmd executor.Command) executor.Result {
	e.Out.Infof("Executing: %s", cmd)
	return e.Exec.Run(ctx, cmd)
}

// RunAll выполняет команды по очереди до первой ошибки.
func (e *Env) RunAll(ctx context.Context, cmds []executor.Command) executor.Result {
	var res executor.Result
	for _, c := range cmds {
		res = e.Run(ctx, c)
		if !res.OK() {
			return res
		}
	}
	return res
}

// Show выполняет команду просмотра и выводит результат в форме listing.
func (e *Env) Show(ctx context.Context, l platform.Listing) error {
	res := e.Exec.Run(ctx, l.Command)
	if !res.OK() {
		e.Out.Errorf("Error retrieving %s (code %d): %s", strings.ToLower(l.Title), res.ExitCode, strings.TrimSpace(res.Text))
		return fmt.Errorf("%s: %w", l.Command.Program, ErrCommandFailed)
	}
	text, warnings := l.Render(res.Text)
	for _, w := range warnings {
		e.Out.Warning(w.String())
	}
	e.Out.Info(l.Title + ":")
	e.Out.Text(text)
	return nil
}

// Failed выводит ошибку команды и возвращает ErrCommandFailed.
func (e *Env) Failed(what string, res executor.Result) error {
	e.Out.Errorf("Error %s: %s", what, strings.TrimSpace(res.Text))
	return fmt.Errorf("%s (exit %d): %w", what, res.ExitCode, ErrCommandFailed)
}

// Apply выполняет изменяющие команды и фиксирует итог в выводе и журнале.
func (e *Env) Apply(ctx context.Context, component, action string, cmds []executor.Command, success string) (Response, error) {
	res := e.RunAll(ctx, cmds)
	if !res.OK() {
		err := e.Failed(strings.ToLower(action), res)
		e.Log(component, action, "error: "+firstLine(res.Text))
		return Fail(err)
	}
	if text := strings.TrimSpace(res.Text); text != "" {
		e.Out.Text(text)
	}
	e.Out.Success(success)
	e.Log(component, action, success)
	return OK(nil)
}

// List выполняет команду просмотра и фиксирует итог в журнале.
func (e *Env) List(ctx context.Context, component, action string, l platform.Listing) (Response, error) {
	if err := e.Show(ctx, l); err != nil {
		e.Log(component, action, "error: "+err.Error())
		return Fail(err)
	}
	e.Log(component, action, l.Title+" listed")
	return OK(nil)
}

// Reject сообщает об ошибке ввода или неподдерживаемой операции; команда не выполняется.
func (e *Env) Reject(component, action string, err error) (Response, error) {
	e.Out.Error(err.Error())
	e.Log(component, action, "rejected: "+err.Error())
	return Fail(err)
}

// Decline фиксирует отказ оператора от подтверждения.
func (e *Env) Decline(component, action string) (Response, error) {
	e.Out.Info("Operation cancelled.")
	e.Log(component, action, "cancelled by operator")
	return Cancelled()
}

func firstLine(text string) string {
	text = strings.TrimSpace(text)
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}
