package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/chzyer/readline"

	"sysconsole/internal/console"
	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/storage"
	"sysconsole/internal/transports/common"
)

// MainTitle заголовок главного меню.
const MainTitle = "System Administration Console"

// Menu интерактивное меню: модули, затем действия выбранного модуля.
type Menu struct {
	Registry   *core.Registry
	Exec       executor.Runner
	Authorizer core.Authorizer
	Sink       storage.ActionSink
	Subject    string
	Out        *console.Session
}

// Run показывает главное меню до выбора "0", EOF или Ctrl+C.
func (m *Menu) Run(ctx context.Context) error {
	names := m.Registry.Modules()
	for {
		m.Out.Clear()
		m.Out.Header(MainTitle)
		for i, name := range names {
			mod, _ := m.Registry.Module(name)
			m.Out.Text(fmt.Sprintf("%d. %s", i+1, mod.Title()))
		}
		m.Out.Text("0. Exit")

		choice, err := m.Out.Prompt("Select an option")
		if err != nil {
			return quit(err)
		}
		if isExit(choice) {
			m.Out.Info("Goodbye!")
			return nil
		}
		idx, ok := pick(choice, len(names))
		if !ok {
			m.Out.Error("Invalid option. Please try again.")
			if err := m.pause(); err != nil {
				return quit(err)
			}
			continue
		}
		if err := m.moduleMenu(ctx, names[idx]); err != nil {
			return quit(err)
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (m *Menu) moduleMenu(ctx context.Context, name string) error {
	mod, _ := m.Registry.Module(name)
	specs := mod.Actions()
	for {
		m.Out.Clear()
		m.Out.Header(mod.Title())
		for i, spec := range specs {
			m.Out.Text(fmt.Sprintf("%d. %s", i+1, spec.Title))
		}
		m.Out.Text("0. Back to main menu")

		choice, err := m.Out.Prompt("Select an option")
		if err != nil {
			return err
		}
		if isExit(choice) {
			return nil
		}
		idx, ok := pick(choice, len(specs))
		if !ok {
			m.Out.Error("Invalid option. Please try again.")
		} else {
			m.runAction(ctx, mod, specs[idx])
		}
		if err := m.pause(); err != nil {
			return err
		}
		if ctx.Err() != nil {
			return nil
		}
	}
}

func (m *Menu) runAction(ctx context.Context, mod core.Module, spec core.ActionSpec) {
	meta := common.Meta{Session: m.Out.ID(), Source: "cli", Subject: m.Subject}
	if m.Authorizer != nil {
		action := core.Action{Module: mod.Name(), Command: spec.Name}
		if err := m.Authorizer.Authorize(core.Subject{Source: "cli", ID: m.Subject}, action); err != nil {
			m.Out.Errorf("Access denied: %v", err)
			common.Record(ctx, m.Sink, meta, []core.LogEntry{{Component: mod.Name(), Action: spec.Title, Outcome: "denied"}}, "denied")
			return
		}
	}

	m.Out.Clear()
	env := core.NewEnv(m.Out, m.Exec)
	resp, _ := m.Registry.Execute(ctx, env, mod.Name(), spec.Name, nil)
	entries := env.Entries()
	if len(entries) == 0 {
		entries = []core.LogEntry{{Component: mod.Name(), Action: spec.Title, Outcome: resp.Status}}
	}
	common.Record(ctx, m.Sink, meta, entries, resp.Status)
}

func (m *Menu) pause() error {
	_, err := m.Out.Prompt("Press Enter to continue")
	return err
}

func pick(choice string, n int) (int, bool) {
	i, err := strconv.Atoi(strings.TrimSpace(choice))
	if err != nil || i < 1 || i > n {
		return 0, false
	}
	return i - 1, true
}

func isExit(choice string) bool {
	switch strings.ToLower(strings.TrimSpace(choice)) {
	case "0", "exit", "quit", "q":
		return true
	}
	return false
}

// quit превращает EOF и Ctrl+C в штатный выход.
func quit(err error) error {
	if errors.Is(err, io.EOF) || errors.Is(err, readline.ErrInterrupt) {
		return nil
	}
	return err
}
