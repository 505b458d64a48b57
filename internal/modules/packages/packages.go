// Package packages управляет пакетами через apt, dnf или yum (только Linux).
package packages

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

const component = "PackageManager"

// Module действия менеджера пакетов.
type Module struct {
	os        platform.Provider
	pm        platform.PackageManager
	detectErr error
	actions   core.Actions
}

func New(p platform.Provider) *Module {
	m := &Module{os: p}
	m.actions.Add(core.ActionSpec{Name: "list", Title: "List installed packages"}, m.list)
	m.actions.Add(core.ActionSpec{Name: "update", Title: "Update package lists"}, m.refresh)
	m.actions.Add(core.ActionSpec{Name: "upgrade", Title: "Upgrade all packages", Params: []string{"confirm"}, Destructive: true}, m.upgrade)
	m.actions.Add(core.ActionSpec{Name: "install", Title: "Install package", Params: []string{"package"}}, m.install)
	m.actions.Add(core.ActionSpec{Name: "remove", Title: "Remove package", Params: []string{"package", "confirm"}, Destructive: true}, m.remove)
	m.actions.Add(core.ActionSpec{Name: "search", Title: "Search package", Params: []string{"package"}}, m.search)
	return m
}

func (m *Module) Name() string  { return "package" }
func (m *Module) Title() string { return "Packages" }

// Init определяет менеджер пакетов; его отсутствие не мешает регистрации модуля.
func (m *Module) Init(ctx context.Context) error {
	m.pm, m.detectErr = m.os.Packages()
	if m.detectErr != nil {
		slog.Info("package management unavailable", "err", m.detectErr)
		return nil
	}
	slog.Debug("package manager detected", "manager", m.pm.Name)
	return nil
}

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	if m.detectErr != nil {
		for _, spec := range m.actions.Specs() {
			if spec.Name == action {
				env.Out.Header(spec.Title)
				return env.Reject(component, spec.Title, fmt.Errorf("%w (only Linux with apt/yum/dnf is supported)", m.detectErr))
			}
		}
	}
	return m.actions.Dispatch(ctx, env, action, args)
}

func (m *Module) list(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	l := m.pm.List()
	env.Out.Infof("Listing installed packages (%s)...", l.Command)
	return env.List(ctx, component, "List Packages", l)
}

func (m *Module) search(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	name, err := env.Arg(args, 0, "Package name to search")
	if err == nil {
		err = validate.Package(name)
	}
	if err != nil {
		return env.Reject(component, "Search Package", err)
	}
	return env.List(ctx, component, "Search Package", m.pm.Search(name))
}

func (m *Module) refresh(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	const action = "Update List"
	res := env.Run(ctx, m.pm.Refresh())
	if !m.pm.RefreshOK(res.ExitCode) {
		err := env.Failed("updating package lists", res)
		env.Log(component, action, "error: "+err.Error())
		return core.Fail(err)
	}
	env.Out.Text(strings.TrimSpace(res.Text))
	env.Out.Success("Package lists updated.")
	env.Log(component, action, "package lists updated")
	return core.OK(nil)
}

func (m *Module) upgrade(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Upgrade All"
	ok, err := env.Confirm(args, 0, "Upgrade all installed packages?")
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.pm.Upgrade()}, "All packages upgraded.")
}

func (m *Module) install(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Install Package"
	name, err := env.Arg(args, 0, "Package name to install")
	if err == nil {
		err = validate.Package(name)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.pm.Install(name)},
		fmt.Sprintf("Package '%s' installed.", name))
}

func (m *Module) remove(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Remove Package"
	name, err := env.Arg(args, 0, "Package name to remove")
	if err == nil {
		err = validate.Package(name)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Remove package '%s'?", name))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.pm.Remove(name)},
		fmt.Sprintf("Package '%s' removed.", name))
}
