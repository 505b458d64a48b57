// Package service управляет системными службами (systemd или SCM Windows).
package service

import (
	"context"
	"fmt"
	"strings"

	"sysconsole/internal/core"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

const component = "Service"

var controls = []struct {
	action string
	title  string
	past   string
}{
	{action: "start", title: "Start service", past: "started"},
	{action: "stop", title: "Stop service", past: "stopped"},
	{action: "restart", title: "Restart service", past: "restarted"},
	{action: "enable", title: "Enable service at boot", past: "enabled"},
	{action: "disable", title: "Disable service at boot", past: "disabled"},
}

// Module действия над службами.
type Module struct {
	os      platform.Provider
	actions core.Actions
}

func New(p platform.Provider) *Module {
	m := &Module{os: p}
	m.actions.Add(core.ActionSpec{Name: "list", Title: "List services"}, m.list)
	m.actions.Add(core.ActionSpec{Name: "status", Title: "Service status", Params: []string{"service"}}, m.status)
	for _, c := range controls {
		m.actions.Add(core.ActionSpec{Name: c.action, Title: c.title, Params: []string{"service"}}, m.control(c.action, c.past))
	}
	return m
}

func (m *Module) Name() string  { return "service" }
func (m *Module) Title() string { return "Services" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

func (m *Module) list(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	env.Out.Infof("Listing services (%s)...", m.os.OS())
	return env.List(ctx, component, "List Services", m.os.Services())
}

func serviceName(env *core.Env, args []string) (string, error) {
	name, err := env.Arg(args, 0, "Service name")
	if err != nil {
		return "", err
	}
	return name, validate.Name("service", name)
}

func (m *Module) status(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	name, err := serviceName(env, args)
	if err != nil {
		return env.Reject(component, "Service Status", err)
	}
	l := m.os.ServiceStatus(name)
	res := env.Exec.Run(ctx, l.Command)
	// systemctl status возвращает 3 для остановленной службы
	if !res.OK() && strings.TrimSpace(res.Text) == "" {
		err := env.Failed(fmt.Sprintf("reading status of '%s'", name), res)
		env.Log(component, "Service Status", "error: "+err.Error())
		return core.Fail(err)
	}
	env.Out.Text(res.Text)
	env.Log(component, "Service Status", fmt.Sprintf("status of '%s' shown", name))
	return core.OK(map[string]int{"exit_code": res.ExitCode})
}

func (m *Module) control(action, past string) core.Handler {
	title := strings.ToUpper(action[:1]) + action[1:] + " Service"
	return func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		name, err := serviceName(env, args)
		if err != nil {
			return env.Reject(component, title, err)
		}
		cmds, err := m.os.ControlService(action, name)
		if err != nil {
			return env.Reject(component, title, err)
		}
		return env.Apply(ctx, component, title, cmds, fmt.Sprintf("Service '%s' %s.", name, past))
	}
}
