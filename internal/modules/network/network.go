// Package network показывает и меняет сетевую конфигурацию.
package network

import (
	"context"
	"fmt"

	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

const component = "Network"

// Module сетевые интерфейсы, адреса и маршруты.
type Module struct {
	os      platform.Provider
	actions core.Actions
}

func New(p platform.Provider) *Module {
	m := &Module{os: p}
	m.actions.Add(core.ActionSpec{Name: "interfaces", Title: "IP configuration"}, m.interfaces)
	m.actions.Add(core.ActionSpec{
		Name:        "set-address",
		Title:       "Configure static IP",
		Params:      []string{"interface", "ip", "mask", "gateway", "confirm"},
		Destructive: true,
	}, m.setAddress)
	m.actions.Add(core.ActionSpec{
		Name:        "set-state",
		Title:       "Enable/disable interface",
		Params:      []string{"interface", "state", "confirm"},
		Destructive: true,
	}, m.setState)
	m.actions.Add(core.ActionSpec{Name: "routes", Title: "Routing table"}, m.routes)
	m.actions.Add(core.ActionSpec{Name: "connections", Title: "Network connections"}, m.connections)
	return m
}

func (m *Module) Name() string  { return "network" }
func (m *Module) Title() string { return "Network" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

func (m *Module) interfaces(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "View IP Config", m.os.Interfaces())
}

func (m *Module) routes(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "View Routing Tables", m.os.Routes())
}

func (m *Module) connections(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "View Network Connections", m.os.Connections())
}

func readAddress(env *core.Env, args []string) (platform.Address, error) {
	var addr platform.Address
	var err error
	if addr.Interface, err = env.Arg(args, 0, "Interface name (e.g. 'Ethernet', 'eth0')"); err != nil {
		return addr, err
	}
	if err = validate.Label("interface", addr.Interface); err != nil {
		return addr, err
	}
	if addr.IP, err = env.Arg(args, 1, "IP address (e.g. 192.168.1.100)"); err != nil {
		return addr, err
	}
	if err = validate.IPv4("ip", addr.IP); err != nil {
		return addr, err
	}
	if addr.Mask, err = env.Arg(args, 2, "Subnet mask (e.g. 255.255.255.0 or 24)"); err != nil {
		return addr, err
	}
	if err = validate.Mask(addr.Mask); err != nil {
		return addr, err
	}
	if addr.Gateway, err = env.OptionalArg(args, 3, "Gateway (optional)"); err != nil {
		return addr, err
	}
	if addr.Gateway != "" {
		err = validate.IPv4("gateway", addr.Gateway)
	}
	return addr, err
}

func (m *Module) setAddress(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Configure Static IP"
	env.Out.Info("This operation requires administrator/root privileges and may interrupt connectivity.")
	addr, err := readAddress(env, args)
	if err != nil {
		return env.Reject(component, action, err)
	}
	if m.os.OS() == "linux" {
		env.Out.Warning("The address is not persisted; update the distribution's network configuration to keep it after reboot.")
	}
	ok, err := env.Confirm(args, 4, fmt.Sprintf("Apply %s/%s to '%s'?", addr.IP, addr.Mask, addr.Interface))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, m.os.SetAddress(addr),
		fmt.Sprintf("Static IP configuration applied to '%s'.", addr.Interface))
}

func (m *Module) setState(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Toggle Interface"
	iface, err := env.Arg(args, 0, "Interface name (e.g. 'Ethernet', 'eth0')")
	if err == nil {
		err = validate.Label("interface", iface)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	state, err := env.Arg(args, 1, "State ('up' or 'down')")
	if err != nil {
		return env.Reject(component, action, err)
	}
	up, err := validate.LinkState(state)
	if err != nil {
		return env.Reject(component, action, err)
	}
	verb := "disable"
	if up {
		verb = "enable"
	}
	ok, err := env.Confirm(args, 2, fmt.Sprintf("Really %s interface '%s'?", verb, iface))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.SetLinkState(iface, up)},
		fmt.Sprintf("Interface '%s' %sd.", iface, verb))
}
