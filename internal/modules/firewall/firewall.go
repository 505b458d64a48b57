// Package firewall управляет брандмауэром: ufw/iptables или Windows Defender Firewall.
package firewall

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

const component = "Firewall"

// Лимиты строк в сводке состояния.
const (
	ufwPreviewLines      = 5
	iptablesPreviewLines = 10
)

// Module действия над брандмауэром.
type Module struct {
	os      platform.Provider
	actions core.Actions
}

func New(p platform.Provider) *Module {
	m := &Module{os: p}
	portParams := []string{"rule", "port", "protocol", "direction"}
	m.actions.Add(core.ActionSpec{Name: "status", Title: "Firewall status"}, m.status)
	m.actions.Add(core.ActionSpec{Name: "enable", Title: "Enable firewall", Params: []string{"confirm"}, Destructive: true}, m.toggle(true))
	m.actions.Add(core.ActionSpec{Name: "disable", Title: "Disable firewall", Params: []string{"confirm"}, Destructive: true}, m.toggle(false))
	m.actions.Add(core.ActionSpec{Name: "rules", Title: "Firewall rules"}, m.rules)
	m.actions.Add(core.ActionSpec{Name: "allow-port", Title: "Add rule (allow port)", Params: portParams}, m.portRule(false))
	m.actions.Add(core.ActionSpec{Name: "block-port", Title: "Add rule (block port)", Params: portParams}, m.portRule(true))
	m.actions.Add(core.ActionSpec{
		Name:        "delete-port-rule",
		Title:       "Delete port rule",
		Params:      []string{"rule", "port", "protocol", "confirm"},
		Destructive: true,
	}, m.deletePortRule)
	m.actions.Add(core.ActionSpec{Name: "add-app-rule", Title: "Add application rule", Params: []string{"rule", "program", "action", "direction"}}, m.addAppRule)
	m.actions.Add(core.ActionSpec{Name: "delete-rule", Title: "Delete rule by name", Params: []string{"rule", "confirm"}, Destructive: true}, m.deleteRule)
	m.actions.Add(core.ActionSpec{Name: "show-rule", Title: "Show rule by name", Params: []string{"rule"}}, m.showRule)
	return m
}

func (m *Module) Name() string  { return "firewall" }
func (m *Module) Title() string { return "Firewall" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

// firstAvailable выполняет listings по порядку до первого успешного.
func firstAvailable(ctx context.Context, env *core.Env, listings []platform.Listing) (platform.Listing, executor.Result) {
	var (
		l   platform.Listing
		res executor.Result
	)
	for i, candidate := range listings {
		l = candidate
		res = env.Exec.Run(ctx, candidate.Command)
		if res.OK() {
			break
		}
		if i+1 < len(listings) {
			env.Out.Infof("%s not found or not active. Trying %s...", candidate.Title, listings[i+1].Title)
		}
	}
	return l, res
}

func preview(text string, limit int) string {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")
	if len(lines) <= limit {
		return strings.Join(lines, "\n")
	}
	return strings.Join(lines[:limit], "\n") + "\n..."
}

// summarize сворачивает вывод утилиты состояния; ok=false означает неожиданную форму вывода.
func summarize(l platform.Listing, text string) (string, bool) {
	switch l.Command.Program {
	case "ufw":
		var status string
		for _, line := range strings.Split(text, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "Status:") {
				status = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), "Status:"))
				break
			}
		}
		if status == "" {
			return text, false
		}
		out := fmt.Sprintf("%s: %s", l.Title, status)
		rest := strings.SplitN(strings.TrimRight(text, "\n"), "\n", 2)
		if status == "active" && len(rest) == 2 && strings.TrimSpace(rest[1]) != "" {
			out += "\nUFW rules (first lines):\n" + preview(rest[1], ufwPreviewLines)
		}
		return out, true
	case "iptables":
		return l.Title + " (rules):\n" + preview(text, iptablesPreviewLines), true
	default:
		if !strings.Contains(strings.ToLower(text), "state") {
			return text, false
		}
		return strings.TrimSpace(text), true
	}
}

func (m *Module) status(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	const action = "View Status"
	l, res := firstAvailable(ctx, env, m.os.FirewallStatus())
	env.Out.Info(strings.Repeat("-", 30))
	env.Out.Infof("Detected firewall: %s", l.Title)
	env.Out.Info(strings.Repeat("-", 30))
	if !res.OK() {
		err := env.Failed(fmt.Sprintf("reading %s status (code %d)", l.Title, res.ExitCode), res)
		env.Log(component, action, fmt.Sprintf("error reading %s status (code %d)", l.Title, res.ExitCode))
		return core.Fail(err)
	}
	summary, ok := summarize(l, res.Text)
	if !ok {
		env.Out.Warning(fmt.Sprintf("Unexpected output from %s; insufficient permissions?", l.Title))
		env.Out.Warning(summary)
		env.Log(component, action, "unexpected output from "+l.Title)
		return core.OK(nil)
	}
	env.Out.Success(fmt.Sprintf("%s status retrieved.", l.Title))
	env.Out.Text(summary)
	env.Log(component, action, l.Title+" status listed")
	return core.OK(map[string]string{"firewall": l.Title})
}

func (m *Module) rules(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	const action = "List Rules"
	l, res := firstAvailable(ctx, env, m.os.FirewallRules())
	if !res.OK() {
		err := env.Failed("listing firewall rules", res)
		env.Log(component, action, "error: "+err.Error())
		return core.Fail(err)
	}
	env.Out.Info(l.Title + ":")
	env.Out.Text(res.Text)
	env.Log(component, action, l.Title+" listed")
	return core.OK(nil)
}

func (m *Module) toggle(enabled bool) core.Handler {
	return func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		action, verb := "Disable", "disable"
		if enabled {
			action, verb = "Enable", "enable"
		}
		ok, err := env.Confirm(args, 0, fmt.Sprintf("Really %s the firewall?", verb))
		if err != nil {
			return env.Reject(component, action, err)
		}
		if !ok {
			return env.Decline(component, action)
		}
		return env.Apply(ctx, component, action, []executor.Command{m.os.SetFirewall(enabled)},
			fmt.Sprintf("Firewall %sd.", verb))
	}
}

// ruleName обязательное имя правила для Windows; ufw имен не использует.
func (m *Module) ruleName(env *core.Env, args []string, i int) (string, error) {
	if m.os.OS() != "windows" {
		if i < len(args) {
			return strings.TrimSpace(args[i]), nil
		}
		return "", nil
	}
	name, err := env.Arg(args, i, "Rule name")
	if err != nil {
		return "", err
	}
	return name, validate.Label("rule", name)
}

func (m *Module) readPortRule(env *core.Env, args []string, withDirection bool) (platform.FirewallRule, error) {
	var rule platform.FirewallRule
	var err error
	if rule.Name, err = m.ruleName(env, args, 0); err != nil {
		return rule, err
	}
	port, err := env.Arg(args, 1, "Port")
	if err != nil {
		return rule, err
	}
	if err = validate.Port(port); err != nil {
		return rule, err
	}
	rule.Port = port
	proto, err := env.OptionalArg(args, 2, "Protocol (tcp/udp/any)")
	if err != nil {
		return rule, err
	}
	if rule.Protocol, err = validate.Protocol(proto); err != nil {
		return rule, err
	}
	rule.Direction = "in"
	if withDirection {
		dir, err := env.OptionalArg(args, 3, "Direction (in/out)")
		if err != nil {
			return rule, err
		}
		if rule.Direction, err = validate.Direction(dir); err != nil {
			return rule, err
		}
	}
	return rule, nil
}

func (m *Module) portRule(block bool) core.Handler {
	return func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		action, verb := "Add Allow Rule", "allowed"
		if block {
			action, verb = "Add Block Rule", "blocked"
		}
		env.Out.Info("This operation requires administrator/root privileges.")
		rule, err := m.readPortRule(env, args, true)
		if err != nil {
			return env.Reject(component, action, err)
		}
		rule.Block = block
		return env.Apply(ctx, component, action, []executor.Command{m.os.AddPortRule(rule)},
			fmt.Sprintf("Port %s/%s %s (%s).", rule.Port, rule.Protocol, verb, rule.Direction))
	}
}

func (m *Module) deletePortRule(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Delete Port Rule"
	rule, err := m.readPortRule(env, args, false)
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 3, fmt.Sprintf("Delete the rule for port %s/%s?", rule.Port, rule.Protocol))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.DeletePortRule(rule)},
		fmt.Sprintf("Rule for port %s/%s deleted.", rule.Port, rule.Protocol))
}

// unsupported объясняет оператору, чем заменить правило по имени в Linux.
func unsupported(env *core.Env, action string, err error) (core.Response, error) {
	if errors.Is(err, platform.ErrUnsupported) {
		env.Out.Warning("ufw/iptables have no named rules; use port rules or ufw application profiles (e.g. ufw allow 'Apache').")
	}
	return env.Reject(component, action, err)
}

func (m *Module) addAppRule(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Add App Rule"
	if _, err := m.os.AddAppRule(platform.AppRule{}); err != nil {
		return unsupported(env, action, err)
	}
	var rule platform.AppRule
	var err error
	if rule.Name, err = m.ruleName(env, args, 0); err != nil {
		return env.Reject(component, action, err)
	}
	if rule.Program, err = env.Arg(args, 1, "Full path to the executable"); err == nil {
		err = validate.Path("program", rule.Program)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	act, err := env.OptionalArg(args, 2, "Action (allow/block)")
	if err == nil {
		rule.Action, err = validate.RuleAction(act)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	dir, err := env.OptionalArg(args, 3, "Direction (in/out)")
	if err == nil {
		rule.Direction, err = validate.Direction(dir)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	cmd, err := m.os.AddAppRule(rule)
	if err != nil {
		return unsupported(env, action, err)
	}
	return env.Apply(ctx, component, action, []executor.Command{cmd},
		fmt.Sprintf("Rule '%s' added (%s %s).", rule.Name, rule.Action, rule.Program))
}

func (m *Module) deleteRule(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Delete Rule"
	if _, err := m.os.DeleteRule(""); err != nil {
		return unsupported(env, action, err)
	}
	name, err := m.ruleName(env, args, 0)
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Delete rule '%s'?", name))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	cmd, err := m.os.DeleteRule(name)
	if err != nil {
		return unsupported(env, action, err)
	}
	return env.Apply(ctx, component, action, []executor.Command{cmd}, fmt.Sprintf("Rule '%s' deleted.", name))
}

func (m *Module) showRule(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Show Rule by Name"
	if _, err := m.os.ShowRule(""); err != nil {
		return unsupported(env, action, err)
	}
	name, err := m.ruleName(env, args, 0)
	if err != nil {
		return env.Reject(component, action, err)
	}
	l, err := m.os.ShowRule(name)
	if err != nil {
		return unsupported(env, action, err)
	}
	res := env.Exec.Run(ctx, l.Command)
	if !res.OK() || strings.Contains(res.Text, "No rules match") {
		env.Out.Errorf("No rule named '%s' was found.", name)
		env.Out.Text(res.Text)
		env.Log(component, action, fmt.Sprintf("rule '%s' not found", name))
		return core.Fail(fmt.Errorf("rule %q: %w", name, core.ErrCommandFailed))
	}
	env.Out.Text(res.Text)
	env.Log(component, action, fmt.Sprintf("rule '%s' shown", name))
	return core.OK(nil)
}
