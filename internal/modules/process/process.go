// Package process показывает, ищет и завершает процессы.
package process

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	gproc "github.com/shirou/gopsutil/v3/process"

	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/parse"
	"sysconsole/internal/platform"
	"sysconsole/internal/table"
	"sysconsole/internal/validate"
)

const component = "Process"

// Info сведения о найденном процессе.
type Info struct {
	PID    int32   `json:"pid"`
	Name   string  `json:"name"`
	User   string  `json:"user"`
	CPU    float64 `json:"cpu_percent"`
	MemMiB float64 `json:"mem_mib"`
}

// Finder ищет процессы, имя которых содержит query (без учета регистра).
type Finder func(ctx context.Context, query string) ([]Info, error)

// Module действия над процессами.
type Module struct {
	os      platform.Provider
	find    Finder
	actions core.Actions
}

// New создает модуль; find=nil использует gopsutil.
func New(p platform.Provider, find Finder) *Module {
	if find == nil {
		find = FindProcesses
	}
	m := &Module{os: p, find: find}
	m.actions.Add(core.ActionSpec{Name: "list", Title: "List processes"}, m.list)
	m.actions.Add(core.ActionSpec{Name: "kill-pid", Title: "Terminate process by PID", Params: []string{"pid", "confirm"}, Destructive: true}, m.killPID)
	m.actions.Add(core.ActionSpec{Name: "kill-name", Title: "Terminate process by name", Params: []string{"name", "confirm"}, Destructive: true}, m.killName)
	m.actions.Add(core.ActionSpec{Name: "find", Title: "Find process by name", Params: []string{"query"}}, m.findByName)
	return m
}

func (m *Module) Name() string  { return "process" }
func (m *Module) Title() string { return "Processes" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

func (m *Module) list(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "List Processes", m.os.Processes())
}

func (m *Module) killPID(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Terminate by PID"
	pid, err := env.Arg(args, 0, "PID of the process to terminate")
	if err == nil {
		err = validate.PID(pid)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Terminate process with PID %s?", pid))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.KillPID(pid)},
		fmt.Sprintf("Process with PID %s terminated.", pid))
}

func (m *Module) killName(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Terminate by Name"
	name, err := env.Arg(args, 0, "Process name (e.g. notepad.exe, firefox)")
	if err == nil {
		err = validate.Name("process name", name)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Terminate process(es) '%s'?", name))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{m.os.KillName(name)},
		fmt.Sprintf("Process(es) '%s' terminated.", name))
}

var findTable = table.Spec{
	Columns: []table.Column{
		{Field: "pid", Header: "PID", Width: 10},
		{Field: "name", Header: "Name", Width: 30},
		{Field: "user", Header: "User", Width: 20},
		{Field: "cpu", Header: "CPU %", Width: 10},
		{Field: "mem", Header: "Mem (MB)", Width: 12},
	},
}

func (m *Module) findByName(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Find by Name"
	query, err := env.Arg(args, 0, "Process name or part of it")
	if err == nil {
		err = validate.Required("query", query)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	found, err := m.find(ctx, query)
	if err != nil {
		env.Out.Errorf("Error scanning processes: %v", err)
		env.Log(component, action, "error: "+err.Error())
		return core.Fail(fmt.Errorf("scan processes: %w", core.ErrCommandFailed))
	}
	if len(found) == 0 {
		env.Out.Warning(fmt.Sprintf("No processes matching '%s' were found.", query))
		env.Log(component, action, fmt.Sprintf("no processes matching '%s'", query))
		return core.OK([]Info{})
	}
	recs := make([]parse.Record, 0, len(found))
	for _, p := range found {
		recs = append(recs, parse.Record{
			"pid":  strconv.Itoa(int(p.PID)),
			"name": p.Name,
			"user": p.User,
			"cpu":  fmt.Sprintf("%.2f", p.CPU),
			"mem":  fmt.Sprintf("%.2f", p.MemMiB),
		})
	}
	env.Out.Success(fmt.Sprintf("Processes matching '%s':", query))
	env.Out.Text(findTable.Render(recs))
	env.Log(component, action, fmt.Sprintf("%d process(es) matching '%s'", len(found), query))
	return core.OK(found)
}

// FindProcesses сканирует процессы через gopsutil; исчезнувшие и недоступные пропускаются.
func FindProcesses(ctx context.Context, query string) ([]Info, error) {
	procs, err := gproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(query)
	var out []Info
	for _, p := range procs {
		name, err := p.NameWithContext(ctx)
		if err != nil || !strings.Contains(strings.ToLower(name), q) {
			continue
		}
		info := Info{PID: p.Pid, Name: name}
		if user, err := p.UsernameWithContext(ctx); err == nil {
			info.User = user
		}
		if cpu, err := p.CPUPercentWithContext(ctx); err == nil {
			info.CPU = cpu
		}
		if mem, err := p.MemoryInfoWithContext(ctx); err == nil && mem != nil {
			info.MemMiB = float64(mem.RSS) / (1 << 20)
		}
		out = append(out, info)
	}
	return out, nil
}
