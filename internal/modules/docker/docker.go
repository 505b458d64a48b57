// Package docker управляет контейнерами и compose-проектами через CLI docker.
// Перед каждым действием проверяется доступность демона (docker info).
package docker

import (
	"context"
	"fmt"
	"os"
	"strings"

	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/validate"
)

const (
	component = "Docker"
	binary    = "docker"

	psFormat = "table {{.ID}}\t{{.Names}}\t{{.Image}}\t{{.Status}}\t{{.Ports}}"
)

// Module действия над Docker.
type Module struct {
	actions core.Actions
}

func New() *Module {
	m := &Module{}
	m.add(core.ActionSpec{Name: "list", Title: "List containers"}, m.list)
	m.add(core.ActionSpec{Name: "images", Title: "List images"}, m.images)
	m.add(core.ActionSpec{Name: "start", Title: "Start container", Params: []string{"container"}},
		m.lifecycle("start", "Start Container", "started"))
	m.add(core.ActionSpec{Name: "stop", Title: "Stop container", Params: []string{"container"}},
		m.lifecycle("stop", "Stop Container", "stopped"))
	m.add(core.ActionSpec{Name: "restart", Title: "Restart container", Params: []string{"container"}},
		m.lifecycle("restart", "Restart Container", "restarted"))
	m.add(core.ActionSpec{Name: "remove", Title: "Remove container", Params: []string{"container", "confirm"}, Destructive: true}, m.remove)
	m.add(core.ActionSpec{Name: "logs", Title: "Container logs", Params: []string{"container", "lines"}}, m.logs)
	m.add(core.ActionSpec{Name: "exec", Title: "Execute command in container", Params: []string{"container", "command"}}, m.exec)
	m.add(core.ActionSpec{Name: "prune-images", Title: "Remove unused images", Params: []string{"confirm"}, Destructive: true}, m.prune)
	m.add(core.ActionSpec{Name: "compose-up", Title: "Docker Compose up", Params: []string{"file"}}, m.compose("up"))
	m.add(core.ActionSpec{Name: "compose-down", Title: "Docker Compose down", Params: []string{"file"}}, m.compose("down"))
	return m
}

func (m *Module) Name() string  { return "docker" }
func (m *Module) Title() string { return "Docker" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

// add регистрирует обработчик с предварительной проверкой демона.
func (m *Module) add(spec core.ActionSpec, h core.Handler) {
	m.actions.Add(spec, func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		res := env.Exec.Run(ctx, docker("info"))
		if !res.OK() {
			env.Out.Error("Docker is not available. Make sure the daemon is running and you have access to it.")
			err := fmt.Errorf("docker info (exit %d): %w", res.ExitCode, core.ErrCommandFailed)
			env.Log(component, spec.Title, "error: daemon unavailable")
			return core.Fail(err)
		}
		return h(ctx, env, args)
	})
}

func docker(args ...string) executor.Command {
	return executor.Command{Program: binary, Args: args}
}

// show выполняет команду просмотра и выводит ее текст без разбора.
func show(ctx context.Context, env *core.Env, action, what string, cmd executor.Command) (core.Response, error) {
	res := env.Run(ctx, cmd)
	if !res.OK() {
		err := env.Failed(what, res)
		env.Log(component, action, "error: "+err.Error())
		return core.Fail(err)
	}
	text := strings.TrimSpace(res.Text)
	if text == "" {
		text = "No records found."
	}
	env.Out.Text(text)
	env.Log(component, action, fmt.Sprintf("command '%s' succeeded", cmd))
	return core.OK(nil)
}

func (m *Module) list(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return show(ctx, env, "List Containers", "listing containers", docker("ps", "-a", "--format", psFormat))
}

func (m *Module) images(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return show(ctx, env, "List Images", "listing images", docker("images"))
}

func container(env *core.Env, args []string) (string, error) {
	id, err := env.Arg(args, 0, "Container ID or name")
	if err != nil {
		return "", err
	}
	return id, validate.Container(id)
}

func (m *Module) lifecycle(verb, title, past string) core.Handler {
	return func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		id, err := container(env, args)
		if err != nil {
			return env.Reject(component, title, err)
		}
		return env.Apply(ctx, component, title, []executor.Command{docker(verb, id)},
			fmt.Sprintf("Container '%s' %s.", id, past))
	}
}

func (m *Module) remove(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Remove Container"
	id, err := container(env, args)
	if err != nil {
		return env.Reject(component, action, err)
	}
	ok, err := env.Confirm(args, 1, fmt.Sprintf("Remove container '%s'? This cannot be undone", id))
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{docker("rm", id)},
		fmt.Sprintf("Container '%s' removed.", id))
}

func (m *Module) logs(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "View Logs"
	id, err := container(env, args)
	if err != nil {
		return env.Reject(component, action, err)
	}
	lines, err := env.OptionalArg(args, 1, "Number of lines (empty for all)")
	if err != nil {
		return env.Reject(component, action, err)
	}
	if err := validate.Lines(lines); err != nil {
		return env.Reject(component, action, err)
	}
	cmd := docker("logs", id)
	if lines != "" {
		cmd.Args = append(cmd.Args, "-n", lines)
	}
	env.Out.Infof("Logs of container '%s':", id)
	return show(ctx, env, action, fmt.Sprintf("reading logs of '%s'", id), cmd)
}

func (m *Module) exec(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Exec Command"
	id, err := container(env, args)
	if err != nil {
		return env.Reject(component, action, err)
	}
	var fields []string
	if len(args) > 1 {
		fields = args[1:]
		if len(fields) == 1 {
			fields = strings.Fields(fields[0])
		}
	} else {
		line, err := env.Out.Prompt("Command to execute")
		if err != nil {
			return env.Reject(component, action, err)
		}
		fields = strings.Fields(line)
	}
	if len(fields) == 0 {
		return env.Reject(component, action, fmt.Errorf("command must not be empty: %w", validate.ErrInvalid))
	}
	cmd := docker(append([]string{"exec", id}, fields...)...)
	return show(ctx, env, action, fmt.Sprintf("executing command in '%s'", id), cmd)
}

func (m *Module) prune(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Prune Images"
	ok, err := env.Confirm(args, 0, "Remove ALL unused images?")
	if err != nil {
		return env.Reject(component, action, err)
	}
	if !ok {
		return env.Decline(component, action)
	}
	return env.Apply(ctx, component, action, []executor.Command{docker("image", "prune", "-a", "-f")},
		"Unused images removed.")
}

func composeFile(env *core.Env, args []string) (string, error) {
	path, err := env.Arg(args, 0, "Path to docker-compose file")
	if err != nil {
		return "", err
	}
	if err := validate.Path("compose file", path); err != nil {
		return "", err
	}
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("compose file %q does not exist: %w", path, validate.ErrInvalid)
	}
	if info.IsDir() {
		return "", fmt.Errorf("%q is a directory, not a compose file: %w", path, validate.ErrInvalid)
	}
	return path, nil
}

func (m *Module) compose(verb string) core.Handler {
	title := "Compose " + strings.ToUpper(verb[:1]) + verb[1:]
	return func(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
		path, err := composeFile(env, args)
		if err != nil {
			return env.Reject(component, title, err)
		}
		cmdArgs := []string{"compose", "-f", path, verb}
		success := fmt.Sprintf("Services from '%s' stopped and removed.", path)
		if verb == "up" {
			cmdArgs = append(cmdArgs, "-d")
			success = fmt.Sprintf("Services from '%s' started.", path)
		}
		return env.Apply(ctx, component, title, []executor.Command{docker(cmdArgs...)}, success)
	}
}
