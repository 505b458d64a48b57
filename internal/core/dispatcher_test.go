package core

import (
	"context"
	"errors"
	"strings"
	"testing"

	"sysconsole/internal/console"
	"sysconsole/internal/executor"
	"sysconsole/internal/executor/executortest"
	"sysconsole/internal/platform"
	"sysconsole/internal/validate"
)

type fakeModule struct {
	name    string
	initErr error
	actions Actions
}

func newFakeModule(name string) *fakeModule {
	m := &fakeModule{name: name}
	m.actions.Add(ActionSpec{Name: "ping", Title: "Ping"}, func(ctx context.Context, env *Env, args []string) (Response, error) {
		env.Out.Success("pong")
		env.Log("Fake", "Ping", "pong")
		return OK("pong")
	})
	m.actions.Add(ActionSpec{Name: "greet", Title: "Greet", Params: []string{"name"}}, func(ctx context.Context, env *Env, args []string) (Response, error) {
		name, err := env.Arg(args, 0, "Name")
		if err != nil {
			return Fail(err)
		}
		if err := validate.Name("name", name); err != nil {
			env.Out.Error(err.Error())
			return Fail(err)
		}
		env.Out.Success("hello " + name)
		return OK(name)
	})
	return m
}

func (f *fakeModule) Name() string                   { return f.name }
func (f *fakeModule) Title() string                  { return strings.ToUpper(f.name) }
func (f *fakeModule) Init(ctx context.Context) error { return f.initErr }
func (f *fakeModule) Actions() []ActionSpec          { return f.actions.Specs() }
func (f *fakeModule) Execute(ctx context.Context, env *Env, action string, args []string) (Response, error) {
	return f.actions.Dispatch(ctx, env, action, args)
}

func bufferedEnv(answers ...string) *Env {
	out := console.NewBuffered()
	out.Load(answers...)
	out.Clear()
	return NewEnv(out, executortest.NewFake())
}

func TestRegisterAndExecute(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Register(ctx, newFakeModule("test")); err != nil {
		t.Fatalf("register: %v", err)
	}
	env := bufferedEnv()
	resp, err := r.Execute(ctx, env, "test", "ping", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if resp.Status != StatusOK || resp.Data != "pong" {
		t.Fatalf("unexpected response: %#v", resp)
	}
	out, _ := env.Out.Drain()
	if out != "## Ping\n[SUCCESS] pong" {
		t.Fatalf("unexpected output %q", out)
	}
	if got := env.Entries(); len(got) != 1 || got[0].Outcome != "pong" {
		t.Fatalf("unexpected log entries %#v", got)
	}
}

func TestDuplicateModule(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	if err := r.Register(ctx, newFakeModule("dup")); err != nil {
		t.Fatalf("first register: %v", err)
	}
	if err := r.Register(ctx, newFakeModule("dup")); !errors.Is(err, errProviderExists) {
		t.Fatalf("expected errProviderExists, got %v", err)
	}
}

func TestInitFailure(t *testing.T) {
	m := newFakeModule("broken")
	m.initErr = errors.New("boom")
	r := NewRegistry()
	if err := r.Register(context.Background(), m); err == nil {
		t.Fatalf("expected init error")
	}
	if len(r.Modules()) != 0 {
		t.Fatalf("failed module must not be registered")
	}
}

func TestUnknownModule(t *testing.T) {
	r := NewRegistry()
	resp, err := r.Execute(context.Background(), bufferedEnv(), "none", "ping", nil)
	if !IsUnknownModule(err) {
		t.Fatalf("expected unknown module error, got %v", err)
	}
	if resp.ErrorCode != CodeModuleNotFound {
		t.Fatalf("unexpected code %q", resp.ErrorCode)
	}
}

func TestUnknownAction(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(context.Background(), newFakeModule("test"))
	resp, err := r.Execute(context.Background(), bufferedEnv(), "test", "nope", nil)
	if !errors.Is(err, ErrUnknownAction) || resp.ErrorCode != CodeUnknownAction {
		t.Fatalf("expected unknown action, got %#v %v", resp, err)
	}
}

func TestArgFallsBackToPrompt(t *testing.T) {
	r := NewRegistry()
	_ = r.Register(context.Background(), newFakeModule("test"))

	env := bufferedEnv("alice")
	resp, err := r.Execute(context.Background(), env, "test", "greet", nil)
	if err != nil || resp.Data != "alice" {
		t.Fatalf("unexpected result %#v %v", resp, err)
	}

	env = bufferedEnv()
	resp, err = r.Execute(context.Background(), env, "test", "greet", nil)
	if !errors.Is(err, console.ErrNoAnswer) || resp.ErrorCode != CodeNoAnswer {
		t.Fatalf("expected no answer, got %#v %v", resp, err)
	}

	env = bufferedEnv()
	resp, err = r.Execute(context.Background(), env, "test", "greet", []string{"bad;name"})
	if resp.ErrorCode != CodeInvalidInput || err == nil {
		t.Fatalf("expected invalid input, got %#v %v", resp, err)
	}
}

func TestCatalogSorted(t *testing.T) {
	r := NewRegistry()
	ctx := context.Background()
	_ = r.Register(ctx, newFakeModule("zeta"))
	_ = r.Register(ctx, newFakeModule("alpha"))

	if got := r.Modules(); got[0] != "zeta" || got[1] != "alpha" {
		t.Fatalf("modules must keep registration order, got %v", got)
	}
	cat := r.Catalog()
	if len(cat) != 2 || cat[0].Name != "alpha" || len(cat[0].Actions) != 2 {
		t.Fatalf("unexpected catalog %#v", cat)
	}
}

func TestEnvShowRendersListing(t *testing.T) {
	fake := executortest.NewFake().On("ip -brief address", executor.Result{
		Text: "lo UNKNOWN 127.0.0.1/8 ::1/128\neth0 UP 10.0.0.5/24\nbroken\n",
	})
	out := console.NewBuffered()
	out.Clear()
	env := NewEnv(out, fake)

	if err := env.Show(context.Background(), platform.NewLinux().Interfaces()); err != nil {
		t.Fatalf("show: %v", err)
	}
	text, _ := out.Drain()
	if !strings.Contains(text, "[WARNING] line 3 skipped") {
		t.Fatalf("expected parse warning, got %q", text)
	}
	if !strings.Contains(text, "127.0.0.1/8 ::1/128") || !strings.Contains(text, "Interface") {
		t.Fatalf("expected rendered table, got %q", text)
	}
}

func TestEnvShowFailure(t *testing.T) {
	fake := executortest.NewFake().On("ip route", executor.Result{Text: "ip: command not found", ExitCode: executor.ExitNotFound})
	out := console.NewBuffered()
	out.Clear()
	env := NewEnv(out, fake)

	err := env.Show(context.Background(), platform.NewLinux().Routes())
	if !errors.Is(err, ErrCommandFailed) {
		t.Fatalf("expected ErrCommandFailed, got %v", err)
	}
	text, _ := out.Drain()
	if !strings.Contains(text, "[ERROR]") || !strings.Contains(text, "127") {
		t.Fatalf("expected error line, got %q", text)
	}
}

func TestRunAllStopsOnFailure(t *testing.T) {
	fake := executortest.NewFake().On("net stop Spooler", executor.Result{Text: "denied", ExitCode: 2})
	env := bufferedEnv()
	env.Exec = fake

	cmds, _ := platform.Windows{}.ControlService("restart", "Spooler")
	res := env.RunAll(context.Background(), cmds)
	if res.ExitCode != 2 {
		t.Fatalf("expected failure result, got %#v", res)
	}
	if len(fake.Calls) != 1 {
		t.Fatalf("second command must not run, calls: %v", fake.Lines())
	}
}

func TestConfirmFromArgs(t *testing.T) {
	env := bufferedEnv()
	ok, err := env.Confirm([]string{"x", "s"}, 1, "Delete?")
	if err != nil || !ok {
		t.Fatalf("expected confirmation from args, got %v %v", ok, err)
	}
	ok, err = env.Confirm([]string{"x", "n"}, 1, "Delete?")
	if err != nil || ok {
		t.Fatalf("expected refusal from args, got %v %v", ok, err)
	}
}
