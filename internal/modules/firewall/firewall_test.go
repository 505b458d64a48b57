package firewall

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"sysconsole/internal/console"
	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/executor/executortest"
	"sysconsole/internal/platform"
)

func newEnv(fake *executortest.Fake, answers ...string) *core.Env {
	out := console.NewBuffered()
	out.Load(answers...)
	out.Clear()
	return core.NewEnv(out, fake)
}

func TestStatusFallsBackToIptables(t *testing.T) {
	fake := executortest.NewFake().
		On("ufw status", executor.Result{Text: "ufw: command not found", ExitCode: executor.ExitNotFound}).
		On("iptables -L -n -v", executor.Result{Text: "Chain INPUT (policy ACCEPT 0 packets, 0 bytes)\n"})
	env := newEnv(fake)

	resp, err := New(platform.Linux{}).Execute(context.Background(), env, "status", nil)
	if err != nil || resp.Status != core.StatusOK {
		t.Fatalf("unexpected result %#v %v", resp, err)
	}
	if got := fake.Lines(); !reflect.DeepEqual(got, []string{"ufw status", "iptables -L -n -v"}) {
		t.Fatalf("unexpected commands %v", got)
	}
	out, _ := env.Out.Drain()
	for _, want := range []string{"Trying iptables", "Detected firewall: iptables", "Chain INPUT"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestStatusUfwActivePreview(t *testing.T) {
	text := "Status: active\n\nTo Action From\n-- ------ ----\n22 ALLOW Anywhere\n80 ALLOW Anywhere\n443 ALLOW Anywhere\n8080 ALLOW Anywhere\n"
	fake := executortest.NewFake().On("ufw status", executor.Result{Text: text})
	env := newEnv(fake)

	if _, err := New(platform.Linux{}).Execute(context.Background(), env, "status", nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, _ := env.Out.Drain()
	if !strings.Contains(out, "UFW (Uncomplicated Firewall): active") {
		t.Fatalf("missing status line: %q", out)
	}
	if strings.Contains(out, "8080") || !strings.Contains(out, "...") {
		t.Fatalf("rules preview must be truncated: %q", out)
	}
}

func TestStatusUnexpectedOutput(t *testing.T) {
	fake := executortest.NewFake().On("ufw status", executor.Result{Text: "ERROR: You need to be root to run this script\n"})
	env := newEnv(fake)
	resp, err := New(platform.Linux{}).Execute(context.Background(), env, "status", nil)
	if err != nil || resp.Status != core.StatusOK {
		t.Fatalf("unexpected result %#v %v", resp, err)
	}
	out, _ := env.Out.Drain()
	if !strings.Contains(out, "[WARNING] Unexpected output") {
		t.Fatalf("expected warning: %q", out)
	}
}

func TestAllowPortLinuxDefaults(t *testing.T) {
	fake := executortest.NewFake()
	env := newEnv(fake)
	_, err := New(platform.Linux{}).Execute(context.Background(), env, "allow-port", []string{"", "8080", "tcp", "in"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if got := fake.Lines(); len(got) != 1 || got[0] != "ufw allow 8080/tcp" {
		t.Fatalf("unexpected commands %v", got)
	}
}

func TestBlockPortWindows(t *testing.T) {
	fake := executortest.NewFake()
	env := newEnv(fake, "Block Telnet", "23", "", "")
	_, err := New(platform.Windows{}).Execute(context.Background(), env, "block-port", nil)
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	want := []string{"advfirewall", "firewall", "add", "rule", "name=Block Telnet", "dir=in", "action=block", "protocol=any", "localport=23"}
	if len(fake.Calls) != 1 || !reflect.DeepEqual(fake.Calls[0].Args, want) {
		t.Fatalf("unexpected calls %#v", fake.Calls)
	}
}

func TestAllowPortRejectsBadPort(t *testing.T) {
	fake := executortest.NewFake()
	env := newEnv(fake)
	resp, _ := New(platform.Linux{}).Execute(context.Background(), env, "allow-port", []string{"", "70000"})
	if resp.ErrorCode != core.CodeInvalidInput || len(fake.Calls) != 0 {
		t.Fatalf("expected rejection without commands, got %#v %v", resp, fake.Lines())
	}
}

func TestAppRuleUnsupportedOnLinux(t *testing.T) {
	fake := executortest.NewFake()
	env := newEnv(fake, "MyApp", "/usr/bin/app")
	resp, err := New(platform.Linux{}).Execute(context.Background(), env, "add-app-rule", nil)
	if !errors.Is(err, platform.ErrUnsupported) || resp.ErrorCode != core.CodeUnsupported {
		t.Fatalf("expected unsupported, got %#v %v", resp, err)
	}
	if len(fake.Calls) != 0 {
		t.Fatalf("no command may run")
	}
}

func TestAppRuleWindows(t *testing.T) {
	fake := executortest.NewFake()
	env := newEnv(fake)
	_, err := New(platform.Windows{}).Execute(context.Background(), env, "add-app-rule",
		[]string{"Allow MyApp", `C:\Program Files\MyApp\app.exe`, "allow", "out"})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	args := fake.Calls[0].Args
	if args[len(args)-2] != `program=C:\Program Files\MyApp\app.exe` || args[5] != "dir=out" {
		t.Fatalf("unexpected args %#v", args)
	}
}

func TestShowRuleNotFound(t *testing.T) {
	fake := executortest.NewFake().On("netsh advfirewall firewall show rule name=Nope", executor.Result{Text: "No rules match the specified criteria.\n", ExitCode: 1})
	env := newEnv(fake)
	_, err := New(platform.Windows{}).Execute(context.Background(), env, "show-rule", []string{"Nope"})
	if !errors.Is(err, core.ErrCommandFailed) {
		t.Fatalf("expected failure, got %v", err)
	}
	out, _ := env.Out.Drain()
	if !strings.Contains(out, "No rule named 'Nope'") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestDisableDeclined(t *testing.T) {
	fake := executortest.NewFake()
	env := newEnv(fake, "no")
	resp, err := New(platform.Windows{}).Execute(context.Background(), env, "disable", nil)
	if err != nil || resp.Status != core.StatusCancelled || len(fake.Calls) != 0 {
		t.Fatalf("expected cancellation, got %#v %v", resp, err)
	}
}
