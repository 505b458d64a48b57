package cli

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/fatih/color"

	"sysconsole/internal/console"
	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/executor/executortest"
	"sysconsole/internal/modules/users"
	"sysconsole/internal/platform"
	"sysconsole/internal/storage"
)

// scripted отдает заранее заданные строки, затем io.EOF.
type scripted struct {
	lines   []string
	prompts []string
}

func (s *scripted) SetPrompt(p string) { s.prompts = append(s.prompts, p) }

func (s *scripted) Readline() (string, error) {
	if len(s.lines) == 0 {
		return "", io.EOF
	}
	line := s.lines[0]
	s.lines = s.lines[1:]
	return line, nil
}

type memorySink struct {
	mu      sync.Mutex
	entries []storage.ActionEntry
}

func (s *memorySink) SaveAction(_ context.Context, e storage.ActionEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, e)
	return nil
}

func newMenu(t *testing.T, fake *executortest.Fake, authz core.Authorizer, lines ...string) (*Menu, *bytes.Buffer, *memorySink) {
	t.Helper()
	color.NoColor = true
	r := core.NewRegistry()
	if err := r.Register(context.Background(), users.New(platform.Linux{})); err != nil {
		t.Fatalf("register: %v", err)
	}
	var buf bytes.Buffer
	sink := &memorySink{}
	return &Menu{
		Registry:   r,
		Exec:       fake,
		Authorizer: authz,
		Sink:       sink,
		Subject:    "tester",
		Out:        console.NewInteractive(&buf, &scripted{lines: lines}),
	}, &buf, sink
}

func TestMenuRunsActionAndRecordsIt(t *testing.T) {
	fake := executortest.NewFake().On("getent passwd", executor.Result{
		Text: "alice:x:1000:1000:Alice:/home/alice:/bin/zsh\n",
	})
	menu, buf, sink := newMenu(t, fake, nil, "1", "1", "", "0", "0")

	if err := menu.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"--- SYSTEM ADMINISTRATION CONSOLE ---", "1. Users and groups", "1. List users", "--- LIST USERS ---", "alice", "Goodbye!"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output misses %q:\n%s", want, out)
		}
	}
	if len(sink.entries) != 1 {
		t.Fatalf("unexpected log %#v", sink.entries)
	}
	e := sink.entries[0]
	if e.Source != "cli" || e.Subject != "tester" || e.Component != "UserGroup" || e.Status != core.StatusOK || e.Session != menu.Out.ID() {
		t.Fatalf("unexpected entry %#v", e)
	}
}

func TestMenuExitsOnEOF(t *testing.T) {
	menu, _, sink := newMenu(t, executortest.NewFake(), nil)
	if err := menu.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(sink.entries) != 0 {
		t.Fatalf("nothing should be logged, got %#v", sink.entries)
	}
}

func TestMenuRejectsInvalidOption(t *testing.T) {
	menu, buf, _ := newMenu(t, executortest.NewFake(), nil, "42", "", "0")
	if err := menu.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if strings.Count(buf.String(), "Invalid option. Please try again.") != 1 {
		t.Fatalf("expected one invalid option message:\n%s", buf.String())
	}
}

func TestMenuDeniedActionIsNotExecuted(t *testing.T) {
	fake := executortest.NewFake()
	authz := core.NewAllowlistAuthorizer(map[string][]string{"cli": {}})
	menu, buf, sink := newMenu(t, fake, authz, "1", "1", "", "0", "0")

	if err := menu.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(fake.Calls) != 0 {
		t.Fatalf("denied action ran commands: %v", fake.Lines())
	}
	if !strings.Contains(buf.String(), "Access denied") {
		t.Fatalf("missing denial:\n%s", buf.String())
	}
	if len(sink.entries) != 1 || sink.entries[0].Status != "denied" {
		t.Fatalf("unexpected log %#v", sink.entries)
	}
}

func TestPick(t *testing.T) {
	if i, ok := pick(" 2 ", 3); !ok || i != 1 {
		t.Fatalf("pick(2) = %d %v", i, ok)
	}
	for _, bad := range []string{"0", "4", "x", ""} {
		if _, ok := pick(bad, 3); ok {
			t.Fatalf("pick(%q) should fail", bad)
		}
	}
}
