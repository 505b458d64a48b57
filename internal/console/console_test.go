package console

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"testing"

	"github.com/fatih/color"
)

type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) SetPrompt(p string) { r.prompts = append(r.prompts, p) }

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

// passwordScript отдает ответы через ReadPassword.
type passwordScript struct {
	scriptedReader
	secrets []string
}

func (r *passwordScript) ReadPassword(prompt string) ([]byte, error) {
	r.prompts = append(r.prompts, prompt)
	if len(r.secrets) == 0 {
		return nil, io.EOF
	}
	secret := r.secrets[0]
	r.secrets = r.secrets[1:]
	return []byte(secret), nil
}

func TestBufferedEmitAndDrain(t *testing.T) {
	s := NewBuffered()
	s.Clear()
	s.Info("first")
	s.Success("second")
	s.Error("third")

	out, err := s.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	want := "[INFO] first\n[SUCCESS] second\n[ERROR] third"
	if out != want {
		t.Fatalf("unexpected drain output:\n%s\nwant:\n%s", out, want)
	}
	if s.Collecting() {
		t.Fatalf("session must be idle after drain")
	}
	if _, err := s.Drain(); !errors.Is(err, ErrNotCollecting) {
		t.Fatalf("expected ErrNotCollecting on second drain, got %v", err)
	}
}

func TestBufferedClearEmptiesBuffer(t *testing.T) {
	s := NewBuffered()
	s.Clear()
	s.Info("stale")
	s.Clear()
	s.Header("Disks")
	s.Text("raw output\n")

	out, err := s.Drain()
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	if out != "## Disks\nraw output" {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestBufferedEmitWhileIdleIsDropped(t *testing.T) {
	s := NewBuffered()
	s.Info("ignored")
	s.Clear()
	out, _ := s.Drain()
	if out != "" {
		t.Fatalf("expected empty buffer, got %q", out)
	}
}

func TestBufferedPromptConsumesQueue(t *testing.T) {
	s := NewBuffered()
	s.Load("s")
	s.Clear()

	got, err := s.Prompt("Confirm")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if got != "s" {
		t.Fatalf("expected s, got %q", got)
	}
	if _, err := s.Prompt("Confirm again"); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("expected ErrNoAnswer, got %v", err)
	}

	out, _ := s.Drain()
	if !strings.Contains(out, "[INFO] Confirm: s") {
		t.Fatalf("canned answer must be echoed, got %q", out)
	}
}

func TestDrainDiscardsResidualAnswers(t *testing.T) {
	s := NewBuffered()
	s.Load("a", "b")
	s.Clear()
	if _, err := s.Prompt("one"); err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if _, err := s.Drain(); err != nil {
		t.Fatalf("drain: %v", err)
	}
	s.Clear()
	if _, err := s.Prompt("two"); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("residual answers must be discarded, got %v", err)
	}
}

func TestBufferedPromptWhileIdle(t *testing.T) {
	s := NewBuffered()
	s.Load("x")
	if _, err := s.Prompt("name"); !errors.Is(err, ErrNotCollecting) {
		t.Fatalf("expected ErrNotCollecting, got %v", err)
	}
}

func TestConfirm(t *testing.T) {
	s := NewBuffered()
	s.Load("N", "yes")
	s.Clear()
	ok, err := s.Confirm("Delete?")
	if err != nil || ok {
		t.Fatalf("expected negative answer, got %v %v", ok, err)
	}
	ok, err = s.Confirm("Delete?")
	if err != nil || !ok {
		t.Fatalf("expected positive answer, got %v %v", ok, err)
	}
}

func TestInteractiveWritesAndReads(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	r := &scriptedReader{lines: []string{"  eth0  "}}
	s := NewInteractive(&out, r)

	s.Clear()
	s.Header("network")
	s.Warning("careful")

	got, err := s.Prompt("Interface")
	if err != nil {
		t.Fatalf("prompt: %v", err)
	}
	if got != "eth0" {
		t.Fatalf("expected trimmed answer, got %q", got)
	}
	if len(r.prompts) != 1 || !strings.Contains(r.prompts[0], "Interface: ") {
		t.Fatalf("unexpected prompts %#v", r.prompts)
	}
	text := out.String()
	if strings.Contains(text, "\033[2J") {
		t.Fatalf("non-terminal writer must not receive clear sequence")
	}
	if !strings.Contains(text, "--- NETWORK ---") || !strings.Contains(text, "careful") {
		t.Fatalf("unexpected terminal output %q", text)
	}
	if _, err := s.Drain(); !errors.Is(err, ErrNotBuffered) {
		t.Fatalf("expected ErrNotBuffered, got %v", err)
	}
}

func TestIsYes(t *testing.T) {
	for _, v := range []string{"s", "S", "y", "Yes", " si "} {
		if !IsYes(v) {
			t.Fatalf("%q should be yes", v)
		}
	}
	for _, v := range []string{"", "n", "no", "maybe"} {
		if IsYes(v) {
			t.Fatalf("%q should be no", v)
		}
	}
}

func TestBufferedPromptSecretMasksEcho(t *testing.T) {
	s := NewBuffered()
	s.Load("hunter2")
	s.Clear()

	got, err := s.PromptSecret("Password")
	if err != nil || got != "hunter2" {
		t.Fatalf("expected hunter2, got %q %v", got, err)
	}
	if _, err := s.PromptSecret("Password"); !errors.Is(err, ErrNoAnswer) {
		t.Fatalf("expected ErrNoAnswer, got %v", err)
	}
	out, _ := s.Drain()
	if !strings.Contains(out, "[INFO] Password: ****") || strings.Contains(out, "hunter2") {
		t.Fatalf("answer must be masked, got %q", out)
	}
}

func TestInteractivePromptSecretReadsWithoutEcho(t *testing.T) {
	color.NoColor = true
	var out bytes.Buffer
	r := &passwordScript{secrets: []string{" hunter2 "}}
	s := NewInteractive(&out, r)

	got, err := s.PromptSecret("Password")
	if err != nil || got != "hunter2" {
		t.Fatalf("expected hunter2, got %q %v", got, err)
	}
	if len(r.prompts) != 1 || !strings.Contains(r.prompts[0], "Password: ") {
		t.Fatalf("unexpected prompts %#v", r.prompts)
	}
	if strings.Contains(out.String(), "hunter2") {
		t.Fatalf("secret must not be written, got %q", out.String())
	}
}

func TestInteractivePromptSecretFallsBackToReadline(t *testing.T) {
	color.NoColor = true
	r := &scriptedReader{lines: []string{"hunter2"}}
	s := NewInteractive(&bytes.Buffer{}, r)

	got, err := s.PromptSecret("Password")
	if err != nil || got != "hunter2" {
		t.Fatalf("expected hunter2, got %q %v", got, err)
	}
}
