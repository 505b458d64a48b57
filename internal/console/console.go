// Package console реализует канал вывода: прямой вывод в терминал
// (interactive) или накопление в буфере для web-формы (buffered).
package console

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"golang.org/x/term"
)

var (
	// ErrNoAnswer возвращается Prompt в buffered-режиме при пустой очереди ответов.
	ErrNoAnswer = errors.New("no canned answer for prompt")
	// ErrNotCollecting возвращается Drain вне фазы сбора.
	ErrNotCollecting = errors.New("session is not collecting output")
	// ErrNotBuffered возвращается Drain в interactive-режиме.
	ErrNotBuffered = errors.New("session is not buffered")
)

// Mode режим канала вывода.
type Mode int

const (
	Interactive Mode = iota
	Buffered
)

func (m Mode) String() string {
	if m == Buffered {
		return "buffered"
	}
	return "interactive"
}

// Category категория сообщения.
type Category string

const (
	CategoryHeader  Category = "header"
	CategoryInfo    Category = "info"
	CategorySuccess Category = "success"
	CategoryError   Category = "error"
	CategoryWarning Category = "warning"
	// CategoryText сырой вывод утилит и таблицы; в буфере не помечается.
	CategoryText Category = "text"
)

// LineReader источник строк оператора (readline.Instance или тестовая заглушка).
type LineReader interface {
	SetPrompt(prompt string)
	Readline() (string, error)
}

// Session состояние канала вывода для одного действия (buffered)
// или для всей интерактивной сессии.
type Session struct {
	id   string
	mode Mode

	out      io.Writer
	in       LineReader
	clearTTY bool

	collecting bool
	buffer     []string
	answers    []string
}

// NewInteractive создает сессию для терминала.
func NewInteractive(out io.Writer, in LineReader) *Session {
	clearTTY := false
	if f, ok := out.(*os.File); ok {
		clearTTY = term.IsTerminal(int(f.Fd()))
	}
	return &Session{
		id:       uuid.NewString(),
		mode:     Interactive,
		out:      out,
		in:       in,
		clearTTY: clearTTY,
	}
}

// NewBuffered создает сессию, накапливающую вывод в памяти.
func NewBuffered() *Session {
	return &Session{id: uuid.NewString(), mode: Buffered}
}

// ID уникальный идентификатор сессии (попадает в журнал действий).
func (s *Session) ID() string { return s.id }

// Mode возвращает режим сессии.
func (s *Session) Mode() Mode { return s.mode }

// Collecting сообщает, идет ли сбор вывода (только buffered).
func (s *Session) Collecting() bool { return s.collecting }

// Load ставит в очередь заготовленные ответы для Prompt.
func (s *Session) Load(answers ...string) {
	s.answers = append(s.answers, answers...)
}

// Clear очищает экран или начинает новый сбор буфера (Idle -> Collecting).
func (s *Session) Clear() {
	if s.mode == Buffered {
		s.buffer = s.buffer[:0]
		s.collecting = true
		return
	}
	if s.clearTTY {
		fmt.Fprint(s.out, "\033[H\033[2J")
	}
}

// Emit выводит сообщение категории. В buffered-режиме вне фазы сбора сообщение отбрасывается.
func (s *Session) Emit(cat Category, msg string) {
	if s.mode == Buffered {
		if !s.collecting {
			return
		}
		s.buffer = append(s.buffer, tag(cat, msg))
		return
	}
	fmt.Fprintln(s.out, paint(cat, msg))
}

func (s *Session) Header(msg string)  { s.Emit(CategoryHeader, msg) }
func (s *Session) Info(msg string)    { s.Emit(CategoryInfo, msg) }
func (s *Session) Success(msg string) { s.Emit(CategorySuccess, msg) }
func (s *Session) Error(msg string)   { s.Emit(CategoryError, msg) }
func (s *Session) Warning(msg string) { s.Emit(CategoryWarning, msg) }
func (s *Session) Text(msg string)    { s.Emit(CategoryText, msg) }

// Infof форматирует info-сообщение.
func (s *Session) Infof(format string, args ...interface{}) {
	s.Info(fmt.Sprintf(format, args...))
}

// Errorf форматирует error-сообщение.
func (s *Session) Errorf(format string, args ...interface{}) {
	s.Error(fmt.Sprintf(format, args...))
}

// Prompt запрашивает строку: у оператора (interactive) или из очереди (buffered).
func (s *Session) Prompt(text string) (string, error) {
	if s.mode == Buffered {
		if !s.collecting {
			return "", fmt.Errorf("%q: %w", text, ErrNotCollecting)
		}
		if len(s.answers) == 0 {
			return "", fmt.Errorf("%q: %w", text, ErrNoAnswer)
		}
		answer := s.answers[0]
		s.answers = s.answers[1:]
		s.Info(fmt.Sprintf("%s: %s", text, answer))
		return answer, nil
	}
	if s.in == nil {
		return "", fmt.Errorf("%q: %w", text, ErrNoAnswer)
	}
	s.in.SetPrompt(color.New(color.FgBlue).Sprint(text + ": "))
	line, err := s.in.Readline()
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}

// passwordReader LineReader, умеющий читать ввод без эха (readline.Instance).
type passwordReader interface {
	ReadPassword(prompt string) ([]byte, error)
}

// PromptSecret как Prompt, но ответ не отображается: в буфер попадает "****",
// в терминале ввод читается без эха, если LineReader это умеет.
func (s *Session) PromptSecret(text string) (string, error) {
	if s.mode == Buffered {
		if !s.collecting {
			return "", fmt.Errorf("%q: %w", text, ErrNotCollecting)
		}
		if len(s.answers) == 0 {
			return "", fmt.Errorf("%q: %w", text, ErrNoAnswer)
		}
		answer := s.answers[0]
		s.answers = s.answers[1:]
		s.Info(fmt.Sprintf("%s: ****", text))
		return answer, nil
	}
	pr, ok := s.in.(passwordReader)
	if !ok {
		return s.Prompt(text)
	}
	secret, err := pr.ReadPassword(color.New(color.FgBlue).Sprint(text + ": "))
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(secret)), nil
}

// Confirm задает вопрос да/нет; по умолчанию ответ отрицательный.
func (s *Session) Confirm(text string) (bool, error) {
	answer, err := s.Prompt(text + " (y/N)")
	if err != nil {
		return false, err
	}
	return IsYes(answer), nil
}

// IsYes распознает утвердительный ответ.
func IsYes(answer string) bool {
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes", "s", "si", "sí", "true", "1":
		return true
	default:
		return false
	}
}

// Drain возвращает накопленный вывод и очищает буфер и остаток очереди ответов
// (Collecting -> Idle).
func (s *Session) Drain() (string, error) {
	if s.mode != Buffered {
		return "", ErrNotBuffered
	}
	if !s.collecting {
		return "", ErrNotCollecting
	}
	out := strings.Join(s.buffer, "\n")
	s.buffer = nil
	s.answers = nil
	s.collecting = false
	return out, nil
}

func tag(cat Category, msg string) string {
	msg = strings.TrimRight(strings.ReplaceAll(msg, "\r\n", "\n"), "\n")
	switch cat {
	case CategoryText:
		return msg
	case CategoryHeader:
		return "## " + msg
	default:
		return "[" + strings.ToUpper(string(cat)) + "] " + msg
	}
}

var palette = map[Category]*color.Color{
	CategoryHeader:  color.New(color.FgBlue, color.Bold),
	CategoryInfo:    color.New(color.FgCyan),
	CategorySuccess: color.New(color.FgGreen),
	CategoryError:   color.New(color.FgRed),
	CategoryWarning: color.New(color.FgYellow),
}

func paint(cat Category, msg string) string {
	if cat == CategoryHeader {
		msg = "\n--- " + strings.ToUpper(msg) + " ---\n"
	}
	c, ok := palette[cat]
	if !ok {
		return msg
	}
	return c.Sprint(msg)
}
