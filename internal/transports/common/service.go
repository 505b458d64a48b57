package common

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"sysconsole/internal/console"
	"sysconsole/internal/core"
	"sysconsole/internal/executor"
	"sysconsole/internal/storage"
)

var (
	errEmptyCommand = errors.New("empty command")
	// ErrRateLimited превышен лимит запросов субъекта.
	ErrRateLimited = errors.New("rate limit exceeded")
)

const (
	CodeAccessDenied = "access_denied"
	CodeRateLimited  = "rate_limited"
	CodeBadCommand   = "bad_command"
)

// Request одно действие от транспорта.
type Request struct {
	Subject string
	Module  string
	Action  string
	Args    []string
	// Answers заготовленные ответы на запросы действия.
	Answers []string
}

// Result ответ модуля вместе с накопленным выводом.
type Result struct {
	Response  core.Response   `json:"response"`
	Output    string          `json:"output"`
	SessionID string          `json:"session_id"`
	Entries   []core.LogEntry `json:"entries,omitempty"`
}

// Service объединяет общий пайплайн authz -> ratelimit -> buffered session -> core -> журнал.
type Service struct {
	Source      string
	Registry    *core.Registry
	Exec        executor.Runner
	Authorizer  core.Authorizer
	RateLimiter *RateLimiter
	Sink        storage.ActionSink
}

// Execute выполняет действие в новой buffered-сессии и возвращает ее вывод.
func (s *Service) Execute(ctx context.Context, req Request) (Result, error) {
	subject := core.Subject{Source: s.Source, ID: req.Subject}
	action := core.Action{Module: req.Module, Command: req.Action}
	meta := Meta{Session: newRequestID(), Source: s.Source, Subject: req.Subject}

	if s.Authorizer != nil {
		if err := s.Authorizer.Authorize(subject, action); err != nil {
			s.record(ctx, meta, req, nil, "denied")
			return Result{Response: core.Response{Status: core.StatusError, ErrorCode: CodeAccessDenied}, SessionID: meta.Session}, err
		}
	}
	if s.RateLimiter != nil {
		if !s.RateLimiter.Allow(fmt.Sprintf("%s:%s", s.Source, req.Subject), time.Now()) {
			s.record(ctx, meta, req, nil, CodeRateLimited)
			return Result{Response: core.Response{Status: core.StatusError, ErrorCode: CodeRateLimited}, SessionID: meta.Session}, ErrRateLimited
		}
	}

	out := console.NewBuffered()
	meta.Session = out.ID()
	out.Load(req.Answers...)
	out.Clear()
	env := core.NewEnv(out, s.Exec)

	resp, execErr := s.Registry.Execute(ctx, env, req.Module, req.Action, req.Args)
	output, err := out.Drain()
	if err != nil {
		return Result{Response: resp, SessionID: meta.Session}, fmt.Errorf("drain output: %w", err)
	}
	entries := env.Entries()
	s.record(ctx, meta, req, entries, resp.Status)
	return Result{Response: resp, Output: output, SessionID: meta.Session, Entries: entries}, execErr
}

// ExecuteText разбирает текстовую команду "/module action args..." и выполняет ее.
func (s *Service) ExecuteText(ctx context.Context, subjectID, text string, answers []string) (Result, error) {
	module, action, args, err := ParseTextCommand(text)
	if err != nil {
		return Result{Response: core.Response{Status: core.StatusError, ErrorCode: CodeBadCommand}}, err
	}
	return s.Execute(ctx, Request{Subject: subjectID, Module: module, Action: action, Args: args, Answers: answers})
}

func (s *Service) record(ctx context.Context, meta Meta, req Request, entries []core.LogEntry, status string) {
	if len(entries) == 0 {
		entries = []core.LogEntry{{Component: req.Module, Action: req.Action, Outcome: status}}
	}
	Record(ctx, s.Sink, meta, entries, status)
}

// ParseTextCommand переводит текст в (module, action, args).
// Формат: /module action arg1 arg2
func ParseTextCommand(text string) (string, string, []string, error) {
	t := strings.TrimSpace(text)
	if t == "" {
		return "", "", nil, errEmptyCommand
	}
	t = strings.TrimPrefix(t, "/")
	parts := strings.Fields(t)
	if len(parts) < 2 {
		return "", "", nil, fmt.Errorf("invalid command format: %w", errEmptyCommand)
	}
	module := parts[0]
	action := parts[1]
	args := []string{}
	if len(parts) > 2 {
		args = parts[2:]
	}
	return module, action, args, nil
}
