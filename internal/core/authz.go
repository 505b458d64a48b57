package core

import (
	"errors"
	"fmt"
	"strings"
)

// ErrForbidden субъекту запрещено действие.
var ErrForbidden = errors.New("access denied")

// Subject описывает источник действия и его идентификатор.
type Subject struct {
	Source string
	ID     string
}

// Action описывает целевую операцию.
type Action struct {
	Module  string
	Command string
}

func (a Action) String() string { return a.Module + "/" + a.Command }

// Authorizer отвечает за решение доступа к действию.
type Authorizer interface {
	Authorize(subject Subject, action Action) error
}

// AllowlistAuthorizer реализует deny-by-default по source/id
// и глобальный запрет отдельных модулей или действий.
type AllowlistAuthorizer struct {
	allowed map[string]map[string]struct{}
	denied  map[string]struct{}
}

// NewAllowlistAuthorizer создает authorizer из map[source][]id.
// Идентификатор "*" разрешает любой ID источника.
func NewAllowlistAuthorizer(src map[string][]string) *AllowlistAuthorizer {
	allowed := make(map[string]map[string]struct{}, len(src))
	for source, ids := range src {
		idSet := make(map[string]struct{}, len(ids))
		for _, id := range ids {
			if id == "" {
				continue
			}
			idSet[id] = struct{}{}
		}
		allowed[source] = idSet
	}
	return &AllowlistAuthorizer{allowed: allowed, denied: make(map[string]struct{})}
}

// Deny запрещает действия для всех субъектов: "module" или "module/action".
func (a *AllowlistAuthorizer) Deny(rules ...string) *AllowlistAuthorizer {
	for _, r := range rules {
		r = strings.TrimSpace(r)
		if r != "" {
			a.denied[r] = struct{}{}
		}
	}
	return a
}

// Authorize возвращает ошибку, если subject не в allowlist или действие запрещено.
func (a *AllowlistAuthorizer) Authorize(subject Subject, action Action) error {
	if subject.Source == "" || subject.ID == "" {
		return fmt.Errorf("empty subject: %w", errInvalidArguments)
	}
	bySource, ok := a.allowed[subject.Source]
	if !ok {
		return fmt.Errorf("source %s is not allowed: %w", subject.Source, ErrForbidden)
	}
	if _, ok := bySource[subject.ID]; !ok {
		if _, wildcard := bySource["*"]; !wildcard {
			return fmt.Errorf("subject %s/%s is not allowed: %w", subject.Source, subject.ID, ErrForbidden)
		}
	}
	if _, ok := a.denied[action.Module]; ok {
		return fmt.Errorf("module %s is disabled: %w", action.Module, ErrForbidden)
	}
	if _, ok := a.denied[action.String()]; ok {
		return fmt.Errorf("action %s is disabled: %w", action, ErrForbidden)
	}
	return nil
}
