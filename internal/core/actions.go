package core

import (
	"context"
	"fmt"
)

// Handler выполняет одно действие модуля.
type Handler func(ctx context.Context, env *Env, args []string) (Response, error)

// Actions упорядоченная таблица действий модуля.
type Actions struct {
	specs    []ActionSpec
	handlers map[string]Handler
}

// Add регистрирует действие; порядок добавления задает порядок в меню.
func (a *Actions) Add(spec ActionSpec, h Handler) {
	if a.handlers == nil {
		a.handlers = make(map[string]Handler)
	}
	a.specs = append(a.specs, spec)
	a.handlers[spec.Name] = h
}

// Specs возвращает описания действий.
func (a *Actions) Specs() []ActionSpec {
	return append([]ActionSpec(nil), a.specs...)
}

// Dispatch выводит заголовок действия и вызывает обработчик.
func (a *Actions) Dispatch(ctx context.Context, env *Env, name string, args []string) (Response, error) {
	h, ok := a.handlers[name]
	if !ok {
		env.Out.Errorf("Unknown action %q", name)
		return Fail(fmt.Errorf("%s: %w", name, ErrUnknownAction))
	}
	for _, spec := range a.specs {
		if spec.Name == name {
			env.Out.Header(spec.Title)
			break
		}
	}
	return h(ctx, env, args)
}
