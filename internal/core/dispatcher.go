package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
)

var (
	errProviderExists   = errors.New("module already registered")
	errUnknownProvider  = errors.New("unknown module")
	errInvalidArguments = errors.New("invalid arguments")
)

// Registry хранит зарегистрированные модули и выполняет действия.
type Registry struct {
	modules map[string]Module
	order   []string
}

// NewRegistry создает пустой реестр модулей.
func NewRegistry() *Registry {
	return &Registry{modules: make(map[string]Module)}
}

// Register добавляет модуль; имя должно быть уникальным.
func (r *Registry) Register(ctx context.Context, m Module) error {
	if m == nil {
		return fmt.Errorf("module is nil: %w", errInvalidArguments)
	}
	name := m.Name()
	if name == "" {
		return fmt.Errorf("module name is empty: %w", errInvalidArguments)
	}
	if _, exists := r.modules[name]; exists {
		return fmt.Errorf("%s: %w", name, errProviderExists)
	}
	if err := m.Init(ctx); err != nil {
		return fmt.Errorf("init %s: %w", name, err)
	}
	r.modules[name] = m
	r.order = append(r.order, name)
	return nil
}

// Execute вызывает действие модуля в окружении env.
func (r *Registry) Execute(ctx context.Context, env *Env, module, action string, args []string) (Response, error) {
	m, ok := r.modules[module]
	if !ok {
		env.Out.Errorf("Unknown module %q", module)
		return Fail(fmt.Errorf("%s: %w", module, errUnknownProvider))
	}
	resp, err := m.Execute(ctx, env, action, args)
	if err != nil {
		slog.Warn("action failed", "module", module, "action", action, "err", err)
	}
	return resp, err
}

// Module возвращает модуль по имени.
func (r *Registry) Module(name string) (Module, bool) {
	m, ok := r.modules[name]
	return m, ok
}

// Modules возвращает имена модулей в порядке регистрации.
func (r *Registry) Modules() []string {
	return append([]string(nil), r.order...)
}

// Catalog возвращает описание модулей и их действий, отсортированное по имени.
func (r *Registry) Catalog() []ModuleInfo {
	out := make([]ModuleInfo, 0, len(r.modules))
	for _, m := range r.modules {
		out = append(out, ModuleInfo{Name: m.Name(), Title: m.Title(), Actions: m.Actions()})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// IsUnknownModule сообщает, что ошибка вызвана неизвестным модулем.
func IsUnknownModule(err error) bool {
	return errors.Is(err, errUnknownProvider)
}
