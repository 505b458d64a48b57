package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

var (
	errTransportExists  = errors.New("transport already registered")
	errUnknownTransport = errors.New("unknown transport")
)

// TransportAdapter определяет жизненный цикл входного транспорта (web-форма).
type TransportAdapter interface {
	Name() string
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// TransportManager запускает транспорты в порядке регистрации и
// останавливает в обратном.
type TransportManager struct {
	mu         sync.Mutex
	transports []TransportAdapter
}

// NewTransportManager создает пустой менеджер транспортов.
func NewTransportManager() *TransportManager {
	return &TransportManager{}
}

// Register добавляет транспорт; имена должны быть уникальны.
func (m *TransportManager) Register(adapter TransportAdapter) error {
	if adapter == nil {
		return fmt.Errorf("transport is nil: %w", errInvalidArguments)
	}
	name := adapter.Name()
	if name == "" {
		return fmt.Errorf("transport name is empty: %w", errInvalidArguments)
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	for _, tr := range m.transports {
		if tr.Name() == name {
			return fmt.Errorf("%s: %w", name, errTransportExists)
		}
	}
	m.transports = append(m.transports, adapter)
	return nil
}

func (m *TransportManager) snapshot() []TransportAdapter {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]TransportAdapter(nil), m.transports...)
}

// StartAll запускает все зарегистрированные транспорты.
func (m *TransportManager) StartAll(ctx context.Context) error {
	for _, tr := range m.snapshot() {
		if err := tr.Start(ctx); err != nil {
			return fmt.Errorf("start transport %s: %w", tr.Name(), err)
		}
		slog.Info("transport started", "transport", tr.Name())
	}
	return nil
}

// StopAll останавливает все транспорты; возвращает объединение ошибок.
func (m *TransportManager) StopAll(ctx context.Context) error {
	list := m.snapshot()
	var errs []error
	for i := len(list) - 1; i >= 0; i-- {
		if err := list[i].Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop transport %s: %w", list[i].Name(), err))
		}
	}
	return errors.Join(errs...)
}

// StopOne останавливает конкретный транспорт по имени.
func (m *TransportManager) StopOne(ctx context.Context, name string) error {
	for _, tr := range m.snapshot() {
		if tr.Name() != name {
			continue
		}
		if err := tr.Stop(ctx); err != nil {
			return fmt.Errorf("stop transport %s: %w", name, err)
		}
		return nil
	}
	return fmt.Errorf("%s: %w", name, errUnknownTransport)
}
