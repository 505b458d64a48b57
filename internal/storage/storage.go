// Package storage описывает журнал действий и хранилище метрик.
package storage

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound возвращается, если запись отсутствует.
var ErrNotFound = errors.New("record not found")

// ActionEntry запись журнала действий: тройка (component, action, outcome)
// с контекстом сессии и транспорта.
type ActionEntry struct {
	TS        time.Time `json:"ts"`
	Session   string    `json:"session"`
	Source    string    `json:"source"`
	Subject   string    `json:"subject"`
	Component string    `json:"component"`
	Action    string    `json:"action"`
	Outcome   string    `json:"outcome"`
	Status    string    `json:"status"`
}

// ActionQuery задает фильтры выборки журнала.
type ActionQuery struct {
	From      time.Time
	To        time.Time
	Component string
	Limit     int
}

// MetricRecord сохраняет снимок метрики модуля.
type MetricRecord struct {
	Module  string    `json:"module"`
	Payload []byte    `json:"-"`
	TS      time.Time `json:"ts"`
}

// Store описывает операции хранилища.
type Store interface {
	ActionSink
	QueryActions(ctx context.Context, q ActionQuery) ([]ActionEntry, error)
	SaveMetric(ctx context.Context, rec MetricRecord) error
	LatestMetric(ctx context.Context, module string) (MetricRecord, error)
	// Prune удаляет записи журнала и метрики старше before.
	Prune(ctx context.Context, before time.Time) (int64, error)
	Close() error
}
