package common

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"sysconsole/internal/core"
	"sysconsole/internal/storage"
)

// Meta контекст записи журнала: сессия, транспорт и субъект.
type Meta struct {
	Session string
	Source  string
	Subject string
}

// Record сохраняет тройки действия в журнал; ошибки хранилища только логируются.
func Record(ctx context.Context, sink storage.ActionSink, meta Meta, entries []core.LogEntry, status string) {
	if sink == nil {
		return
	}
	now := time.Now().UTC()
	for _, e := range entries {
		err := sink.SaveAction(ctx, storage.ActionEntry{
			TS:        now,
			Session:   meta.Session,
			Source:    meta.Source,
			Subject:   meta.Subject,
			Component: e.Component,
			Action:    e.Action,
			Outcome:   e.Outcome,
			Status:    status,
		})
		if err != nil {
			slog.Warn("action log write failed", "component", e.Component, "action", e.Action, "err", err)
		}
	}
}

func newRequestID() string {
	return uuid.NewString()
}
