package storage

import "context"

// ActionSink принимает записи журнала действий (Store или тестовая заглушка).
type ActionSink interface {
	SaveAction(ctx context.Context, entry ActionEntry) error
}
