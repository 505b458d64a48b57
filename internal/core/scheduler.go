package core

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Job описывает периодическую задачу (снимок ресурсов, очистка журнала).
type Job func(ctx context.Context) error

type namedJob struct {
	name string
	run  Job
}

// Scheduler запускает задачи с фиксированным интервалом.
type Scheduler struct {
	interval time.Duration
	jobs     []namedJob
	wg       sync.WaitGroup
}

// NewScheduler создает scheduler с заданным интервалом.
func NewScheduler(interval time.Duration) *Scheduler {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Scheduler{interval: interval}
}

// Add добавляет задачу в расписание.
func (s *Scheduler) Add(name string, job Job) {
	s.jobs = append(s.jobs, namedJob{name: name, run: job})
}

// Start запускает scheduler до отмены контекста; ошибки задач только логируются.
func (s *Scheduler) Start(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			s.wg.Wait()
			return
		case <-ticker.C:
			s.tick(ctx)
		}
	}
}

func (s *Scheduler) tick(ctx context.Context) {
	for _, job := range s.jobs {
		job := job
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := job.run(ctx); err != nil {
				slog.Warn("scheduled job failed", "job", job.name, "err", err)
			}
		}()
	}
}
