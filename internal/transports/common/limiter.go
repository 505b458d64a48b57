package common

import (
	"sync"
	"time"
)

// RateLimiter ограничивает число действий субъекта в скользящем окне.
// Ключ обычно "source:subject".
type RateLimiter struct {
	mu     sync.Mutex
	limit  int
	window time.Duration
	hits   map[string][]time.Time
}

// NewRateLimiter создает limiter: не больше limit действий за window.
func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Second
	}
	return &RateLimiter{
		limit:  limit,
		window: window,
		hits:   make(map[string][]time.Time),
	}
}

// Allow учитывает попытку key в момент now и сообщает, укладывается ли она в лимит.
// Отклоненные попытки не занимают место в окне.
func (l *RateLimiter) Allow(key string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	recent := l.recent(key, now)
	if len(recent) >= l.limit {
		l.hits[key] = recent
		return false
	}
	l.hits[key] = append(recent, now)
	return true
}

// Sweep забывает ключи без попыток в текущем окне и возвращает их число.
func (l *RateLimiter) Sweep(now time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key := range l.hits {
		recent := l.recent(key, now)
		if len(recent) == 0 {
			delete(l.hits, key)
			removed++
			continue
		}
		l.hits[key] = recent
	}
	return removed
}

// recent отбрасывает отметки старше окна; отметки хранятся по возрастанию.
func (l *RateLimiter) recent(key string, now time.Time) []time.Time {
	cutoff := now.Add(-l.window)
	items := l.hits[key]
	i := 0
	for i < len(items) && !items[i].After(cutoff) {
		i++
	}
	return items[i:]
}
