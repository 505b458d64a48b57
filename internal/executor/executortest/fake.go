package executortest

import (
	"context"
	"strings"
	"sync"

	"sysconsole/internal/executor"
)

// Fake записывает вызовы и отвечает заранее заданными результатами.
type Fake struct {
	mu        sync.Mutex
	responses map[string]executor.Result
	Calls     []executor.Command
}

// NewFake создает пустой Fake; неизвестные команды завершаются успешно без вывода.
func NewFake() *Fake {
	return &Fake{responses: make(map[string]executor.Result)}
}

// On задает результат для команды, заданной строкой "program arg1 arg2".
func (f *Fake) On(line string, res executor.Result) *Fake {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.responses[line] = res
	return f
}

func (f *Fake) Run(ctx context.Context, cmd executor.Command) executor.Result {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, cmd)
	if res, ok := f.responses[key(cmd)]; ok {
		return res
	}
	return executor.Result{}
}

// Lines возвращает выполненные команды в виде строк.
func (f *Fake) Lines() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.Calls))
	for _, c := range f.Calls {
		out = append(out, key(c))
	}
	return out
}

func key(cmd executor.Command) string {
	return strings.TrimSpace(cmd.Program + " " + strings.Join(cmd.Args, " "))
}
