// Package disk показывает диски, разделы и использование томов.
package disk

import (
	"context"
	"fmt"

	"sysconsole/internal/core"
	"sysconsole/internal/platform"
)

const component = "DiskPartition"

// Module просмотр дисков и разделов.
type Module struct {
	os      platform.Provider
	actions core.Actions
}

func New(p platform.Provider) *Module {
	m := &Module{os: p}
	m.actions.Add(core.ActionSpec{Name: "list", Title: "List disks and partitions"}, m.list)
	m.actions.Add(core.ActionSpec{Name: "usage", Title: "Mounted partition usage"}, m.usage)
	return m
}

func (m *Module) Name() string  { return "disk" }
func (m *Module) Title() string { return "Disks and partitions" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

// list выполняет все листинги платформы; ошибка одного не прерывает остальные.
func (m *Module) list(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	const action = "List Disks/Partitions"
	env.Out.Infof("Collecting disk and partition information (%s)...", m.os.OS())
	var failed []string
	for _, l := range m.os.Disks() {
		if err := env.Show(ctx, l); err != nil {
			failed = append(failed, l.Title)
		}
	}
	if len(failed) > 0 {
		outcome := fmt.Sprintf("errors listing %v (%s)", failed, m.os.OS())
		env.Log(component, action, outcome)
		return core.Fail(fmt.Errorf("%s: %w", outcome, core.ErrCommandFailed))
	}
	env.Log(component, action, fmt.Sprintf("disks and partitions listed (%s)", m.os.OS()))
	return core.OK(nil)
}

func (m *Module) usage(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	return env.List(ctx, component, "View Mounted Usage", m.os.DiskUsage())
}
