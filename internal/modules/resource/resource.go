// Package resource показывает загрузку узла (CPU, память, диски, сеть,
// время работы, тяжелые процессы) и собирает снимок для периодической метрики.
package resource

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"sysconsole/internal/core"
	"sysconsole/internal/parse"
	"sysconsole/internal/table"
	"sysconsole/internal/validate"
)

const (
	component = "Resource"
	// MetricName имя метрики снимка в хранилище.
	MetricName = "resource.snapshot"

	defaultTop = 10
)

type HostInfo struct {
	Hostname string        `json:"hostname"`
	OS       string        `json:"os"`
	Platform string        `json:"platform"`
	Kernel   string        `json:"kernel"`
	Uptime   time.Duration `json:"uptime_ns"`
	BootTime time.Time     `json:"boot_time"`
}

type CPUInfo struct {
	Model    string  `json:"model,omitempty"`
	Logical  int     `json:"logical"`
	Physical int     `json:"physical"`
	Percent  float64 `json:"percent"`
	Load1    float64 `json:"load1"`
	Load5    float64 `json:"load5"`
	Load15   float64 `json:"load15"`
}

type MemInfo struct {
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Available   uint64  `json:"available"`
	UsedPercent float64 `json:"used_percent"`
	SwapTotal   uint64  `json:"swap_total"`
	SwapUsed    uint64  `json:"swap_used"`
}

type DiskInfo struct {
	Device      string  `json:"device"`
	Mountpoint  string  `json:"mountpoint"`
	Fstype      string  `json:"fstype"`
	Total       uint64  `json:"total"`
	Used        uint64  `json:"used"`
	Free        uint64  `json:"free"`
	UsedPercent float64 `json:"used_percent"`
}

type NetInfo struct {
	Interface   string `json:"interface"`
	BytesSent   uint64 `json:"bytes_sent"`
	BytesRecv   uint64 `json:"bytes_recv"`
	PacketsSent uint64 `json:"packets_sent"`
	PacketsRecv uint64 `json:"packets_recv"`
}

type ProcInfo struct {
	PID        int32   `json:"pid"`
	Name       string  `json:"name"`
	CPUPercent float64 `json:"cpu_percent"`
	MemPercent float64 `json:"mem_percent"`
}

// Snapshot сводка показателей узла на момент Time.
type Snapshot struct {
	Time   time.Time  `json:"time"`
	Host   HostInfo   `json:"host"`
	CPU    CPUInfo    `json:"cpu"`
	Memory MemInfo    `json:"memory"`
	Disks  []DiskInfo `json:"disks"`
}

// Source источник показателей (System для реального узла).
type Source interface {
	Host(ctx context.Context) (HostInfo, error)
	CPU(ctx context.Context) (CPUInfo, error)
	Memory(ctx context.Context) (MemInfo, error)
	Disks(ctx context.Context) ([]DiskInfo, error)
	Network(ctx context.Context) ([]NetInfo, error)
	Top(ctx context.Context, n int) ([]ProcInfo, error)
}

// Collect собирает снимок. Недоступные разделы остаются пустыми,
// их ошибки возвращаются вместе.
func Collect(ctx context.Context, src Source) (Snapshot, error) {
	snap := Snapshot{Time: time.Now().UTC()}
	var errs []error
	var err error
	if snap.Host, err = src.Host(ctx); err != nil {
		errs = append(errs, err)
	}
	if snap.CPU, err = src.CPU(ctx); err != nil {
		errs = append(errs, err)
	}
	if snap.Memory, err = src.Memory(ctx); err != nil {
		errs = append(errs, err)
	}
	if snap.Disks, err = src.Disks(ctx); err != nil {
		errs = append(errs, err)
	}
	return snap, errors.Join(errs...)
}

// Module действия просмотра ресурсов.
type Module struct {
	src     Source
	actions core.Actions
}

// New создает модуль; src=nil читает показатели текущего узла.
func New(src Source) *Module {
	if src == nil {
		src = System{}
	}
	m := &Module{src: src}
	m.actions.Add(core.ActionSpec{Name: "cpu", Title: "CPU usage"}, m.cpu)
	m.actions.Add(core.ActionSpec{Name: "memory", Title: "Memory usage"}, m.memory)
	m.actions.Add(core.ActionSpec{Name: "disks", Title: "Filesystem usage"}, m.disks)
	m.actions.Add(core.ActionSpec{Name: "network", Title: "Network traffic"}, m.network)
	m.actions.Add(core.ActionSpec{Name: "uptime", Title: "Host and uptime"}, m.uptime)
	m.actions.Add(core.ActionSpec{Name: "top", Title: "Top processes by memory", Params: []string{"count"}}, m.top)
	m.actions.Add(core.ActionSpec{Name: "snapshot", Title: "Resource snapshot"}, m.snapshot)
	return m
}

func (m *Module) Name() string  { return "resource" }
func (m *Module) Title() string { return "System resources" }

func (m *Module) Init(ctx context.Context) error { return nil }

func (m *Module) Actions() []core.ActionSpec { return m.actions.Specs() }

func (m *Module) Execute(ctx context.Context, env *core.Env, action string, args []string) (core.Response, error) {
	return m.actions.Dispatch(ctx, env, action, args)
}

// Collect собирает снимок из источника модуля.
func (m *Module) Collect(ctx context.Context) (Snapshot, error) {
	return Collect(ctx, m.src)
}

func failed(env *core.Env, action string, err error) (core.Response, error) {
	env.Out.Errorf("Error reading %s: %v", action, err)
	env.Log(component, action, "error: "+err.Error())
	return core.Fail(fmt.Errorf("%v: %w", err, core.ErrCommandFailed))
}

func gib(b uint64) string {
	return fmt.Sprintf("%.2f", float64(b)/(1<<30))
}

func pct(v float64) string {
	return fmt.Sprintf("%.1f%%", v)
}

func (m *Module) cpu(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	info, err := m.src.CPU(ctx)
	if err != nil {
		return failed(env, "cpu", err)
	}
	if info.Model != "" {
		env.Out.Infof("Model: %s", info.Model)
	}
	env.Out.Infof("Cores: %d physical, %d logical", info.Physical, info.Logical)
	env.Out.Infof("Usage: %s", pct(info.Percent))
	env.Out.Infof("Load average: %.2f %.2f %.2f", info.Load1, info.Load5, info.Load15)
	env.Log(component, "CPU", "usage "+pct(info.Percent))
	return core.OK(info)
}

func (m *Module) memory(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	info, err := m.src.Memory(ctx)
	if err != nil {
		return failed(env, "memory", err)
	}
	env.Out.Infof("Total: %s GiB", gib(info.Total))
	env.Out.Infof("Used: %s GiB (%s)", gib(info.Used), pct(info.UsedPercent))
	env.Out.Infof("Available: %s GiB", gib(info.Available))
	if info.SwapTotal > 0 {
		env.Out.Infof("Swap: %s / %s GiB", gib(info.SwapUsed), gib(info.SwapTotal))
	}
	if info.UsedPercent >= 90 {
		env.Out.Warning("Memory usage is above 90%.")
	}
	env.Log(component, "Memory", "used "+pct(info.UsedPercent))
	return core.OK(info)
}

var disksTable = table.Spec{
	Columns: []table.Column{
		{Field: "mount", Header: "Mount", Width: 24},
		{Field: "device", Header: "Device", Width: 20},
		{Field: "fstype", Header: "Type", Width: 8},
		{Field: "total", Header: "Size (GiB)", Width: 12},
		{Field: "used", Header: "Used (GiB)", Width: 12},
		{Field: "free", Header: "Free (GiB)", Width: 12},
		{Field: "pct", Header: "Used %", Width: 8},
	},
	Empty: "No filesystems found.",
}

func (m *Module) disks(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	disks, err := m.src.Disks(ctx)
	if err != nil {
		return failed(env, "filesystems", err)
	}
	recs := make([]parse.Record, 0, len(disks))
	for _, d := range disks {
		recs = append(recs, parse.Record{
			"mount":  d.Mountpoint,
			"device": d.Device,
			"fstype": d.Fstype,
			"total":  gib(d.Total),
			"used":   gib(d.Used),
			"free":   gib(d.Free),
			"pct":    pct(d.UsedPercent),
		})
	}
	env.Out.Text(disksTable.Render(recs))
	env.Log(component, "Disks", fmt.Sprintf("%d filesystem(s) listed", len(disks)))
	return core.OK(disks)
}

var networkTable = table.Spec{
	Columns: []table.Column{
		{Field: "iface", Header: "Interface", Width: 20},
		{Field: "sent", Header: "Sent (MiB)", Width: 14},
		{Field: "recv", Header: "Received (MiB)", Width: 14},
		{Field: "psent", Header: "Packets out", Width: 12},
		{Field: "precv", Header: "Packets in", Width: 12},
	},
	Empty: "No interfaces found.",
}

func (m *Module) network(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	nics, err := m.src.Network(ctx)
	if err != nil {
		return failed(env, "network counters", err)
	}
	recs := make([]parse.Record, 0, len(nics))
	for _, n := range nics {
		recs = append(recs, parse.Record{
			"iface": n.Interface,
			"sent":  fmt.Sprintf("%.2f", float64(n.BytesSent)/(1<<20)),
			"recv":  fmt.Sprintf("%.2f", float64(n.BytesRecv)/(1<<20)),
			"psent": strconv.FormatUint(n.PacketsSent, 10),
			"precv": strconv.FormatUint(n.PacketsRecv, 10),
		})
	}
	env.Out.Text(networkTable.Render(recs))
	env.Log(component, "Network", fmt.Sprintf("%d interface(s) listed", len(nics)))
	return core.OK(nics)
}

func (m *Module) uptime(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	h, err := m.src.Host(ctx)
	if err != nil {
		return failed(env, "host info", err)
	}
	env.Out.Infof("Hostname: %s", h.Hostname)
	env.Out.Infof("Platform: %s (%s), kernel %s", h.Platform, h.OS, h.Kernel)
	env.Out.Infof("Boot time: %s", h.BootTime.Format(time.RFC3339))
	env.Out.Infof("Uptime: %s", h.Uptime.Truncate(time.Second))
	env.Log(component, "Uptime", "up "+h.Uptime.Truncate(time.Second).String())
	return core.OK(h)
}

var topTable = table.Spec{
	Columns: []table.Column{
		{Field: "pid", Header: "PID", Width: 10},
		{Field: "name", Header: "Name", Width: 30},
		{Field: "cpu", Header: "CPU %", Width: 8},
		{Field: "mem", Header: "Mem %", Width: 8},
	},
}

func (m *Module) top(ctx context.Context, env *core.Env, args []string) (core.Response, error) {
	const action = "Top Processes"
	count, err := env.OptionalArg(args, 0, "Number of processes (default 10)")
	if err == nil {
		err = validate.Lines(count)
	}
	if err != nil {
		return env.Reject(component, action, err)
	}
	n := defaultTop
	if count != "" {
		n, _ = strconv.Atoi(count)
	}
	procs, err := m.src.Top(ctx, n)
	if err != nil {
		return failed(env, "processes", err)
	}
	recs := make([]parse.Record, 0, len(procs))
	for _, p := range procs {
		recs = append(recs, parse.Record{
			"pid":  strconv.Itoa(int(p.PID)),
			"name": p.Name,
			"cpu":  fmt.Sprintf("%.1f", p.CPUPercent),
			"mem":  fmt.Sprintf("%.1f", p.MemPercent),
		})
	}
	env.Out.Text(topTable.Render(recs))
	env.Log(component, action, fmt.Sprintf("%d process(es) listed", len(procs)))
	return core.OK(procs)
}

func (m *Module) snapshot(ctx context.Context, env *core.Env, _ []string) (core.Response, error) {
	snap, err := m.Collect(ctx)
	if err != nil {
		env.Out.Warning("Snapshot is incomplete: " + err.Error())
	}
	env.Out.Infof("%s: CPU %s, memory %s used, %d filesystem(s)",
		snap.Host.Hostname, pct(snap.CPU.Percent), pct(snap.Memory.UsedPercent), len(snap.Disks))
	env.Log(component, "Snapshot", "snapshot collected")
	return core.OK(snap)
}
