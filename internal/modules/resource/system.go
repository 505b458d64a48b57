package resource

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
	"github.com/shirou/gopsutil/v3/process"
)

// System читает показатели текущего узла через gopsutil.
type System struct {
	// Sample интервал замера загрузки CPU.
	Sample time.Duration
}

func (s System) Host(ctx context.Context) (HostInfo, error) {
	h, err := host.InfoWithContext(ctx)
	if err != nil {
		return HostInfo{}, fmt.Errorf("host info: %w", err)
	}
	return HostInfo{
		Hostname: h.Hostname,
		OS:       h.OS,
		Platform: h.Platform + " " + h.PlatformVersion,
		Kernel:   h.KernelVersion,
		Uptime:   time.Duration(h.Uptime) * time.Second,
		BootTime: time.Unix(int64(h.BootTime), 0).UTC(),
	}, nil
}

func (s System) CPU(ctx context.Context) (CPUInfo, error) {
	sample := s.Sample
	if sample <= 0 {
		sample = 500 * time.Millisecond
	}
	pct, err := cpu.PercentWithContext(ctx, sample, false)
	if err != nil {
		return CPUInfo{}, fmt.Errorf("cpu percent: %w", err)
	}
	info := CPUInfo{}
	if len(pct) > 0 {
		info.Percent = pct[0]
	}
	if n, err := cpu.CountsWithContext(ctx, true); err == nil {
		info.Logical = n
	}
	if n, err := cpu.CountsWithContext(ctx, false); err == nil {
		info.Physical = n
	}
	if models, err := cpu.InfoWithContext(ctx); err == nil && len(models) > 0 {
		info.Model = models[0].ModelName
	}
	// на Windows средняя нагрузка недоступна
	if avg, err := load.AvgWithContext(ctx); err == nil && avg != nil {
		info.Load1, info.Load5, info.Load15 = avg.Load1, avg.Load5, avg.Load15
	}
	return info, nil
}

func (s System) Memory(ctx context.Context) (MemInfo, error) {
	vm, err := mem.VirtualMemoryWithContext(ctx)
	if err != nil {
		return MemInfo{}, fmt.Errorf("memory info: %w", err)
	}
	info := MemInfo{Total: vm.Total, Used: vm.Used, Available: vm.Available, UsedPercent: vm.UsedPercent}
	if sw, err := mem.SwapMemoryWithContext(ctx); err == nil {
		info.SwapTotal, info.SwapUsed = sw.Total, sw.Used
	}
	return info, nil
}

func (s System) Disks(ctx context.Context) ([]DiskInfo, error) {
	parts, err := disk.PartitionsWithContext(ctx, false)
	if err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}
	out := make([]DiskInfo, 0, len(parts))
	for _, p := range parts {
		u, err := disk.UsageWithContext(ctx, p.Mountpoint)
		if err != nil || u.Total == 0 {
			continue
		}
		out = append(out, DiskInfo{
			Device:      p.Device,
			Mountpoint:  p.Mountpoint,
			Fstype:      p.Fstype,
			Total:       u.Total,
			Used:        u.Used,
			Free:        u.Free,
			UsedPercent: u.UsedPercent,
		})
	}
	return out, nil
}

func (s System) Network(ctx context.Context) ([]NetInfo, error) {
	counters, err := net.IOCountersWithContext(ctx, true)
	if err != nil {
		return nil, fmt.Errorf("network counters: %w", err)
	}
	out := make([]NetInfo, 0, len(counters))
	for _, c := range counters {
		out = append(out, NetInfo{
			Interface:   c.Name,
			BytesSent:   c.BytesSent,
			BytesRecv:   c.BytesRecv,
			PacketsSent: c.PacketsSent,
			PacketsRecv: c.PacketsRecv,
		})
	}
	return out, nil
}

func (s System) Top(ctx context.Context, n int) ([]ProcInfo, error) {
	procs, err := process.ProcessesWithContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("processes: %w", err)
	}
	out := make([]ProcInfo, 0, len(procs))
	for _, p := range procs {
		memPct, err := p.MemoryPercentWithContext(ctx)
		if err != nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		cpuPct, _ := p.CPUPercentWithContext(ctx)
		out = append(out, ProcInfo{PID: p.Pid, Name: name, CPUPercent: cpuPct, MemPercent: float64(memPct)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MemPercent > out[j].MemPercent })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
