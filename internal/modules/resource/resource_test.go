package resource

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"sysconsole/internal/console"
	"sysconsole/internal/core"
	"sysconsole/internal/executor/executortest"
)

type fakeSource struct {
	diskErr error
	topN    int
}

func (f *fakeSource) Host(context.Context) (HostInfo, error) {
	return HostInfo{Hostname: "srv01", OS: "linux", Platform: "ubuntu 22.04", Kernel: "6.5.0", Uptime: 90 * time.Minute}, nil
}

func (f *fakeSource) CPU(context.Context) (CPUInfo, error) {
	return CPUInfo{Logical: 8, Physical: 4, Percent: 12.5, Load1: 0.5}, nil
}

func (f *fakeSource) Memory(context.Context) (MemInfo, error) {
	return MemInfo{Total: 16 << 30, Used: 15 << 30, Available: 1 << 30, UsedPercent: 93.75}, nil
}

func (f *fakeSource) Disks(context.Context) ([]DiskInfo, error) {
	if f.diskErr != nil {
		return nil, f.diskErr
	}
	return []DiskInfo{{Device: "/dev/sda1", Mountpoint: "/", Fstype: "ext4", Total: 100 << 30, Used: 40 << 30, Free: 60 << 30, UsedPercent: 40}}, nil
}

func (f *fakeSource) Network(context.Context) ([]NetInfo, error) {
	return []NetInfo{{Interface: "eth0", BytesSent: 2 << 20, BytesRecv: 3 << 20}}, nil
}

func (f *fakeSource) Top(_ context.Context, n int) ([]ProcInfo, error) {
	f.topN = n
	return []ProcInfo{{PID: 1, Name: "init", MemPercent: 1.5}}, nil
}

func newEnv(answers ...string) *core.Env {
	out := console.NewBuffered()
	out.Load(answers...)
	out.Clear()
	return core.NewEnv(out, executortest.NewFake())
}

func TestDisksTable(t *testing.T) {
	env := newEnv()
	resp, err := New(&fakeSource{}).Execute(context.Background(), env, "disks", nil)
	if err != nil || resp.Status != core.StatusOK {
		t.Fatalf("unexpected result %#v %v", resp, err)
	}
	out, _ := env.Out.Drain()
	for _, want := range []string{"Mount", "/dev/sda1", "100.00", "40.0%"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestMemoryWarnsWhenHigh(t *testing.T) {
	env := newEnv()
	if _, err := New(&fakeSource{}).Execute(context.Background(), env, "memory", nil); err != nil {
		t.Fatalf("execute: %v", err)
	}
	out, _ := env.Out.Drain()
	if !strings.Contains(out, "[WARNING] Memory usage is above 90%.") {
		t.Fatalf("expected warning, got %q", out)
	}
}

func TestTopCount(t *testing.T) {
	src := &fakeSource{}
	if _, err := New(src).Execute(context.Background(), newEnv(), "top", []string{""}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if src.topN != defaultTop {
		t.Fatalf("expected default %d, got %d", defaultTop, src.topN)
	}
	if _, err := New(src).Execute(context.Background(), newEnv(), "top", []string{"3"}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if src.topN != 3 {
		t.Fatalf("expected 3, got %d", src.topN)
	}
	resp, _ := New(src).Execute(context.Background(), newEnv(), "top", []string{"-1"})
	if resp.ErrorCode != core.CodeInvalidInput {
		t.Fatalf("expected invalid_input, got %#v", resp)
	}
}

func TestCollectPartial(t *testing.T) {
	boom := errors.New("partitions unavailable")
	snap, err := Collect(context.Background(), &fakeSource{diskErr: boom})
	if !errors.Is(err, boom) {
		t.Fatalf("expected joined error, got %v", err)
	}
	if snap.Host.Hostname != "srv01" || snap.CPU.Logical != 8 || snap.Disks != nil {
		t.Fatalf("unexpected snapshot %#v", snap)
	}
}

func TestSnapshotAction(t *testing.T) {
	env := newEnv()
	resp, err := New(&fakeSource{}).Execute(context.Background(), env, "snapshot", nil)
	if err != nil || resp.Status != core.StatusOK {
		t.Fatalf("unexpected result %#v %v", resp, err)
	}
	snap, ok := resp.Data.(Snapshot)
	if !ok || len(snap.Disks) != 1 {
		t.Fatalf("unexpected data %#v", resp.Data)
	}
	if entries := env.Entries(); len(entries) != 1 || entries[0].Component != component {
		t.Fatalf("unexpected log entries %#v", entries)
	}
}
