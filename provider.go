package main

import (
	"fmt"
	"sync"
	"time"

	"github.com/shirou/gopsutil/v3/cpu"
	"github.com/shirou/gopsutil/v3/disk"
	"github.com/shirou/gopsutil/v3/docker"
	"github.com/shirou/gopsutil/v3/host"
	"github.com/shirou/gopsutil/v3/load"
	"github.com/shirou/gopsutil/v3/mem"
	"github.com/shirou/gopsutil/v3/net"
)

// Provider is the telemetry collaborator the scheduler polls. Each method
// either returns a typed sample or an error; latency is the provider's
// business, the scheduler's guards absorb it.
type Provider interface {
	CPULoad() (*CPUStats, error)
	NetworkStats() ([]NetworkStats, error)
	Memory() (*MemoryStats, error)
	DiskUsage() ([]DiskStats, error)
	Containers() ([]ContainerInfo, error)
	Uptime() (float64, error)
}

// systemProvider samples the host via gopsutil.
type systemProvider struct {
	mu       sync.Mutex
	prevNet  map[string]net.IOCountersStat
	prevTime time.Time
}

func newSystemProvider() *systemProvider {
	return &systemProvider{prevNet: make(map[string]net.IOCountersStat)}
}

func (p *systemProvider) CPULoad() (*CPUStats, error) {
	overall, err := cpu.Percent(0, false)
	if err != nil {
		return nil, fmt.Errorf("cpu percent: %w", err)
	}
	if len(overall) == 0 {
		return nil, fmt.Errorf("cpu percent: no data")
	}
	perCore, err := cpu.Percent(0, true)
	if err != nil {
		return nil, fmt.Errorf("per-core percent: %w", err)
	}

	stats := &CPUStats{CurrentLoad: overall[0], PerCore: perCore}
	if avg, err := load.Avg(); err == nil {
		stats.LoadAvg = avg.Load1
	}
	return stats, nil
}

// NetworkStats derives rx_sec/tx_sec from the delta against the previous
// counter sample, same discipline as CPU percentages from /proc/stat
// deltas. The first call reports zero rates.
func (p *systemProvider) NetworkStats() ([]NetworkStats, error) {
	counters, err := net.IOCounters(true)
	if err != nil {
		return nil, fmt.Errorf("net counters: %w", err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(p.prevTime).Seconds()
	result := make([]NetworkStats, 0, len(counters))
	for _, c := range counters {
		ns := NetworkStats{Iface: c.Name, RxBytes: c.BytesRecv, TxBytes: c.BytesSent}
		if prev, ok := p.prevNet[c.Name]; ok && elapsed > 0 {
			ns.RxSec = counterRate(prev.BytesRecv, c.BytesRecv, elapsed)
			ns.TxSec = counterRate(prev.BytesSent, c.BytesSent, elapsed)
		}
		p.prevNet[c.Name] = c
		result = append(result, ns)
	}
	p.prevTime = now
	return result, nil
}

// counterRate handles counter resets (interface bounce) by reporting zero
// instead of a huge unsigned wraparound.
func counterRate(prev, cur uint64, elapsed float64) float64 {
	if cur < prev {
		return 0
	}
	return float64(cur-prev) / elapsed
}

func (p *systemProvider) Memory() (*MemoryStats, error) {
	vm, err := mem.VirtualMemory()
	if err != nil {
		return nil, fmt.Errorf("virtual memory: %w", err)
	}
	return &MemoryStats{
		Total:  vm.Total,
		Used:   vm.Used,
		Free:   vm.Free,
		Active: vm.Active,
	}, nil
}

func (p *systemProvider) DiskUsage() ([]DiskStats, error) {
	parts, err := disk.Partitions(false)
	if err != nil {
		return nil, fmt.Errorf("partitions: %w", err)
	}

	result := make([]DiskStats, 0, len(parts))
	for _, part := range parts {
		usage, err := disk.Usage(part.Mountpoint)
		if err != nil {
			// Unreadable mounts (fuse, containers) are skipped, not fatal.
			continue
		}
		result = append(result, DiskStats{
			Fs:         part.Device,
			Mount:      part.Mountpoint,
			Size:       usage.Total,
			Used:       usage.Used,
			Available:  usage.Free,
			UsePercent: usage.UsedPercent,
		})
	}
	return result, nil
}

func (p *systemProvider) Containers() ([]ContainerInfo, error) {
	stats, err := docker.GetDockerStat()
	if err != nil {
		return nil, fmt.Errorf("docker stat: %w", err)
	}
	result := make([]ContainerInfo, 0, len(stats))
	for _, c := range stats {
		result = append(result, ContainerInfo{
			ID:      c.ContainerID,
			Name:    c.Name,
			Image:   c.Image,
			State:   c.Status,
			Running: c.Running,
		})
	}
	return result, nil
}

func (p *systemProvider) Uptime() (float64, error) {
	up, err := host.Uptime()
	if err != nil {
		return 0, fmt.Errorf("uptime: %w", err)
	}
	return float64(up), nil
}
