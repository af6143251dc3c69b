package main

import (
	"sync"
	"time"
)

// CPUStats is the overall load plus the per-core breakdown, both 0-100.
type CPUStats struct {
	CurrentLoad float64   `json:"currentLoad"`
	PerCore     []float64 `json:"cpus"`
	LoadAvg     float64   `json:"loadavg"`
}

type MemoryStats struct {
	Total  uint64 `json:"total"`
	Used   uint64 `json:"used"`
	Free   uint64 `json:"free"`
	Active uint64 `json:"active"`
}

type DiskStats struct {
	Fs         string  `json:"fs"`
	Mount      string  `json:"mount"`
	Size       uint64  `json:"size"`
	Used       uint64  `json:"used"`
	Available  uint64  `json:"available"`
	UsePercent float64 `json:"use"`
}

// NetworkStats carries per-interface rates (bytes/sec, derived from
// successive counter samples) and the raw cumulative counters.
type NetworkStats struct {
	Iface   string  `json:"iface"`
	RxSec   float64 `json:"rx_sec"`
	TxSec   float64 `json:"tx_sec"`
	RxBytes uint64  `json:"rx_bytes"`
	TxBytes uint64  `json:"tx_bytes"`
}

// ContainerInfo is passed through from the provider as-is.
type ContainerInfo struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Image   string `json:"image"`
	State   string `json:"state"`
	Running bool   `json:"running"`
}

// Snapshot is the latest-known value of every telemetry category. Each
// field stays null until its first successful sample, except Docker which
// is always a list (empty when the container runtime is unreachable).
// Timestamp is set by the cpu+network tier only.
type Snapshot struct {
	CPU       *CPUStats       `json:"cpu"`
	Memory    *MemoryStats    `json:"memory"`
	Disk      []DiskStats     `json:"disk"`
	Network   []NetworkStats  `json:"network"`
	Docker    []ContainerInfo `json:"docker"`
	Uptime    *float64        `json:"uptime"`
	Timestamp *int64          `json:"timestamp"` // unix millis
}

// Store holds the one shared Snapshot. Tiers write disjoint field subsets,
// but a tier's multi-field burst must look atomic to readers, so every
// setter holds the write lock for its whole burst and Get copies under the
// read lock.
type Store struct {
	mu   sync.RWMutex
	snap Snapshot
}

func newStore() *Store {
	return &Store{snap: Snapshot{Docker: []ContainerInfo{}}}
}

// SetCPUNetwork applies the heartbeat burst: cpu, network and the
// timestamp land together or not at all from a reader's point of view.
func (s *Store) SetCPUNetwork(cpu *CPUStats, network []NetworkStats) {
	now := time.Now().UnixMilli()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.CPU = cpu
	s.snap.Network = network
	s.snap.Timestamp = &now
}

func (s *Store) SetMemory(m *MemoryStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Memory = m
}

func (s *Store) SetDisk(d []DiskStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Disk = d
}

// SetDocker is called with an empty (non-nil) list on provider failure;
// containers degrade to empty rather than stale.
func (s *Store) SetDocker(c []ContainerInfo) {
	if c == nil {
		c = []ContainerInfo{}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Docker = c
}

func (s *Store) SetUptime(seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snap.Uptime = &seconds
}

// Get returns a copy of the current snapshot. Slice and pointer contents
// are never mutated after a set, so a shallow copy is a consistent read.
func (s *Store) Get() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}
