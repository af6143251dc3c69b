package main

import (
	"log"
	"sync/atomic"
	"time"
)

// Scheduler drives the five refresh tiers. Each tier is an independent
// ticker with its own in-flight guard: a tick that lands while the previous
// refresh of the same tier is still running is dropped, not queued. The
// guard is cleared unconditionally when the refresh returns, so a failing
// provider can never wedge a tier.
//
// Only the cpu+network tier refreshes the snapshot timestamp and fans the
// snapshot out to subscribers; the other tiers update the store silently
// and their data rides along on the next cpu+network broadcast or query.
type Scheduler struct {
	provider Provider
	store    *Store
	onUpdate func(Snapshot)

	cpuNetPeriod time.Duration
	memPeriod    time.Duration
	diskPeriod   time.Duration
	dockerPeriod time.Duration
	uptimePeriod time.Duration

	cpuNetBusy atomic.Bool
	memBusy    atomic.Bool
	diskBusy   atomic.Bool
	dockerBusy atomic.Bool

	stopCh chan struct{}
}

func newScheduler(provider Provider, store *Store, config *Config) *Scheduler {
	return &Scheduler{
		provider:     provider,
		store:        store,
		cpuNetPeriod: config.GetCPUNetInterval(),
		memPeriod:    config.GetMemoryInterval(),
		diskPeriod:   config.GetDiskInterval(),
		dockerPeriod: config.GetDockerInterval(),
		uptimePeriod: config.GetUptimeInterval(),
		stopCh:       make(chan struct{}),
	}
}

// Start performs one synchronous fetch of everything so the snapshot is
// populated before the first tick, then launches the tier tickers.
func (s *Scheduler) Start() {
	s.initialFetch()

	go s.runTier(s.cpuNetPeriod, &s.cpuNetBusy, s.refreshCPUNetwork)
	go s.runTier(s.memPeriod, &s.memBusy, s.refreshMemory)
	go s.runTier(s.diskPeriod, &s.diskBusy, s.refreshDisk)
	go s.runTier(s.dockerPeriod, &s.dockerBusy, s.refreshDocker)
	go s.runUptime()
}

func (s *Scheduler) Stop() {
	close(s.stopCh)
}

func (s *Scheduler) runTier(period time.Duration, busy *atomic.Bool, refresh func()) {
	ticker := time.NewTicker(period)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if !busy.CompareAndSwap(false, true) {
				continue // previous refresh still in flight, drop this tick
			}
			go func() {
				defer busy.Store(false)
				refresh()
			}()
		case <-s.stopCh:
			return
		}
	}
}

// Uptime is a cheap synchronous read, no guard needed.
func (s *Scheduler) runUptime() {
	ticker := time.NewTicker(s.uptimePeriod)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			s.refreshUptime()
		case <-s.stopCh:
			return
		}
	}
}

func (s *Scheduler) initialFetch() {
	s.refreshCPUNetwork()
	s.refreshMemory()
	s.refreshDisk()
	s.refreshDocker()
	s.refreshUptime()
}

// refreshCPUNetwork is the heartbeat tier: cpu and network are fetched
// together, written as one burst with a fresh timestamp, and the result is
// broadcast. A failure of either fetch skips the whole write.
func (s *Scheduler) refreshCPUNetwork() {
	cpuStats, err := s.provider.CPULoad()
	if err != nil {
		log.Printf("refresh cpu: %v", err)
		return
	}
	netStats, err := s.provider.NetworkStats()
	if err != nil {
		log.Printf("refresh network: %v", err)
		return
	}
	s.store.SetCPUNetwork(cpuStats, netStats)
	if s.onUpdate != nil {
		s.onUpdate(s.store.Get())
	}
}

func (s *Scheduler) refreshMemory() {
	m, err := s.provider.Memory()
	if err != nil {
		log.Printf("refresh memory: %v", err)
		return
	}
	s.store.SetMemory(m)
}

func (s *Scheduler) refreshDisk() {
	d, err := s.provider.DiskUsage()
	if err != nil {
		log.Printf("refresh disk: %v", err)
		return
	}
	s.store.SetDisk(d)
}

// refreshDocker degrades to an empty list on failure instead of keeping
// stale containers: an unreachable runtime means "no containers", not
// "the containers we saw last time".
func (s *Scheduler) refreshDocker() {
	c, err := s.provider.Containers()
	if err != nil {
		log.Printf("refresh docker: %v", err)
		s.store.SetDocker([]ContainerInfo{})
		return
	}
	s.store.SetDocker(c)
}

func (s *Scheduler) refreshUptime() {
	up, err := s.provider.Uptime()
	if err != nil {
		log.Printf("refresh uptime: %v", err)
		return
	}
	s.store.SetUptime(up)
}
