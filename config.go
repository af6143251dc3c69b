package main

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Bind           string `yaml:"bind"`
	Port           int    `yaml:"port"`
	AuthToken      string `yaml:"token"`
	MaxSubscribers int    `yaml:"max_subscribers"`

	// Tier refresh periods in milliseconds.
	CPUNetIntervalMs int `yaml:"cpu_net_interval_ms"`
	MemoryIntervalMs int `yaml:"memory_interval_ms"`
	DiskIntervalMs   int `yaml:"disk_interval_ms"`
	DockerIntervalMs int `yaml:"docker_interval_ms"`
	UptimeIntervalMs int `yaml:"uptime_interval_ms"`

	mu sync.RWMutex // guards AuthToken once the watcher is running
}

func defaultConfig() *Config {
	return &Config{
		Port:             9200,
		MaxSubscribers:   10,
		CPUNetIntervalMs: 2000,
		MemoryIntervalMs: 5000,
		DiskIntervalMs:   30000,
		DockerIntervalMs: 5000,
		UptimeIntervalMs: 60000,
	}
}

func loadConfig(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	cfg.backfill()
	return cfg, nil
}

// backfill restores defaults for fields the file left at zero.
func (c *Config) backfill() {
	def := defaultConfig()
	if c.Port == 0 {
		c.Port = def.Port
	}
	if c.MaxSubscribers == 0 {
		c.MaxSubscribers = def.MaxSubscribers
	}
	if c.CPUNetIntervalMs == 0 {
		c.CPUNetIntervalMs = def.CPUNetIntervalMs
	}
	if c.MemoryIntervalMs == 0 {
		c.MemoryIntervalMs = def.MemoryIntervalMs
	}
	if c.DiskIntervalMs == 0 {
		c.DiskIntervalMs = def.DiskIntervalMs
	}
	if c.DockerIntervalMs == 0 {
		c.DockerIntervalMs = def.DockerIntervalMs
	}
	if c.UptimeIntervalMs == 0 {
		c.UptimeIntervalMs = def.UptimeIntervalMs
	}
}

func (c *Config) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.AuthToken
}

func (c *Config) setToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.AuthToken = token
}

func (c *Config) GetCPUNetInterval() time.Duration {
	return time.Duration(c.CPUNetIntervalMs) * time.Millisecond
}

func (c *Config) GetMemoryInterval() time.Duration {
	return time.Duration(c.MemoryIntervalMs) * time.Millisecond
}

func (c *Config) GetDiskInterval() time.Duration {
	return time.Duration(c.DiskIntervalMs) * time.Millisecond
}

func (c *Config) GetDockerInterval() time.Duration {
	return time.Duration(c.DockerIntervalMs) * time.Millisecond
}

func (c *Config) GetUptimeInterval() time.Duration {
	return time.Duration(c.UptimeIntervalMs) * time.Millisecond
}

// WatchToken re-reads the auth token when the config file changes, so
// tokens can be rotated without cutting open streams. Other settings still
// need a restart.
func (c *Config) WatchToken(path string) (*fsnotify.Watcher, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("config watcher: %w", err)
	}
	if err := watcher.Add(path); err != nil {
		watcher.Close()
		return nil, fmt.Errorf("watch %s: %w", path, err)
	}

	go func() {
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
					continue
				}
				fresh, err := loadConfig(path)
				if err != nil {
					log.Printf("config reload: %v", err)
					continue
				}
				if fresh.AuthToken != c.Token() {
					c.setToken(fresh.AuthToken)
					log.Printf("auth token updated from config")
				}
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.Printf("config watcher: %v", err)
			}
		}
	}()

	return watcher, nil
}
