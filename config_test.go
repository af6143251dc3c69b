package main

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	cfg, err := loadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Port != 9200 {
		t.Errorf("port = %d", cfg.Port)
	}
	if cfg.MaxSubscribers != 10 {
		t.Errorf("max subscribers = %d", cfg.MaxSubscribers)
	}
	if cfg.GetCPUNetInterval() != 2*time.Second {
		t.Errorf("cpu+net interval = %v", cfg.GetCPUNetInterval())
	}
	if cfg.GetMemoryInterval() != 5*time.Second {
		t.Errorf("memory interval = %v", cfg.GetMemoryInterval())
	}
	if cfg.GetDiskInterval() != 30*time.Second {
		t.Errorf("disk interval = %v", cfg.GetDiskInterval())
	}
	if cfg.GetDockerInterval() != 5*time.Second {
		t.Errorf("docker interval = %v", cfg.GetDockerInterval())
	}
	if cfg.GetUptimeInterval() != time.Minute {
		t.Errorf("uptime interval = %v", cfg.GetUptimeInterval())
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := `
bind: 0.0.0.0
port: 8088
token: hunter2
max_subscribers: 3
cpu_net_interval_ms: 1000
`
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatalf("loadConfig: %v", err)
	}
	if cfg.Bind != "0.0.0.0" || cfg.Port != 8088 {
		t.Errorf("bind/port = %s/%d", cfg.Bind, cfg.Port)
	}
	if cfg.Token() != "hunter2" {
		t.Errorf("token = %q", cfg.Token())
	}
	if cfg.MaxSubscribers != 3 {
		t.Errorf("max subscribers = %d", cfg.MaxSubscribers)
	}
	if cfg.GetCPUNetInterval() != time.Second {
		t.Errorf("cpu+net interval = %v", cfg.GetCPUNetInterval())
	}
	// Fields the file omitted keep their defaults.
	if cfg.GetDiskInterval() != 30*time.Second {
		t.Errorf("disk interval = %v", cfg.GetDiskInterval())
	}
}

func TestLoadConfigRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte("port: [not a number"), 0600); err != nil {
		t.Fatal(err)
	}
	if _, err := loadConfig(path); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestWatchTokenPicksUpRotation(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	if err := os.WriteFile(path, []byte("token: old\n"), 0600); err != nil {
		t.Fatal(err)
	}

	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	watcher, err := cfg.WatchToken(path)
	if err != nil {
		t.Fatalf("WatchToken: %v", err)
	}
	defer watcher.Close()

	if err := os.WriteFile(path, []byte("token: new\n"), 0600); err != nil {
		t.Fatal(err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for cfg.Token() != "new" {
		if time.Now().After(deadline) {
			t.Fatalf("token not rotated, still %q", cfg.Token())
		}
		time.Sleep(10 * time.Millisecond)
	}
}
