package main

import (
	"flag"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
)

var version = "dev"

func main() {
	configPath := flag.String("config", "", "Path to config file")
	bindFlag := flag.String("bind", "", "Override bind address (e.g. 0.0.0.0)")
	portFlag := flag.Int("port", 0, "Override port")
	flag.Parse()

	// Determine config path
	cfgPath := *configPath
	if cfgPath == "" {
		home, _ := os.UserHomeDir()
		cfgPath = filepath.Join(home, ".sysdash", "agent.yaml")
	}

	config, err := loadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Apply flag overrides
	if *bindFlag != "" {
		config.Bind = *bindFlag
	}
	if *portFlag != 0 {
		config.Port = *portFlag
	}

	bindAddr := config.Bind
	if bindAddr == "" {
		bindAddr = "127.0.0.1"
	}
	listenAddr := fmt.Sprintf("%s:%d", bindAddr, config.Port)

	// Token rotation without restarting; missing file just means no watch.
	if watcher, err := config.WatchToken(cfgPath); err == nil {
		defer watcher.Close()
	}

	store := newStore()
	registry := newRegistry(config.MaxSubscribers)

	scheduler := newScheduler(newSystemProvider(), store, config)
	scheduler.onUpdate = registry.Broadcast
	scheduler.Start()

	srv := newServer(config, store, registry)

	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		log.Fatalf("Failed to listen on %s: %v", listenAddr, err)
	}

	log.Printf("sysdash-agent %s listening on %s", version, listenAddr)
	if config.Token() != "" {
		log.Printf("Auth token configured")
	} else {
		log.Printf("WARNING: No auth token configured, streams are open")
	}

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		scheduler.Stop()
		registry.CloseAll()
		listener.Close()
		os.Exit(0)
	}()

	if err := http.Serve(listener, srv.Handler()); err != nil {
		log.Fatalf("HTTP serve: %v", err)
	}
}
