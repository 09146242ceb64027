package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guiyumin/vbrief/internal/core/config"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
	"github.com/guiyumin/vbrief/internal/core/version"
	"github.com/guiyumin/vbrief/internal/server"
)

func main() {
	port := flag.Int("port", 0, "HTTP listen port (default: 8080)")
	configPath := flag.String("config", "", "config file (default: ~/.config/vbrief/config.yml)")
	showVersion := flag.Bool("version", false, "show version")
	flag.Parse()

	if *showVersion {
		fmt.Printf("vbrief-server %s\n", version.Version)
		return
	}

	cfg := config.LoadOrDefault()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "config: %v\n", err)
			os.Exit(1)
		}
		loaded.ApplyEnv(os.Getenv)
		cfg = loaded
	}
	if err := cfg.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	logger := cfg.Log.NewLogger(os.Stderr)

	// flag > config > default
	serverPort := *port
	if serverPort == 0 {
		if cfg.Server.Port > 0 {
			serverPort = cfg.Server.Port
		} else {
			serverPort = config.DefaultPort
		}
	}

	stack, err := pipeline.Build(cfg, logger)
	if err != nil {
		logger.Error("failed to build pipeline", "error", err)
		os.Exit(1)
	}
	defer stack.Close()

	srv := server.NewServer(stack.Router, server.Options{
		Port:          serverPort,
		APIKey:        cfg.Server.APIKey,
		MaxConcurrent: cfg.Server.MaxConcurrent,
		MaxSessions:   cfg.Server.MaxSessions,
		Transcriber:   stack.Transcriber,
	}, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("shutting down server")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		srv.Stop(ctx)
	}()

	if err := srv.Start(); err != nil {
		logger.Error("server error", "error", err)
		stack.Close()
		os.Exit(1)
	}
}
