package cli

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/guiyumin/vbrief/internal/core/config"
	"github.com/guiyumin/vbrief/internal/core/pipeline"
	"github.com/guiyumin/vbrief/internal/server"
)

var (
	servePort   int
	serveDaemon bool
)

var serveCmd = &cobra.Command{
	Use:   "serve [stop|status]",
	Short: "Start the HTTP API for the browser extension",
	Long: `Start an HTTP server that summarizes sources and answers follow-ups.

Examples:
  vbrief serve              # Start server on port 8080
  vbrief serve -p 9000      # Start server on port 9000
  vbrief serve -d           # Start server as background daemon
  vbrief serve stop         # Stop the daemon
  vbrief serve status       # Show daemon status

API Endpoints:
  GET    /api/health             # Health check
  POST   /api/summarize          # Summarize raw text
  POST   /api/summarize-url      # Summarize a web page
  POST   /api/summarize-youtube  # Summarize a video
  POST   /api/follow-up          # Ask about the last summary
  POST   /api/jobs               # Queue a summary
  GET    /api/jobs/:id           # Poll a queued summary`,
	Args:      cobra.MaximumNArgs(1),
	ValidArgs: []string{"stop", "status"},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) > 0 {
			switch args[0] {
			case "stop":
				return stopDaemon()
			case "status":
				return daemonStatus()
			default:
				return fmt.Errorf("unknown serve action %q", args[0])
			}
		}
		return runServe()
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "HTTP listen port (default: 8080)")
	serveCmd.Flags().BoolVarP(&serveDaemon, "daemon", "d", false, "run as background daemon")

	rootCmd.AddCommand(serveCmd)
}

func runServe() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	// flag > config > default
	port := servePort
	if port == 0 {
		if cfg.Server.Port > 0 {
			port = cfg.Server.Port
		} else {
			port = config.DefaultPort
		}
	}

	if serveDaemon {
		return startDaemon(port)
	}
	return runServer(cfg, port)
}

func runServer(cfg *config.Config, port int) error {
	lc := cfg.Log
	if verbose {
		lc.Level = "debug"
	}
	logger := lc.NewLogger(os.Stderr)

	stack, err := pipeline.Build(cfg, logger)
	if err != nil {
		return err
	}
	defer stack.Close()

	srv := server.NewServer(stack.Router, server.Options{
		Port:          port,
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
		if err := srv.Stop(ctx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	return srv.Start()
}

func startDaemon(port int) error {
	if pid := getDaemonPID(); pid > 0 {
		if processExists(pid) {
			return fmt.Errorf("daemon already running (PID %d)", pid)
		}
		// stale
		os.Remove(getPIDFilePath())
	}

	executable, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve", "-p", strconv.Itoa(port)}
	if configFile != "" {
		args = append(args, "--config", configFile)
	}
	if verbose {
		args = append(args, "--verbose")
	}

	logPath := getLogFilePath()
	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return fmt.Errorf("failed to create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to create log file: %w", err)
	}

	cmd := exec.Command(executable, args...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile
	cmd.Stdin = nil
	cmd.SysProcAttr = &syscall.SysProcAttr{
		Setsid: true,
	}

	if err := cmd.Start(); err != nil {
		logFile.Close()
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	if err := savePID(cmd.Process.Pid); err != nil {
		cmd.Process.Kill()
		logFile.Close()
		return fmt.Errorf("failed to save PID: %w", err)
	}

	color.Green("vbrief server started as daemon (PID %d)", cmd.Process.Pid)
	fmt.Printf("  Port: %d\n", port)
	fmt.Printf("  Log:  %s\n", logPath)
	fmt.Printf("\nUse 'vbrief serve stop' to stop the daemon\n")
	return nil
}

func stopDaemon() error {
	pid := getDaemonPID()
	if pid <= 0 {
		return fmt.Errorf("daemon is not running")
	}

	process, err := os.FindProcess(pid)
	if err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("daemon process not found")
	}

	if err := process.Signal(syscall.SIGTERM); err != nil {
		os.Remove(getPIDFilePath())
		return fmt.Errorf("failed to stop daemon: %w", err)
	}

	for i := 0; i < 30; i++ {
		if !processExists(pid) {
			break
		}
		time.Sleep(100 * time.Millisecond)
	}

	os.Remove(getPIDFilePath())
	fmt.Println("Daemon stopped")
	return nil
}

func daemonStatus() error {
	pid := getDaemonPID()
	if pid <= 0 {
		fmt.Println("Daemon is not running")
		return nil
	}

	if !processExists(pid) {
		os.Remove(getPIDFilePath())
		fmt.Println("Daemon is not running (stale PID file removed)")
		return nil
	}

	fmt.Printf("Daemon is running (PID %s)\n", color.GreenString("%d", pid))
	fmt.Printf("Log file: %s\n", getLogFilePath())
	return nil
}

func getPIDFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vbrief-serve.pid")
	}
	return filepath.Join(configDir, "serve.pid")
}

func getLogFilePath() string {
	configDir, err := config.ConfigDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "vbrief-serve.log")
	}
	return filepath.Join(configDir, "serve.log")
}

func savePID(pid int) error {
	pidFile := getPIDFilePath()
	if err := os.MkdirAll(filepath.Dir(pidFile), 0755); err != nil {
		return err
	}
	return os.WriteFile(pidFile, []byte(strconv.Itoa(pid)), 0644)
}

func getDaemonPID() int {
	data, err := os.ReadFile(getPIDFilePath())
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

func processExists(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// FindProcess always succeeds on Unix; signal 0 checks liveness.
	return process.Signal(syscall.Signal(0)) == nil
}
