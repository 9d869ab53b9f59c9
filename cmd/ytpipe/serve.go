package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/yourusername/ytpipe-go/api"
	"github.com/yourusername/ytpipe-go/api/handlers"
	"github.com/yourusername/ytpipe-go/internal/app"
	"github.com/yourusername/ytpipe-go/pkg/logger"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API server",
	RunE: func(cmd *cobra.Command, args []string) error {
		daemon, _ := cmd.Flags().GetBool("daemon")
		if daemon {
			return startAsDaemon()
		}
		return runServer()
	},
}

func init() {
	serveCmd.Flags().BoolP("daemon", "d", false, "Run the server in the background")
	rootCmd.AddCommand(serveCmd)
}

// startAsDaemon re-executes "ytpipe serve" detached from the terminal
func startAsDaemon() error {
	execPath, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to get executable path: %w", err)
	}

	args := []string{"serve"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	cmd := exec.Command(execPath, args...)
	if cwd, err := os.Getwd(); err == nil {
		cmd.Dir = cwd
	}
	cmd.Env = os.Environ()
	setSysProcAttr(cmd)

	// Redirect output to /dev/null
	devNull, err := os.OpenFile(os.DevNull, os.O_RDWR, 0)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", os.DevNull, err)
	}
	defer devNull.Close()
	cmd.Stdin = devNull
	cmd.Stdout = devNull
	cmd.Stderr = devNull

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to start daemon: %w", err)
	}

	fmt.Printf("Server started as daemon (PID: %d)\n", cmd.Process.Pid)
	return cmd.Process.Release()
}

func runServer() error {
	config, err := loadConfig()
	if err != nil {
		return err
	}

	console, err := newLogger(config, false)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}

	// Structured session, access and error logs next to the download logs
	multiLog, err := logger.NewMultiLogger(logger.MultiLoggerConfig{
		Level:   config.Logging.Level,
		LogsDir: config.Logging.LogsDir,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer multiLog.Close()

	logAdapter := logger.NewLoggerAdapter(multiLog, console)
	defer logAdapter.Sync()
	log := logAdapter.General()

	log.Info("Starting ytpipe server",
		zap.String("version", version),
		zap.String("host", config.Server.Host),
		zap.Int("port", config.Server.Port),
		zap.String("download_dir", config.Download.Dir),
		zap.String("special_host", config.Pipeline.SpecialHost))

	events := handlers.NewEventsHandler(nil, log)
	a, err := app.New(config, logAdapter.Session(), app.SessionCallbacks{
		OnProgress: events.PublishProgress,
		OnFinish:   events.PublishResult,
	})
	if err != nil {
		return err
	}
	events.SetSession(a.Session)
	a.RecoverHistory()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go events.ForwardLogs(ctx, a.Ring)

	router := api.SetupRouter(api.ServicesFromApp(a, events, version), logAdapter)

	addr := fmt.Sprintf("%s:%d", config.Server.Host, config.Server.Port)
	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	var runErr error
	select {
	case sig := <-quit:
		log.Info("Received shutdown signal", zap.String("signal", sig.String()))
	case runErr = <-serveErr:
		log.Error("HTTP server failed", zap.Error(runErr))
	}

	log.Info("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	cancel()

	// Stops the active download and waits for its processes
	if err := a.Close(shutdownCtx); err != nil {
		log.Error("Error stopping download session", zap.Error(err))
	}

	log.Info("Server exited")
	return runErr
}
