package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fentz26/toolbench/internal/catalog"
	"github.com/fentz26/toolbench/internal/controlplane"
	"github.com/fentz26/toolbench/internal/scheduler"
	"github.com/spf13/cobra"
)

var (
	listenAddr string
	detach     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the toolbench daemon",
	Long:  `Starts the toolbench daemon which refreshes the tool catalog in the background and serves it over HTTP.`,
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&listenAddr, "listen", controlplane.DefaultAddr, "Listen address for the API server")
	serveCmd.Flags().BoolVar(&detach, "detach", false, "Start the daemon in the background and return once it is reachable")
}

func runServe(cmd *cobra.Command, args []string) error {
	if detach {
		return startDetached(cmd)
	}

	e, err := openEnv(cmd.Context())
	if err != nil {
		return err
	}
	log := e.log.WithField("component", "serve")
	log.Info("starting toolbench daemon")

	controlplane.Version = Version
	server := controlplane.NewServer(e.service, listenAddr)

	sched := scheduler.New(e.registry, scheduler.FromCatalog(e.cfg), e.log)
	sched.Start()

	// Set up signal handling for graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	// Channel to receive server errors
	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
		close(serverErr)
	}()

	var runErr error
	select {
	case sig := <-sigCh:
		log.WithField("signal", sig.String()).Info("initiating graceful shutdown")
	case err := <-serverErr:
		if err != nil {
			log.WithError(err).Error("server error")
			runErr = err
		}
	}

	// Graceful shutdown with timeout
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	log.Info("shutting down HTTP server")
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.WithError(err).Warn("HTTP server shutdown error")
	}
	sched.Stop()

	log.Info("closing providers and database")
	e.Close()

	log.Info("shutdown complete")
	return runErr
}

// startDetached re-executes the binary as a background daemon with its
// output in ~/.toolbench/daemon.log and waits until /health answers.
func startDetached(cmd *cobra.Command) error {
	base := "http://" + listenAddr
	if isDaemonRunning(base) {
		fmt.Fprintf(cmd.OutOrStdout(), "Daemon already running at %s\n", base)
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return err
	}

	args := []string{"serve", "--listen", listenAddr, "--log-level", logLevel}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	child := exec.Command(exe, args...)
	// Detach process so it survives the parent
	configureDaemonProc(child)

	logPath := filepath.Join(catalog.DefaultDir(), "daemon.log")
	if err := os.MkdirAll(filepath.Dir(logPath), 0o700); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	logFile, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("open daemon log: %w", err)
	}
	defer logFile.Close()
	child.Stdin = nil
	child.Stdout = logFile
	child.Stderr = logFile

	if err := child.Start(); err != nil {
		return fmt.Errorf("start daemon: %w", err)
	}

	// Wait for it to become ready
	out := cmd.OutOrStdout()
	fmt.Fprint(out, "Waiting for daemon...")
	for i := 0; i < 20; i++ { // Wait up to 5 seconds
		if isDaemonRunning(base) {
			fmt.Fprintf(out, " ready at %s (pid %d)\n", base, child.Process.Pid)
			return nil
		}
		time.Sleep(250 * time.Millisecond)
		fmt.Fprint(out, ".")
	}
	fmt.Fprintln(out, " timeout!")
	return fmt.Errorf("daemon started but API not reachable at %s, see %s", base, logPath)
}

func isDaemonRunning(base string) bool {
	client := http.Client{Timeout: 500 * time.Millisecond}
	resp, err := client.Get(base + "/health")
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
