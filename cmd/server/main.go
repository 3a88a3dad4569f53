// Command server runs a standalone StageSync relay.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/spf13/pflag"

	sig "github.com/tomaslejdung/stagesync/pkg/signal"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	var port int
	var logLevel string

	flagSet := pflag.NewFlagSet("stagesync-server", pflag.ContinueOnError)
	flagSet.IntVarP(&port, "port", "p", 8080, "Server port")
	flagSet.StringVar(&logLevel, "log-level", "info", "Log level (debug|info|warn|error)")
	if err := flagSet.Parse(os.Args[1:]); err != nil {
		if err == pflag.ErrHelp {
			return nil
		}
		return err
	}

	// Check for PORT env var (for cloud deployments)
	if envPort := os.Getenv("PORT"); envPort != "" && !flagSet.Changed("port") {
		p, err := strconv.Atoi(envPort)
		if err != nil {
			return fmt.Errorf("invalid PORT %q", envPort)
		}
		port = p
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(logLevel)); err != nil {
		return fmt.Errorf("invalid --log-level %q", logLevel)
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	server := sig.NewServer(logger)
	addr := fmt.Sprintf(":%d", port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("relay starting", slog.String("addr", addr), slog.String("exampleRoom", sig.GenerateRoomCode()))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	logger.Info("relay shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
