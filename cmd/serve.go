package cmd

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/host"
)

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the clade host: Session Manager, Cron Scheduler, Task Queue, IPC server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}
}

func runServe() {
	logLevel := slog.LevelInfo
	if verbose {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: logLevel})))

	cfgPath := resolveConfigPath()
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		slog.Info("graceful shutdown initiated", "signal", sig)
		cancel()
	}()

	h, err := host.New(ctx, cfg, cliPath)
	if err != nil {
		slog.Error("failed to build host", "error", err)
		os.Exit(1)
	}

	slog.Info("clade host starting",
		"version", Version,
		"home", config.ExpandHome(cfg.HomeDir),
		"agents", len(cfg.Agents.List),
		"cli", cliPath,
	)

	if err := h.Run(ctx); err != nil {
		slog.Error("host exited with error", "error", err)
		os.Exit(1)
	}
}
