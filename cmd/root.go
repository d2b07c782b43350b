// Package cmd is the clade CLI: cobra subcommands over the same host
// wiring internal/host builds, grounded in the teacher's cmd/root.go
// (retrieved for this exercise) persistent-flag and subcommand-registry
// shape, generalized from goclaw's channel-gateway command set to
// clade's agent-runtime command set (serve, doctor, agent, cron, task,
// tool-server, version).
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via
// -ldflags "-X github.com/nextlevelbuilder/clade/cmd.Version=v1.0.0"
var Version = "dev"

var (
	cfgFile string
	cliPath string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "clade",
	Short: "clade — multi-agent CLI orchestration runtime",
	Long:  "clade: dispatches conversations to a CLI-backed agent, serializes per-session turns, and runs cron, deferred-task, and reflection loops on top of it.",
	Run: func(cmd *cobra.Command, args []string) {
		runServe()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: config.json or $CLADE_CONFIG)")
	rootCmd.PersistentFlags().StringVar(&cliPath, "cli", "claude", "path to the agent CLI binary")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(doctorCmd())
	rootCmd.AddCommand(versionCmd())
	rootCmd.AddCommand(agentCmd())
	rootCmd.AddCommand(cronCmd())
	rootCmd.AddCommand(taskCmd())
	rootCmd.AddCommand(toolServerCmd())
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("clade %s\n", Version)
		},
	}
}

func resolveConfigPath() string {
	if cfgFile != "" {
		return cfgFile
	}
	if v := os.Getenv("CLADE_CONFIG"); v != "" {
		return v
	}
	return "config.json"
}

// Execute runs the root cobra command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
