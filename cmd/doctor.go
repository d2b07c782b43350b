package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clade/internal/capability"
	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/store"
)

func doctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the CLI, config, store, and agent registry health",
		Run: func(cmd *cobra.Command, args []string) {
			runDoctor()
		},
	}
}

func runDoctor() {
	fmt.Println("clade doctor")
	fmt.Printf("  Version:  %s\n", Version)
	fmt.Printf("  OS:       %s/%s\n", runtime.GOOS, runtime.GOARCH)
	fmt.Printf("  Go:       %s\n", runtime.Version())
	fmt.Println()

	cfgPath := resolveConfigPath()
	fmt.Printf("  Config:   %s", cfgPath)
	if _, err := os.Stat(cfgPath); err != nil {
		fmt.Println(" (using defaults, file not found)")
	} else {
		fmt.Println(" (OK)")
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		fmt.Printf("  Config load error: %s\n", err)
		return
	}

	fmt.Println()
	fmt.Println("  Agent CLI:")
	caps, err := capability.Probe(context.Background(), cliPath)
	if err != nil {
		fmt.Printf("    %-20s PROBE FAILED (%s)\n", "Status:", err)
	} else {
		fmt.Printf("    %-20s %s\n", "Version:", caps.Version)
		fmt.Printf("    %-20s %v\n", "stream-json:", caps.SupportsStreamJSON)
		fmt.Printf("    %-20s %v\n", "resume:", caps.SupportsResume)
		fmt.Printf("    %-20s %v\n", "system-prompt-file:", caps.SupportsSystemPromptFile)
		fmt.Printf("    %-20s %v\n", "allowed-tools:", caps.SupportsAllowedTools)
		fmt.Printf("    %-20s %v\n", "tool-server-config:", caps.SupportsToolServerConfig)
		fmt.Printf("    %-20s %v\n", "max-turns:", caps.SupportsMaxTurns)
		fmt.Printf("    %-20s %v\n", "model-selection:", caps.SupportsModelSelection)
	}

	homeDir := config.ExpandHome(cfg.HomeDir)
	fmt.Println()
	fmt.Printf("  Home dir: %s", homeDir)
	if _, err := os.Stat(homeDir); err != nil {
		fmt.Println(" (NOT FOUND)")
	} else {
		fmt.Println(" (OK)")
	}

	fmt.Println()
	fmt.Println("  Store:")
	db, err := store.Open(filepath.Join(homeDir, "clade.db"))
	if err != nil {
		fmt.Printf("    %-20s OPEN FAILED (%s)\n", "Status:", err)
	} else {
		defer db.Close()
		v, dirty, verr := db.SchemaVersion()
		if verr != nil {
			fmt.Printf("    %-20s VERSION CHECK FAILED (%s)\n", "Schema:", verr)
		} else if dirty {
			fmt.Printf("    %-20s v%d (DIRTY)\n", "Schema:", v)
		} else {
			fmt.Printf("    %-20s v%d (OK)\n", "Schema:", v)
		}
	}

	fmt.Println()
	fmt.Println("  Agents:")
	reg, err := registry.New(homeDir, cfg)
	if err != nil {
		fmt.Printf("    (registry build failed: %s)\n", err)
	} else if len(reg.IDs()) == 0 {
		fmt.Println("    (none configured)")
	} else {
		for _, b := range reg.List() {
			fmt.Printf("    %-16s preset=%-10s model=%s\n", b.ID+":", b.Config.Preset, b.Config.Model)
		}
	}

	fmt.Println()
	fmt.Println("  External tools:")
	checkBinary(cliPath)
	checkBinary("git")

	fmt.Println()
	fmt.Println("Doctor check complete.")
}

func checkBinary(name string) {
	path, err := exec.LookPath(name)
	if err != nil {
		fmt.Printf("    %-12s NOT FOUND\n", name+":")
	} else {
		fmt.Printf("    %-12s %s\n", name+":", path)
	}
}
