package cmd

import (
	"os"
	"path/filepath"

	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/ipc"
)

// loadConfig loads config.json (or defaults) the same way every
// subcommand needs it.
func loadConfig() (*config.Config, error) {
	return config.Load(resolveConfigPath())
}

// ipcSocket returns the running `serve` process's socket path, or "" if
// none is discoverable — administrative subcommands fall back to direct
// Store access when no daemon is up.
func ipcSocket(homeDir string) string {
	dir := filepath.Join(homeDir, "run")
	if _, err := os.Stat(dir); err != nil {
		return ""
	}
	path, err := ipc.DiscoverSocket(dir)
	if err != nil {
		return ""
	}
	return path
}
