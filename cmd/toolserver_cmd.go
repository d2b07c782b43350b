package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/toolserver"
)

func toolServerCmd() *cobra.Command {
	return &cobra.Command{
		Use:    "tool-server <name>",
		Short:  "Run a built-in MCP tool server over stdio (spawned by the Tool Config Builder, not invoked directly)",
		Args:   cobra.ExactArgs(1),
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			name := args[0]
			env := toolserver.Env{
				AgentID:       os.Getenv("CLADE_AGENT_ID"),
				HomeDir:       os.Getenv("CLADE_HOME_DIR"),
				IPCSocketPath: os.Getenv("CLADE_IPC_SOCKET"),
			}
			if env.HomeDir == "" {
				fmt.Fprintln(os.Stderr, "tool-server: CLADE_HOME_DIR is not set")
				os.Exit(1)
			}

			db, err := store.Open(filepath.Join(env.HomeDir, "clade.db"))
			if err != nil {
				fmt.Fprintf(os.Stderr, "tool-server: open store: %s\n", err)
				os.Exit(1)
			}
			defer db.Close()

			if err := toolserver.Serve(cmd.Context(), name, env, db); err != nil {
				fmt.Fprintf(os.Stderr, "tool-server %s: %s\n", name, err)
				os.Exit(1)
			}
		},
	}
}
