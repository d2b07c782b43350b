package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clade/internal/capability"
	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/ipc"
	"github.com/nextlevelbuilder/clade/internal/registry"
	"github.com/nextlevelbuilder/clade/internal/sessionmgr"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/supervisor"
)

func agentCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "agent",
		Short: "Inspect and drive configured agents",
	}
	c.AddCommand(agentListCmd())
	c.AddCommand(agentSendCmd())
	return c
}

func agentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List configured agents",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fail("load config", err)
			}
			homeDir := config.ExpandHome(cfg.HomeDir)

			if sock := ipcSocket(homeDir); sock != "" {
				reply, err := ipc.Call(context.Background(), sock, "agents.list", struct{}{})
				if err == nil && reply.OK {
					var agents []ipc.AgentSummary
					_ = json.Unmarshal(reply.Data, &agents)
					for _, a := range agents {
						fmt.Printf("%-16s preset=%-10s servers=%s\n", a.ID, a.Preset, strings.Join(a.Servers, ","))
					}
					return
				}
			}

			reg, err := registry.New(homeDir, cfg)
			if err != nil {
				fail("build registry", err)
			}
			for _, b := range reg.List() {
				fmt.Printf("%-16s preset=%-10s model=%s\n", b.ID, b.Config.Preset, b.Config.Model)
			}
		},
	}
}

func agentSendCmd() *cobra.Command {
	var channel, userID, chatID string
	c := &cobra.Command{
		Use:   "send <agentId> <prompt...>",
		Short: "Send one prompt to an agent and print its reply",
		Args:  cobra.MinimumNArgs(2),
		Run: func(cmd *cobra.Command, args []string) {
			agentID := args[0]
			prompt := strings.Join(args[1:], " ")

			cfg, err := loadConfig()
			if err != nil {
				fail("load config", err)
			}
			homeDir := config.ExpandHome(cfg.HomeDir)

			if sock := ipcSocket(homeDir); sock != "" {
				reply, err := ipc.Call(context.Background(), sock, "sessions.spawn", ipc.SessionsSpawnPayload{
					AgentID: agentID,
					Prompt:  prompt,
				})
				if err == nil && reply.OK {
					var r ipc.SessionsSpawnReply
					_ = json.Unmarshal(reply.Data, &r)
					fmt.Println(r.Response)
					return
				}
				if err == nil && !reply.OK {
					fail("send via daemon", errors.New(reply.Error))
				}
			}

			res, err := sendDirect(homeDir, cfg, agentID, prompt, channel, userID, chatID)
			if err != nil {
				fail("send", err)
			}
			fmt.Println(res.Text)
		},
	}
	c.Flags().StringVar(&channel, "channel", "cli", "channel tag for the session key")
	c.Flags().StringVar(&userID, "user", "", "user id for the session key")
	c.Flags().StringVar(&chatID, "chat", "", "chat id for the session key")
	return c
}

// sendDirect builds a standalone Session Manager for a one-shot turn when
// no `serve` daemon is reachable over IPC. No background loops (cron,
// task queue, reflection, watcher) run in this path — only the turn
// itself and its session bookkeeping.
func sendDirect(homeDir string, cfg *config.Config, agentID, prompt, channel, userID, chatID string) (sessionmgr.SendResult, error) {
	ctx := context.Background()

	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return sessionmgr.SendResult{}, err
	}
	db, err := store.Open(filepath.Join(homeDir, "clade.db"))
	if err != nil {
		return sessionmgr.SendResult{}, err
	}
	defer db.Close()

	reg, err := registry.New(homeDir, cfg)
	if err != nil {
		return sessionmgr.SendResult{}, err
	}
	caps, err := capability.Probe(ctx, cliPath)
	if err != nil {
		return sessionmgr.SendResult{}, err
	}
	sup, _ := supervisor.New(ctx)
	selfExe, err := os.Executable()
	if err != nil {
		selfExe = cliPath
	}

	mgr := sessionmgr.New(reg, store.NewStores(db), caps, cliPath, selfExe, homeDir, cfg.Tools.Browser, sup)
	return mgr.SendMessage(ctx, agentID, prompt, channel, userID, chatID)
}

func fail(action string, err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", action, err)
	os.Exit(1)
}
