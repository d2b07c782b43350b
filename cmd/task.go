package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/ipc"
	"github.com/nextlevelbuilder/clade/internal/store"
	"github.com/nextlevelbuilder/clade/internal/taskqueue"
)

func taskCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "task",
		Short: "Schedule, list, and cancel deferred tasks",
	}
	c.AddCommand(taskScheduleCmd())
	c.AddCommand(taskListCmd())
	c.AddCommand(taskCancelCmd())
	return c
}

func taskScheduleCmd() *cobra.Command {
	var agentID, prompt, description string
	var delayMinutes float64
	c := &cobra.Command{
		Use:   "schedule",
		Short: "Schedule a one-shot deferred prompt",
		Run: func(cmd *cobra.Command, args []string) {
			if agentID == "" || prompt == "" {
				fail("schedule task", errors.New("--agent and --prompt are required"))
			}

			cfg, err := loadConfig()
			if err != nil {
				fail("load config", err)
			}
			homeDir := config.ExpandHome(cfg.HomeDir)

			if sock := ipcSocket(homeDir); sock != "" {
				reply, err := ipc.Call(context.Background(), sock, "taskqueue.schedule", ipc.TaskQueueSchedulePayload{
					AgentID:      agentID,
					Prompt:       prompt,
					Description:  description,
					DelayMinutes: delayMinutes,
				})
				if err == nil && reply.OK {
					var r ipc.TaskQueueScheduleReply
					_ = json.Unmarshal(reply.Data, &r)
					fmt.Printf("scheduled %s for %s\n", r.TaskID, time.UnixMilli(r.ExecuteAt).Format(time.RFC3339))
					return
				}
				if err == nil && !reply.OK {
					fail("schedule via daemon", errors.New(reply.Error))
				}
			}

			db, err := openStore(homeDir)
			if err != nil {
				fail("open store", err)
			}
			defer db.Close()

			delay := time.Duration(delayMinutes * float64(time.Minute))
			if delay < taskqueue.MinDelay || delay > taskqueue.MaxDelay {
				fail("schedule task", clerr.Validationf("delayMinutes %.2f out of range [0.5, 43200]", delayMinutes))
			}
			t, err := store.NewStores(db).Tasks.EnqueueTask(context.Background(), store.DeferredTask{
				AgentID:     agentID,
				Prompt:      prompt,
				Description: description,
				ExecuteAt:   time.Now().Add(delay),
			})
			if err != nil {
				fail("schedule task", err)
			}
			fmt.Printf("scheduled %s for %s\n", t.ID, t.ExecuteAt.Format(time.RFC3339))
		},
	}
	c.Flags().StringVar(&agentID, "agent", "", "agent id to run the prompt")
	c.Flags().StringVar(&prompt, "prompt", "", "prompt text")
	c.Flags().StringVar(&description, "description", "", "human-readable label")
	c.Flags().Float64Var(&delayMinutes, "delay", 0, "delay in minutes before firing, [0.5, 43200]")
	return c
}

func taskListCmd() *cobra.Command {
	var agentID string
	c := &cobra.Command{
		Use:   "list",
		Short: "List deferred tasks",
		Run: func(cmd *cobra.Command, args []string) {
			cfg, err := loadConfig()
			if err != nil {
				fail("load config", err)
			}
			homeDir := config.ExpandHome(cfg.HomeDir)

			if sock := ipcSocket(homeDir); sock != "" {
				reply, err := ipc.Call(context.Background(), sock, "taskqueue.list", ipc.TaskQueueListPayload{AgentID: agentID})
				if err == nil && reply.OK {
					var tasks []ipc.TaskSummary
					_ = json.Unmarshal(reply.Data, &tasks)
					for _, t := range tasks {
						fmt.Printf("%-38s agent=%-12s status=%-10s executeAt=%s\n", t.ID, t.AgentID, t.Status, time.UnixMilli(t.ExecuteAt).Format(time.RFC3339))
					}
					return
				}
			}

			db, err := openStore(homeDir)
			if err != nil {
				fail("open store", err)
			}
			defer db.Close()

			stores := store.NewStores(db)
			var tasks []store.DeferredTask
			if agentID == "" {
				tasks, err = stores.Tasks.ListAllTasks(context.Background())
			} else {
				tasks, err = stores.Tasks.ListTasksByAgent(context.Background(), agentID)
			}
			if err != nil {
				fail("list tasks", err)
			}
			for _, t := range tasks {
				fmt.Printf("%-38s agent=%-12s status=%-10s executeAt=%s\n", t.ID, t.AgentID, t.Status, t.ExecuteAt.Format(time.RFC3339))
			}
		},
	}
	c.Flags().StringVar(&agentID, "agent", "", "filter by agent id")
	return c
}

func taskCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <taskId>",
		Short: "Cancel a pending deferred task",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			taskID := args[0]

			cfg, err := loadConfig()
			if err != nil {
				fail("load config", err)
			}
			homeDir := config.ExpandHome(cfg.HomeDir)

			if sock := ipcSocket(homeDir); sock != "" {
				reply, err := ipc.Call(context.Background(), sock, "taskqueue.cancel", ipc.TaskQueueCancelPayload{TaskID: taskID})
				if err == nil && reply.OK {
					fmt.Println("cancelled")
					return
				}
				if err == nil && !reply.OK {
					fail("cancel via daemon", errors.New(reply.Error))
				}
			}

			db, err := openStore(homeDir)
			if err != nil {
				fail("open store", err)
			}
			defer db.Close()

			if err := store.NewStores(db).Tasks.CancelTask(context.Background(), taskID); err != nil {
				fail("cancel task", err)
			}
			fmt.Println("cancelled")
		},
	}
}

func openStore(homeDir string) (*store.DB, error) {
	if err := os.MkdirAll(homeDir, 0o755); err != nil {
		return nil, err
	}
	return store.Open(filepath.Join(homeDir, "clade.db"))
}
