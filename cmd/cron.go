// Cron administration talks to the Store directly rather than through
// IPC: §4.8's wire-type table defines sessions.*, agents.list, and
// taskqueue.* but no cron.* type, so there is no documented wire
// contract to route these mutations through a running daemon. A
// `serve` process caches its enabled-job set once at Scheduler.Start,
// so a mutation made here will not be picked up until the daemon is
// restarted — a deliberate limitation rather than an invented endpoint.
package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/adhocore/gronx"
	"github.com/spf13/cobra"

	"github.com/nextlevelbuilder/clade/internal/clerr"
	"github.com/nextlevelbuilder/clade/internal/config"
	"github.com/nextlevelbuilder/clade/internal/store"
)

func cronCmd() *cobra.Command {
	c := &cobra.Command{
		Use:   "cron",
		Short: "Administer recurring cron jobs (requires a `serve` restart to take effect)",
	}
	c.AddCommand(cronAddCmd())
	c.AddCommand(cronListCmd())
	c.AddCommand(cronEnableCmd())
	c.AddCommand(cronDisableCmd())
	c.AddCommand(cronRemoveCmd())
	return c
}

func cronAddCmd() *cobra.Command {
	var name, schedule, agentID, prompt, deliverTo string
	c := &cobra.Command{
		Use:   "add",
		Short: "Add a recurring cron job",
		Run: func(cmd *cobra.Command, args []string) {
			if name == "" || schedule == "" || agentID == "" || prompt == "" {
				fail("add cron job", errors.New("--name, --schedule, --agent, and --prompt are required"))
			}
			if !gronx.IsValid(schedule) {
				fail("add cron job", clerr.Validationf("invalid cron expression %q", schedule))
			}

			homeDir, db, err := openCronStore()
			if err != nil {
				fail("open store", err)
			}
			_ = homeDir
			defer db.Close()

			j, err := store.NewStores(db).Cron.CreateCronJob(context.Background(), store.CronJob{
				Name:      name,
				Schedule:  schedule,
				AgentID:   agentID,
				Prompt:    prompt,
				DeliverTo: deliverTo,
				Enabled:   true,
			})
			if err != nil {
				fail("add cron job", err)
			}
			fmt.Printf("added %s (%s) — restart `clade serve` to activate\n", j.ID, j.Name)
		},
	}
	c.Flags().StringVar(&name, "name", "", "unique job name")
	c.Flags().StringVar(&schedule, "schedule", "", "5-field cron expression")
	c.Flags().StringVar(&agentID, "agent", "", "agent id to run the prompt")
	c.Flags().StringVar(&prompt, "prompt", "", "prompt text")
	c.Flags().StringVar(&deliverTo, "deliver-to", "", "channel:target delivery target, or empty")
	return c
}

func cronListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List cron jobs",
		Run: func(cmd *cobra.Command, args []string) {
			_, db, err := openCronStore()
			if err != nil {
				fail("open store", err)
			}
			defer db.Close()

			jobs, err := store.NewStores(db).Cron.ListCronJobs(context.Background())
			if err != nil {
				fail("list cron jobs", err)
			}
			for _, j := range jobs {
				status := "enabled"
				if !j.Enabled {
					status = "disabled"
				}
				last := "never"
				if j.LastRunAt != nil {
					last = j.LastRunAt.Format("2006-01-02T15:04:05Z07:00")
				}
				fmt.Printf("%-12s %-20s agent=%-12s %-8s lastRun=%s\n", j.Name, j.Schedule, j.AgentID, status, last)
			}
		},
	}
}

func cronEnableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "enable <name>",
		Short: "Enable a cron job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cronToggle(args[0], true)
		},
	}
}

func cronDisableCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disable <name>",
		Short: "Disable a cron job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			cronToggle(args[0], false)
		},
	}
}

func cronToggle(name string, enable bool) {
	_, db, err := openCronStore()
	if err != nil {
		fail("open store", err)
	}
	defer db.Close()

	cronStore := store.NewStores(db).Cron
	j, err := cronStore.GetCronJobByName(context.Background(), name)
	if err != nil {
		fail("find cron job", err)
	}
	if enable {
		err = cronStore.EnableCronJob(context.Background(), j.ID)
	} else {
		err = cronStore.DisableCronJob(context.Background(), j.ID)
	}
	if err != nil {
		fail("toggle cron job", err)
	}
	fmt.Println("ok — restart `clade serve` to apply")
}

func cronRemoveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <name>",
		Short: "Delete a cron job",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			_, db, err := openCronStore()
			if err != nil {
				fail("open store", err)
			}
			defer db.Close()

			cronStore := store.NewStores(db).Cron
			j, err := cronStore.GetCronJobByName(context.Background(), args[0])
			if err != nil {
				fail("find cron job", err)
			}
			if err := cronStore.DeleteCronJob(context.Background(), j.ID); err != nil {
				fail("remove cron job", err)
			}
			fmt.Println("removed — restart `clade serve` to apply")
		},
	}
}

func openCronStore() (string, *store.DB, error) {
	cfg, err := loadConfig()
	if err != nil {
		return "", nil, err
	}
	homeDir := config.ExpandHome(cfg.HomeDir)
	db, err := openStore(homeDir)
	return homeDir, db, err
}
