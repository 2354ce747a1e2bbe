// Package cli implements the billingctl operator commands.
package cli

import (
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/rightupnext/billing/internal/app"
	"github.com/rightupnext/billing/jobs"
)

// Deps lets tests swap the Redis backed jobs client.
type Deps struct {
	Logger *slog.Logger
	Config *app.Config
	Jobs   func(asynq.RedisClientOpt) *JobsCLI
}

// NewRootCommand assembles the command tree.
func NewRootCommand(deps Deps) *cobra.Command {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Jobs == nil {
		deps.Jobs = NewJobsCLI
	}
	root := &cobra.Command{
		Use:           "billingctl",
		Short:         "Operator commands for the billing service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newJobsCommand(deps), newSchemaCommand(deps))
	return root
}

func newJobsCommand(deps Deps) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "Trigger and inspect background jobs",
	}

	var opts TriggerOptions
	trigger := &cobra.Command{
		Use:       "trigger <job>",
		Short:     "Enqueue a job now",
		Example:   "  billingctl jobs trigger " + jobs.TaskAnalyticsWarmup + " --tenant rightupnext_acme",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{jobs.TaskSubscriptionExpiryScan, jobs.TaskAnalyticsWarmup, jobs.TaskPoolSweep},
		RunE: func(cmd *cobra.Command, args []string) error {
			c := deps.Jobs(deps.Config.AsynqRedis())
			defer c.Close()
			info, err := c.Trigger(cmd.Context(), args[0], opts)
			if err != nil {
				return err
			}
			deps.Logger.Info("job enqueued", slog.String("type", info.Type), slog.String("id", info.ID))
			fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s (%s)\n", info.Type, info.ID)
			return nil
		},
	}
	trigger.Flags().DurationVar(&opts.Within, "within", 0, "expiry scan window (default from worker config)")
	trigger.Flags().StringSliceVar(&opts.Tenants, "tenant", nil, "tenant databases to warm (default all active)")

	stats := &cobra.Command{
		Use:   "stats",
		Short: "Show default queue counters",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := deps.Jobs(deps.Config.AsynqRedis())
			defer c.Close()
			s, err := c.InspectQueue()
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "QUEUE\tPENDING\tACTIVE\tSCHEDULED\tRETRY\tARCHIVED")
			fmt.Fprintf(w, "%s\t%d\t%d\t%d\t%d\t%d\n", s.Queue, s.Pending, s.Active, s.Scheduled, s.Retry, s.Archived)
			return w.Flush()
		},
	}

	var size int
	scheduled := &cobra.Command{
		Use:   "scheduled",
		Short: "List scheduled tasks",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c := deps.Jobs(deps.Config.AsynqRedis())
			defer c.Close()
			tasks, err := c.ListScheduled(size)
			if err != nil {
				return err
			}
			for _, t := range tasks {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", t.ID, t.Type, t.NextProcessAt.Format("2006-01-02 15:04:05"))
			}
			return nil
		},
	}
	scheduled.Flags().IntVar(&size, "size", 10, "page size")

	cmd.AddCommand(trigger, stats, scheduled)
	return cmd
}
