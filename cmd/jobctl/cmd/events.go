package cmd

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/rishansujesh/job-registry/internal/jobctl"
)

func eventsCmd(a *jobctl.App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "events",
		Short: "Inspect the job event stream",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a.Out = cmd.OutOrStdout()
			return a.ConnectRedis(context.Background())
		},
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&a.Params.RedisAddr, "redis", "localhost:6379", "Redis address")
	flags.StringVar(&a.Params.Stream, "stream", "jobs:events", "Event stream")
	flags.StringVar(&a.Params.DeadLetter, "dead-letter", "jobs:events:dlq", "Dead letter stream")
	flags.StringVar(&a.Params.Group, "group", "cg:watchers", "Watcher consumer group")

	var count int64
	pending := &cobra.Command{
		Use:   "pending",
		Short: "List dead-lettered events awaiting requeue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.EventsPending(count)
		},
	}
	pending.Flags().Int64Var(&count, "count", 20, "Maximum number of entries")

	var requeueCount int64
	requeue := &cobra.Command{
		Use:   "requeue-dlq",
		Short: "Move dead-lettered events back onto the event stream",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.RequeueDeadLetters(requeueCount)
		},
	}
	requeue.Flags().Int64Var(&requeueCount, "count", 100, "Maximum number of entries to move")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "lag",
			Short: "Show stream length, unacknowledged and dead-lettered counts",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				return a.EventsLag()
			},
		},
		pending,
		requeue,
	)
	return cmd
}
