package cmd

import (
	"github.com/spf13/cobra"

	"github.com/rishansujesh/job-registry/internal/jobctl"
	"github.com/rishansujesh/job-registry/internal/protocol"
)

func connect(a *jobctl.App) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		return a.Connect()
	}
}

func hashCmd(a *jobctl.App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:   "hash -f <job.yaml>",
		Short: "Print the id a job descriptor hashes to",
		Long: `Computes the content-derived id of a job descriptor without contacting the master.
Fails if the descriptor claims an id that does not match its content.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Hash(file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Job descriptor, YAML or JSON (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func createCmd(a *jobctl.App) *cobra.Command {
	var file string
	cmd := &cobra.Command{
		Use:     "create -f <job.yaml>",
		Short:   "Register a job descriptor",
		Args:    cobra.NoArgs,
		PreRunE: connect(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.Create(file)
		},
	}
	cmd.Flags().StringVarP(&file, "file", "f", "", "Job descriptor, YAML or JSON (- for stdin)")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func getCmd(a *jobctl.App) *cobra.Command {
	return &cobra.Command{
		Use:     "get <name:version:hash>",
		Short:   "Show a registered job",
		Args:    cobra.RangeArgs(1, 3),
		PreRunE: connect(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := jobctl.JobIDFromArgs(args)
			if err != nil {
				return err
			}
			return a.Get(id)
		},
	}
}

func listCmd(a *jobctl.App) *cobra.Command {
	var req protocol.ListJobsRequest
	cmd := &cobra.Command{
		Use:     "list",
		Short:   "List registered jobs ordered by id",
		Args:    cobra.NoArgs,
		PreRunE: connect(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.List(req)
		},
	}
	cmd.Flags().StringVar(&req.NameContains, "name", "", "Only jobs whose name contains this")
	cmd.Flags().IntVar(&req.Limit, "limit", 50, "Maximum number of jobs")
	cmd.Flags().IntVar(&req.Offset, "offset", 0, "Number of jobs to skip")
	return cmd
}

func deleteCmd(a *jobctl.App) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <name:version:hash>",
		Short:   "Remove a registered job",
		Args:    cobra.RangeArgs(1, 3),
		PreRunE: connect(a),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := jobctl.JobIDFromArgs(args)
			if err != nil {
				return err
			}
			return a.Delete(id)
		},
	}
}
