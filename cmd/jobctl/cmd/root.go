package cmd

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/rishansujesh/job-registry/internal/common/logging"
	"github.com/rishansujesh/job-registry/internal/jobctl"
)

// RootCmd is the root Cobra command that gets called from the main func.
// All other sub-commands should be registered here.
func RootCmd() *cobra.Command {
	return rootCmdWithApp(jobctl.New())
}

// Takes a caller-supplied app struct; useful for testing.
func rootCmdWithApp(a *jobctl.App) *cobra.Command {
	var verbose bool
	cmd := &cobra.Command{
		Use:           "jobctl",
		Short:         "jobctl manages job descriptors in the job registry.",
		SilenceUsage:  true,
		SilenceErrors: false,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.ConfigureCommandLine(verbose)
			a.Out = cmd.OutOrStdout()
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return a.Close()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVar(&a.Params.MasterUrl, "master", "localhost:50051", "gRPC address of the job registry master")
	flags.DurationVar(&a.Params.Timeout, "timeout", 10*time.Second, "Timeout for each request")
	flags.BoolVarP(&verbose, "verbose", "v", false, "Log debug output")

	cmd.AddCommand(
		hashCmd(a),
		createCmd(a),
		getCmd(a),
		listCmd(a),
		deleteCmd(a),
		eventsCmd(a),
	)
	return cmd
}
