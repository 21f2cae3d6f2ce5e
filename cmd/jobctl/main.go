package main

import (
	"os"

	"github.com/rishansujesh/job-registry/cmd/jobctl/cmd"
	"github.com/rishansujesh/job-registry/internal/common/logging"
)

func main() {
	logging.ConfigureCommandLine(false)
	if err := cmd.RootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
